package logging

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encode(t *testing.T, enc zapcore.Encoder, msg string, fields ...zap.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{Time: time.Unix(0, 0), Message: msg}, fields)
	require.NoError(t, err)
	return buf.String()
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	t.Run("sensitive keys", func(t *testing.T) {
		out := encode(t, enc, "msg",
			zap.String("post_token", "test"),
			zap.String("Authorization", "Bearer abc"),
			zap.String("api_key", "sk-123"),
		)
		assert.NotContains(t, out, `"test"`)
		assert.NotContains(t, out, "abc")
		assert.NotContains(t, out, "sk-123")
		assert.Contains(t, out, `"post_token":"[REDACTED]"`)
	})

	t.Run("patterns masked in place", func(t *testing.T) {
		out := encode(t, enc, "msg",
			zap.String("uri", "/search/cosine_score?limit=5&post_token=hunter2"),
			zap.String("header", "bearer xyz"),
		)
		assert.NotContains(t, out, "hunter2")
		assert.NotContains(t, out, "xyz")
		assert.Contains(t, out, "/search/cosine_score?limit=5&[REDACTED]")
	})

	t.Run("message and errors", func(t *testing.T) {
		out := encode(t, enc, "retrying with Bearer s3cret",
			zap.Error(errors.New("GET /embed?api_key=abc123 failed")),
		)
		assert.NotContains(t, out, "s3cret")
		assert.NotContains(t, out, "abc123")
		assert.Contains(t, out, "retrying with [REDACTED]")
	})

	t.Run("ordinary fields untouched", func(t *testing.T) {
		out := encode(t, enc, "msg", zap.String("uri", "/test/health"), zap.Int("status", 200))
		assert.Contains(t, out, "/test/health")
		assert.Contains(t, out, `"status":200`)
	})

	t.Run("reflected values", func(t *testing.T) {
		out := encode(t, enc, "msg", zap.Any("token", map[string]string{"v": "leak"}))
		assert.NotContains(t, out, "leak")
	})

	t.Run("fields attached with With", func(t *testing.T) {
		child := enc.Clone()
		zap.String("vectordb_token", "bearer abc").AddTo(child)
		zap.String("token", "xyz").AddTo(child)
		out := encode(t, child, "msg")
		assert.NotContains(t, out, "abc")
		assert.NotContains(t, out, "xyz")
	})
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{})
	require.NoError(t, err)
	out := encode(t, enc, "bearer visible", zap.String("token", "visible"))
	assert.Contains(t, out, `"token":"visible"`)
	assert.Contains(t, out, "bearer visible")
}

func TestRedactingEncoder_BadPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"("}})
	require.Error(t, err)
}

func TestSecretField(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(t.Context(), "configured", Secret("vectordb_token", config.Secret("abcdef")))

	tl.AssertField(t, "configured", "vectordb_token", "[REDACTED:6]")
	tl.AssertNotContains(t, "abcdef")
}

func TestURIField(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"/test/health", "/test/health"},
		{"/search/cosine_score?limit=5", "/search/cosine_score?limit=5"},
		{"/search/cosine_score?post_token=test&limit=5", "/search/cosine_score?limit=5&post_token=REDACTED"},
		{"/search/like_by_keyword_score?POST_TOKEN=x", "/search/like_by_keyword_score?POST_TOKEN=REDACTED"},
		{"/test/embed?api_key=sk&token=t", "/test/embed?api_key=REDACTED&token=REDACTED"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, URI("uri", u).String)
		})
	}
	assert.Empty(t, URI("uri", nil).String)
}
