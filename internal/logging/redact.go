package logging

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/llmsearch/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	maxPatternLen = 200
	redacted      = "[REDACTED]"
)

// sensitiveQueryParams are masked by URI. post_token is the legacy way of
// passing the search token.
var sensitiveQueryParams = map[string]bool{
	"post_token": true,
	"token":      true,
	"api_key":    true,
}

// Secret logs a config.Secret as its length only.
func Secret(key string, val config.Secret) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val.Value()))+"]")
}

// URI logs the path and query of u with token-bearing query values masked.
func URI(key string, u *url.URL) zap.Field {
	return zap.String(key, redactURI(u))
}

func redactURI(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" {
		return u.EscapedPath()
	}
	q := u.Query()
	for k := range q {
		if sensitiveQueryParams[strings.ToLower(k)] {
			q[k] = []string{"REDACTED"}
		}
	}
	return u.EscapedPath() + "?" + q.Encode()
}

// redactor holds the compiled rules shared by an encoder and its clones.
type redactor struct {
	keys     map[string]bool
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (*redactor, error) {
	r := &redactor{keys: make(map[string]bool, len(cfg.Fields))}
	for _, f := range cfg.Fields {
		r.keys[strings.ToLower(f)] = true
	}
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

func (r *redactor) sensitive(key string) bool {
	return r != nil && r.keys[strings.ToLower(key)]
}

// scrub masks every pattern match in s, leaving the rest readable.
func (r *redactor) scrub(s string) string {
	if r == nil {
		return s
	}
	for _, re := range r.patterns {
		s = re.ReplaceAllString(s, redacted)
	}
	return s
}

func (r *redactor) field(f zapcore.Field) zapcore.Field {
	if r.sensitive(f.Key) {
		return zap.String(f.Key, redacted)
	}
	switch f.Type {
	case zapcore.StringType:
		f.String = r.scrub(f.String)
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok && err != nil {
			if msg := err.Error(); r.scrub(msg) != msg {
				return zap.String(f.Key, r.scrub(msg))
			}
		}
	}
	return f
}

// RedactingEncoder wraps a zapcore.Encoder. Sensitive keys are replaced
// whole; pattern matches are masked in string values, errors and the
// message.
type RedactingEncoder struct {
	zapcore.Encoder
	r *redactor
}

// NewRedactingEncoder wraps base with the rules in cfg. A disabled cfg
// yields a pass-through encoder.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}
	r, err := newRedactor(cfg)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, r: r}, nil
}

// EncodeEntry handles fields given at the call site; the embedded
// encoder would otherwise add them without going through AddString.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if e.r == nil {
		return e.Encoder.EncodeEntry(ent, fields)
	}
	ent.Message = e.r.scrub(ent.Message)
	clean := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		clean[i] = e.r.field(f)
	}
	return e.Encoder.EncodeEntry(ent, clean)
}

// The Add methods cover fields attached with Logger.With.

func (e *RedactingEncoder) AddString(key, val string) {
	if e.r.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddString(key, e.r.scrub(val))
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.r.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.r.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.r.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), r: e.r}
}
