package sanitize

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinWithin(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		root    string
		elem    string
		want    string
		wantErr error
	}{
		{name: "child", root: root, elem: "vector", want: filepath.Join(root, "vector")},
		{name: "nested", root: root, elem: "a/b", want: filepath.Join(root, "a", "b")},
		{name: "inner dots resolve inside", root: root, elem: "a/../b", want: filepath.Join(root, "b")},
		{name: "dotted name", root: root, elem: "..vector", want: filepath.Join(root, "..vector")},
		{name: "empty elem", root: root, elem: "", want: root},
		{name: "empty root", root: "", elem: "vector", wantErr: ErrEmptyPath},
		{name: "parent", root: root, elem: "..", wantErr: ErrPathTraversal},
		{name: "escape", root: root, elem: "../other", wantErr: ErrPathTraversal},
		{name: "deep escape", root: root, elem: "a/../../other", wantErr: ErrPathTraversal},
		{name: "absolute", root: root, elem: "/etc", wantErr: ErrPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinWithin(tt.root, tt.elem)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinWithin_RelativeRoot(t *testing.T) {
	got, err := JoinWithin("local_cache", "vector")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "vector", filepath.Base(got))
}
