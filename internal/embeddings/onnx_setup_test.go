//go:build cgo

package embeddings

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/llmsearch/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type tarEntry struct {
	name     string
	body     string
	linkname string
}

func buildTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.linkname != "" {
			hdr = &tar.Header{Name: e.name, Linkname: e.linkname, Typeflag: tar.TypeSymlink}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.linkname == "" {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func testInstaller(t *testing.T, baseURL string) *onnxInstaller {
	t.Helper()
	inst := newONNXInstaller("1.23.0")
	inst.goos = "linux"
	inst.goarch = "amd64"
	inst.dir = t.TempDir()
	inst.baseURL = baseURL
	return inst
}

func TestONNXInstaller_Archive(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
	}{
		{"linux", "amd64", "linux-x64"},
		{"linux", "arm64", "linux-aarch64"},
		{"darwin", "amd64", "osx-x86_64"},
		{"darwin", "arm64", "osx-arm64"},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			inst := &onnxInstaller{goos: tt.goos, goarch: tt.goarch}
			got, err := inst.archive()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := (&onnxInstaller{goos: "windows", goarch: "amd64"}).archive()
	require.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestONNXInstaller_URL(t *testing.T) {
	inst := &onnxInstaller{version: "1.23.0", baseURL: onnxReleaseBaseURL}
	assert.Equal(t,
		"https://github.com/microsoft/onnxruntime/releases/download/v1.23.0/onnxruntime-linux-x64-1.23.0.tgz",
		inst.url("linux-x64"))
}

func TestONNXLibraryName(t *testing.T) {
	assert.Equal(t, "libonnxruntime.so", onnxLibraryName("linux"))
	assert.Equal(t, "libonnxruntime.dylib", onnxLibraryName("darwin"))
}

func TestONNXInstaller_Install(t *testing.T) {
	archive := buildTarGz(t, []tarEntry{
		{name: "onnxruntime-linux-x64-1.23.0/README.md", body: "ignored"},
		{name: "onnxruntime-linux-x64-1.23.0/lib/libonnxruntime.so.1.23.0", body: "ELF"},
		{name: "onnxruntime-linux-x64-1.23.0/lib/libonnxruntime.so", linkname: "libonnxruntime.so.1.23.0"},
		{name: "./onnxruntime-linux-x64-1.23.0/lib/libonnxruntime_providers_shared.so", body: "ELF2"},
	})

	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	inst := testInstaller(t, srv.URL)
	p, err := inst.install(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/v1.23.0/onnxruntime-linux-x64-1.23.0.tgz", requested)
	assert.Equal(t, filepath.Join(inst.dir, "libonnxruntime.so"), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "ELF", string(data))
	assert.FileExists(t, filepath.Join(inst.dir, "libonnxruntime_providers_shared.so"))
	assert.NoFileExists(t, filepath.Join(inst.dir, "README.md"))
}

func TestONNXInstaller_InstallErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		_, err := testInstaller(t, srv.URL).install(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
	})

	t.Run("library missing", func(t *testing.T) {
		archive := buildTarGz(t, []tarEntry{{name: "onnxruntime-linux-x64-1.23.0/lib/other.so", body: "x"}})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(archive)
		}))
		defer srv.Close()
		_, err := testInstaller(t, srv.URL).install(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "libonnxruntime.so not found")
	})

	t.Run("not gzip", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("plain text"))
		}))
		defer srv.Close()
		_, err := testInstaller(t, srv.URL).install(context.Background())
		require.Error(t, err)
	})
}

func TestEnsureONNXRuntime_UsesEnv(t *testing.T) {
	t.Setenv("ONNX_PATH", "/opt/onnx/libonnxruntime.so")

	var exported string
	orig := setONNXPathEnv
	setONNXPathEnv = func(p string) error { exported = p; return nil }
	t.Cleanup(func() { setONNXPathEnv = orig })

	p, err := ensureONNXRuntime(context.Background(), testInstaller(t, "http://127.0.0.1:1"), nil)
	require.NoError(t, err)
	assert.Equal(t, "/opt/onnx/libonnxruntime.so", p)
	assert.Equal(t, p, exported)
}

func TestEnsureONNXRuntime_Downloads(t *testing.T) {
	t.Setenv("ONNX_PATH", "")
	t.Setenv("HOME", t.TempDir())

	archive := buildTarGz(t, []tarEntry{
		{name: "onnxruntime-linux-x64-1.23.0/lib/" + onnxLibraryName("linux"), body: "ELF"},
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	var exported string
	orig := setONNXPathEnv
	setONNXPathEnv = func(p string) error { exported = p; return nil }
	t.Cleanup(func() { setONNXPathEnv = orig })

	tl := logging.NewTestLogger()
	inst := testInstaller(t, srv.URL)
	p, err := ensureONNXRuntime(context.Background(), inst, tl.Underlying())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(inst.dir, "libonnxruntime.so"), p)
	assert.Equal(t, p, exported)
	tl.AssertLogged(t, zapcore.InfoLevel, "onnx runtime not found, downloading")
	tl.AssertLogged(t, zapcore.InfoLevel, "onnx runtime installed")
}
