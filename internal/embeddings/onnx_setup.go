//go:build cgo

package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultONNXRuntimeVersion matches the onnxruntime_go release pulled in by
// fastembed-go. Bump both together.
const DefaultONNXRuntimeVersion = "1.23.0"

const onnxReleaseBaseURL = "https://github.com/microsoft/onnxruntime/releases/download"

// ErrUnsupportedPlatform indicates no prebuilt runtime exists for GOOS/GOARCH.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

var onnxArchives = map[string]string{
	"linux/amd64":  "linux-x64",
	"linux/arm64":  "linux-aarch64",
	"darwin/amd64": "osx-x86_64",
	"darwin/arm64": "osx-arm64",
}

// onnxInstaller fetches a runtime release and unpacks its lib/ directory.
type onnxInstaller struct {
	version string
	goos    string
	goarch  string
	dir     string
	baseURL string
	client  *http.Client
}

func newONNXInstaller(version string) *onnxInstaller {
	if version == "" {
		version = DefaultONNXRuntimeVersion
	}
	return &onnxInstaller{
		version: version,
		goos:    runtime.GOOS,
		goarch:  runtime.GOARCH,
		dir:     onnxInstallDir(),
		baseURL: onnxReleaseBaseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (i *onnxInstaller) archive() (string, error) {
	a, ok := onnxArchives[i.goos+"/"+i.goarch]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, i.goos, i.goarch)
	}
	return a, nil
}

func (i *onnxInstaller) libraryName() string {
	return onnxLibraryName(i.goos)
}

// url returns .../v1.23.0/onnxruntime-linux-x64-1.23.0.tgz.
func (i *onnxInstaller) url(archive string) string {
	return fmt.Sprintf("%s/v%s/onnxruntime-%s-%s.tgz", strings.TrimRight(i.baseURL, "/"), i.version, archive, i.version)
}

// install downloads the release and returns the installed library path.
func (i *onnxInstaller) install(ctx context.Context) (string, error) {
	archive, err := i.archive()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(i.dir, 0o700); err != nil {
		return "", fmt.Errorf("creating install dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url(archive), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading onnx runtime: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading onnx runtime: status %d", resp.StatusCode)
	}

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", archive, i.version)
	if err := i.unpack(resp.Body, prefix); err != nil {
		return "", fmt.Errorf("unpacking onnx runtime: %w", err)
	}
	return filepath.Join(i.dir, i.libraryName()), nil
}

// unpack copies every entry under prefix into i.dir, flattening paths.
// Symlinks are recreated so the versioned .so chain keeps resolving.
func (i *onnxInstaller) unpack(r io.Reader, prefix string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	lib := i.libraryName()
	found := false
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		if !strings.HasPrefix(name, prefix) || hdr.Typeflag == tar.TypeDir {
			continue
		}
		base := path.Base(name)
		dest := filepath.Join(i.dir, base)

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			if strings.Contains(hdr.Linkname, "/") {
				continue
			}
			_ = os.Remove(dest)
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				continue
			}
		case tar.TypeReg:
			if err := writeFile(dest, tr); err != nil {
				return err
			}
		default:
			continue
		}
		if base == lib || strings.HasPrefix(base, lib+".") {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%s not found in archive", lib)
	}
	return nil
}

func writeFile(dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func onnxLibraryName(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

func onnxInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "llmsearch", "lib")
}

// GetONNXLibraryPath returns ONNX_PATH if set, else the managed install
// under ~/.config/llmsearch/lib when present, else "".
func GetONNXLibraryPath() string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	managed := filepath.Join(onnxInstallDir(), onnxLibraryName(runtime.GOOS))
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

// setONNXPathEnv is swapped in tests.
var setONNXPathEnv = func(path string) error {
	return os.Setenv("ONNX_PATH", path)
}

// EnsureONNXRuntime returns the ONNX runtime library path, downloading the
// runtime first when none is installed, and exports ONNX_PATH for
// fastembed-go.
func EnsureONNXRuntime(ctx context.Context, logger *zap.Logger) (string, error) {
	return ensureONNXRuntime(ctx, newONNXInstaller(""), logger)
}

func ensureONNXRuntime(ctx context.Context, inst *onnxInstaller, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p := GetONNXLibraryPath(); p != "" {
		return p, setONNXPathEnv(p)
	}

	logger.Info("onnx runtime not found, downloading",
		zap.String("version", inst.version),
		zap.String("platform", inst.goos+"/"+inst.goarch),
		zap.String("dir", inst.dir),
	)
	p, err := inst.install(ctx)
	if err != nil {
		return "", fmt.Errorf("installing onnx runtime (set ONNX_PATH to use an existing install): %w", err)
	}
	logger.Info("onnx runtime installed", zap.String("path", p))
	return p, setONNXPathEnv(p)
}
