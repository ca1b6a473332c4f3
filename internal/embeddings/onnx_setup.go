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
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultONNXRuntimeVersion must track the onnxruntime_go pin in go.mod.
const DefaultONNXRuntimeVersion = "1.23.0"

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// releaseArchive returns the platform component of the onnxruntime release
// archive name, e.g. "linux-x64" or "osx-arm64".
func releaseArchive(goos, goarch string) (string, error) {
	switch goos + "/" + goarch {
	case "linux/amd64":
		return "linux-x64", nil
	case "linux/arm64":
		return "linux-aarch64", nil
	case "darwin/amd64":
		return "osx-x86_64", nil
	case "darwin/arm64":
		return "osx-arm64", nil
	}
	return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
}

func sharedLibraryName(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// managedLibDir is where vectord keeps its own copy of the runtime.
func managedLibDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "vectord", "lib")
}

// GetONNXLibraryPath locates the onnxruntime shared library. An ONNX_PATH
// environment variable wins over the managed install; an empty return means
// neither exists.
func GetONNXLibraryPath() string {
	if env := os.Getenv("ONNX_PATH"); env != "" {
		return env
	}
	managed := filepath.Join(managedLibDir(), sharedLibraryName(runtime.GOOS))
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

// DownloadONNXRuntime fetches the onnxruntime release for the current
// platform into the managed install directory. An empty version selects
// DefaultONNXRuntimeVersion.
func DownloadONNXRuntime(ctx context.Context, version string) error {
	if version == "" {
		version = DefaultONNXRuntimeVersion
	}

	platform, err := releaseArchive(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}

	destDir := managedLibDir()
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", destDir, err)
	}

	url := fmt.Sprintf(
		"https://github.com/microsoft/onnxruntime/releases/download/v%s/onnxruntime-%s-%s.tgz",
		version, platform, version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading onnxruntime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s failed with status %d", url, resp.StatusCode)
	}

	libPrefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, version)
	if err := extractLibDir(resp.Body, destDir, libPrefix); err != nil {
		return fmt.Errorf("extracting archive: %w", err)
	}
	return nil
}

// extractLibDir unpacks every entry under libPrefix from the gzipped
// tarball into destDir, flattening paths. The lib/ directory holds the
// shared library plus versioned symlinks; all of it is kept.
func extractLibDir(r io.Reader, destDir, libPrefix string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gzr.Close()

	libName := sharedLibraryName(runtime.GOOS)
	found := false

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, libPrefix) || header.Typeflag == tar.TypeDir {
			continue
		}

		base := filepath.Base(name)
		dest := filepath.Join(destDir, base)

		switch header.Typeflag {
		case tar.TypeSymlink:
			os.Remove(dest)
			if err := os.Symlink(header.Linkname, dest); err != nil {
				// The link target is extracted as a regular file anyway.
				continue
			}
		default:
			out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return fmt.Errorf("creating %s: %w", base, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("writing %s: %w", base, err)
			}
			out.Close()
		}

		if base == libName || strings.HasPrefix(base, libName+".") {
			found = true
		}
	}

	if !found {
		return fmt.Errorf("%s not present in archive", libName)
	}
	return nil
}

// setONNXPathEnv points fastembed-go at a library path. A variable so tests
// can intercept the write.
var setONNXPathEnv = func(path string) error {
	return os.Setenv("ONNX_PATH", path)
}
