package embeddings

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseArchive(t *testing.T) {
	tests := []struct {
		goos   string
		goarch string
		want   string
	}{
		{"linux", "amd64", "linux-x64"},
		{"linux", "arm64", "linux-aarch64"},
		{"darwin", "amd64", "osx-x86_64"},
		{"darwin", "arm64", "osx-arm64"},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := releaseArchive(tt.goos, tt.goarch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := releaseArchive("windows", "amd64")
	require.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestSharedLibraryName(t *testing.T) {
	assert.Equal(t, "libonnxruntime.so", sharedLibraryName("linux"))
	assert.Equal(t, "libonnxruntime.dylib", sharedLibraryName("darwin"))
}

func TestCurrentPlatformSupported(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("no onnxruntime release for this platform")
	}
	_, err := releaseArchive(runtime.GOOS, runtime.GOARCH)
	assert.NoError(t, err)
}

// buildRuntimeTarball assembles a minimal gzipped tar mimicking the
// onnxruntime release layout.
func buildRuntimeTarball(t *testing.T, libPrefix string, files map[string]string) io.Reader {
	t.Helper()

	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for name, content := range files {
		hdr := &tar.Header{
			Name: libPrefix + name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	return &buf
}

func TestExtractLibDir(t *testing.T) {
	libPrefix := "onnxruntime-linux-x64/lib/"
	libName := sharedLibraryName(runtime.GOOS)

	dest := t.TempDir()
	archive := buildRuntimeTarball(t, libPrefix, map[string]string{
		libName + ".1.23.0": "fake library bytes",
		"VERSION_NUMBER":    "1.23.0",
	})

	require.NoError(t, extractLibDir(archive, dest, libPrefix))

	data, err := os.ReadFile(filepath.Join(dest, libName+".1.23.0"))
	require.NoError(t, err)
	assert.Equal(t, "fake library bytes", string(data))
}

func TestExtractLibDir_MissingLibrary(t *testing.T) {
	libPrefix := "onnxruntime-linux-x64/lib/"
	archive := buildRuntimeTarball(t, libPrefix, map[string]string{
		"VERSION_NUMBER": "1.23.0",
	})

	err := extractLibDir(archive, t.TempDir(), libPrefix)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not present in archive")
}

func TestExtractLibDir_NotGzip(t *testing.T) {
	err := extractLibDir(bytes.NewReader([]byte("plain text")), t.TempDir(), "lib/")
	require.Error(t, err)
}

func TestGetONNXLibraryPath_EnvOverride(t *testing.T) {
	t.Setenv("ONNX_PATH", "/opt/onnx/libonnxruntime.so")
	assert.Equal(t, "/opt/onnx/libonnxruntime.so", GetONNXLibraryPath())
}
