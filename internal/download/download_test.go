package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func sha256Hex(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func TestVerifyFileChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.bin")
	payload := []byte("moji")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	require.NoError(t, VerifyFileChecksum(path, sha256Hex(payload)))
	require.NoError(t, VerifyFileChecksum(path, ""))
	require.ErrorIs(t, VerifyFileChecksum(path, "deadbeef"), ErrChecksumMismatch)
}

func TestDownloadFileVerifiesChecksum(t *testing.T) {
	t.Parallel()

	payload := []byte("ggml-model-bytes")
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.UserAgent())
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "models", "ggml-tiny.bin")
	err := DownloadFile(context.Background(), Options{
		URL:            server.URL + "/ggml-tiny.bin",
		Destination:    destination,
		ExpectedSHA256: sha256Hex(payload),
		NoProgress:     true,
		Retries:        1,
	})
	require.NoError(t, err)

	onDisk, err := os.ReadFile(destination)
	require.NoError(t, err)
	require.Equal(t, payload, onDisk)
	require.Equal(t, "moji/1", userAgent.Load())
}

func TestDownloadFileChecksumMismatchLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tampered"))
	}))
	defer server.Close()

	dir := t.TempDir()
	err := DownloadFile(context.Background(), Options{
		URL:            server.URL,
		Destination:    filepath.Join(dir, "model.bin"),
		ExpectedSHA256: sha256Hex([]byte("original")),
		NoProgress:     true,
		Retries:        1,
	})
	require.ErrorIs(t, err, ErrChecksumMismatch)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDownloadFileRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "model.bin")
	err := DownloadFile(context.Background(), Options{
		URL:         server.URL,
		Destination: destination,
		NoProgress:  true,
		Retries:     2,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
	require.FileExists(t, destination)
}

func TestDownloadFileValidatesOptions(t *testing.T) {
	t.Parallel()

	require.ErrorContains(t, DownloadFile(context.Background(), Options{Destination: "x"}), "download URL is required")
	require.ErrorContains(t, DownloadFile(context.Background(), Options{URL: "http://example.invalid"}), "destination path is required")
}
