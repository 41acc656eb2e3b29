package network

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedBody = `{"OSVersions": [{"OSVersion": "Sonoma 14"}]}`

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func brotliBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write(data)
	require.NoError(t, err)
	require.NoError(t, bw.Close())
	return buf.Bytes()
}

func TestCompressionMiddleware_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		encode   func(*testing.T, []byte) []byte
	}{
		{"Brotli", "br", brotliBytes},
		{"Gzip", "gzip", gzipBytes},
		{"Identity", "", func(_ *testing.T, b []byte) []byte { return b }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAccept string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAccept = r.Header.Get("Accept-Encoding")
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				_, _ = w.Write(tt.encode(t, []byte(feedBody)))
			}))
			defer server.Close()

			resp, err := NewClient(nil).Get(server.URL)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, "br, gzip", gotAccept)
			assert.Equal(t, feedBody, string(body))
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
		})
	}
}

func TestCompressionMiddleware_KeepsCallerEncoding(t *testing.T) {
	var gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept-Encoding")
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := NewClient(nil).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "gzip", gotAccept)
}

func TestDecompressResponse(t *testing.T) {
	t.Run("Layered", func(t *testing.T) {
		// gzip applied first, then brotli.
		data := brotliBytes(t, gzipBytes(t, []byte(feedBody)))
		resp := &http.Response{
			Header: http.Header{"Content-Encoding": []string{"gzip", "br"}},
			Body:   io.NopCloser(bytes.NewReader(data)),
		}
		require.NoError(t, DecompressResponse(resp))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, feedBody, string(body))
		assert.NoError(t, resp.Body.Close())
		assert.EqualValues(t, -1, resp.ContentLength)
		assert.True(t, resp.Uncompressed)
	})

	t.Run("Unsupported", func(t *testing.T) {
		resp := &http.Response{
			Header: http.Header{"Content-Encoding": []string{"zstd"}},
			Body:   io.NopCloser(strings.NewReader("x")),
		}
		err := DecompressResponse(resp)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "zstd")
	})

	t.Run("CorruptGzip", func(t *testing.T) {
		resp := &http.Response{
			Header: http.Header{"Content-Encoding": []string{"gzip"}},
			Body:   io.NopCloser(strings.NewReader("not gzip")),
		}
		assert.Error(t, DecompressResponse(resp))
	})

	t.Run("NilSafe", func(t *testing.T) {
		assert.NoError(t, DecompressResponse(nil))
		assert.NoError(t, DecompressResponse(&http.Response{}))
	})
}
