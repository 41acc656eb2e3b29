// File: internal/network/compression.go
package network

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

var brotliReaderPool = sync.Pool{
	New: func() interface{} {
		return brotli.NewReader(nil)
	},
}

// Shared empty reader used to release pooled readers' references.
var emptyReader = strings.NewReader("")

// CompressionMiddleware is an http.RoundTripper that advertises brotli and gzip and
// transparently decodes the response body. The SOFA feed and the Jamf Pro API both
// serve large JSON documents that compress well.
type CompressionMiddleware struct {
	// Transport is the wrapped round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// NewCompressionMiddleware wraps transport.
func NewCompressionMiddleware(transport http.RoundTripper) *CompressionMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CompressionMiddleware{Transport: transport}
}

// RoundTrip implements http.RoundTripper.
func (cm *CompressionMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		// Clone so the caller's request is left untouched.
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "br, gzip")
	}

	resp, err := cm.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := DecompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// closeWrapper closes both the decoder and the original body, returning pooled
// readers on Close.
type closeWrapper struct {
	io.ReadCloser
	originalBody io.ReadCloser
	poolCallback func()
}

func (w *closeWrapper) Close() error {
	if w.poolCallback != nil {
		w.poolCallback()
		w.poolCallback = nil
	}
	err1 := w.ReadCloser.Close()
	err2 := w.originalBody.Close()
	return errors.Join(err1, err2)
}

// DecompressResponse wraps resp.Body with decoders for each Content-Encoding layer,
// applied in reverse order. Supported: br, gzip, identity.
//
// On error the body may be partially consumed; the caller must close and discard
// the response.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		encoding := strings.ToLower(strings.TrimSpace(encodings[i]))

		var reader io.ReadCloser
		var poolCallback func()

		switch encoding {
		case "gzip":
			gz, err := gzip.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip initialization error: %w", err)
			}
			reader = gz
		case "br":
			br := brotliReaderPool.Get().(*brotli.Reader)
			if err := br.Reset(resp.Body); err != nil {
				brotliReaderPool.Put(br)
				return fmt.Errorf("brotli initialization error: %w", err)
			}
			reader = io.NopCloser(br)
			poolCallback = func() {
				_ = br.Reset(emptyReader)
				brotliReaderPool.Put(br)
			}
		case "identity", "":
			continue
		default:
			return fmt.Errorf("unsupported Content-Encoding layer: %s", encoding)
		}

		resp.Body = &closeWrapper{
			ReadCloser:   reader,
			originalBody: resp.Body,
			poolCallback: poolCallback,
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}
