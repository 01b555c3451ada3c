package testsupport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

// PNGBytes is the 8-byte PNG signature padded to size bytes; enough for
// content sniffing in tests. A size <= 8 returns just the signature.
func PNGBytes(size int) []byte {
	signature := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	if size <= len(signature) {
		return signature
	}
	return append(signature, bytes.Repeat([]byte{0x42}, size-len(signature))...)
}

// NewMediaServer serves body with contentType for every path and registers
// cleanup. It stands in for provider CDNs.
func NewMediaServer(t testing.TB, contentType string, body []byte) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}
