package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{"token":"abc","profile":{"firstName":"John"}}`

func encode(t *testing.T, coding string, in []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch coding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	case "deflate-zlib":
		w = zlib.NewWriter(&buf)
	case "deflate-raw":
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		w = fw
	default:
		t.Fatalf("unknown coding %s", coding)
	}
	_, err := w.Write(in)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodingTransport(t *testing.T) {
	cases := []struct {
		name    string
		coding  string
		header  string
		encoded func(t *testing.T) []byte
	}{
		{"gzip", "gzip", "gzip", func(t *testing.T) []byte { return encode(t, "gzip", []byte(payload)) }},
		{"brotli", "br", "br", func(t *testing.T) []byte { return encode(t, "br", []byte(payload)) }},
		{"zlib deflate", "deflate", "deflate", func(t *testing.T) []byte { return encode(t, "deflate-zlib", []byte(payload)) }},
		{"raw deflate", "deflate", "deflate", func(t *testing.T) []byte { return encode(t, "deflate-raw", []byte(payload)) }},
		{"layered", "gzip, br", "gzip, br", func(t *testing.T) []byte {
			return encode(t, "br", encode(t, "gzip", []byte(payload)))
		}},
		{"identity", "", "", func(t *testing.T) []byte { return []byte(payload) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := tc.encoded(t)
			accepts := make(chan string, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				accepts <- r.Header.Get("Accept-Encoding")
				if tc.header != "" {
					w.Header().Set("Content-Encoding", tc.header)
				}
				_, _ = w.Write(body)
			}))
			defer srv.Close()

			client := &http.Client{Transport: NewDecodingTransport(nil)}
			resp, err := client.Get(srv.URL)
			require.NoError(t, err)
			defer resp.Body.Close()

			got, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
			assert.Equal(t, AcceptEncoding, <-accepts)
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
		})
	}
}

func TestDecodingTransportKeepsCallerEncoding(t *testing.T) {
	accepts := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accepts <- r.Header.Get("Accept-Encoding")
		_, _ = w.Write([]byte("plain"))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := (&http.Client{Transport: NewDecodingTransport(nil)}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "identity", <-accepts)
}

func TestDecodeErrors(t *testing.T) {
	t.Run("unsupported coding", func(t *testing.T) {
		resp := &http.Response{
			Header: http.Header{"Content-Encoding": []string{"zstd"}},
			Body:   io.NopCloser(bytes.NewReader([]byte("x"))),
		}
		err := Decode(resp)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported Content-Encoding "zstd"`)
	})

	t.Run("corrupt gzip header", func(t *testing.T) {
		resp := &http.Response{
			Header: http.Header{"Content-Encoding": []string{"gzip"}},
			Body:   io.NopCloser(bytes.NewReader([]byte("not gzip"))),
		}
		err := Decode(resp)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gzip")
	})

	t.Run("nil response", func(t *testing.T) {
		assert.NoError(t, Decode(nil))
	})
}
