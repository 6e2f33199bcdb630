// internal/browser/network/decode.go
package network

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding mirrors what Chrome advertises for fetch() calls.
const AcceptEncoding = "gzip, deflate, br"

var (
	gzipPool   = sync.Pool{New: func() any { return new(gzip.Reader) }}
	brotliPool = sync.Pool{New: func() any { return brotli.NewReader(nil) }}
	emptyInput = strings.NewReader("")
)

// DecodingTransport advertises the same content codings as the browser and
// transparently decodes the response body, so API calls made outside the page
// look like the page's own fetches to the portal.
type DecodingTransport struct {
	Base http.RoundTripper
}

// NewDecodingTransport wraps base, or http.DefaultTransport when base is nil.
func NewDecodingTransport(base http.RoundTripper) *DecodingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DecodingTransport{Base: base}
}

func (t *DecodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", AcceptEncoding)
	}
	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := Decode(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return resp, nil
}

// layer closes a decoder, hands pooled state back and closes the stream below it.
type layer struct {
	io.Reader
	below   io.Closer
	release func()
}

func (l *layer) Close() error {
	var err error
	if c, ok := l.Reader.(io.Closer); ok {
		err = c.Close()
	}
	if l.release != nil {
		l.release()
		l.release = nil
	}
	return errors.Join(err, l.below.Close())
}

// Decode unwraps every Content-Encoding layer of resp in reverse order of
// application. On error resp.Body may be partially consumed and must be
// discarded by the caller.
func Decode(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	var codings []string
	for _, v := range resp.Header.Values("Content-Encoding") {
		for _, c := range strings.Split(v, ",") {
			codings = append(codings, strings.ToLower(strings.TrimSpace(c)))
		}
	}
	if len(codings) == 0 {
		return nil
	}

	for i := len(codings) - 1; i >= 0; i-- {
		var l *layer
		switch codings[i] {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			zr := gzipPool.Get().(*gzip.Reader)
			if err := zr.Reset(resp.Body); err != nil {
				gzipPool.Put(zr)
				return fmt.Errorf("gzip: %w", err)
			}
			l = &layer{Reader: zr, below: resp.Body, release: func() {
				_ = zr.Reset(emptyInput)
				gzipPool.Put(zr)
			}}
		case "br":
			br := brotliPool.Get().(*brotli.Reader)
			if err := br.Reset(resp.Body); err != nil {
				brotliPool.Put(br)
				return fmt.Errorf("brotli: %w", err)
			}
			l = &layer{Reader: br, below: resp.Body, release: func() {
				_ = br.Reset(emptyInput)
				brotliPool.Put(br)
			}}
		case "deflate":
			l = &layer{Reader: inflate(resp.Body), below: resp.Body}
		default:
			return fmt.Errorf("unsupported Content-Encoding %q", codings[i])
		}
		resp.Body = l
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// inflate handles both zlib wrapped (RFC 1950) and raw (RFC 1951) deflate,
// which servers send interchangeably under the same coding name.
func inflate(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err == nil && isZlibHeader(header) {
		if zr, zerr := zlib.NewReader(br); zerr == nil {
			return zr
		}
	}
	return flate.NewReader(br)
}

func isZlibHeader(h []byte) bool {
	// CM must be 8 (deflate) and the header checksum must divide by 31.
	return h[0]&0x0f == 8 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}
