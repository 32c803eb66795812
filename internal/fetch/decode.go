package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DecodeBody turns a fetch Result into HTML text. It never fails: every
// decompression or charset problem degrades to a best-effort fallback.
//
// Some environments hand back already-decompressed bodies while the headers
// still declare an encoding. The body is sniffed first; when it already looks
// like an HTML document, decompression is skipped entirely.
func DecodeBody(res Result) string {
	raw := res.Body
	if len(raw) == 0 {
		return ""
	}

	if !sniffsAsHTML(raw) {
		raw = decompress(raw, res.Headers["content-encoding"])
	}

	return decodeText(raw, res.Headers["content-type"])
}

// sniffsAsHTML reports whether the leading bytes already read as an HTML
// document.
func sniffsAsHTML(raw []byte) bool {
	head := raw
	if len(head) > 256 {
		head = head[:256]
	}
	head = bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(head, []byte("<!doctype")) ||
		bytes.HasPrefix(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<html"))
}

// decompress applies the declared Content-Encoding, returning the input
// unchanged whenever decompression fails.
func decompress(raw []byte, encoding string) []byte {
	enc := strings.ToLower(strings.TrimSpace(encoding))
	switch {
	case strings.Contains(enc, "br"):
		if out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(raw))); err == nil {
			return out
		}
	case strings.Contains(enc, "gzip"):
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return raw
		}
		defer r.Close()
		if out, err := io.ReadAll(r); err == nil {
			return out
		}
	case strings.Contains(enc, "deflate"):
		if r, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			defer r.Close()
			if out, err := io.ReadAll(r); err == nil {
				return out
			}
		}
		// Some servers send raw deflate streams without the zlib wrapper.
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		if out, err := io.ReadAll(fr); err == nil {
			return out
		}
	}
	return raw
}

// decodeText converts bytes to a string, preferring the charset declared in
// Content-Type, then a short list of common encodings, finally permissive
// UTF-8 with substitution.
func decodeText(raw []byte, contentType string) string {
	if name := charsetFromContentType(contentType); name != "" {
		if out, ok := decodeCharset(raw, name); ok {
			return out
		}
	}

	if utf8.Valid(raw) {
		return string(raw)
	}

	// UTF-16 only when a byte order mark says so.
	if len(raw) >= 2 && (raw[0] == 0xFE && raw[1] == 0xFF || raw[0] == 0xFF && raw[1] == 0xFE) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if out, err := dec.Bytes(raw); err == nil {
			return string(out)
		}
	}

	if out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil {
		return string(out)
	}

	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

func charsetFromContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	idx := strings.Index(ct, "charset=")
	if idx < 0 {
		return ""
	}
	name := ct[idx+len("charset="):]
	if semi := strings.IndexByte(name, ';'); semi >= 0 {
		name = name[:semi]
	}
	return strings.Trim(strings.TrimSpace(name), `"'`)
}

func decodeCharset(raw []byte, name string) (string, bool) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}
