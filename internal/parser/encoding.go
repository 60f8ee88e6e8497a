package parser

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

const (
	// charsetSniffBytes bounds how much input the detector inspects.
	charsetSniffBytes = 64 * 1024
	// minCharsetConfidence is the lowest detector confidence (0-100) we act on.
	minCharsetConfidence = 30
)

// DecodeText converts raw input to UTF-8 text and reports the charset it used.
// A byte-order mark is stripped. Input that is not valid UTF-8 is sniffed and
// transcoded; when that fails the invalid bytes are dropped.
func DecodeText(raw []byte) (string, string) {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		raw = raw[len(bomUTF8):]
	case bytes.HasPrefix(raw, bomUTF16LE), bytes.HasPrefix(raw, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, err := dec.Bytes(raw); err == nil {
			return string(out), "utf-16"
		}
	}

	if utf8.Valid(raw) {
		return string(raw), "utf-8"
	}

	if text, charset, ok := transcode(raw); ok {
		return text, charset
	}
	return strings.ToValidUTF8(string(raw), ""), "utf-8"
}

// transcode sniffs the charset of raw and decodes it to UTF-8.
func transcode(raw []byte) (string, string, bool) {
	probe := raw
	if len(probe) > charsetSniffBytes {
		probe = probe[:charsetSniffBytes]
	}

	result, err := chardet.NewTextDetector().DetectBest(probe)
	if err != nil || result == nil || result.Confidence < minCharsetConfidence {
		return "", "", false
	}
	if strings.EqualFold(result.Charset, "UTF-8") {
		return "", "", false
	}

	enc, err := htmlindex.Get(result.Charset)
	if err != nil {
		return "", "", false
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", false
	}
	return string(out), strings.ToLower(result.Charset), true
}

// sampleText returns at most n bytes of text, cut on a rune boundary.
func sampleText(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return strings.ToValidUTF8(text[:n], "")
}
