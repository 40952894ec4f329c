// Package textdecode tolerantly decodes text captured from a subprocess.
// Servers may write their diagnostics in UTF-8 with or without a BOM, or in
// UTF-16; the driver never interprets the content, but it should display it
// readably.
package textdecode

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// decoder is an interface for text decoding.
type decoder interface {
	Bytes(b []byte) ([]byte, error)
}

// utf8Fallback decodes as UTF-8, replacing invalid sequences instead of
// failing.
var utf8Fallback decoder = unicode.UTF8.NewDecoder()

// bomOverride checks whether the text has a BOM, and returns the decoder for
// that encoding with the BOM dropped. Without a BOM it returns defaultDecoder.
func bomOverride(b []byte, defaultDecoder decoder) ([]byte, decoder) {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:], unicode.UTF8.NewDecoder()
	}
	if len(b) >= 2 {
		if b[0] == 0xFE && b[1] == 0xFF {
			return b[2:], unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		}
		if b[0] == 0xFF && b[1] == 0xFE {
			return b[2:], unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		}
	}
	return b, defaultDecoder
}

// Bytes decodes b to a string with newlines normalised to "\n".
func Bytes(b []byte) (string, error) {
	b, dec := bomOverride(b, utf8Fallback)
	s, err := dec.Bytes(b)
	if err != nil {
		return "", err
	}
	return normalizeNewlines(string(s)), nil
}

// UTF8 decodes b as UTF-8 only, still normalising newlines. Invalid input
// passes through with replacement runes.
func UTF8(b []byte) string {
	if !utf8.Valid(b) {
		b = []byte(strings.ToValidUTF8(string(b), string(utf8.RuneError)))
	}
	return normalizeNewlines(string(b))
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
