// Package encoding provides text helpers for label names stored in atlas files.
package encoding

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Latin1ToUTF8 converts ISO-8859-1 encoded bytes to a UTF-8 string.
// Returns the original string if conversion fails.
func Latin1ToUTF8(data []byte) string {
	decoder := charmap.ISO8859_1.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// DecodeName converts a raw label name to UTF-8. Valid UTF-8 is kept as is;
// anything else is assumed to be Latin-1, which older atlas tools wrote.
func DecodeName(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return Latin1ToUTF8(data)
}

// TrimNullBytes removes trailing null bytes from a byte slice.
func TrimNullBytes(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}

// FixedStringToUTF8 converts a null-terminated (or null-padded) byte field
// to a UTF-8 string.
func FixedStringToUTF8(data []byte) string {
	if nullIdx := bytes.IndexByte(data, 0); nullIdx >= 0 {
		data = data[:nullIdx]
	}
	return DecodeName(data)
}

// FoldName normalizes a label name for case-insensitive comparison:
// surrounding whitespace is dropped and Unicode case folding applied.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// CharsetReader converts an XML document declared in a non-UTF-8 charset
// (FSL atlas descriptions use ISO-8859-1) to UTF-8. It matches the
// signature of xml.Decoder.CharsetReader.
func CharsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}
