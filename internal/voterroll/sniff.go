package voterroll

import (
	"bytes"
	"unicode/utf8"
)

var (
	utf8BOM  = []byte{0xef, 0xbb, 0xbf}
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
)

// DetectFormat guesses the payload format from its first bytes: a zip
// container is a spreadsheet, a leading '[' is JSON and any other UTF-8 text
// is CSV.
func DetectFormat(head []byte) (Format, error) {
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.HasPrefix(head, zipMagic) {
		return FormatXLSX, nil
	}
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(head, utf8BOM))
	if len(trimmed) == 0 {
		return "", ErrUnknownFormat
	}
	if trimmed[0] == '[' {
		return FormatJSON, nil
	}
	if isText(trimmed) {
		return FormatCSV, nil
	}
	return "", ErrUnknownFormat
}

// isText allows a multi-byte rune cut off at the end of the sniffed window.
func isText(head []byte) bool {
	for len(head) > 0 {
		r, size := utf8.DecodeRune(head)
		if r == utf8.RuneError && size <= 1 {
			return len(head) < utf8.UTFMax && !utf8.FullRune(head)
		}
		if r == 0 {
			return false
		}
		head = head[size:]
	}
	return true
}
