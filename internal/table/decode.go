package table

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// normalizeEncoding strips a UTF-8 byte order mark and converts uploads that
// are not valid UTF-8 from Windows-1252, the encoding spreadsheet exports on
// Windows produce most often. Every byte sequence is valid Windows-1252, so
// the result is always valid UTF-8.
func normalizeEncoding(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode windows-1252: %w", err)
	}
	return decoded, nil
}
