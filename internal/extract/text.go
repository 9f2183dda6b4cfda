package extract

import (
	"bytes"
	"context"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextExtractor reads plain text files.
// Files that are not valid UTF-8 are decoded as Windows-1254, the legacy Turkish code page.
type TextExtractor struct{}

func (e *TextExtractor) Extract(_ context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1254.NewDecoder().Bytes(data)
		if err != nil {
			return Result{}, err
		}
		data = decoded
	}

	return Result{Text: string(data), Format: ".txt"}, nil
}
