package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu must not write a config directory into the service user's home
	api.DisableConfigDir()
}

// PDFExtractor reads PDF text page by page.
// pdfcpu reads the page count; ledongthuc/pdf reads the text.
type PDFExtractor struct{}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (res Result, err error) {
	res.Format = ".pdf"

	// the text reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return res, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := reader.NumPage()
	res.PageCount = pageCount(path, pages)

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		text, ok := pageText(reader, i)
		if !ok {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	res.Text = b.String()
	return res, nil
}

// pageText extracts one page. A page that cannot be read is skipped.
func pageText(reader *pdf.Reader, i int) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	page := reader.Page(i)
	if page.V.IsNull() {
		return "", false
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(text), true
}

// pageCount asks pdfcpu, which validates the cross reference table, and falls
// back to the text reader's count for files pdfcpu rejects.
func pageCount(path string, fallback int) int {
	f, err := os.Open(path)
	if err != nil {
		return fallback
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(f, conf)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
