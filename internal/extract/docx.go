package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	wordNamespace    = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	wordDocumentPart = "word/document.xml"

	// maxDocumentXML guards against zip bombs
	maxDocumentXML = 64 << 20
)

// DocxExtractor reads the body paragraphs of Office Open XML documents (.docx, .dot)
type DocxExtractor struct{}

func (e *DocxExtractor) Extract(ctx context.Context, path string) (Result, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Result{}, fmt.Errorf("open docx archive: %w", err)
	}
	defer zr.Close()

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == wordDocumentPart {
			part = f
			break
		}
	}
	if part == nil {
		return Result{}, fmt.Errorf("%s not found in archive", wordDocumentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", wordDocumentPart, err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(ctx, io.LimitReader(rc, maxDocumentXML))
	if err != nil {
		return Result{}, err
	}

	return Result{Text: strings.Join(paragraphs, "\n"), Format: ".docx"}, nil
}

// readParagraphs walks w:p elements and returns the text of each, in document order.
// Empty paragraphs are dropped.
func readParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
		depth      int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", wordDocumentPart, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Space != wordNamespace {
				continue
			}
			switch el.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if el.Name.Space != wordNamespace {
				continue
			}
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				depth--
				if depth == 0 {
					if line := strings.TrimSpace(current.String()); line != "" {
						paragraphs = append(paragraphs, line)
					}
					if err := ctx.Err(); err != nil {
						return nil, err
					}
				}
			}
		case xml.CharData:
			if inText {
				current.Write(el)
			}
		}
	}

	return paragraphs, nil
}
