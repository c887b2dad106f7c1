package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	documentPart     = "word/document.xml"
	ctxCheckEvery    = 512
)

func docxText(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: invalid or empty DOCX buffer", ErrExtract)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("%w: missing %s", ErrCorrupted, documentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrCorrupted, documentPart, err)
	}
	defer func() { _ = rc.Close() }()

	text, err := bodyText(ctx, rc)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: DOCX contains no text", ErrExtract)
	}
	return text, nil
}

// bodyText walks document.xml, keeping w:t runs, tabs, breaks and paragraph
// boundaries.
func bodyText(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
		n      int
	)
	for {
		if n++; n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrCorrupted, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Space != wordprocessingNS {
				continue
			}
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			if el.Name.Space != wordprocessingNS {
				continue
			}
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(el)
			}
		}
	}
	return b.String(), nil
}
