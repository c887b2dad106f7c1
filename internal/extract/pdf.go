package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

func pdfText(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: invalid or empty PDF buffer", ErrExtract)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("%w: PDF has no pages", ErrExtract)
	}

	pages := make([]string, 0, numPages)
	for i := 0; i < numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pageText, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", ErrCorrupted, i+1, err)
		}
		pages = append(pages, strings.TrimSpace(pageText))
	}

	text := strings.TrimSpace(strings.Join(pages, "\n"))
	if text == "" {
		return "", fmt.Errorf("%w: PDF contains no text layer, likely a scanned document", ErrExtract)
	}
	return text, nil
}
