// Package pdf reads text out of PDF documents, renders translated text back
// into new PDF files and inspects PDF structure.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	dslipakpdf "github.com/dslipak/pdf"
	"github.com/ledongthuc/pdf"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// Extractor pulls the text of a whole document into one string. Rows of a
// page are separated by "\n" and pages by a blank line.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads all text from the PDF at path. ledongthuc/pdf is tried first;
// when it fails, dslipak/pdf gets a second attempt. No partial text is ever
// returned alongside an error.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if info, err := os.Stat(path); err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrExtract, "failed to extract text", path, err)
	} else if info.IsDir() {
		return "", types.NewAppErrorWithDetails(types.ErrExtract, "failed to extract text", path,
			errors.New("path is a directory"))
	}

	text, primaryErr := extractByRows(ctx, path)
	if primaryErr == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", types.NewAppErrorWithDetails(types.ErrExtract, "failed to extract text", path, ctx.Err())
	}

	logger.Warn("primary PDF parser failed, trying fallback",
		logger.String("path", path), logger.Err(primaryErr))

	text, fallbackErr := extractPlain(ctx, path)
	if fallbackErr == nil {
		return text, nil
	}

	return "", types.NewAppErrorWithDetails(types.ErrExtract, "failed to extract text", path,
		errors.Join(primaryErr, fallbackErr))
}

// extractByRows uses ledongthuc/pdf, grouping text runs into visual rows.
func extractByRows(ctx context.Context, path string) (text string, err error) {
	defer recoverParser("ledongthuc/pdf", &err)

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("ledongthuc/pdf: open: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("ledongthuc/pdf: page %d: %w", i, err)
		}

		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			var sb strings.Builder
			for _, t := range row.Content {
				sb.WriteString(t.S)
			}
			if line := strings.TrimRight(sb.String(), " \t"); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}

	return joinPages(pages), nil
}

// extractPlain uses dslipak/pdf's plain text extraction.
func extractPlain(ctx context.Context, path string) (text string, err error) {
	defer recoverParser("dslipak/pdf", &err)

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("dslipak/pdf: open: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("dslipak/pdf: stat: %w", err)
	}
	r, err := dslipakpdf.NewReader(f, fi.Size())
	if err != nil {
		return "", fmt.Errorf("dslipak/pdf: open: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("dslipak/pdf: page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimRight(normalizeNewlines(content), "\n \t"))
	}

	return joinPages(pages), nil
}

// Both parser libraries panic on some malformed input.
func recoverParser(name string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: panic while parsing: %v", name, r)
	}
}

func joinPages(pages []string) string {
	return strings.Join(pages, "\n\n")
}

func normalizeNewlines(s string) string {
	return strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(s)
}
