package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// ElementKind distinguishes the two things a rendered document is made of.
type ElementKind int

const (
	// ElementParagraph is one line of text, wrapped to the page width.
	ElementParagraph ElementKind = iota
	// ElementBreak is one blank line of vertical space.
	ElementBreak
)

// Element is a single layout instruction.
type Element struct {
	Kind ElementKind
	Text string
}

// Layout turns text into the sequence of paragraphs and breaks that Render
// draws. Every line that is empty after trimming whitespace becomes exactly
// one break; every other line becomes one paragraph with its text unchanged.
// A trailing newline does not produce an extra element.
func Layout(text string) []Element {
	lines := splitLines(text)
	elements := make([]Element, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			elements = append(elements, Element{Kind: ElementBreak})
			continue
		}
		elements = append(elements, Element{Kind: ElementParagraph, Text: line})
	}
	return elements
}

// replaceUnsupported swaps runes outside the Basic Multilingual Plane for
// U+FFFD. gofpdf's UTF-8 fonts only map the BMP.
func replaceUnsupported(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return '\uFFFD'
		}
		return r
	}, s)
}

// splitLines splits on "\n", drops one trailing "\r" per line and ignores a
// final empty segment.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

const (
	fontFamily = "DocumentFont"
	fontSize   = 11.0
	lineHeight = 5.5
	pageMargin = 15.0
)

// Renderer writes text into a new A4 PDF using a single TrueType font.
type Renderer struct {
	fontPath string
}

// NewRenderer creates a Renderer that loads its font from fontPath.
func NewRenderer(fontPath string) *Renderer {
	return &Renderer{fontPath: fontPath}
}

// Render lays out text and writes the document to outputPath, overwriting
// any existing file. A font that cannot be read or registered is a
// FONT_LOAD_ERROR; failing to produce the file is a WRITE_ERROR.
func (r *Renderer) Render(outputPath, text string) error {
	fontBytes, err := os.ReadFile(r.fontPath)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrFontLoad, "failed to load font", r.fontPath, err)
	}

	doc, err := newDocument(fontBytes)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrFontLoad, "failed to load font", r.fontPath, err)
	}

	elements := Layout(text)
	if err := writeDocument(doc, outputPath, elements); err != nil {
		return err
	}

	logger.Debug("rendered PDF",
		logger.String("output", outputPath),
		logger.Int("elements", len(elements)))
	return nil
}

// pageWriter is the part of *gofpdf.Fpdf that draws and saves a document.
type pageWriter interface {
	Ln(h float64)
	MultiCell(w, h float64, txtStr, borderStr, alignStr string, fill bool)
	OutputFileAndClose(fileStr string) error
}

// writeDocument draws elements and saves the result. A panic inside the PDF
// library is reported as a WRITE_ERROR.
func writeDocument(doc pageWriter, outputPath string, elements []Element) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = types.NewAppErrorWithDetails(types.ErrWrite, "failed to write PDF", outputPath,
				fmt.Errorf("panic while rendering: %v", rec))
		}
	}()

	for _, el := range elements {
		switch el.Kind {
		case ElementBreak:
			doc.Ln(lineHeight)
		case ElementParagraph:
			doc.MultiCell(0, lineHeight, replaceUnsupported(el.Text), "", "L", false)
		}
	}

	if err := doc.OutputFileAndClose(outputPath); err != nil {
		return types.NewAppErrorWithDetails(types.ErrWrite, "failed to write PDF", outputPath, err)
	}
	return nil
}

func newDocument(fontBytes []byte) (doc *gofpdf.Fpdf, err error) {
	// gofpdf's TrueType parser panics on truncated or non-font input.
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = fmt.Errorf("invalid font data: %v", rec)
		}
	}()

	doc = gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	doc.AddUTF8FontFromBytes(fontFamily, "", fontBytes)
	if doc.Err() {
		return nil, doc.Error()
	}
	doc.SetFont(fontFamily, "", fontSize)
	if doc.Err() {
		return nil, doc.Error()
	}
	doc.AddPage()
	return doc, nil
}
