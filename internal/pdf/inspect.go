package pdf

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdf-translator/internal/types"
)

// Inspect validates the PDF at path with pdfcpu and reports its page count.
// Structural problems are returned in PDFInfo.Error rather than as an error;
// the error return is reserved for a path that cannot be read at all.
func Inspect(path string) (*types.PDFInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", path, err)
	}

	info := &types.PDFInfo{Path: path}
	if err := api.ValidateFile(path, model.NewDefaultConfiguration()); err != nil {
		info.Error = err.Error()
		return info, nil
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		info.Error = err.Error()
		return info, nil
	}

	info.Valid = true
	info.PageCount = pages
	return info, nil
}
