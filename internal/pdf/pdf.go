// Package pdf provides read-only PDF inspection used across the pipeline:
// page counting, structural validation and plain-text extraction.
package pdf

import (
	"os"
	"strings"

	ledongthucpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/unicode/norm"

	"pdf-translator/internal/types"
)

// PageCount returns the number of pages in the PDF.
// pdfcpu is tried first; ledongthuc/pdf is the fallback for files pdfcpu rejects.
func PageCount(pdfPath string) (int, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		if os.IsNotExist(err) {
			return 0, types.NewAppErrorWithDetails(types.ErrFileNotFound, "pdf not found", pdfPath, err)
		}
		return 0, types.NewAppError(types.ErrInternal, "failed to access pdf", err)
	}

	ctx, err := api.ReadContextFile(pdfPath)
	if err == nil {
		return ctx.PageCount, nil
	}

	f, r, lerr := ledongthucpdf.Open(pdfPath)
	if lerr != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrInvalidInput, "unreadable pdf", pdfPath, err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// Validate checks the PDF structure with pdfcpu
func Validate(pdfPath string) error {
	if err := api.ValidateFile(pdfPath, model.NewDefaultConfiguration()); err != nil {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid pdf structure", pdfPath, err)
	}
	return nil
}

// ExtractText returns the NFC-normalised plain text of every page, pages
// separated by a form feed. Pages whose text cannot be decoded are skipped.
func ExtractText(pdfPath string) (string, error) {
	f, r, err := ledongthucpdf.Open(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", types.NewAppErrorWithDetails(types.ErrFileNotFound, "pdf not found", pdfPath, err)
		}
		return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "unreadable pdf", pdfPath, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, normalizeText(content))
	}
	return strings.Join(pages, "\n\f\n"), nil
}

// normalizeText composes accents that PDF text layers often store as
// separate combining marks
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
