package figures

import (
	"context"
	"image"

	"github.com/gen2brain/go-fitz"

	"pdf-translator/internal/types"
)

// MuPDFOpener renders pages in-process with MuPDF
type MuPDFOpener struct{}

// Open implements Opener
func (MuPDFOpener) Open(_ context.Context, pdfPath string) (Document, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, err
	}
	return &mupdfDocument{doc: doc}, nil
}

type mupdfDocument struct {
	doc *fitz.Document
}

func (d *mupdfDocument) PageCount() int {
	return d.doc.NumPage()
}

func (d *mupdfDocument) RenderRegion(page int, b types.Boundary, dpi int) (image.Image, error) {
	pageImg, err := d.doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return nil, err
	}
	return cropRegion(pageImg, b, dpi)
}

func (d *mupdfDocument) Close() error {
	return d.doc.Close()
}
