package figures

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"pdf-translator/internal/config"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/proc"
	"pdf-translator/internal/types"
)

// PopplerOpener renders regions by shelling out to pdftoppm
type PopplerOpener struct {
	binPath string
}

// NewPopplerOpener creates a PopplerOpener. If binPath is empty, "pdftoppm" is used.
func NewPopplerOpener(binPath string) PopplerOpener {
	if binPath == "" {
		binPath = config.DefaultPdftoppm
	}
	return PopplerOpener{binPath: binPath}
}

// Open implements Opener
func (o PopplerOpener) Open(ctx context.Context, pdfPath string) (Document, error) {
	pages, err := pdf.PageCount(pdfPath)
	if err != nil {
		return nil, err
	}
	return &popplerDocument{ctx: ctx, binPath: o.binPath, pdfPath: pdfPath, pages: pages}, nil
}

type popplerDocument struct {
	ctx     context.Context
	binPath string
	pdfPath string
	pages   int
}

func (d *popplerDocument) PageCount() int {
	return d.pages
}

func (d *popplerDocument) RenderRegion(page int, b types.Boundary, dpi int) (image.Image, error) {
	rect := PixelRect(b, dpi)
	if rect.Empty() {
		return nil, fmt.Errorf("empty region %v", b)
	}

	tmpDir, err := os.MkdirTemp("", "figure-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	root := filepath.Join(tmpDir, "region")
	pageArg := strconv.Itoa(page + 1)
	res, err := proc.Run(d.ctx, proc.Spec{
		Name: d.binPath,
		Args: []string{
			"-png", "-r", strconv.Itoa(dpi),
			"-f", pageArg, "-l", pageArg,
			"-x", strconv.Itoa(rect.Min.X), "-y", strconv.Itoa(rect.Min.Y),
			"-W", strconv.Itoa(rect.Dx()), "-H", strconv.Itoa(rect.Dy()),
			"-singlefile",
			d.pdfPath, root,
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "figures: %s failed for page %d: %s", d.binPath, page, res.Stderr)
	}

	f, err := os.Open(root + ".png")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

func (d *popplerDocument) Close() error {
	return nil
}
