// Package figures crops the figure regions described by the metadata sidecar
// out of the source PDF and writes them as PNG files.
package figures

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"pdf-translator/internal/config"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/metadata"
	"pdf-translator/internal/types"
)

// Document is an open PDF that can rasterize page regions
type Document interface {
	// PageCount returns the number of pages
	PageCount() int
	// RenderRegion renders the boundary (PDF points, top-left origin) of a
	// 0-based page at dpi
	RenderRegion(page int, b types.Boundary, dpi int) (image.Image, error)
	Close() error
}

// Opener opens a PDF for rendering
type Opener interface {
	Open(ctx context.Context, pdfPath string) (Document, error)
}

// Request describes one extraction run
type Request struct {
	PDFPath   string
	JSONPath  string
	OutputDir string
	DPI       int
}

// Result lists the written images and the per-region problems encountered
type Result struct {
	Files    []string
	Warnings []string
}

func (r *Result) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	logger.Warn(msg)
}

// UnknownName is the file stem used for Figure entries without a name
const UnknownName = "Unknown"

// Extractor turns Figure regions into PNG files
type Extractor struct {
	opener   Opener
	pageBase int
	dpi      int
}

// NewExtractor creates an Extractor using the renderer named in cfg
func NewExtractor(cfg config.FiguresConfig) (*Extractor, error) {
	opener, err := NewOpener(cfg)
	if err != nil {
		return nil, err
	}
	return NewExtractorWithOpener(opener, cfg), nil
}

// NewExtractorWithOpener creates an Extractor with an explicit Opener
func NewExtractorWithOpener(opener Opener, cfg config.FiguresConfig) *Extractor {
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = config.DefaultDPI
	}
	return &Extractor{opener: opener, pageBase: cfg.PageBase, dpi: dpi}
}

// NewOpener returns the Opener for the configured renderer
func NewOpener(cfg config.FiguresConfig) (Opener, error) {
	switch cfg.Renderer {
	case "", "mupdf":
		return MuPDFOpener{}, nil
	case "poppler":
		return NewPopplerOpener(cfg.Pdftoppm), nil
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "unknown figure renderer", cfg.Renderer, nil)
	}
}

// Extract renders every Figure region of req.JSONPath into req.OutputDir.
// The returned Result is never nil. Input problems are returned as errors
// together with an empty Result; per-region failures only add warnings.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}
	dpi := req.DPI
	if dpi <= 0 {
		dpi = e.dpi
	}

	if _, err := os.Stat(req.PDFPath); err != nil {
		logger.Error("pdf file not found", err, logger.String("pdf", req.PDFPath))
		return result, types.NewAppErrorWithDetails(types.ErrFileNotFound, "pdf file not found", req.PDFPath, err)
	}

	regions, err := metadata.LoadRegions(req.JSONPath)
	if err != nil {
		logger.Error("failed to load figure metadata", err, logger.String("json", req.JSONPath))
		return result, err
	}

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		logger.Error("failed to create output directory", err, logger.String("dir", req.OutputDir))
		return result, types.NewAppError(types.ErrInternal, "failed to create output directory", err)
	}

	doc, err := e.opener.Open(ctx, req.PDFPath)
	if err != nil {
		logger.Error("failed to open pdf for rendering", err, logger.String("pdf", req.PDFPath))
		return result, types.NewAppErrorWithDetails(types.ErrRender, "failed to open pdf", req.PDFPath, err)
	}
	defer doc.Close()

	pageCount := doc.PageCount()
	logger.Info("extracting figures",
		logger.String("pdf", req.PDFPath),
		logger.Int("regions", len(regions)),
		logger.Int("pages", pageCount),
		logger.Int("dpi", dpi))

	for i, region := range regions {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !region.IsFigure() {
			continue
		}

		name := region.Name
		if name == "" {
			name = UnknownName
		}
		label := fmt.Sprintf("%s (#%d)", name, i)
		if !validStem(name) {
			result.warn("skipping figure %s: name is not a plain file name", label)
			continue
		}
		if region.Page == nil || region.RegionBoundary == nil {
			result.warn("skipping figure %s: missing page or regionBoundary", label)
			continue
		}

		page := *region.Page - e.pageBase
		if page < 0 || page >= pageCount {
			result.warn("skipping figure %s: page %d out of range [0, %d)", label, page, pageCount)
			continue
		}

		bounds := *region.RegionBoundary
		if bounds.Width() <= 0 || bounds.Height() <= 0 {
			result.warn("skipping figure %s: empty region %.1fx%.1f", label, bounds.Width(), bounds.Height())
			continue
		}

		outPath := filepath.Join(req.OutputDir, name+".png")
		if err := e.renderOne(doc, page, bounds, dpi, outPath); err != nil {
			logger.Error("failed to extract figure", err, logger.String("name", name), logger.Int("page", page))
			result.Warnings = append(result.Warnings, fmt.Sprintf("figure %s: %v", label, err))
			continue
		}

		logger.Info("figure saved", logger.String("name", name), logger.String("path", outPath))
		result.Files = append(result.Files, outPath)
	}

	logger.Info("figure extraction finished",
		logger.Int("written", len(result.Files)),
		logger.Int("warnings", len(result.Warnings)))
	return result, nil
}

// validStem reports whether name can be used as a file name inside the output directory
func validStem(name string) bool {
	return name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func (e *Extractor) renderOne(doc Document, page int, b types.Boundary, dpi int, outPath string) error {
	img, err := doc.RenderRegion(page, b, dpi)
	if err != nil {
		return types.NewAppError(types.ErrRender, "render failed", err)
	}
	if err := savePNG(img, outPath); err != nil {
		return types.NewAppError(types.ErrRender, "write failed", err)
	}
	return nil
}

func savePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// PixelRect converts a boundary in PDF points into a pixel rectangle at dpi
func PixelRect(b types.Boundary, dpi int) image.Rectangle {
	px := func(v float64) float64 { return v * float64(dpi) / 72.0 }
	return image.Rect(
		int(math.Floor(px(b.X1))),
		int(math.Floor(px(b.Y1))),
		int(math.Ceil(px(b.X2))),
		int(math.Ceil(px(b.Y2))),
	)
}

// cropRegion copies the part of a full-page raster covered by b
func cropRegion(pageImg image.Image, b types.Boundary, dpi int) (image.Image, error) {
	rect := PixelRect(b, dpi).Add(pageImg.Bounds().Min).Intersect(pageImg.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("region %v lies outside the page", b)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(dst, image.Point{}, pageImg, rect, draw.Src, nil)
	return dst, nil
}
