package figures

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/config"
	"pdf-translator/internal/testutil"
	"pdf-translator/internal/types"
)

type fakeDoc struct {
	pages    int
	fail     map[int]bool
	rendered []int
	closed   bool
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) RenderRegion(page int, b types.Boundary, dpi int) (image.Image, error) {
	if d.fail[page] {
		return nil, errors.New("render exploded")
	}
	d.rendered = append(d.rendered, page)
	rect := PixelRect(b, dpi)
	img := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	img.Set(0, 0, color.Black)
	return img, nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type fakeOpener struct {
	doc *fakeDoc
	err error
}

func (o *fakeOpener) Open(context.Context, string) (Document, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

func intPtr(v int) *int { return &v }

func box() *types.Boundary {
	return &types.Boundary{X1: 72, Y1: 72, X2: 144, Y2: 108}
}

type fixture struct {
	pdf  string
	json string
	out  string
}

func newFixture(t *testing.T, regions []types.Region) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		pdf:  filepath.Join(dir, "paper.pdf"),
		json: filepath.Join(dir, "paper.json"),
		out:  filepath.Join(dir, "images"),
	}
	require.NoError(t, os.WriteFile(f.pdf, []byte("%PDF-1.4\n"), 0644))
	data, err := json.Marshal(regions)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.json, data, 0644))
	return f
}

func (f fixture) request(dpi int) Request {
	return Request{PDFPath: f.pdf, JSONPath: f.json, OutputDir: f.out, DPI: dpi}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestExtractWritesOnlyValidFigures(t *testing.T) {
	regions := []types.Region{
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Figure", Name: "fig1"},
		{Page: intPtr(1), RegionBoundary: box(), FigType: "Figure", Name: "fig2"},
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Table", Name: "tab1"},
		{Page: intPtr(7), RegionBoundary: box(), FigType: "Figure", Name: "late"},
		{Page: intPtr(-1), RegionBoundary: box(), FigType: "Figure", Name: "negative"},
		{RegionBoundary: box(), FigType: "Figure", Name: "nopage"},
		{Page: intPtr(0), FigType: "Figure", Name: "nobox"},
	}
	f := newFixture(t, regions)
	doc := &fakeDoc{pages: 2}
	ex := NewExtractorWithOpener(&fakeOpener{doc: doc}, config.FiguresConfig{DPI: 300})

	res, err := ex.Extract(context.Background(), f.request(0))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, []string{filepath.Join(f.out, "fig1.png"), filepath.Join(f.out, "fig2.png")}, res.Files)
	assert.Equal(t, []string{"fig1.png", "fig2.png"}, listDir(t, f.out))
	assert.Len(t, res.Warnings, 4)
	assert.True(t, doc.closed)
	assert.Equal(t, []int{0, 1}, doc.rendered)
}

func TestExtractImageSizeFollowsDPI(t *testing.T) {
	f := newFixture(t, []types.Region{
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Figure", Name: "fig1"},
	})
	ex := NewExtractorWithOpener(&fakeOpener{doc: &fakeDoc{pages: 1}}, config.FiguresConfig{})

	res, err := ex.Extract(context.Background(), f.request(144))
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	file, err := os.Open(res.Files[0])
	require.NoError(t, err)
	defer file.Close()
	cfg, err := png.DecodeConfig(file)
	require.NoError(t, err)
	// 72x36 points at 144 dpi
	assert.Equal(t, 144, cfg.Width)
	assert.Equal(t, 72, cfg.Height)
}

func TestExtractPageBase(t *testing.T) {
	regions := []types.Region{
		{Page: intPtr(1), RegionBoundary: box(), FigType: "Figure", Name: "first"},
		{Page: intPtr(2), RegionBoundary: box(), FigType: "Figure", Name: "second"},
	}
	f := newFixture(t, regions)
	doc := &fakeDoc{pages: 2}
	ex := NewExtractorWithOpener(&fakeOpener{doc: doc}, config.FiguresConfig{PageBase: 1})

	res, err := ex.Extract(context.Background(), f.request(72))
	require.NoError(t, err)
	assert.Len(t, res.Files, 2)
	assert.Equal(t, []int{0, 1}, doc.rendered)
}

func TestExtractRenderFailureContinues(t *testing.T) {
	regions := []types.Region{
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Figure", Name: "broken"},
		{Page: intPtr(1), RegionBoundary: box(), FigType: "Figure", Name: "fine"},
	}
	f := newFixture(t, regions)
	doc := &fakeDoc{pages: 2, fail: map[int]bool{0: true}}
	ex := NewExtractorWithOpener(&fakeOpener{doc: doc}, config.FiguresConfig{})

	res, err := ex.Extract(context.Background(), f.request(72))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.out, "fine.png")}, res.Files)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "broken")
}

func TestExtractNonFigureEntriesProduceNothing(t *testing.T) {
	f := newFixture(t, []types.Region{
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Table", Name: "tab1"},
	})
	ex := NewExtractorWithOpener(&fakeOpener{doc: &fakeDoc{pages: 1}}, config.FiguresConfig{})

	res, err := ex.Extract(context.Background(), f.request(72))
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, listDir(t, f.out))
}

func TestExtractInputErrors(t *testing.T) {
	f := newFixture(t, nil)
	ex := NewExtractorWithOpener(&fakeOpener{doc: &fakeDoc{pages: 1}}, config.FiguresConfig{})

	t.Run("missing pdf", func(t *testing.T) {
		req := f.request(72)
		req.PDFPath = filepath.Join(t.TempDir(), "nope.pdf")
		res, err := ex.Extract(context.Background(), req)
		require.NotNil(t, res)
		assert.Empty(t, res.Files)
		assert.True(t, types.HasCode(err, types.ErrFileNotFound))
	})

	t.Run("missing json", func(t *testing.T) {
		req := f.request(72)
		req.JSONPath = filepath.Join(t.TempDir(), "nope.json")
		res, err := ex.Extract(context.Background(), req)
		require.NotNil(t, res)
		assert.True(t, types.HasCode(err, types.ErrFileNotFound))
	})

	t.Run("malformed json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("[{"), 0644))
		req := f.request(72)
		req.JSONPath = bad
		res, err := ex.Extract(context.Background(), req)
		require.NotNil(t, res)
		assert.Empty(t, res.Files)
		assert.True(t, types.HasCode(err, types.ErrMetadataInvalid))
	})

	t.Run("open failure", func(t *testing.T) {
		broken := NewExtractorWithOpener(&fakeOpener{err: errors.New("corrupt")}, config.FiguresConfig{})
		res, err := broken.Extract(context.Background(), f.request(72))
		require.NotNil(t, res)
		assert.True(t, types.HasCode(err, types.ErrRender))
	})
}

func TestPixelRect(t *testing.T) {
	r := PixelRect(types.Boundary{X1: 10.2, Y1: 20.7, X2: 30.1, Y2: 40.9}, 72)
	assert.Equal(t, image.Rect(10, 20, 31, 41), r)

	r = PixelRect(types.Boundary{X1: 36, Y1: 36, X2: 72, Y2: 72}, 300)
	assert.Equal(t, image.Rect(150, 150, 300, 300), r)
}

func TestCropRegion(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 200, 100))
	page.Set(50, 50, color.White)

	img, err := cropRegion(page, types.Boundary{X1: 50, Y1: 50, X2: 300, Y2: 300}, 72)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 150, 50), img.Bounds(), "clipped to the page")
	assert.Equal(t, color.RGBAModel.Convert(color.White), img.At(0, 0))

	_, err = cropRegion(page, types.Boundary{X1: 500, Y1: 500, X2: 600, Y2: 600}, 72)
	assert.Error(t, err)
}

func TestNewOpener(t *testing.T) {
	o, err := NewOpener(config.FiguresConfig{Renderer: "mupdf"})
	require.NoError(t, err)
	assert.IsType(t, MuPDFOpener{}, o)

	o, err = NewOpener(config.FiguresConfig{Renderer: "poppler"})
	require.NoError(t, err)
	assert.Equal(t, NewPopplerOpener("pdftoppm"), o)

	_, err = NewOpener(config.FiguresConfig{Renderer: "ghostscript"})
	assert.True(t, types.HasCode(err, types.ErrConfig))
}

func TestMuPDFRendersRealDocument(t *testing.T) {
	if os.Getenv("CGO_ENABLED") == "0" {
		t.Skip("MuPDF renderer needs cgo")
	}
	dir := t.TempDir()
	pdfPath := testutil.WritePDF(t, dir, "paper.pdf", 2)
	jsonPath := filepath.Join(dir, "paper.json")
	require.NoError(t, os.WriteFile(jsonPath,
		[]byte(`[{"page":1,"regionBoundary":{"x1":72,"y1":72,"x2":144,"y2":144},"figType":"Figure","name":"fig1"}]`), 0644))

	ex, err := NewExtractor(config.FiguresConfig{DPI: 72, Renderer: "mupdf"})
	require.NoError(t, err)
	res, err := ex.Extract(context.Background(), Request{PDFPath: pdfPath, JSONPath: jsonPath, OutputDir: filepath.Join(dir, "out")})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "out", "fig1.png")}, res.Files)
	assert.Empty(t, res.Warnings)
}

func TestExtractUnnamedFigureUsesUnknown(t *testing.T) {
	f := newFixture(t, []types.Region{
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Figure"},
	})
	ex := NewExtractorWithOpener(&fakeOpener{doc: &fakeDoc{pages: 1}}, config.FiguresConfig{})

	res, err := ex.Extract(context.Background(), f.request(72))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.out, "Unknown.png")}, res.Files)
	assert.Empty(t, res.Warnings)
}

func TestExtractRejectsNamesLeavingOutputDir(t *testing.T) {
	f := newFixture(t, []types.Region{
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Figure", Name: "../escape"},
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Figure", Name: `sub\fig`},
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Figure", Name: ".."},
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Figure", Name: "fig1"},
	})
	doc := &fakeDoc{pages: 1}
	ex := NewExtractorWithOpener(&fakeOpener{doc: doc}, config.FiguresConfig{})

	res, err := ex.Extract(context.Background(), f.request(72))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.out, "fig1.png")}, res.Files)
	assert.Len(t, res.Warnings, 3)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(f.out), "escape.png"))
	assert.Equal(t, []string{"fig1.png"}, listDir(t, f.out))
}

func TestExtractSkipsEmptyRegions(t *testing.T) {
	f := newFixture(t, []types.Region{
		{Page: intPtr(0), RegionBoundary: &types.Boundary{X1: 50, Y1: 10, X2: 50, Y2: 40}, FigType: "Figure", Name: "flat"},
		{Page: intPtr(0), RegionBoundary: &types.Boundary{X1: 10, Y1: 40, X2: 50, Y2: 10}, FigType: "Figure", Name: "inverted"},
		{Page: intPtr(0), RegionBoundary: box(), FigType: "Figure", Name: "fig1"},
	})
	doc := &fakeDoc{pages: 1}
	ex := NewExtractorWithOpener(&fakeOpener{doc: doc}, config.FiguresConfig{})

	res, err := ex.Extract(context.Background(), f.request(72))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.out, "fig1.png")}, res.Files)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "empty region 0.0x30.0")
	assert.Contains(t, res.Warnings[1], "empty region 40.0x-30.0")
	assert.Equal(t, []int{0}, doc.rendered)
}
