// Package render converts uploaded PDF leave forms into page images sized
// for the vision model. Scanned forms carry each page as one embedded
// raster, so rendering is: extract the page scan, downscale to the target
// long edge, re-encode as PNG.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/tiff" // scanned forms are often CCITT/TIFF encoded
	_ "image/jpeg"

	"github.com/kadry-group/leave-cli/internal/config"
)

// maxEdgePx is the hard ceiling on any rendered dimension.
const maxEdgePx = 8000

// decodeConcurrency bounds parallel page decode/scale work.
const decodeConcurrency = 4

// ImageBlock is one page image ready for the vision request.
type ImageBlock struct {
	MediaType string
	Data      string // base64-encoded PNG
}

// PageStat records per-page raster dimensions and encoded size.
type PageStat struct {
	Page     int `json:"page"`
	WidthPx  int `json:"w_px"`
	HeightPx int `json:"h_px"`
	PNGBytes int `json:"png_bytes"`
	B64Chars int `json:"b64_chars"`
}

// Info is the render metadata attached to the final record's quality block.
// Produced once per run; never mutated afterward.
type Info struct {
	TotalPages     int        `json:"total_pages"`
	PagesSent      int        `json:"pages_sent"`
	TargetLongEdge int        `json:"target_long_edge"`
	ColorMode      string     `json:"color_mode"`
	ApproxB64Chars int        `json:"approx_b64_chars"`
	PageStats      []PageStat `json:"page_stats"`
}

// Note formats the render summary appended to quality notes.
func (i *Info) Note() string {
	return fmt.Sprintf(
		"render: pages_sent=%d/%d, target_long_edge=%d, approx_b64_chars=%d, color_mode=%s",
		i.PagesSent, i.TotalPages, i.TargetLongEdge, i.ApproxB64Chars, i.ColorMode,
	)
}

// Renderer turns PDF bytes into a bounded sequence of page images.
type Renderer interface {
	Render(ctx context.Context, pdf []byte) ([]ImageBlock, *Info, error)
}

// PDFRenderer implements Renderer on top of pdfcpu.
type PDFRenderer struct {
	cfg config.PDFConfig
}

// NewRenderer builds a PDFRenderer from render limits.
func NewRenderer(cfg config.PDFConfig) *PDFRenderer {
	return &PDFRenderer{cfg: cfg}
}

// Render extracts, scales, and encodes up to MaxPages page scans. It fails
// when a page carries no raster, when the PDF is unreadable, or when the
// total encoded size exceeds MaxImageB64Chars.
func (r *PDFRenderer) Render(ctx context.Context, pdf []byte) ([]ImageBlock, *Info, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	total, err := api.PageCount(bytes.NewReader(pdf), conf)
	if err != nil {
		return nil, nil, eris.Wrap(err, "render: page count")
	}
	if total == 0 {
		return nil, nil, eris.New("render: empty document")
	}

	pagesToSend := total
	if r.cfg.MaxPages > 0 && pagesToSend > r.cfg.MaxPages {
		pagesToSend = r.cfg.MaxPages
	}

	pageImages, err := api.ExtractImagesRaw(
		bytes.NewReader(pdf),
		[]string{fmt.Sprintf("1-%d", pagesToSend)},
		conf,
	)
	if err != nil {
		return nil, nil, eris.Wrap(err, "render: extract page images")
	}

	rasters, err := largestPerPage(pageImages, pagesToSend)
	if err != nil {
		return nil, nil, err
	}

	blocks := make([]ImageBlock, pagesToSend)
	stats := make([]PageStat, pagesToSend)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(decodeConcurrency)
	for i := 0; i < pagesToSend; i++ {
		g.Go(func() error {
			img, err := r.preparePage(rasters[i])
			if err != nil {
				return eris.Wrap(err, fmt.Sprintf("render: page %d", i+1))
			}

			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				return eris.Wrap(err, fmt.Sprintf("render: encode page %d", i+1))
			}
			b64 := base64.StdEncoding.EncodeToString(buf.Bytes())

			blocks[i] = ImageBlock{MediaType: "image/png", Data: b64}
			stats[i] = PageStat{
				Page:     i,
				WidthPx:  img.Bounds().Dx(),
				HeightPx: img.Bounds().Dy(),
				PNGBytes: buf.Len(),
				B64Chars: len(b64),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	approx := 0
	for _, s := range stats {
		approx += s.B64Chars
	}
	if r.cfg.MaxImageB64Chars > 0 && approx > r.cfg.MaxImageB64Chars {
		return nil, nil, eris.New(fmt.Sprintf(
			"render: images too large for request: approx_b64_chars=%d > %d",
			approx, r.cfg.MaxImageB64Chars,
		))
	}

	info := &Info{
		TotalPages:     total,
		PagesSent:      pagesToSend,
		TargetLongEdge: r.cfg.TargetLongEdge,
		ColorMode:      r.cfg.ColorMode,
		ApproxB64Chars: approx,
		PageStats:      stats,
	}
	return blocks, info, nil
}

// largestPerPage decodes every extracted raster and keeps the largest one
// per page; forms scanned with mixed content can embed small logos or
// signature crops alongside the page scan.
func largestPerPage(pageImages []map[int]pdfmodel.Image, pagesToSend int) ([]image.Image, error) {
	type pageRaster struct {
		pageNr int
		img    image.Image
	}
	byPage := make(map[int]pageRaster)

	for _, objs := range pageImages {
		// Deterministic iteration: sort object numbers.
		objNrs := make([]int, 0, len(objs))
		for nr := range objs {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)

		for _, nr := range objNrs {
			pi := objs[nr]
			img, _, err := image.Decode(pi)
			if err != nil {
				// Unsupported filters are skipped; the page fails below
				// only if nothing decodable remains.
				continue
			}
			cur, ok := byPage[pi.PageNr]
			if !ok || area(img) > area(cur.img) {
				byPage[pi.PageNr] = pageRaster{pageNr: pi.PageNr, img: img}
			}
		}
	}

	out := make([]image.Image, pagesToSend)
	for i := 0; i < pagesToSend; i++ {
		pr, ok := byPage[i+1]
		if !ok {
			return nil, eris.New(fmt.Sprintf("render: no scanned image on page %d", i+1))
		}
		out[i] = pr.img
	}
	return out, nil
}

func area(img image.Image) int {
	b := img.Bounds()
	return b.Dx() * b.Dy()
}

// preparePage downscales the raster so its long edge fits TargetLongEdge
// (never upscaling) and applies the configured color mode.
func (r *PDFRenderer) preparePage(src image.Image) (image.Image, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, eris.New("zero-sized raster")
	}

	longEdge := w
	if h > longEdge {
		longEdge = h
	}
	target := r.cfg.TargetLongEdge
	if target <= 0 || target > maxEdgePx {
		target = maxEdgePx
	}

	scale := 1.0
	if longEdge > target {
		scale = float64(target) / float64(longEdge)
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	rect := image.Rect(0, 0, dw, dh)
	if r.cfg.ColorMode == "gray" {
		dst := image.NewGray(rect)
		draw.ApproxBiLinear.Scale(dst, rect, src, b, draw.Src, nil)
		return dst, nil
	}
	dst := image.NewNRGBA(rect)
	draw.ApproxBiLinear.Scale(dst, rect, src, b, draw.Src, nil)
	return dst, nil
}
