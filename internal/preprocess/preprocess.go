// Package preprocess enhances rasterized pages before OCR: mild contrast,
// sharpness and brightness boosts plus an OCR-oriented resize. Tesseract
// degrades quickly on low-contrast or undersized scans.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

type Options struct {
	Contrast   float64 // multiplier around mid-gray, default 1.3
	Sharpness  float64 // unsharp amount, 1.0 = no-op, default 1.6
	Brightness float64 // channel multiplier, default 1.1

	TargetHeight int // upscale shorter images to this height, default 2000
	MaxWidth     int // downscale wider images to this width, default 2500

	MaxChunkHeight int // split taller pages into bands before OCR, default 10000
	ChunkOverlap   int // vertical overlap between adjacent bands, default 50
}

func (o Options) withDefaults() Options {
	if o.Contrast <= 0 {
		o.Contrast = 1.3
	}
	if o.Sharpness <= 0 {
		o.Sharpness = 1.6
	}
	if o.Brightness <= 0 {
		o.Brightness = 1.1
	}
	if o.TargetHeight <= 0 {
		o.TargetHeight = 2000
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = 2500
	}
	if o.MaxChunkHeight <= 0 {
		o.MaxChunkHeight = 10000
	}
	if o.ChunkOverlap <= 0 {
		o.ChunkOverlap = 50
	}
	return o
}

// Enhance applies the enhancement chain to img in order: resize,
// contrast, brightness, sharpen.
func Enhance(img image.Image, opts Options) image.Image {
	opts = opts.withDefaults()
	src := toNRGBA(img)
	src = resizeForOCR(src, opts.TargetHeight, opts.MaxWidth)
	adjust(src, opts.Contrast, opts.Brightness)
	if opts.Sharpness > 1.0 {
		src = sharpen(src, opts.Sharpness-1.0)
	}
	return src
}

// EnhanceFile reads in, enhances it, and writes a PNG to out.
func EnhanceFile(in, out string, opts Options) error {
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	img, _, err := image.Decode(f)
	cerr := f.Close()
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if cerr != nil {
		return cerr
	}

	enhanced := Enhance(img, opts)

	// encode to memory first so a failure never leaves a partial file
	// next to the caller's source image
	var buf bytes.Buffer
	if err := png.Encode(&buf, enhanced); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		Remove(out)
		return fmt.Errorf("write output image: %w", err)
	}
	return nil
}

// SplitTallFile cuts a page image taller than MaxChunkHeight into
// overlapping horizontal bands that tesseract's layout analysis can
// still handle, writing each band as <stem>.c<N>.png next to in. The
// overlap keeps a text line cut by a band boundary whole in the next
// band. Short images come back untouched as a single-element slice.
func SplitTallFile(in string, opts Options) ([]string, error) {
	opts = opts.withDefaults()

	f, err := os.Open(in)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	img, _, err := image.Decode(f)
	cerr := f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cerr != nil {
		return nil, cerr
	}

	h := img.Bounds().Dy()
	if h <= opts.MaxChunkHeight {
		return []string{in}, nil
	}

	src := toNRGBA(img)
	stem := strings.TrimSuffix(in, ".png")
	step := opts.MaxChunkHeight - opts.ChunkOverlap

	var chunks []string
	for n, top := 1, src.Bounds().Min.Y; ; n, top = n+1, top+step {
		bottom := top + opts.MaxChunkHeight
		if bottom > src.Bounds().Max.Y {
			bottom = src.Bounds().Max.Y
		}
		band := src.SubImage(image.Rect(src.Bounds().Min.X, top, src.Bounds().Max.X, bottom))

		var buf bytes.Buffer
		if err := png.Encode(&buf, band); err != nil {
			return nil, fmt.Errorf("encode chunk %d: %w", n, err)
		}
		out := fmt.Sprintf("%s.c%02d.png", stem, n)
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			Remove(out)
			return nil, fmt.Errorf("write chunk %d: %w", n, err)
		}
		chunks = append(chunks, out)

		if bottom == src.Bounds().Max.Y {
			return chunks, nil
		}
	}
}

// Remove deletes a temporary artifact, ignoring errors.
func Remove(path string) {
	_ = os.Remove(path)
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		out := image.NewNRGBA(n.Bounds())
		copy(out.Pix, n.Pix)
		return out
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	xdraw.Draw(out, b, img, b.Min, xdraw.Src)
	return out
}

// resizeForOCR upscales short images to targetHeight and caps very wide
// ones at maxWidth, preserving aspect ratio. CatmullRom keeps glyph edges
// smooth enough for tesseract.
func resizeForOCR(src *image.NRGBA, targetHeight, maxWidth int) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return src
	}

	scale := 1.0
	if h < targetHeight {
		scale = float64(targetHeight) / float64(h)
	}
	if nw := float64(w) * scale; nw > float64(maxWidth) {
		scale = float64(maxWidth) / float64(w)
	}
	if scale == 1.0 {
		return src
	}

	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// adjust applies contrast (around mid-gray) and brightness in place.
func adjust(img *image.NRGBA, contrast, brightness float64) {
	var lut [256]uint8
	for i := range lut {
		v := float64(i) / 255.0
		v = (v-0.5)*contrast + 0.5
		v *= brightness
		lut[i] = clamp8(v * 255.0)
	}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = lut[img.Pix[i]]
		img.Pix[i+1] = lut[img.Pix[i+1]]
		img.Pix[i+2] = lut[img.Pix[i+2]]
		// alpha untouched
	}
}

// sharpen is an unsharp mask against a 3x3 box blur.
func sharpen(src *image.NRGBA, amount float64) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(b)
	copy(dst.Pix, src.Pix)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			for c := 0; c < 3; c++ {
				var sum int
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						sum += int(src.Pix[(y+dy)*src.Stride+(x+dx)*4+c])
					}
				}
				blur := float64(sum) / 9.0
				orig := float64(src.Pix[y*src.Stride+x*4+c])
				dst.Pix[y*dst.Stride+x*4+c] = clamp8(orig + amount*(orig-blur))
			}
		}
	}
	return dst
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
