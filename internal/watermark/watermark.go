package watermark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Mode selects the watermark applied to a generated image.
type Mode string

const (
	// ModeCornerLogo overlays the brand logo at the bottom-right corner.
	// Used for paid outputs.
	ModeCornerLogo Mode = "corner_logo"
	// ModeDiagonalTile tiles semi-transparent text across the whole image.
	// Used for free (unpaid) outputs.
	ModeDiagonalTile Mode = "diagonal_tile"
)

// ErrAssetMissing is returned when the logo asset cannot be found or decoded.
var ErrAssetMissing = errors.New("watermark logo asset missing")

// Error wraps any fetch/decode/asset failure from the post-processor with
// its original cause.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("watermark %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// Config tunes watermark rendering. Zero values fall back to the product
// defaults that match the historical output.
type Config struct {
	LogoPath        string
	LogoSizePercent float64 // logo height as a fraction of image height
	Padding         int     // distance from the corner in pixels
	Opacity         int     // 0-255 background opacity behind the logo
	AddBackground   bool
	TileText        string
	TileSpacing     int
}

func (c Config) withDefaults() Config {
	if c.LogoSizePercent <= 0 {
		c.LogoSizePercent = 0.05
	}
	if c.Padding <= 0 {
		c.Padding = 25
	}
	if c.Opacity <= 0 || c.Opacity > 255 {
		c.Opacity = 200
	}
	if c.TileText == "" {
		c.TileText = "FREE VERSION"
	}
	if c.TileSpacing <= 0 {
		c.TileSpacing = 200
	}
	return c
}

// Processor stamps watermarks onto generated images. Sources may be local
// paths or http(s) URLs; remote fetches honor the caller's context.
type Processor struct {
	cfg    Config
	log    *slog.Logger
	client *http.Client
}

func New(cfg Config, log *slog.Logger) *Processor {
	return &Processor{
		cfg: cfg.withDefaults(),
		log: log,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Apply loads the source image, stamps the watermark for mode, and returns
// the re-encoded bytes plus their content type. The source is never written
// to; compositing happens on a copy in RGBA and the result is converted back
// to an opaque encoding before returning.
func (p *Processor) Apply(ctx context.Context, src string, mode Mode) ([]byte, string, error) {
	img, format, err := p.load(ctx, src)
	if err != nil {
		return nil, "", err
	}

	stamped, err := p.stamp(img, mode)
	if err != nil {
		return nil, "", err
	}

	data, contentType, err := encode(stamped, format)
	if err != nil {
		return nil, "", wrapErr("encode", err)
	}
	return data, contentType, nil
}

// ApplyToFile writes the watermarked result to dst. The output is staged in
// a temp file and renamed into place so a failure never leaves a partial
// file behind.
func (p *Processor) ApplyToFile(ctx context.Context, src, dst string, mode Mode) error {
	data, _, err := p.Apply(ctx, src, mode)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".wm-*")
	if err != nil {
		return wrapErr("stage output", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return wrapErr("write output", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return wrapErr("close output", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return wrapErr("finalize output", err)
	}
	return nil
}

func (p *Processor) stamp(img image.Image, mode Mode) (image.Image, error) {
	base := toRGBA(img)
	switch mode {
	case ModeCornerLogo:
		if err := p.stampCornerLogo(base); err != nil {
			return nil, err
		}
	case ModeDiagonalTile:
		if err := p.stampDiagonalTile(base); err != nil {
			return nil, err
		}
	default:
		return nil, wrapErr("stamp", fmt.Errorf("unknown mode %q", mode))
	}
	return base, nil
}

func (p *Processor) stampCornerLogo(base *image.RGBA) error {
	logo, err := p.loadLogo()
	if err != nil {
		return err
	}

	bounds := base.Bounds()
	logoW, logoH := LogoSize(bounds.Dy(), logo.Bounds().Dx(), logo.Bounds().Dy(), p.cfg.LogoSizePercent)
	if logoW < 1 || logoH < 1 {
		return wrapErr("logo size", fmt.Errorf("image %dx%d too small for logo", bounds.Dx(), bounds.Dy()))
	}

	scaled := image.NewRGBA(image.Rect(0, 0, logoW, logoH))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), logo, logo.Bounds(), xdraw.Over, nil)

	x := bounds.Max.X - logoW - p.cfg.Padding
	y := bounds.Max.Y - logoH - p.cfg.Padding

	if p.cfg.AddBackground {
		const bgPad = 10
		bg := image.Rect(x-bgPad, y-bgPad, x+logoW+bgPad, y+logoH+bgPad).Intersect(bounds)
		fill := image.NewUniform(color.NRGBA{A: uint8(p.cfg.Opacity)})
		draw.Draw(base, bg, fill, image.Point{}, draw.Over)
	}

	draw.Draw(base, image.Rect(x, y, x+logoW, y+logoH), scaled, image.Point{}, draw.Over)
	return nil
}

func (p *Processor) stampDiagonalTile(base *image.RGBA) error {
	bounds := base.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	size := float64(width) * 0.04
	if size < 12 {
		size = 12
	}
	face, err := tileFace(size)
	if err != nil {
		return wrapErr("tile font", err)
	}
	defer face.Close()

	drawer := &font.Drawer{
		Dst:  base,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 60}),
		Face: face,
	}

	spacing := p.cfg.TileSpacing
	rowStep := spacing * 3 / 4
	for x := -height; x < width; x += spacing {
		for y := 0; y < height; y += rowStep {
			drawer.Dot = fixed.P(bounds.Min.X+x, bounds.Min.Y+y)
			drawer.DrawString(p.cfg.TileText)
		}
	}
	return nil
}

func (p *Processor) loadLogo() (image.Image, error) {
	if p.cfg.LogoPath == "" {
		return nil, wrapErr("logo", ErrAssetMissing)
	}
	f, err := os.Open(p.cfg.LogoPath)
	if err != nil {
		return nil, wrapErr("logo", fmt.Errorf("%w: %v", ErrAssetMissing, err))
	}
	defer f.Close()

	logo, _, err := image.Decode(f)
	if err != nil {
		return nil, wrapErr("logo", fmt.Errorf("%w: decode %s: %v", ErrAssetMissing, p.cfg.LogoPath, err))
	}
	return logo, nil
}

func (p *Processor) load(ctx context.Context, src string) (image.Image, string, error) {
	var reader io.ReadCloser
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, "", wrapErr("fetch", err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, "", wrapErr("fetch", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, "", wrapErr("fetch", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, src))
		}
		reader = resp.Body
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, "", wrapErr("open", err)
		}
		reader = f
	}
	defer reader.Close()

	img, format, err := image.Decode(reader)
	if err != nil {
		return nil, "", wrapErr("decode", err)
	}
	return img, format, nil
}

// LogoSize computes the scaled logo dimensions: height is pct of the image
// height, width follows the logo's own aspect ratio.
func LogoSize(imgH, logoW, logoH int, pct float64) (int, int) {
	if logoH == 0 {
		return 0, 0
	}
	h := int(float64(imgH) * pct)
	w := int(float64(h) * float64(logoW) / float64(logoH))
	return w, h
}

func toRGBA(img image.Image) *image.RGBA {
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}

func encode(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	default:
		// Flatten back to an opaque encoding (the composite happens in RGBA).
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

func tileFace(size float64) (font.Face, error) {
	ft, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
