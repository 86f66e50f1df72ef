package watermark

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	anchorMargin    = 10
	timestampLayout = "2006-01-02 15:04"
	fallbackSeed    = "default"
)

// Compositor stamps static and dynamic watermark layers onto page rasters.
// It holds no per-request state; Render is a pure function of its arguments
// and is safe for concurrent use.
type Compositor struct {
	font *opentype.Font
}

// NewCompositor parses the embedded typeface used for dynamic text stamps.
func NewCompositor() (*Compositor, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("watermark: parse typeface: %w", err)
	}
	return &Compositor{font: parsed}, nil
}

// Render applies the enabled watermark layers to page and returns an opaque
// raster. With both layers disabled the input is returned untouched. The logo
// argument may be nil, which skips the static layer. Render performs no I/O;
// loading the page and logo is the caller's concern.
func (c *Compositor) Render(page image.Image, settings Settings, viewer ViewerContext, logo image.Image) (image.Image, error) {
	settings = settings.Normalized()

	if !settings.StaticWatermarkEnabled && !settings.DynamicWatermarkEnabled {
		return page, nil
	}

	bounds := page.Bounds()
	canvas := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), page, bounds.Min, draw.Src)

	if settings.StaticWatermarkEnabled && logo != nil {
		applyStaticLayer(canvas, logo, settings)
	}

	if settings.DynamicWatermarkEnabled {
		if err := c.applyDynamicLayer(canvas, settings, viewer); err != nil {
			return nil, err
		}
	}

	return flattenOnWhite(canvas), nil
}

// applyStaticLayer scales the logo to the configured fraction of the page
// width, attenuates its alpha by the configured opacity and composites it at
// the legacy anchor position.
func applyStaticLayer(canvas *image.NRGBA, logo image.Image, settings Settings) {
	logoBounds := logo.Bounds()
	if logoBounds.Dx() == 0 || logoBounds.Dy() == 0 {
		return
	}

	pageWidth := canvas.Bounds().Dx()
	pageHeight := canvas.Bounds().Dy()

	targetWidth := int(float64(pageWidth) * settings.StaticWatermarkScale)
	if targetWidth < 1 {
		targetWidth = 1
	}
	targetHeight := int(float64(logoBounds.Dy()) * float64(targetWidth) / float64(logoBounds.Dx()))
	if targetHeight < 1 {
		targetHeight = 1
	}

	scaled := image.NewNRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), logo, logoBounds, xdraw.Src, nil)

	for i := 3; i < len(scaled.Pix); i += 4 {
		scaled.Pix[i] = uint8(float64(scaled.Pix[i]) * settings.Opacity)
	}

	at := anchorPoint(pageWidth, pageHeight, targetWidth, targetHeight, settings.Position)
	target := image.Rect(at.X, at.Y, at.X+targetWidth, at.Y+targetHeight)
	draw.Draw(canvas, target, scaled, image.Point{}, draw.Over)
}

// applyDynamicLayer renders the viewer-identifying text at one or more
// positions. With nothing enabled or available the layer is skipped entirely.
func (c *Compositor) applyDynamicLayer(canvas *image.NRGBA, settings Settings, viewer ViewerContext) error {
	text := DynamicText(settings, viewer)
	if text == "" {
		return nil
	}

	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    float64(settings.FontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("watermark: build face: %w", err)
	}
	defer face.Close()

	metrics := face.Metrics()
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()
	ascent := metrics.Ascent.Ceil()

	pageWidth := canvas.Bounds().Dx()
	pageHeight := canvas.Bounds().Dy()

	var placements []image.Point
	if settings.RandomPositionsEnabled && settings.PositionsCount > 1 {
		seed := settings.RandomSeed
		if seed == "" {
			seed = fallbackSeed
		}
		placements = Positions(pageWidth, pageHeight, textWidth, textHeight, settings.PositionsCount, seed)
	} else {
		placements = []image.Point{anchorPoint(pageWidth, pageHeight, textWidth, textHeight, settings.Position)}
	}

	fill := color.NRGBA{
		R: uint8(settings.ColorR),
		G: uint8(settings.ColorG),
		B: uint8(settings.ColorB),
		A: uint8(255 * settings.Opacity),
	}

	for _, placement := range placements {
		drawer := font.Drawer{
			Dst:  canvas,
			Src:  image.NewUniform(fill),
			Face: face,
			Dot:  fixed.P(placement.X, placement.Y+ascent),
		}
		drawer.DrawString(text)
	}

	return nil
}

// DynamicText concatenates the enabled, non-empty identity parts in a fixed
// order. An empty result means the dynamic layer has nothing to stamp.
func DynamicText(settings Settings, viewer ViewerContext) string {
	parts := make([]string, 0, 5)

	if settings.CustomText != "" {
		parts = append(parts, settings.CustomText)
	}
	if settings.ShowUserEmail && viewer.UserEmail != "" {
		parts = append(parts, "User: "+viewer.UserEmail)
	} else if settings.ShowUserID && viewer.UserID != "" {
		parts = append(parts, "ID: "+viewer.UserID)
	}
	if settings.ShowIPAddress && viewer.IPAddress != "" {
		parts = append(parts, "IP: "+viewer.IPAddress)
	}
	if settings.ShowPageNumber && viewer.PageNumber > 0 {
		parts = append(parts, fmt.Sprintf("Page: %d", viewer.PageNumber))
	}
	if settings.ShowTimestamp {
		stamp := viewer.Now
		if stamp.IsZero() {
			stamp = time.Now()
		}
		parts = append(parts, stamp.Format(timestampLayout))
	}

	return strings.Join(parts, " | ")
}

// anchorPoint resolves the legacy position enum to concrete coordinates with
// a fixed margin from the edges.
func anchorPoint(imageWidth, imageHeight, width, height int, position Position) image.Point {
	switch position {
	case PositionTopLeft:
		return image.Point{X: anchorMargin, Y: anchorMargin}
	case PositionTopRight:
		return image.Point{X: imageWidth - width - anchorMargin, Y: anchorMargin}
	case PositionBottomLeft:
		return image.Point{X: anchorMargin, Y: imageHeight - height - anchorMargin}
	case PositionBottomRight:
		return image.Point{X: imageWidth - width - anchorMargin, Y: imageHeight - height - anchorMargin}
	default:
		return image.Point{X: (imageWidth - width) / 2, Y: (imageHeight - height) / 2}
	}
}

// flattenOnWhite removes any transparency introduced by the overlay layers so
// the result encodes as an opaque raster.
func flattenOnWhite(canvas *image.NRGBA) *image.RGBA {
	flattened := image.NewRGBA(canvas.Bounds())
	draw.Draw(flattened, flattened.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flattened, flattened.Bounds(), canvas, canvas.Bounds().Min, draw.Over)
	return flattened
}
