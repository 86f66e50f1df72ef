package watermark

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

const (
	// placementPadding keeps stamps away from the page edges.
	placementPadding = 10
	// retriesPerPosition bounds the rejection-sampling loop.
	retriesPerPosition = 50
	// minSpacingFactor scales the smaller text dimension into the minimum
	// distance between two accepted stamps.
	minSpacingFactor = 0.3
)

// Positions returns up to count deterministic pseudo-random placements for a
// text block of textWidth x textHeight on a page of imageWidth x imageHeight.
// The same seed always yields the same sequence, so one viewer sees a stable
// layout across requests. Every returned point fits the canvas whenever the
// text itself fits.
func Positions(imageWidth, imageHeight, textWidth, textHeight, count int, seed string) []image.Point {
	if count < 1 {
		count = 1
	}

	minX, minY := placementPadding, placementPadding
	maxX := imageWidth - textWidth - placementPadding
	maxY := imageHeight - textHeight - placementPadding

	if maxX < minX || maxY < minY {
		return []image.Point{clampedPosition(imageWidth, imageHeight, textWidth, textHeight)}
	}

	rng := seededRNG(seed)
	minSpacing := minSpacingFactor * float64(min(textWidth, textHeight))

	accepted := make([]image.Point, 0, count)
	for attempts := 0; len(accepted) < count && attempts < count*retriesPerPosition; attempts++ {
		candidate := image.Point{
			X: minX + rng.IntN(maxX-minX+1),
			Y: minY + rng.IntN(maxY-minY+1),
		}
		if tooClose(candidate, accepted, minSpacing) {
			continue
		}
		accepted = append(accepted, candidate)
	}

	if len(accepted) > 0 {
		return accepted
	}

	corners := cornerPositions(imageWidth, imageHeight, textWidth, textHeight)
	if len(corners) > 0 {
		return corners
	}
	return []image.Point{clampedPosition(imageWidth, imageHeight, textWidth, textHeight)}
}

// seededRNG derives a deterministic generator from the seed string. xxhash is
// stable across processes, unlike Go's randomized map/string hashing.
func seededRNG(seed string) *rand.Rand {
	sum := xxhash.Sum64String(seed)
	return rand.New(rand.NewPCG(sum, sum^0x9e3779b97f4a7c15))
}

func tooClose(candidate image.Point, accepted []image.Point, minSpacing float64) bool {
	for _, existing := range accepted {
		dx := float64(candidate.X - existing.X)
		dy := float64(candidate.Y - existing.Y)
		if math.Hypot(dx, dy) < minSpacing {
			return true
		}
	}
	return false
}

// cornerPositions returns the four padded corners that still fit the canvas.
func cornerPositions(imageWidth, imageHeight, textWidth, textHeight int) []image.Point {
	candidates := []image.Point{
		{X: placementPadding, Y: placementPadding},
		{X: imageWidth - textWidth - placementPadding, Y: placementPadding},
		{X: placementPadding, Y: imageHeight - textHeight - placementPadding},
		{X: imageWidth - textWidth - placementPadding, Y: imageHeight - textHeight - placementPadding},
	}
	fitting := make([]image.Point, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.X >= 0 && candidate.Y >= 0 &&
			candidate.X+textWidth <= imageWidth && candidate.Y+textHeight <= imageHeight {
			fitting = append(fitting, candidate)
		}
	}
	return fitting
}

// clampedPosition anchors the stamp at the top-left corner, pulled inside the
// canvas as far as the text size allows.
func clampedPosition(imageWidth, imageHeight, textWidth, textHeight int) image.Point {
	x := placementPadding
	if x > imageWidth-textWidth {
		x = imageWidth - textWidth
	}
	if x < 0 {
		x = 0
	}
	y := placementPadding
	if y > imageHeight-textHeight {
		y = imageHeight - textHeight
	}
	if y < 0 {
		y = 0
	}
	return image.Point{X: x, Y: y}
}
