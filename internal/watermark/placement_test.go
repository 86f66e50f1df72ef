package watermark

import (
	"math"
	"testing"
)

func TestPositionsAreDeterministicForSeed(t *testing.T) {
	first := Positions(800, 600, 120, 24, 5, "viewer-42")
	second := Positions(800, 600, 120, 24, 5, "viewer-42")

	if len(first) != len(second) {
		t.Fatalf("expected equal lengths, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("position %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestPositionsDifferAcrossSeeds(t *testing.T) {
	first := Positions(800, 600, 120, 24, 5, "viewer-a")
	second := Positions(800, 600, 120, 24, 5, "viewer-b")

	identical := len(first) == len(second)
	if identical {
		for i := range first {
			if first[i] != second[i] {
				identical = false
				break
			}
		}
	}
	if identical {
		t.Fatalf("expected different layouts for different seeds, both %v", first)
	}
}

func TestPositionsStayWithinCanvas(t *testing.T) {
	const (
		imageWidth  = 800
		imageHeight = 600
		textWidth   = 120
		textHeight  = 24
	)
	positions := Positions(imageWidth, imageHeight, textWidth, textHeight, 8, "bounds")

	if len(positions) == 0 {
		t.Fatalf("expected at least one position")
	}
	for _, p := range positions {
		if p.X < placementPadding || p.Y < placementPadding {
			t.Fatalf("position %v violates padding", p)
		}
		if p.X+textWidth > imageWidth-placementPadding || p.Y+textHeight > imageHeight-placementPadding {
			t.Fatalf("position %v overflows canvas", p)
		}
	}
}

func TestPositionsKeepMinimumSpacing(t *testing.T) {
	const (
		textWidth  = 200
		textHeight = 40
	)
	positions := Positions(1600, 1200, textWidth, textHeight, 6, "spacing")
	minSpacing := minSpacingFactor * float64(min(textWidth, textHeight))

	for i := range positions {
		for j := i + 1; j < len(positions); j++ {
			dx := float64(positions[i].X - positions[j].X)
			dy := float64(positions[i].Y - positions[j].Y)
			if math.Hypot(dx, dy) < minSpacing {
				t.Fatalf("positions %v and %v closer than %.1f", positions[i], positions[j], minSpacing)
			}
		}
	}
}

func TestPositionsClampWhenTextExceedsCanvas(t *testing.T) {
	positions := Positions(50, 40, 120, 60, 3, "tiny")

	if len(positions) != 1 {
		t.Fatalf("expected single clamped position, got %d", len(positions))
	}
	if positions[0].X != 0 || positions[0].Y != 0 {
		t.Fatalf("expected origin clamp, got %v", positions[0])
	}
}

func TestPositionsRequestedCountHonored(t *testing.T) {
	positions := Positions(2000, 1500, 100, 20, 10, "count")
	if len(positions) != 10 {
		t.Fatalf("expected 10 positions on a roomy canvas, got %d", len(positions))
	}

	single := Positions(2000, 1500, 100, 20, 0, "count")
	if len(single) != 1 {
		t.Fatalf("expected count floor of one, got %d", len(single))
	}
}
