package watermark

import (
	"encoding/json"
	"strings"
	"time"
)

// Position is the legacy single-placement anchor used when random placement
// is disabled.
type Position string

const (
	PositionCenter      Position = "center"
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
)

const (
	defaultOpacity        = 0.25
	defaultFontSize       = 48
	defaultColorComponent = 128
	defaultStaticScale    = 0.2
	defaultPositionsCount = 5
	defaultAnimationSpeed = 2000
)

// Settings is the immutable per-render watermark configuration. Instances are
// decoded from the global settings row (or a per-document override) and
// normalized before use.
type Settings struct {
	StaticWatermarkEnabled bool    `json:"static_watermark_enabled"`
	StaticWatermarkID      *int64  `json:"static_watermark_id"`
	StaticWatermarkScale   float64 `json:"static_watermark_scale"`

	DynamicWatermarkEnabled bool   `json:"dynamic_watermark_enabled"`
	ShowUserEmail           bool   `json:"show_user_email"`
	ShowUserID              bool   `json:"show_user_id"`
	ShowIPAddress           bool   `json:"show_ip_address"`
	ShowTimestamp           bool   `json:"show_timestamp"`
	ShowPageNumber          bool   `json:"show_page_number"`
	CustomText              string `json:"custom_text"`

	Opacity  float64 `json:"opacity"`
	FontSize int     `json:"font_size"`
	ColorR   int     `json:"color_r"`
	ColorG   int     `json:"color_g"`
	ColorB   int     `json:"color_b"`

	Position Position `json:"position"`

	RandomPositionsEnabled bool   `json:"random_positions_enabled"`
	PositionsCount         int    `json:"positions_count"`
	AnimationSpeed         int    `json:"animation_speed"`
	RandomSeed             string `json:"random_seed,omitempty"`
}

// DefaultSettings returns the settings applied when no global row exists or
// the stored JSON cannot be decoded.
func DefaultSettings() Settings {
	return Settings{
		StaticWatermarkEnabled:  true,
		StaticWatermarkScale:    defaultStaticScale,
		DynamicWatermarkEnabled: true,
		ShowUserEmail:           true,
		ShowIPAddress:           true,
		Opacity:                 defaultOpacity,
		FontSize:                defaultFontSize,
		ColorR:                  defaultColorComponent,
		ColorG:                  defaultColorComponent,
		ColorB:                  defaultColorComponent,
		Position:                PositionCenter,
		RandomPositionsEnabled:  true,
		PositionsCount:          defaultPositionsCount,
		AnimationSpeed:          defaultAnimationSpeed,
	}
}

// ParseSettings decodes a stored settings JSON document. Malformed input must
// never break the render path, so decode failures fall back to defaults.
func ParseSettings(raw string) Settings {
	if strings.TrimSpace(raw) == "" {
		return DefaultSettings()
	}
	var parsed Settings
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return DefaultSettings()
	}
	return parsed.Normalized()
}

// Normalized clamps style values into their documented ranges: opacity in
// [0,1], positive font size, at least one placement position.
func (s Settings) Normalized() Settings {
	if s.Opacity < 0 {
		s.Opacity = 0
	}
	if s.Opacity > 1 {
		s.Opacity = 1
	}
	if s.FontSize <= 0 {
		s.FontSize = defaultFontSize
	}
	if s.StaticWatermarkScale <= 0 || s.StaticWatermarkScale > 1 {
		s.StaticWatermarkScale = defaultStaticScale
	}
	if s.PositionsCount < 1 {
		s.PositionsCount = 1
	}
	s.ColorR = clampColor(s.ColorR)
	s.ColorG = clampColor(s.ColorG)
	s.ColorB = clampColor(s.ColorB)
	switch s.Position {
	case PositionCenter, PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight:
	default:
		s.Position = PositionCenter
	}
	return s
}

func clampColor(component int) int {
	if component < 0 {
		return 0
	}
	if component > 255 {
		return 255
	}
	return component
}

// ViewerContext carries the identity stamped into the dynamic layer.
type ViewerContext struct {
	UserEmail  string
	UserID     string
	IPAddress  string
	PageNumber int
	Now        time.Time
}
