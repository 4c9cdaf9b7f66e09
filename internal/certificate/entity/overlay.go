package entity

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var (
	ErrFontUnknown  = errors.New("certificate: font is unknown")
	ErrColorInvalid = errors.New("certificate: color must be r,g,b")
)

// Font selects the typeface drawn on local templates.
type Font int8

const (
	// FontScript is an italic face, the default for certificates.
	FontScript Font = iota
	// FontRegular is an upright sans-serif face.
	FontRegular
	// FontBold is a bold sans-serif face.
	FontBold
	// FontMono is a monospaced face.
	FontMono
	// FontSmallCaps is a small-caps face.
	FontSmallCaps
)

func (f Font) String() string {
	switch f {
	case FontRegular:
		return "regular"
	case FontBold:
		return "bold"
	case FontMono:
		return "mono"
	case FontSmallCaps:
		return "smallcaps"
	default:
		return "script"
	}
}

// ParseFont maps a configured font name to a Font.
func ParseFont(s string) (Font, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "script", "italic":
		return FontScript, nil
	case "regular", "sans":
		return FontRegular, nil
	case "bold":
		return FontBold, nil
	case "mono":
		return FontMono, nil
	case "smallcaps":
		return FontSmallCaps, nil
	default:
		return FontScript, fmt.Errorf("%w: %q", ErrFontUnknown, s)
	}
}

// Color is an RGB text color.
type Color struct {
	R, G, B uint8
}

// RGBA converts the color to an opaque image color.
func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// ParseColor reads "r,g,b" with each component in 0..255.
func ParseColor(s string) (Color, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Color{}, fmt.Errorf("%w: %q", ErrColorInvalid, s)
	}

	var rgb [3]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return Color{}, fmt.Errorf("%w: %q", ErrColorInvalid, s)
		}
		rgb[i] = uint8(v)
	}

	return Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}

// Position is the baseline-left point of the drawn name, in template pixels.
type Position struct {
	X, Y int
}

// Overlay describes how a name is drawn on a local template. It is built once
// per run and shared by every recipient.
type Overlay struct {
	Position Position
	Font     Font
	Scale    float64
	Color    Color
}
