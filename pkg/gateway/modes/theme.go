package modes

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Neutral slate shades shared by every derived palette.
const (
	lightBackground = "#f8fafc"
	lightSurface    = "#ffffff"
	lightText       = "#0f172a"
	darkBackground  = "#1e293b"
	darkSurface     = "#334155"
	darkText        = "#f8fafc"
	mutedText       = "#64748b"
)

// DerivePalette builds a complete Theme from a single primary color.
// The secondary is the complement (hue rotated 180 degrees, saturation
// reduced to 80% for harmony), and the primary's lightness picks a
// light or dark neutral scheme. Deriving algorithmically is faster than
// asking the model for six colors and keeps the palette coherent.
func DerivePalette(primaryHex string) (Theme, error) {
	r, g, b, err := hexToRGB(primaryHex)
	if err != nil {
		return Theme{}, err
	}

	h, l, s := rgbToHLS(float64(r)/255, float64(g)/255, float64(b)/255)

	compH := math.Mod(h+0.5, 1.0)
	compR, compG, compB := hlsToRGB(compH, l, s*0.8)

	th := Theme{
		Primary:   normalizeHex(primaryHex),
		Secondary: rgbToHex(int(compR*255), int(compG*255), int(compB*255)),
		TextMuted: mutedText,
	}
	if l > 0.5 {
		th.Background = lightBackground
		th.Surface = lightSurface
		th.Text = lightText
	} else {
		th.Background = darkBackground
		th.Surface = darkSurface
		th.Text = darkText
	}
	return th, nil
}

// hexToRGB parses "#RRGGBB" or shorthand "#RGB" into components.
func hexToRGB(hexColor string) (r, g, b int, err error) {
	orig := hexColor
	hexColor = strings.TrimPrefix(hexColor, "#")
	if len(hexColor) == 3 {
		var sb strings.Builder
		for _, c := range hexColor {
			sb.WriteRune(c)
			sb.WriteRune(c)
		}
		hexColor = sb.String()
	}
	if len(hexColor) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q", orig)
	}
	v, err := strconv.ParseUint(hexColor, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q", orig)
	}
	return int(v >> 16), int(v >> 8 & 0xff), int(v & 0xff), nil
}

// rgbToHex formats components as a lowercase "#rrggbb" string, clamping
// each to 0..255.
func rgbToHex(r, g, b int) string {
	return fmt.Sprintf("#%02x%02x%02x", clamp255(r), clamp255(g), clamp255(b))
}

func clamp255(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// normalizeHex lowercases and ensures the "#" prefix without touching
// the digits themselves.
func normalizeHex(hexColor string) string {
	hexColor = strings.ToLower(hexColor)
	if !strings.HasPrefix(hexColor, "#") {
		hexColor = "#" + hexColor
	}
	return hexColor
}

const (
	oneThird = 1.0 / 3.0
	oneSixth = 1.0 / 6.0
	twoThird = 2.0 / 3.0
)

// rgbToHLS converts r, g, b in [0, 1] to hue, lightness, saturation,
// all in [0, 1].
func rgbToHLS(r, g, b float64) (h, l, s float64) {
	maxc := math.Max(r, math.Max(g, b))
	minc := math.Min(r, math.Min(g, b))
	sumc := maxc + minc
	rangec := maxc - minc

	l = sumc / 2.0
	if minc == maxc {
		return 0, l, 0
	}
	if l <= 0.5 {
		s = rangec / sumc
	} else {
		s = rangec / (2.0 - maxc - minc)
	}

	rc := (maxc - r) / rangec
	gc := (maxc - g) / rangec
	bc := (maxc - b) / rangec
	switch maxc {
	case r:
		h = bc - gc
	case g:
		h = 2.0 + rc - bc
	default:
		h = 4.0 + gc - rc
	}
	h = math.Mod(h/6.0, 1.0)
	if h < 0 {
		h++
	}
	return h, l, s
}

// hlsToRGB converts hue, lightness, saturation in [0, 1] back to
// r, g, b in [0, 1].
func hlsToRGB(h, l, s float64) (r, g, b float64) {
	if s == 0 {
		return l, l, l
	}
	var m2 float64
	if l <= 0.5 {
		m2 = l * (1.0 + s)
	} else {
		m2 = l + s - l*s
	}
	m1 := 2.0*l - m2
	return hlsComponent(m1, m2, h+oneThird),
		hlsComponent(m1, m2, h),
		hlsComponent(m1, m2, h-oneThird)
}

func hlsComponent(m1, m2, hue float64) float64 {
	hue = math.Mod(hue, 1.0)
	if hue < 0 {
		hue++
	}
	switch {
	case hue < oneSixth:
		return m1 + (m2-m1)*hue*6.0
	case hue < 0.5:
		return m2
	case hue < twoThird:
		return m1 + (m2-m1)*(twoThird-hue)*6.0
	default:
		return m1
	}
}
