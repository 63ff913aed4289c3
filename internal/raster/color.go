package raster

import (
	"image/color"
	"strings"
)

// namedColors are the few CSS names components commonly reach for.
var namedColors = map[string]color.NRGBA{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"transparent": {0, 0, 0, 0},
}

// ParseColor parses #rgb, #rrggbb, #rrggbbaa, or a named color.
func ParseColor(s string) (color.NRGBA, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return color.NRGBA{}, false
	}
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if !strings.HasPrefix(s, "#") {
		return color.NRGBA{}, false
	}
	hexStr := s[1:]
	switch len(hexStr) {
	case 3:
		r, ok1 := hexNibble(hexStr[0])
		g, ok2 := hexNibble(hexStr[1])
		b, ok3 := hexNibble(hexStr[2])
		if !ok1 || !ok2 || !ok3 {
			return color.NRGBA{}, false
		}
		return color.NRGBA{r * 17, g * 17, b * 17, 255}, true
	case 6, 8:
		var bytes [4]uint8
		bytes[3] = 255
		for i := 0; i+1 < len(hexStr); i += 2 {
			hi, ok1 := hexNibble(hexStr[i])
			lo, ok2 := hexNibble(hexStr[i+1])
			if !ok1 || !ok2 {
				return color.NRGBA{}, false
			}
			bytes[i/2] = hi<<4 | lo
		}
		return color.NRGBA{bytes[0], bytes[1], bytes[2], bytes[3]}, true
	}
	return color.NRGBA{}, false
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}
