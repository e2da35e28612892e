package vterm

// applySGR folds the parsed parameter list into the active pen.
// An empty list (ESC[m) resets. Extended color forms 38;5;n, 48;5;n,
// 38;2;r;g;b and 48;2;r;g;b consume their argument runs; a truncated run
// abandons the remainder of the sequence with everything before it applied.
func (d *Decoder) applySGR() {
	params := d.params
	if len(params) == 0 {
		params = []int{0}
	}

	p := &d.scr.pen
	for i := 0; i < len(params); i++ {
		switch v := params[i]; {
		case v == 0:
			*p = defaultPen()
		case v == 1:
			p.bold = true
		case v == 4:
			p.underline = true
		case v == 7:
			p.inverse = true
		case v == 22:
			p.bold = false
		case v == 24:
			p.underline = false
		case v == 27:
			p.inverse = false
		case v >= 30 && v <= 37:
			p.fg = PaletteColor(v - 30)
		case v == 39:
			p.fg = ColorDefault
		case v >= 40 && v <= 47:
			p.bg = PaletteColor(v - 40)
		case v == 49:
			p.bg = ColorDefault
		case v >= 90 && v <= 97:
			p.fg = PaletteColor(v - 90 + 8)
		case v >= 100 && v <= 107:
			p.bg = PaletteColor(v - 100 + 8)
		case v == 38 || v == 48:
			color, consumed, ok := extendedColor(params[i+1:])
			if !ok {
				d.malformed++
				return
			}
			if v == 38 {
				p.fg = color
			} else {
				p.bg = color
			}
			i += consumed
		default:
			// Unsupported attribute (italic, blink, ...): ignored.
		}
	}
}

// extendedColor parses the argument run after a 38/48 selector and
// reports how many parameters it consumed.
func extendedColor(rest []int) (Color, int, bool) {
	if len(rest) == 0 {
		return 0, 0, false
	}
	switch rest[0] {
	case 5: // 256-color palette
		if len(rest) < 2 {
			return 0, 0, false
		}
		return PaletteColor(clamp(rest[1], 0, 255)), 2, true
	case 2: // 24-bit truecolor
		if len(rest) < 4 {
			return 0, 0, false
		}
		return RGB(clampByte(rest[1]), clampByte(rest[2]), clampByte(rest[3])), 4, true
	}
	return 0, 0, false
}

func clampByte(v int) uint8 {
	return uint8(clamp(v, 0, 255))
}
