package vterm

// dispatchCSI executes a terminated CSI sequence. Unsupported finals are
// consumed without effect; sequences carrying a private marker never
// reach dispatch semantics.
func (d *Decoder) dispatchCSI(final byte) {
	if d.private {
		return
	}

	s := d.scr
	switch final {
	case 'm':
		d.applySGR()
	case 'H', 'f': // CUP
		d.scr.moveTo(d.param(0, 1)-1, d.param(1, 1)-1)
	case 'A': // CUU
		s.moveTo(s.curRow-d.param(0, 1), s.curCol)
	case 'B': // CUD
		s.moveTo(s.curRow+d.param(0, 1), s.curCol)
	case 'C': // CUF
		s.moveTo(s.curRow, s.curCol+d.param(0, 1))
	case 'D': // CUB
		s.moveTo(s.curRow, s.curCol-d.param(0, 1))
	case 'J': // ED
		if mode := d.rawParam(0); mode <= 2 {
			s.eraseDisplay(mode)
		}
	case 'K': // EL
		if mode := d.rawParam(0); mode <= 2 {
			s.eraseLine(mode)
		}
	}
}
