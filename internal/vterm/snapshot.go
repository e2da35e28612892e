package vterm

import "strings"

// Snapshot is a read-only copy of the screen for rendering. Mutating it
// has no effect on the decoder.
type Snapshot struct {
	Rows       int      `json:"rows"`
	Cols       int      `json:"cols"`
	CursorRow  int      `json:"cursorRow"`
	CursorCol  int      `json:"cursorCol"`
	Cells      [][]Cell `json:"cells"`
	Scrollback [][]Cell `json:"scrollback,omitempty"`
}

// Snapshot deep-copies the current screen state, including retained
// scrollback rows (oldest first).
func (d *Decoder) Snapshot() Snapshot {
	s := d.scr
	cells := make([][]Cell, s.rows)
	for i, row := range s.cells {
		cells[i] = append([]Cell(nil), row...)
	}
	return Snapshot{
		Rows:       s.rows,
		Cols:       s.cols,
		CursorRow:  s.curRow,
		CursorCol:  s.curCol,
		Cells:      cells,
		Scrollback: s.scrollback.snapshot(),
	}
}

// RowText returns row r as a string with trailing blanks trimmed.
// Out-of-range rows return "".
func (s *Snapshot) RowText(r int) string {
	if r < 0 || r >= len(s.Cells) {
		return ""
	}
	var b strings.Builder
	for _, c := range s.Cells[r] {
		b.WriteRune(c.Ch)
	}
	return strings.TrimRight(b.String(), " ")
}
