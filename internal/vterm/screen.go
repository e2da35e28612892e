package vterm

// Color identifies a cell color. Values 0-255 are palette indexes
// (0-7 standard, 8-15 bright, 16-255 extended), colorRGBFlag marks a
// 24-bit color packed into the low three bytes, and ColorDefault means
// the terminal's default foreground or background.
type Color uint32

const (
	colorRGBFlag Color = 1 << 24

	ColorDefault Color = 1 << 25
)

// Standard palette indexes.
const (
	ColorBlack Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
)

// PaletteColor returns the color for palette index n (0-255).
func PaletteColor(n int) Color {
	return Color(n & 0xFF)
}

// RGB returns a 24-bit color.
func RGB(r, g, b uint8) Color {
	return colorRGBFlag | Color(r)<<16 | Color(g)<<8 | Color(b)
}

// IsDefault reports whether c is the default color.
func (c Color) IsDefault() bool { return c == ColorDefault }

// IsRGB reports whether c is a 24-bit color.
func (c Color) IsRGB() bool { return c&colorRGBFlag != 0 }

// RGB returns the components of a 24-bit color.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Palette returns the palette index of a non-RGB, non-default color.
func (c Color) Palette() int { return int(c & 0xFF) }

// Cell is one character cell of the screen.
type Cell struct {
	Ch        rune  `json:"ch"`
	FG        Color `json:"fg"`
	BG        Color `json:"bg"`
	Bold      bool  `json:"bold,omitempty"`
	Underline bool  `json:"underline,omitempty"`
	Inverse   bool  `json:"inverse,omitempty"`
}

// pen is the active SGR attribute set applied to newly written cells.
type pen struct {
	fg        Color
	bg        Color
	bold      bool
	underline bool
	inverse   bool
}

func defaultPen() pen {
	return pen{fg: ColorDefault, bg: ColorDefault}
}

func (p pen) cell(ch rune) Cell {
	return Cell{Ch: ch, FG: p.fg, BG: p.bg, Bold: p.bold, Underline: p.underline, Inverse: p.inverse}
}

func blankCell() Cell {
	return Cell{Ch: ' ', FG: ColorDefault, BG: ColorDefault}
}

func blankRow(cols int) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = blankCell()
	}
	return row
}

// screen is the 2-D cell grid plus cursor. Mutated only by the decoder;
// the cursor is always within [0,rows) x [0,cols).
type screen struct {
	rows, cols int
	cells      [][]Cell
	curRow     int
	curCol     int
	pen        pen
	scrollback *scrollback
}

func newScreen(rows, cols, scrollbackLimit int) *screen {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	cells := make([][]Cell, rows)
	for i := range cells {
		cells[i] = blankRow(cols)
	}
	return &screen{
		rows:       rows,
		cols:       cols,
		cells:      cells,
		pen:        defaultPen(),
		scrollback: newScrollback(scrollbackLimit),
	}
}

// put writes one printable rune at the cursor with the active pen and
// advances, wrapping at the right edge and scrolling past the last row.
func (s *screen) put(ch rune) {
	s.cells[s.curRow][s.curCol] = s.pen.cell(ch)
	s.curCol++
	if s.curCol >= s.cols {
		s.curCol = 0
		s.lineFeed()
	}
}

// lineFeed moves the cursor down one row, scrolling when it would pass
// the bottom. The evicted top row goes to scrollback.
func (s *screen) lineFeed() {
	if s.curRow < s.rows-1 {
		s.curRow++
		return
	}
	s.scrollUp()
}

func (s *screen) scrollUp() {
	s.scrollback.push(s.cells[0])
	copy(s.cells, s.cells[1:])
	s.cells[s.rows-1] = blankRow(s.cols)
}

func (s *screen) carriageReturn() { s.curCol = 0 }

func (s *screen) backspace() {
	if s.curCol > 0 {
		s.curCol--
	}
}

func (s *screen) tab() {
	next := (s.curCol/8 + 1) * 8
	if next > s.cols-1 {
		next = s.cols - 1
	}
	s.curCol = next
}

// moveTo positions the cursor, clamping to the grid.
func (s *screen) moveTo(row, col int) {
	s.curRow = clamp(row, 0, s.rows-1)
	s.curCol = clamp(col, 0, s.cols-1)
}

// clearRow blanks cells [from, to) of one row.
func (s *screen) clearRow(row, from, to int) {
	from = clamp(from, 0, s.cols)
	to = clamp(to, 0, s.cols)
	line := s.cells[row]
	for i := from; i < to; i++ {
		line[i] = blankCell()
	}
}

// eraseDisplay implements ED: 0 = cursor to end, 1 = start to cursor,
// 2 = whole screen. The cursor does not move.
func (s *screen) eraseDisplay(mode int) {
	switch mode {
	case 0:
		s.clearRow(s.curRow, s.curCol, s.cols)
		for r := s.curRow + 1; r < s.rows; r++ {
			s.clearRow(r, 0, s.cols)
		}
	case 1:
		for r := 0; r < s.curRow; r++ {
			s.clearRow(r, 0, s.cols)
		}
		s.clearRow(s.curRow, 0, s.curCol+1)
	case 2:
		for r := 0; r < s.rows; r++ {
			s.clearRow(r, 0, s.cols)
		}
	}
}

// eraseLine implements EL: 0 = cursor to end of line, 1 = start to
// cursor, 2 = whole line.
func (s *screen) eraseLine(mode int) {
	switch mode {
	case 0:
		s.clearRow(s.curRow, s.curCol, s.cols)
	case 1:
		s.clearRow(s.curRow, 0, s.curCol+1)
	case 2:
		s.clearRow(s.curRow, 0, s.cols)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
