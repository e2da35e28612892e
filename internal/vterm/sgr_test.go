package vterm

import "testing"

// writeStyled feeds the SGR sequence, writes a single 'X' and returns
// the cell it produced.
func writeStyled(t *testing.T, seq string) Cell {
	t.Helper()
	d := NewDecoder(2, 10, 0)
	feed(t, d, seq+"X")
	return d.Snapshot().Cells[0][0]
}

func TestSGR_Colors(t *testing.T) {
	tests := []struct {
		name string
		seq  string
		want Cell
	}{
		{
			name: "standard fg and bg",
			seq:  "\x1b[31;44m",
			want: Cell{Ch: 'X', FG: ColorRed, BG: ColorBlue},
		},
		{
			name: "bright fg",
			seq:  "\x1b[92m",
			want: Cell{Ch: 'X', FG: PaletteColor(10), BG: ColorDefault},
		},
		{
			name: "bright bg",
			seq:  "\x1b[103m",
			want: Cell{Ch: 'X', FG: ColorDefault, BG: PaletteColor(11)},
		},
		{
			name: "256-color fg",
			seq:  "\x1b[38;5;196m",
			want: Cell{Ch: 'X', FG: PaletteColor(196), BG: ColorDefault},
		},
		{
			name: "256-color bg",
			seq:  "\x1b[48;5;21m",
			want: Cell{Ch: 'X', FG: ColorDefault, BG: PaletteColor(21)},
		},
		{
			name: "256-color index clamped",
			seq:  "\x1b[38;5;999m",
			want: Cell{Ch: 'X', FG: PaletteColor(255), BG: ColorDefault},
		},
		{
			name: "truecolor fg",
			seq:  "\x1b[38;2;255;128;0m",
			want: Cell{Ch: 'X', FG: RGB(255, 128, 0), BG: ColorDefault},
		},
		{
			name: "truecolor bg",
			seq:  "\x1b[48;2;10;20;30m",
			want: Cell{Ch: 'X', FG: ColorDefault, BG: RGB(10, 20, 30)},
		},
		{
			name: "truecolor component clamped",
			seq:  "\x1b[38;2;300;0;0m",
			want: Cell{Ch: 'X', FG: RGB(255, 0, 0), BG: ColorDefault},
		},
		{
			name: "colon separators",
			seq:  "\x1b[38:5:208m",
			want: Cell{Ch: 'X', FG: PaletteColor(208), BG: ColorDefault},
		},
		{
			name: "unsupported codes ignored",
			seq:  "\x1b[3;9;53m",
			want: Cell{Ch: 'X', FG: ColorDefault, BG: ColorDefault},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := writeStyled(t, tt.seq); got != tt.want {
				t.Errorf("cell = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSGR_Attributes(t *testing.T) {
	d := NewDecoder(2, 10, 0)
	feed(t, d, "\x1b[1;4;7mA\x1b[22mB\x1b[24mC\x1b[27mD")

	snap := d.Snapshot()
	checks := []struct {
		col       int
		bold      bool
		underline bool
		inverse   bool
	}{
		{0, true, true, true},
		{1, false, true, true},
		{2, false, false, true},
		{3, false, false, false},
	}
	for _, c := range checks {
		cell := snap.Cells[0][c.col]
		if cell.Bold != c.bold || cell.Underline != c.underline || cell.Inverse != c.inverse {
			t.Errorf("col %d = bold=%v underline=%v inverse=%v, want %v %v %v",
				c.col, cell.Bold, cell.Underline, cell.Inverse, c.bold, c.underline, c.inverse)
		}
	}
}

func TestSGR_Reset(t *testing.T) {
	d := NewDecoder(2, 10, 0)
	// Bare ESC[m is equivalent to ESC[0m.
	feed(t, d, "\x1b[1;31;44mA\x1b[mB")

	snap := d.Snapshot()
	if got, want := snap.Cells[0][0], (Cell{Ch: 'A', FG: ColorRed, BG: ColorBlue, Bold: true}); got != want {
		t.Errorf("A = %+v, want %+v", got, want)
	}
	if got, want := snap.Cells[0][1], (Cell{Ch: 'B', FG: ColorDefault, BG: ColorDefault}); got != want {
		t.Errorf("B = %+v, want %+v", got, want)
	}
}

func TestSGR_DefaultColorKeepsAttributes(t *testing.T) {
	d := NewDecoder(2, 10, 0)
	// 39/49 reset only the colors; bold survives.
	feed(t, d, "\x1b[1;31;44mA\x1b[39;49mB")

	got := d.Snapshot().Cells[0][1]
	want := Cell{Ch: 'B', FG: ColorDefault, BG: ColorDefault, Bold: true}
	if got != want {
		t.Errorf("B = %+v, want %+v", got, want)
	}
}

func TestSGR_TruncatedExtendedColor(t *testing.T) {
	d := NewDecoder(2, 10, 0)
	// 38 with no argument run: applied prefix (bold) stays, rest abandoned.
	feed(t, d, "\x1b[1;38mX")

	got := d.Snapshot().Cells[0][0]
	want := Cell{Ch: 'X', FG: ColorDefault, BG: ColorDefault, Bold: true}
	if got != want {
		t.Errorf("cell = %+v, want %+v", got, want)
	}
	if d.Malformed() != 1 {
		t.Errorf("malformed = %d, want 1", d.Malformed())
	}
}

func TestColor_Accessors(t *testing.T) {
	c := RGB(1, 2, 3)
	if !c.IsRGB() || c.IsDefault() {
		t.Fatalf("RGB color misclassified: %v", c)
	}
	r, g, b := c.RGB()
	if r != 1 || g != 2 || b != 3 {
		t.Errorf("RGB() = (%d,%d,%d), want (1,2,3)", r, g, b)
	}

	p := PaletteColor(196)
	if p.IsRGB() || p.IsDefault() {
		t.Fatalf("palette color misclassified: %v", p)
	}
	if p.Palette() != 196 {
		t.Errorf("Palette() = %d, want 196", p.Palette())
	}

	if !ColorDefault.IsDefault() {
		t.Error("ColorDefault.IsDefault() = false")
	}
}
