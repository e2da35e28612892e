package vterm

// Resize reflows the screen to new dimensions. Width changes truncate or
// pad each visible row; shrinking the height pushes surplus top rows into
// scrollback and growing it pulls rows back out, so history is preserved
// across any sequence of resizes. Calling with the current dimensions is
// a no-op, and the cursor always ends inside the new grid.
func (d *Decoder) Resize(rows, cols int) {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	s := d.scr
	if rows == s.rows && cols == s.cols {
		return
	}

	if cols != s.cols {
		for i, row := range s.cells {
			s.cells[i] = resizeRow(row, cols)
		}
		s.cols = cols
	}

	for s.rows > rows {
		s.scrollback.push(s.cells[0])
		s.cells = append([][]Cell(nil), s.cells[1:]...)
		s.rows--
		if s.curRow > 0 {
			s.curRow--
		}
	}
	for s.rows < rows {
		if row := s.scrollback.pop(); row != nil {
			restored := make([][]Cell, 0, s.rows+1)
			restored = append(restored, resizeRow(row, cols))
			s.cells = append(restored, s.cells...)
			s.curRow++
		} else {
			s.cells = append(s.cells, blankRow(cols))
		}
		s.rows++
	}

	s.curRow = clamp(s.curRow, 0, rows-1)
	s.curCol = clamp(s.curCol, 0, cols-1)
}

func resizeRow(row []Cell, cols int) []Cell {
	if len(row) == cols {
		return row
	}
	if len(row) > cols {
		return append([]Cell(nil), row[:cols]...)
	}
	out := make([]Cell, cols)
	n := copy(out, row)
	for i := n; i < cols; i++ {
		out[i] = blankCell()
	}
	return out
}
