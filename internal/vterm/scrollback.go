package vterm

// scrollback holds rows evicted off the top of the screen, oldest first,
// capped at limit. A limit of 0 disables history.
type scrollback struct {
	rows  [][]Cell
	limit int
}

func newScrollback(limit int) *scrollback {
	if limit < 0 {
		limit = 0
	}
	return &scrollback{limit: limit}
}

// push appends a row, dropping the oldest rows once the limit is hit.
func (sb *scrollback) push(row []Cell) {
	if sb.limit == 0 {
		return
	}
	sb.rows = append(sb.rows, row)
	if len(sb.rows) > sb.limit {
		// Trim from the front; re-slice to release old backing rows.
		overflow := len(sb.rows) - sb.limit
		sb.rows = append([][]Cell(nil), sb.rows[overflow:]...)
	}
}

// pop removes and returns the newest row, or nil when empty.
func (sb *scrollback) pop() []Cell {
	if len(sb.rows) == 0 {
		return nil
	}
	row := sb.rows[len(sb.rows)-1]
	sb.rows = sb.rows[:len(sb.rows)-1]
	return row
}

func (sb *scrollback) len() int { return len(sb.rows) }

// snapshot returns a deep copy of all retained rows, oldest first.
func (sb *scrollback) snapshot() [][]Cell {
	if len(sb.rows) == 0 {
		return nil
	}
	out := make([][]Cell, len(sb.rows))
	for i, row := range sb.rows {
		out[i] = append([]Cell(nil), row...)
	}
	return out
}
