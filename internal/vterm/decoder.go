// Package vterm decodes a raw terminal byte stream into a structured,
// renderable screen. The decoder is a single-pass state machine
// (ground, escape, CSI parameter, CSI intermediate) covering SGR styling,
// cursor addressing and erase sequences; printable bytes land on a cell
// grid that wraps and scrolls into a bounded FIFO scrollback.
//
// The decoder is deterministic — the same bytes fed from the same initial
// state always produce the same screen — and is not safe for concurrent
// use: it must be driven from a single goroutine, normally the shell
// channel's dispatch sequence. Malformed input is consumed and counted,
// never propagated and never able to corrupt the grid.
package vterm

import "unicode/utf8"

type state int

const (
	stateGround state = iota
	stateEscape
	stateCSIParam
	stateCSIIntermediate
)

// maxCSIParams bounds the parameter list of one CSI sequence. ECMA-48
// allows 16; doubled for safety before a sequence is declared malformed.
const maxCSIParams = 32

// Decoder is the ANSI byte-stream state machine. Construct with NewDecoder.
type Decoder struct {
	scr *screen

	st          state
	params      []int
	curParam    int
	curParamSet bool
	private     bool
	pending     []byte // partial UTF-8 rune

	malformed uint64
}

// NewDecoder returns a decoder with a rows x cols screen and a scrollback
// capped at scrollbackLimit rows (0 disables history).
func NewDecoder(rows, cols, scrollbackLimit int) *Decoder {
	return &Decoder{
		scr:    newScreen(rows, cols, scrollbackLimit),
		params: make([]int, 0, maxCSIParams),
	}
}

// Write feeds raw terminal output through the state machine. It always
// consumes all of p and never fails; implements io.Writer so a shell
// channel can stream into it directly.
func (d *Decoder) Write(p []byte) (int, error) {
	for _, b := range p {
		d.step(b)
	}
	return len(p), nil
}

// Malformed returns the count of sequences abandoned by error recovery.
func (d *Decoder) Malformed() uint64 { return d.malformed }

// Size returns the current screen dimensions.
func (d *Decoder) Size() (rows, cols int) { return d.scr.rows, d.scr.cols }

// Cursor returns the current cursor position.
func (d *Decoder) Cursor() (row, col int) { return d.scr.curRow, d.scr.curCol }

func (d *Decoder) step(b byte) {
	switch d.st {
	case stateGround:
		d.ground(b)
	case stateEscape:
		d.escape(b)
	case stateCSIParam:
		d.csiParam(b)
	case stateCSIIntermediate:
		d.csiIntermediate(b)
	}
}

func (d *Decoder) ground(b byte) {
	switch {
	case b == 0x1b:
		d.dropPending()
		d.resetSeq()
		d.st = stateEscape
	case b == '\r':
		d.dropPending()
		d.scr.carriageReturn()
	case b == '\n':
		d.dropPending()
		d.scr.lineFeed()
	case b == '\b':
		d.dropPending()
		d.scr.backspace()
	case b == '\t':
		d.dropPending()
		d.scr.tab()
	case b < 0x20 || b == 0x7f:
		// Remaining C0 controls (BEL, SO/SI, ...) have no effect on
		// the grid.
		d.dropPending()
	default:
		d.printByte(b)
	}
}

// printByte assembles UTF-8 sequences incrementally and writes complete
// runes to the screen.
func (d *Decoder) printByte(b byte) {
	if b < utf8.RuneSelf && len(d.pending) == 0 {
		d.scr.put(rune(b))
		return
	}

	d.pending = append(d.pending, b)
	for len(d.pending) > 0 {
		if !utf8.FullRune(d.pending) {
			if len(d.pending) >= utf8.UTFMax {
				d.dropPending()
			}
			return
		}
		r, size := utf8.DecodeRune(d.pending)
		rest := d.pending[size:]
		d.pending = append(d.pending[:0], rest...)
		if r == utf8.RuneError && size == 1 {
			d.malformed++
			continue
		}
		d.scr.put(r)
	}
}

// dropPending discards a partial UTF-8 rune interrupted by a control or
// escape byte.
func (d *Decoder) dropPending() {
	if len(d.pending) > 0 {
		d.pending = d.pending[:0]
		d.malformed++
	}
}

func (d *Decoder) escape(b byte) {
	if b == '[' {
		d.st = stateCSIParam
		return
	}
	// Two-byte escape (ESC 7, ESC M, ESC c, ...): consumed whole and
	// ignored; decoding resumes in ground.
	d.st = stateGround
}

func (d *Decoder) csiParam(b byte) {
	switch {
	case b >= '0' && b <= '9':
		d.curParam = d.curParam*10 + int(b-'0')
		if d.curParam > 9999 {
			d.curParam = 9999
		}
		d.curParamSet = true
	case b == ';' || b == ':':
		d.pushParam()
	case b >= 0x3c && b <= 0x3f:
		// Private marker (e.g. ESC[?25l): sequence is consumed at its
		// terminator with no effect.
		d.private = true
	case b >= 0x20 && b <= 0x2f:
		d.pushParam()
		d.st = stateCSIIntermediate
	case b >= 0x40 && b <= 0x7e:
		d.pushParam()
		d.dispatchCSI(b)
		d.st = stateGround
	case b == 0x1b:
		// Interrupted sequence: abandon and restart escape parsing.
		d.malformed++
		d.resetSeq()
		d.st = stateEscape
	case b < 0x20:
		// A C0 control aborts the sequence but still executes.
		d.malformed++
		d.st = stateGround
		d.ground(b)
	default:
		// DEL and other strays inside CSI are ignored.
	}
}

func (d *Decoder) csiIntermediate(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2f:
		// Further intermediates accumulate silently.
	case b >= 0x40 && b <= 0x7e:
		// Terminated, but sequences with intermediates are outside the
		// supported set: consumed without effect.
		d.st = stateGround
	case b == 0x1b:
		d.malformed++
		d.resetSeq()
		d.st = stateEscape
	case b < 0x20:
		d.malformed++
		d.st = stateGround
		d.ground(b)
	}
}

func (d *Decoder) pushParam() {
	if len(d.params) < maxCSIParams {
		d.params = append(d.params, d.curParam)
	}
	d.curParam = 0
	d.curParamSet = false
}

func (d *Decoder) resetSeq() {
	d.params = d.params[:0]
	d.curParam = 0
	d.curParamSet = false
	d.private = false
}

// param returns the i-th parameter treating absent or zero values as def,
// which matches cursor-command semantics (ESC[H == ESC[1;1H).
func (d *Decoder) param(i, def int) int {
	if i >= len(d.params) || d.params[i] == 0 {
		return def
	}
	return d.params[i]
}

// rawParam returns the i-th parameter with zero kept as zero, for
// commands where 0 selects a mode (ED, EL).
func (d *Decoder) rawParam(i int) int {
	if i >= len(d.params) {
		return 0
	}
	return d.params[i]
}
