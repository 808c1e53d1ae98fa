/*
 * Commadpt - Asynchronous line state machine
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package async

import (
	"github.com/rcornwell/commadpt/telnet"
	"github.com/rcornwell/commadpt/util/ring"
)

// Line editing and translation options.
type Options struct {
	Term      TermKind
	Code      string // Code table for 2741 lines
	EOL       byte   // End of line character from terminal
	Upper     bool   // Fold input to upper case
	BSEdit    bool   // Backspace and delete remove previous character
	CRLF      bool   // Collapse CR LF to CR
	DumbBreak bool   // Control C acts as attention
	Echo      bool   // Send CR LF to terminal at end of line
	SkipIn    []byte // Terminal characters to discard
	SkipOut   []byte // Line codes not sent to terminal
	Prepend   []byte // Line codes put before each input line
	Append    []byte // Line codes put after each input line
}

// Result of feeding one byte.
type Event int

const (
	EventNone      Event = iota // Byte absorbed
	EventLine                   // Line translated into output ring
	EventInterrupt              // Attention from terminal
)

// Machine collects terminal input into lines.
type Machine struct {
	opts      Options
	coder     Transcoder
	tn        *telnet.Session
	skipIn    [256]bool
	skipOut   [256]bool
	line      *ring.Ring // Partial line from terminal
	echo      []byte     // Echo waiting to go to terminal
	lastCR    bool       // Previous line ended with CR
	Interrupt bool       // Attention seen since last reset
	EOL       bool       // Line end seen since last reset
}

type resetter interface {
	Reset()
}

// Create async machine collecting lines into scratch ring.
func New(opts Options, scratch *ring.Ring) (*Machine, error) {
	coder, err := NewTranscoder(opts.Term, opts.Code)
	if err != nil {
		return nil, err
	}
	if opts.EOL == 0 {
		opts.EOL = '\r'
	}
	m := &Machine{
		opts:  opts,
		coder: coder,
		tn:    telnet.NewSession(telnet.PolicyRefuse),
		line:  scratch,
	}
	for _, by := range opts.SkipIn {
		m.skipIn[by] = true
	}
	for _, by := range opts.SkipOut {
		m.skipOut[by] = true
	}
	return m, nil
}

// Return active transcoder.
func (m *Machine) Transcoder() Transcoder {
	return m.coder
}

// Set trace function for telnet negotiation.
func (m *Machine) SetTrace(trace func(format string, a ...any)) {
	m.tn.Trace = trace
}

// Clear state for a new connection.
func (m *Machine) Reset() {
	trace := m.tn.Trace
	m.tn = telnet.NewSession(telnet.PolicyRefuse)
	m.tn.Trace = trace
	m.line.Flush()
	m.echo = nil
	m.lastCR = false
	m.Interrupt = false
	m.EOL = false
	if r, ok := m.coder.(resetter); ok {
		r.Reset()
	}
}

// Return bytes that should be sent to the terminal.
func (m *Machine) Reply() []byte {
	out := m.tn.Reply()
	if len(m.echo) != 0 {
		out = append(out, m.echo...)
		m.echo = nil
	}
	return out
}

// Process one byte from terminal. Completed lines are pushed on out.
func (m *Machine) Feed(by byte, out *ring.Ring) Event {
	switch m.tn.Feed(by) {
	case telnet.TokIP, telnet.TokBreak:
		return m.interrupt()
	case telnet.TokData:
	default:
		return EventNone
	}

	if m.opts.DumbBreak && (by&0x7f) == 0x03 {
		return m.interrupt()
	}

	if by != m.opts.EOL {
		m.line.Push(by)
		return EventNone
	}

	raw := make([]byte, m.line.Len())
	m.line.PopBuffer(raw)
	out.PushBuffer(m.translate(raw))
	m.lastCR = by == '\r'
	m.EOL = true
	if m.opts.Echo {
		m.echo = append(m.echo, '\r', '\n')
	}
	return EventLine
}

func (m *Machine) interrupt() Event {
	m.line.Flush()
	m.lastCR = false
	m.Interrupt = true
	m.tn.Reset()
	return EventInterrupt
}

// Convert a line of terminal characters into line codes.
func (m *Machine) translate(raw []byte) []byte {
	data := make([]byte, 0, len(raw))
	for _, by := range raw {
		if m.opts.BSEdit && (by == '\b' || by == 0x7f) {
			if len(data) != 0 {
				data = data[:len(data)-1]
			}
			continue
		}
		data = append(data, by)
	}

	n := 0
	for _, by := range data {
		if !m.skipIn[by] {
			data[n] = by
			n++
		}
	}
	data = data[:n]

	if m.opts.CRLF {
		data = collapseCRLF(data, m.lastCR, m.opts.EOL)
	}

	eightBit := m.coder.EightBit()
	for i, by := range data {
		if !eightBit {
			by &= 0x7f
		}
		if m.opts.Upper && by >= 'a' && by <= 'z' {
			by -= 'a' - 'A'
		}
		data[i] = by
	}

	codes := m.coder.Inbound(data)
	result := make([]byte, 0, len(m.opts.Prepend)+len(codes)+len(m.opts.Append))
	result = append(result, m.opts.Prepend...)
	result = append(result, codes...)
	result = append(result, m.opts.Append...)
	return result
}

// Drop LF or NUL after CR. A CR just ahead of a LF line end is dropped too.
func collapseCRLF(data []byte, lastCR bool, eol byte) []byte {
	out := data[:0]
	prevCR := lastCR
	for _, by := range data {
		if prevCR && (by == '\n' || by == 0) {
			prevCR = false
			continue
		}
		prevCR = by == '\r'
		out = append(out, by)
	}
	if eol == '\n' && len(out) != 0 && out[len(out)-1] == '\r' {
		out = out[:len(out)-1]
	}
	return out
}

// Convert line codes from host into terminal characters.
func (m *Machine) Outbound(codes []byte) []byte {
	kept := make([]byte, 0, len(codes))
	for _, by := range codes {
		if !m.skipOut[by] {
			kept = append(kept, by)
		}
	}
	return telnet.Escape(m.coder.Outbound(kept))
}
