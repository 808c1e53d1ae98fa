/*
 * Commadpt - Asynchronous line test set
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
	"bytes"
	"math/rand"
	"testing"

	"github.com/rcornwell/commadpt/util/ring"
	"github.com/rcornwell/commadpt/util/xlat"
)

func newMachine(t *testing.T, opts Options) (*Machine, *ring.Ring) {
	t.Helper()
	m, err := New(opts, ring.New(256))
	if err != nil {
		t.Fatalf("Unable to create machine: %v", err)
	}
	return m, ring.New(1024)
}

// Feed input and return events that were not EventNone.
func feedAll(m *Machine, out *ring.Ring, input []byte) []Event {
	events := []Event{}
	for _, by := range input {
		if ev := m.Feed(by, out); ev != EventNone {
			events = append(events, ev)
		}
	}
	return events
}

// A B CR on a teletype gives only the reversed parity forms of A and B.
func TestTTYLine(t *testing.T) {
	m, out := newMachine(t, Options{Term: TermTTY, EOL: '\r'})
	events := feedAll(m, out, []byte("AB\r"))
	if len(events) != 1 || events[0] != EventLine {
		t.Fatalf("Expected one line event got: %v", events)
	}
	if !m.EOL {
		t.Errorf("End of line not set")
	}
	got := out.Bytes()
	if !bytes.Equal(got, []byte{0x82, 0x42}) {
		t.Errorf("Line not correct got: %02x", got)
	}
	if m.line.HasData() {
		t.Errorf("Scratch ring not empty")
	}
}

// Output equals prepend + translated characters + append.
func TestPrependAppend(t *testing.T) {
	for _, term := range []TermKind{TermTTY, Term2741, TermRXVT} {
		opts := Options{Term: term, EOL: '\r', Prepend: []byte{0x16}, Append: []byte{0x25, 0x26}}
		m, out := newMachine(t, opts)
		check, err := NewTranscoder(term, "")
		if err != nil {
			t.Fatalf("Unable to create transcoder: %v", err)
		}
		for range 50 {
			line := make([]byte, rand.Intn(40))
			for i := range line {
				line[i] = byte('a' + rand.Intn(26))
			}
			out.Flush()
			feedAll(m, out, append(line, '\r'))
			expect := append([]byte{0x16}, check.Inbound(line)...)
			expect = append(expect, 0x25, 0x26)
			if got := out.Bytes(); !bytes.Equal(got, expect) {
				t.Errorf("%s line %q got: %02x expected: %02x", term, line, got, expect)
			}
		}
	}
}

func TestInterrupt(t *testing.T) {
	m, out := newMachine(t, Options{EOL: '\r'})
	events := feedAll(m, out, []byte{'A', 'B', 0xff, 0xf4, 'C'})
	if len(events) != 1 || events[0] != EventInterrupt {
		t.Fatalf("Expected interrupt got: %v", events)
	}
	if !m.Interrupt {
		t.Errorf("Interrupt flag not set")
	}
	feedAll(m, out, []byte{'\r'})
	if got := out.Bytes(); !bytes.Equal(got, []byte{xlat.Reverse[xlat.EvenParity('C')]}) {
		t.Errorf("Data before interrupt not discarded got: %02x", got)
	}

	// Control C is only attention with dumb break.
	m.Reset()
	out.Flush()
	if ev := feedAll(m, out, []byte{0x03}); len(ev) != 0 {
		t.Errorf("Control C gave attention without dumb break")
	}
	m, out = newMachine(t, Options{EOL: '\r', DumbBreak: true})
	if ev := feedAll(m, out, []byte{0x03}); len(ev) != 1 || ev[0] != EventInterrupt {
		t.Errorf("Control C did not give attention with dumb break: %v", ev)
	}
}

func TestEditing(t *testing.T) {
	m, out := newMachine(t, Options{
		Term:   Term2741,
		EOL:    '\r',
		BSEdit: true,
		Upper:  true,
		SkipIn: []byte{'#'},
	})
	feedAll(m, out, []byte("ax\bb#c\x7fd\r"))
	check := newSelectric()
	expect := check.Inbound([]byte("ABD"))
	if got := out.Bytes(); !bytes.Equal(got, expect) {
		t.Errorf("Edited line got: %02x expected: %02x", got, expect)
	}
}

func TestCRLF(t *testing.T) {
	m, out := newMachine(t, Options{EOL: '\r', CRLF: true})
	feedAll(m, out, []byte("A\r\nB\r"))
	expect := []byte{xlat.Reverse[xlat.EvenParity('A')], xlat.Reverse[xlat.EvenParity('B')]}
	if got := out.Bytes(); !bytes.Equal(got, expect) {
		t.Errorf("CR LF not collapsed got: %02x", got)
	}

	m, out = newMachine(t, Options{EOL: '\n', CRLF: true})
	feedAll(m, out, []byte("A\r\n"))
	if got := out.Bytes(); !bytes.Equal(got, expect[:1]) {
		t.Errorf("CR before LF end not removed got: %02x", got)
	}
}

func TestReply(t *testing.T) {
	m, out := newMachine(t, Options{EOL: '\r', Echo: true})
	feedAll(m, out, []byte{0xff, 0xfd, 0x01, 'A', '\r'})
	expect := []byte{0xff, 0xfc, 0x01, '\r', '\n'}
	if got := m.Reply(); !bytes.Equal(got, expect) {
		t.Errorf("Reply got: %02x expected: %02x", got, expect)
	}
	if got := m.Reply(); len(got) != 0 {
		t.Errorf("Reply not cleared: %02x", got)
	}
}

func TestTTYOutbound(t *testing.T) {
	m, _ := newMachine(t, Options{SkipOut: []byte{xlat.Reverse['X']}})
	codes := []byte{xlat.Reverse[xlat.EvenParity('H')], xlat.Reverse['X'], xlat.Reverse[xlat.EvenParity('I')]}
	if got := m.Outbound(codes); string(got) != "HI" {
		t.Errorf("Outbound got: %q", got)
	}
}

// Output to terminal must double IAC.
func TestOutboundEscape(t *testing.T) {
	m, _ := newMachine(t, Options{Term: Term2741, Code: "none"})
	var iac byte
	found := false
	for i := range 256 {
		if xlat.EBCDICToASCII[i] == 0xff {
			iac = byte(i)
			found = true
			break
		}
	}
	if !found {
		t.Skip("No EBCDIC character maps to 0xff")
	}
	got := m.Outbound([]byte{iac, xlat.ASCIIToEBCDIC['A']})
	if !bytes.Equal(got, []byte{0xff, 0xff, 'A'}) {
		t.Errorf("IAC not doubled got: %02x", got)
	}
}

func TestSelectric(t *testing.T) {
	in := newSelectric()
	codes := in.Inbound([]byte("Ab"))
	expect := []byte{codeUpShift, 0x31, codeDownShift, 0x32}
	if !bytes.Equal(codes, expect) {
		t.Errorf("Inbound got: %02x expected: %02x", codes, expect)
	}

	text := []byte("Hello, World (2741) 12+3=15")
	out := newSelectric()
	got := out.Outbound(in.Inbound(text))
	if !bytes.Equal(got, text) {
		t.Errorf("Round trip got: %q expected: %q", got, text)
	}
	if got := out.Outbound([]byte{codeReturn, codeEOA, codeIdle}); string(got) != "\r\n" {
		t.Errorf("Control codes got: %q", got)
	}
}

func TestOverstrike(t *testing.T) {
	coder, err := NewTranscoder(TermRXVT, "ebcd")
	if err != nil {
		t.Fatalf("Unable to create transcoder: %v", err)
	}
	if !coder.EightBit() {
		t.Errorf("rxvt should pass eight bit characters")
	}
	codes := coder.Inbound([]byte{0xE8})
	expect := []byte{codeUpShift, 0x26, codeBackspace, 0x1A}
	if !bytes.Equal(codes, expect) {
		t.Errorf("Inbound got: %02x expected: %02x", codes, expect)
	}
	if got := coder.Outbound(codes); !bytes.Equal(got, []byte{0xE8}) {
		t.Errorf("Outbound got: %02x", got)
	}

	// Shift between strikes.
	codes = coder.Inbound([]byte{0xE9, 'x'})
	if got := coder.Outbound(codes); !bytes.Equal(got, []byte{0xE9, 'x'}) {
		t.Errorf("Outbound with shift got: %02x", got)
	}

	// Backspace without matching pair stays.
	codes = coder.Inbound([]byte("a\bb"))
	if got := coder.Outbound(codes); string(got) != "a\bb" {
		t.Errorf("Plain backspace got: %q", got)
	}
}

func TestParseTerm(t *testing.T) {
	tests := []struct {
		name string
		term TermKind
		ok   bool
	}{
		{"tty", TermTTY, true},
		{"2741", Term2741, true},
		{"RXVT", TermRXVT, true},
		{"3270", TermTTY, false},
	}
	for _, test := range tests {
		term, err := ParseTerm(test.name)
		if (err == nil) != test.ok {
			t.Errorf("ParseTerm(%s) error: %v", test.name, err)
			continue
		}
		if test.ok && term != test.term {
			t.Errorf("ParseTerm(%s) got: %s", test.name, term)
		}
	}
	if _, err := NewTranscoder(Term2741, "apl"); err == nil {
		t.Errorf("Unknown code table accepted")
	}
	if _, err := NewTranscoder(TermTTY, "ebcd"); err == nil {
		t.Errorf("Code table accepted for tty")
	}
}
