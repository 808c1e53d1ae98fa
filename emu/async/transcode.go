/*
 * Commadpt - Asynchronous terminal character translation
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
	"fmt"
	"strings"

	"github.com/rcornwell/commadpt/util/xlat"
)

// Kind of terminal attached to line.
type TermKind int

const (
	TermTTY  TermKind = iota // Teletype, ASCII bit reversed
	Term2741                 // IBM 2741 selectric
	TermRXVT                 // 2741 emulated by rxvt with APL font
)

func (t TermKind) String() string {
	switch t {
	case TermTTY:
		return "tty"
	case Term2741:
		return "2741"
	case TermRXVT:
		return "rxvt"
	}
	return "unknown"
}

// Convert name to terminal kind.
func ParseTerm(name string) (TermKind, error) {
	switch strings.ToLower(name) {
	case "tty", "":
		return TermTTY, nil
	case "2741":
		return Term2741, nil
	case "rxvt", "2741rxvt", "rxvt4apl":
		return TermRXVT, nil
	}
	return TermTTY, fmt.Errorf("unknown terminal type: %s", name)
}

// Transcoder converts between terminal characters and line code.
type Transcoder interface {
	Name() string
	EightBit() bool               // Input is not masked to 7 bits
	Inbound(line []byte) []byte   // Terminal characters to line code
	Outbound(codes []byte) []byte // Line code to terminal characters
}

// Select transcoder for terminal and code table.
func NewTranscoder(term TermKind, code string) (Transcoder, error) {
	code = strings.ToLower(code)
	switch term {
	case TermTTY:
		if code != "" && code != "tty" {
			return nil, fmt.Errorf("code table %s not valid for tty", code)
		}
		return &ttyCoder{}, nil
	case Term2741, TermRXVT:
		var coder Transcoder
		switch code {
		case "", "ebcd":
			coder = newSelectric()
		case "none":
			coder = &ebcdicCoder{}
		default:
			return nil, fmt.Errorf("unknown code table: %s", code)
		}
		if term == TermRXVT {
			if sel, ok := coder.(*selectric); ok {
				return newOverstrike(sel), nil
			}
		}
		return coder, nil
	}
	return nil, fmt.Errorf("unknown terminal type: %d", term)
}

// Teletype, line code is bit reversed ASCII with even parity.
type ttyCoder struct{}

func (*ttyCoder) Name() string {
	return "tty"
}

func (*ttyCoder) EightBit() bool {
	return false
}

func (*ttyCoder) Inbound(line []byte) []byte {
	out := make([]byte, len(line))
	for i, by := range line {
		out[i] = xlat.Reverse[xlat.EvenParity(by)]
	}
	return out
}

func (*ttyCoder) Outbound(codes []byte) []byte {
	out := make([]byte, len(codes))
	for i, by := range codes {
		out[i] = xlat.Reverse[by] & 0x7f
	}
	return out
}

// Line code is plain EBCDIC.
type ebcdicCoder struct{}

func (*ebcdicCoder) Name() string {
	return "none"
}

func (*ebcdicCoder) EightBit() bool {
	return true
}

func (*ebcdicCoder) Inbound(line []byte) []byte {
	out := make([]byte, len(line))
	for i, by := range line {
		out[i] = xlat.ASCIIToEBCDIC[by]
	}
	return out
}

func (*ebcdicCoder) Outbound(codes []byte) []byte {
	out := make([]byte, 0, len(codes))
	for _, by := range codes {
		if by == xlat.EBCDICNL {
			out = append(out, '\r', '\n')
			continue
		}
		out = append(out, xlat.EBCDICToASCII[by])
	}
	return out
}
