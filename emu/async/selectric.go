/*
 * Commadpt - IBM 2741 selectric code tables
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
	"github.com/rcornwell/commadpt/util/xlat"
)

// Control codes of the 2741 EBCD code.
const (
	codeUpShift   = 0x1C
	codeBackspace = 0x1D
	codeDownShift = 0x1F
	codeLineFeed  = 0x2D
	codeIdle      = 0x2F
	codeEOA       = 0x3C
	codeReturn    = 0x3D
	codeTab       = 0x3E
	codeEOT       = 0x3F
	codeNone      = 0xFF
	codeMask      = 0x3F
)

type shift uint8

const (
	shiftAny shift = iota
	shiftLower
	shiftUpper
)

// Printing character for each shift of a type ball position.
type typeKey struct {
	lower byte
	upper byte
}

// EBCD code to printing characters, zero entries do not print.
var ebcdTable = [64]typeKey{
	0x00: {' ', ' '},
	0x01: {'1', '='},
	0x02: {'2', '<'},
	0x03: {'3', ';'},
	0x04: {'4', ':'},
	0x05: {'5', '%'},
	0x06: {'6', '['},
	0x07: {'7', '>'},
	0x08: {'8', '*'},
	0x09: {'9', '('},
	0x0A: {'0', ')'},
	0x0B: {'#', '"'},
	0x0C: {'@', '\''},
	0x11: {'/', '?'},
	0x12: {'s', 'S'},
	0x13: {'t', 'T'},
	0x14: {'u', 'U'},
	0x15: {'v', 'V'},
	0x16: {'w', 'W'},
	0x17: {'x', 'X'},
	0x18: {'y', 'Y'},
	0x19: {'z', 'Z'},
	0x1A: {'\\', '|'},
	0x1B: {',', ','},
	0x20: {'-', '_'},
	0x21: {'j', 'J'},
	0x22: {'k', 'K'},
	0x23: {'l', 'L'},
	0x24: {'m', 'M'},
	0x25: {'n', 'N'},
	0x26: {'o', 'O'},
	0x27: {'p', 'P'},
	0x28: {'q', 'Q'},
	0x29: {'r', 'R'},
	0x2A: {'^', '~'},
	0x2B: {'$', '!'},
	0x30: {'&', '+'},
	0x31: {'a', 'A'},
	0x32: {'b', 'B'},
	0x33: {'c', 'C'},
	0x34: {'d', 'D'},
	0x35: {'e', 'E'},
	0x36: {'f', 'F'},
	0x37: {'g', 'G'},
	0x38: {'h', 'H'},
	0x39: {'i', 'I'},
	0x3A: {'{', '}'},
	0x3B: {'.', ']'},
}

// 2741 with EBCD type ball. Terminal input goes through EBCDIC to
// find the type ball position.
type selectric struct {
	code     [256]byte  // EBCDIC to EBCD code
	shift    [256]shift // Shift needed for EBCDIC character
	inUpper  bool       // Shift state of terminal input
	outUpper bool       // Shift state of host output
}

func newSelectric() *selectric {
	sel := &selectric{}
	for i := range sel.code {
		sel.code[i] = codeNone
	}
	for code, key := range ebcdTable {
		if key.lower == 0 {
			continue
		}
		lower := xlat.ASCIIToEBCDIC[key.lower]
		upper := xlat.ASCIIToEBCDIC[key.upper]
		sel.code[lower] = byte(code)
		sel.code[upper] = byte(code)
		if lower == upper {
			sel.shift[lower] = shiftAny
		} else {
			sel.shift[lower] = shiftLower
			sel.shift[upper] = shiftUpper
		}
	}
	return sel
}

func (*selectric) Name() string {
	return "2741"
}

func (*selectric) EightBit() bool {
	return false
}

// Return both shift states to lower case.
func (sel *selectric) Reset() {
	sel.inUpper = false
	sel.outUpper = false
}

func (sel *selectric) Inbound(line []byte) []byte {
	out := make([]byte, 0, len(line)+4)
	for _, by := range line {
		switch by {
		case '\r':
			out = append(out, codeReturn)
			continue
		case '\n':
			out = append(out, codeLineFeed)
			continue
		case '\b':
			out = append(out, codeBackspace)
			continue
		case '\t':
			out = append(out, codeTab)
			continue
		}
		e := xlat.ASCIIToEBCDIC[by]
		code := sel.code[e]
		if code == codeNone {
			continue
		}
		switch sel.shift[e] {
		case shiftUpper:
			if !sel.inUpper {
				out = append(out, codeUpShift)
				sel.inUpper = true
			}
		case shiftLower:
			if sel.inUpper {
				out = append(out, codeDownShift)
				sel.inUpper = false
			}
		}
		out = append(out, code)
	}
	return out
}

func (sel *selectric) Outbound(codes []byte) []byte {
	out := make([]byte, 0, len(codes))
	for _, code := range codes {
		out = sel.outCode(out, code)
	}
	return out
}

// Translate one code from host, updating shift state.
func (sel *selectric) outCode(out []byte, code byte) []byte {
	code &= codeMask
	switch code {
	case codeUpShift:
		sel.outUpper = true
	case codeDownShift:
		sel.outUpper = false
	case codeReturn:
		out = append(out, '\r', '\n')
	case codeLineFeed:
		out = append(out, '\n')
	case codeBackspace:
		out = append(out, '\b')
	case codeTab:
		out = append(out, '\t')
	case codeEOA, codeEOT, codeIdle:
	default:
		key := ebcdTable[code]
		if key.lower == 0 {
			break
		}
		if sel.outUpper {
			out = append(out, key.upper)
		} else {
			out = append(out, key.lower)
		}
	}
	return out
}

// Overstruck pairs shown as one character by an APL terminal font.
var aplOverstrike = []struct {
	first    byte
	second   byte
	composed byte
}{
	{'O', '|', 0xE8},  // Reverse
	{'O', '-', 0xE9},  // Reverse first axis
	{'O', '*', 0xEA},  // Logarithm
	{'\'', '.', 0xEB}, // Factorial
	{'/', '-', 0xEC},  // Reduce first axis
	{'\\', '-', 0xED}, // Scan first axis
	{'[', ']', 0xEE},  // Squad
	{'A', '_', 0xEF},  // Underscored A
}

// 2741 displayed on rxvt with an APL font. Strike, backspace, strike
// sequences are shown as a single eight bit character.
type overstrike struct {
	*selectric
	pairs map[[2]byte]byte // Code pair to composed character
	split map[byte][2]byte // Composed character to terminal pair
}

func newOverstrike(sel *selectric) *overstrike {
	ovr := &overstrike{
		selectric: sel,
		pairs:     make(map[[2]byte]byte),
		split:     make(map[byte][2]byte),
	}
	for _, o := range aplOverstrike {
		first := sel.code[xlat.ASCIIToEBCDIC[o.first]]
		second := sel.code[xlat.ASCIIToEBCDIC[o.second]]
		ovr.pairs[[2]byte{first, second}] = o.composed
		ovr.split[o.composed] = [2]byte{o.first, o.second}
	}
	return ovr
}

func (*overstrike) Name() string {
	return "rxvt"
}

func (*overstrike) EightBit() bool {
	return true
}

func (ovr *overstrike) Inbound(line []byte) []byte {
	expanded := make([]byte, 0, len(line))
	for _, by := range line {
		if pair, ok := ovr.split[by]; ok {
			expanded = append(expanded, pair[0], '\b', pair[1])
			continue
		}
		expanded = append(expanded, by)
	}
	return ovr.selectric.Inbound(expanded)
}

func (ovr *overstrike) Outbound(codes []byte) []byte {
	out := make([]byte, 0, len(codes))
	for i := 0; i < len(codes); i++ {
		if i+2 < len(codes) && codes[i+1]&codeMask == codeBackspace {
			// Shift changes may sit between backspace and second strike.
			j := i + 2
			for j < len(codes) && isShift(codes[j]) {
				j++
			}
			if j < len(codes) {
				key := [2]byte{codes[i] & codeMask, codes[j] & codeMask}
				if composed, ok := ovr.pairs[key]; ok {
					for _, code := range codes[i+2 : j] {
						out = ovr.outCode(out, code)
					}
					out = append(out, composed)
					i = j
					continue
				}
			}
		}
		out = ovr.outCode(out, codes[i])
	}
	return out
}

func isShift(code byte) bool {
	code &= codeMask
	return code == codeUpShift || code == codeDownShift
}
