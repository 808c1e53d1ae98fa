/*
 * Commadpt - Character translation tables
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

package xlat

import (
	"math/bits"

	"golang.org/x/text/encoding/charmap"
)

// EBCDIC new line.
const EBCDICNL byte = 0x15

var (
	// Translate EBCDIC (code page 037) to ISO-8859-1.
	EBCDICToASCII [256]byte

	// Translate ISO-8859-1 to EBCDIC (code page 037).
	ASCIIToEBCDIC [256]byte

	// Bit reversed byte.
	Reverse [256]byte
)

func init() {
	cp := charmap.CodePage037
	for i := range 256 {
		r := cp.DecodeByte(byte(i))
		if r < 256 {
			EBCDICToASCII[i] = byte(r)
		}
		Reverse[i] = bits.Reverse8(byte(i))
	}
	for i := range 256 {
		by, ok := cp.EncodeRune(rune(i))
		if !ok {
			by = 0x3f // EBCDIC substitute
		}
		ASCIIToEBCDIC[i] = by
	}
	// Host new line shows up as line feed.
	EBCDICToASCII[EBCDICNL] = '\n'
}

// Add even parity in high bit to 7 bit character.
func EvenParity(by byte) byte {
	by &= 0x7f
	if bits.OnesCount8(by)&1 != 0 {
		by |= 0x80
	}
	return by
}

// Convert a string into EBCDIC.
func StringToEBCDIC(str string) []byte {
	out := make([]byte, len(str))
	for i := range len(str) {
		out[i] = ASCIIToEBCDIC[str[i]]
	}
	return out
}

// Convert EBCDIC buffer to ASCII string.
func EBCDICToString(data []byte) string {
	out := make([]byte, len(data))
	for i, by := range data {
		out[i] = EBCDICToASCII[by]
	}
	return string(out)
}
