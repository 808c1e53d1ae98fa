/*
 * Commadpt - Hex formatting test set.
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

package hex

import (
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	var str strings.Builder
	FormatByte(&str, 0x0c)
	FormatBytes(&str, false, []byte{0x02, 0xc1, 0x03})
	if str.String() != "0C02C103" {
		t.Errorf("Format got: %s", str.String())
	}
	if got := Bytes([]byte{0x2d, 0xff}); got != "2D FF" {
		t.Errorf("Bytes got: %s", got)
	}
	if got := Bytes(nil); got != "" {
		t.Errorf("Bytes of nothing got: %s", got)
	}
}
