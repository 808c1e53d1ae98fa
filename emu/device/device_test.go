/*
 * Commadpt - Device definitions test set.
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

package device

import "testing"

func TestCmdName(t *testing.T) {
	names := map[uint8]string{
		CmdWrite:   "WRITE",
		CmdRead:    "READ",
		CmdPoll:    "POLL",
		CmdSetMode: "SETMODE",
		CmdSenseID: "SENSEID",
		0xff:       "UNKNOWN",
	}
	for cmd, name := range names {
		if got := CmdName(cmd); got != name {
			t.Errorf("Command %02x got %s expected %s", cmd, got, name)
		}
	}
	if SenseBADFRAME != 0x88 {
		t.Errorf("Bad frame sense got %02x", SenseBADFRAME)
	}
}
