/*
 * Commadpt - Binary synchronous line control test set.
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

package bsc

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/rcornwell/commadpt/util/ring"
)

// Run buffer through machine, return retained data and where read finished.
func run(m *Machine, input []byte) ([]byte, int, bool) {
	out := ring.New(1024)
	for i, by := range input {
		done, eot := m.Feed(by, out)
		if done {
			return out.Bytes(), i + 1, eot
		}
	}
	return out.Bytes(), -1, false
}

// Normal text block ends on ETX.
func TestTextBlock(t *testing.T) {
	m := Machine{}
	input := []byte{SYN, SYN, STX, 0xc1, 0xc2, ETX, 0xc3}
	data, end, eot := run(&m, input)
	if end != 6 {
		t.Errorf("Read did not finish at ETX got: %d", end)
	}
	if eot {
		t.Errorf("EOT reported on text block")
	}
	if !bytes.Equal(data, []byte{STX, 0xc1, 0xc2, ETX}) {
		t.Errorf("Retained data not correct got: %v", data)
	}
	if m.Text {
		t.Errorf("Still in text mode after ETX")
	}
}

// Control characters finish a read.
func TestControl(t *testing.T) {
	tests := []struct {
		input []byte
		end   int
		eot   bool
	}{
		{[]byte{0xc1, ENQ}, 2, false},
		{[]byte{NAK}, 1, false},
		{[]byte{STX, 0xc1, ETB}, 3, false},
		{[]byte{EOT}, 1, true},
		{[]byte{DLE, 0x70}, 2, false},
		{[]byte{STX, 0xc1, ITB, STX, 0xc2, ETX}, 6, false},
	}
	for i, test := range tests {
		m := Machine{}
		_, end, eot := run(&m, test.input)
		if end != test.end || eot != test.eot {
			t.Errorf("Test %d got end: %d eot: %t expected end: %d eot: %t", i, end, eot, test.end, test.eot)
		}
	}
}

// Transparent text keeps control characters as data.
func TestTransparent(t *testing.T) {
	m := Machine{}
	input := []byte{DLE, STX, ETX, ENQ, DLE, DLE, EOT, DLE, ETB, 0xc1}
	data, end, eot := run(&m, input)
	if end != 9 || eot {
		t.Errorf("Transparent block did not end on DLE ETB got: %d", end)
	}
	if !bytes.Equal(data, input[:9]) {
		t.Errorf("Retained data not correct got: %v", data)
	}
	if m.Transparent {
		t.Errorf("Still transparent after DLE ETB")
	}
}

// EIB mode inserts error byte after transparent block.
func TestEIB(t *testing.T) {
	m := Machine{EIB: true}
	data, _, _ := run(&m, []byte{DLE, STX, 0x01, DLE, ITB, DLE, STX, 0x02, DLE, ETX})
	expect := []byte{DLE, STX, 0x01, DLE, ITB, EIB, DLE, STX, 0x02, DLE, ETX, EIB}
	if !bytes.Equal(data, expect) {
		t.Errorf("EIB data not correct got: %v expected: %v", data, expect)
	}
}

// Encode then decode gives back same blocks.
func TestRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for range 200 {
		blocks := []Block{}
		for range rnd.Intn(4) + 1 {
			block := Block{Transparent: rnd.Intn(2) == 0, Data: []byte{}}
			for range rnd.Intn(40) {
				if block.Transparent {
					by := byte(rnd.Intn(256))
					if rnd.Intn(4) == 0 {
						by = DLE
					}
					block.Data = append(block.Data, by)
				} else {
					block.Data = append(block.Data, byte(0xc1+rnd.Intn(9)))
				}
			}
			blocks = append(blocks, block)
		}
		frame := Encode(blocks)
		result, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode failed: %v frame: %v", err, frame)
		}
		if len(result) != len(blocks) {
			t.Fatalf("Block count wrong got: %d expected: %d", len(result), len(blocks))
		}
		for i := range blocks {
			if result[i].Transparent != blocks[i].Transparent || !bytes.Equal(result[i].Data, blocks[i].Data) {
				t.Fatalf("Block %d not same got: %v expected: %v", i, result[i], blocks[i])
			}
		}

		// Machine must see one complete read for whole frame.
		m := Machine{}
		_, end, _ := run(&m, frame)
		if end != len(frame) {
			t.Fatalf("Machine ended at %d frame length %d", end, len(frame))
		}
	}
}

// Bad frames are rejected.
func TestDecodeBad(t *testing.T) {
	if _, err := Decode([]byte{0xc1, ETX}); err == nil {
		t.Errorf("Frame without STX accepted")
	}
	if _, err := Decode([]byte{DLE, STX, 0xc1}); err == nil {
		t.Errorf("Frame without end accepted")
	}
	if _, err := Decode([]byte{DLE, STX, DLE, 0xc1}); err == nil {
		t.Errorf("Frame with bad DLE sequence accepted")
	}
}

// Poll list parsing.
func TestPollList(t *testing.T) {
	entries, err := ParsePollList([]byte{0x40, 0x40, ENQ, 0xc1, 0xc1, ENQ})
	if err != nil {
		t.Fatalf("Poll list rejected: %v", err)
	}
	if len(entries) != 2 || !bytes.Equal(entries[1], []byte{0xc1, 0xc1}) {
		t.Errorf("Poll entries not correct: %v", entries)
	}
	_, err = ParsePollList([]byte{1, 2, 3, 4, 5, 6, 7, ENQ})
	if err != nil {
		t.Errorf("Seven byte address rejected")
	}
	_, err = ParsePollList([]byte{1, 2, 3, 4, 5, 6, 7, 8, ENQ})
	if err == nil {
		t.Errorf("Eight byte address accepted")
	}
	_, err = ParsePollList([]byte{0x40, 0x40})
	if err == nil {
		t.Errorf("Poll without ENQ accepted")
	}
	seq := PollSequence([]byte{0x40, 0x40})
	if !bytes.Equal(seq, []byte{SYN, SYN, 0x40, 0x40, ENQ}) {
		t.Errorf("Poll sequence not correct: %v", seq)
	}
}
