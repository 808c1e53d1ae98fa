/*
 * Commadpt - Binary synchronous line control
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
	"errors"

	"github.com/rcornwell/commadpt/util/ring"
)

// BSC control characters in EBCDIC line code.
const (
	SOH byte = 0x01 // Start of heading
	STX byte = 0x02 // Start of text
	ETX byte = 0x03 // End of text
	DLE byte = 0x10 // Data link escape
	ITB byte = 0x1f // End of intermediate block
	ETB byte = 0x26 // End of transmission block
	ENQ byte = 0x2d // Enquiry
	SYN byte = 0x32 // Synchronous idle
	EOT byte = 0x37 // End of transmission
	NAK byte = 0x3d // Negative acknowledge
	EIB byte = 0x00 // Error information byte, no errors

	// Longest poll address.
	MaxPollAddr = 7
)

var (
	ErrBadPoll  = errors.New("poll list entry not terminated by ENQ")
	ErrBadFrame = errors.New("malformed BSC frame")
)

// Machine tracks framing state of data received from line.
type Machine struct {
	Text        bool // Inside a text block
	Transparent bool // Inside transparent text
	EIB         bool // Insert EIB after transparent block end
	dle         bool // Last byte was DLE
}

// Reset to idle state.
func (m *Machine) Reset() {
	m.Text = false
	m.Transparent = false
	m.dle = false
}

// Process one byte, retained bytes are pushed on out. Returns done when a
// read should complete, eot when end of transmission was received.
func (m *Machine) Feed(by byte, out *ring.Ring) (done bool, eot bool) {
	if m.dle {
		m.dle = false
		out.Push(by)
		if m.Transparent {
			switch by {
			case STX:
				// Restart of transparent text.
			case ITB:
				m.Transparent = false
				m.insertEIB(out)
			case ETB, ETX:
				m.Transparent = false
				m.Text = false
				m.insertEIB(out)
				return true, false
			case ENQ:
				// Transparent text aborted.
				m.Transparent = false
				m.Text = false
				return true, false
			}
			// DLE DLE is a data DLE.
			return false, false
		}
		if by == STX {
			m.Text = true
			m.Transparent = true
			return false, false
		}
		// ACK0, ACK1, WACK, RVI.
		m.Text = false
		return true, false
	}

	if by == DLE {
		m.dle = true
		out.Push(by)
		return false, false
	}

	if m.Transparent {
		out.Push(by)
		return false, false
	}

	switch by {
	case SYN:
		// Idle fill outside transparent text is dropped.
		return false, false
	case SOH, STX:
		m.Text = true
	case ITB:
		// Another block follows.
	case ETB, ETX:
		m.Text = false
		out.Push(by)
		return true, false
	case ENQ, NAK:
		m.Text = false
		out.Push(by)
		return true, false
	case EOT:
		m.Text = false
		out.Push(by)
		return true, true
	}
	out.Push(by)
	return false, false
}

func (m *Machine) insertEIB(out *ring.Ring) {
	if m.EIB {
		out.Push(EIB)
	}
}

// Track state from data sent to line. EOT puts the line back to idle.
func (m *Machine) Outbound(data []byte) {
	for _, by := range data {
		if by == EOT {
			m.Reset()
		}
	}
}

// Block of text, either normal or transparent.
type Block struct {
	Transparent bool
	Data        []byte
}

// Encode blocks into a transmission. Blocks are separated by ITB and the
// last one ends with ETX. Transparent blocks have DLE doubled.
func Encode(blocks []Block) []byte {
	out := []byte{SYN, SYN}
	for i, block := range blocks {
		end := ITB
		if i == len(blocks)-1 {
			end = ETX
		}
		if block.Transparent {
			out = append(out, DLE, STX)
			for _, by := range block.Data {
				if by == DLE {
					out = append(out, DLE)
				}
				out = append(out, by)
			}
			out = append(out, DLE, end)
			continue
		}
		out = append(out, STX)
		out = append(out, block.Data...)
		out = append(out, end)
	}
	return out
}

// Decode a transmission back into blocks.
func Decode(frame []byte) ([]Block, error) {
	blocks := []Block{}
	i := 0
	for {
		// Skip idle characters.
		for i < len(frame) && frame[i] == SYN {
			i++
		}
		if i >= len(frame) {
			return blocks, ErrBadFrame
		}
		block := Block{Data: []byte{}}
		switch {
		case frame[i] == STX:
			i++
		case frame[i] == DLE && i+1 < len(frame) && frame[i+1] == STX:
			block.Transparent = true
			i += 2
		default:
			return blocks, ErrBadFrame
		}

		end := byte(0)
		for end == 0 {
			if i >= len(frame) {
				return blocks, ErrBadFrame
			}
			by := frame[i]
			i++
			if block.Transparent {
				if by != DLE {
					block.Data = append(block.Data, by)
					continue
				}
				if i >= len(frame) {
					return blocks, ErrBadFrame
				}
				by = frame[i]
				i++
				switch by {
				case DLE:
					block.Data = append(block.Data, DLE)
				case ITB, ETB, ETX:
					end = by
				default:
					return blocks, ErrBadFrame
				}
				continue
			}
			switch by {
			case ITB, ETB, ETX:
				end = by
			default:
				block.Data = append(block.Data, by)
			}
		}
		blocks = append(blocks, block)
		if end != ITB {
			return blocks, nil
		}
	}
}

// Split a poll list into station addresses. Each entry is at most seven
// address bytes followed by ENQ.
func ParsePollList(data []byte) ([][]byte, error) {
	entries := [][]byte{}
	start := 0
	for start < len(data) {
		found := false
		for i := start; i < len(data) && i <= start+MaxPollAddr; i++ {
			if data[i] == ENQ {
				entries = append(entries, data[start:i])
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, ErrBadPoll
		}
	}
	if len(entries) == 0 {
		return nil, ErrBadPoll
	}
	return entries, nil
}

// Build the line sequence for polling one station.
func PollSequence(address []byte) []byte {
	out := make([]byte, 0, len(address)+3)
	out = append(out, SYN, SYN)
	out = append(out, address...)
	return append(out, ENQ)
}
