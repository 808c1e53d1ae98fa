/*
 * Commadpt - telnet test set.
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

package telnet

import (
	"bytes"
	"net"
	"testing"
	"time"
)

// Feed a buffer, return data bytes and tokens seen.
func feed(state *Session, input []byte) ([]byte, []Token) {
	data := []byte{}
	tokens := []Token{}
	for _, by := range input {
		tok := state.Feed(by)
		switch tok {
		case TokData:
			data = append(data, by)
		case TokNone:
		default:
			tokens = append(tokens, tok)
		}
	}
	return data, tokens
}

// Refuse policy answers with negatives.
func TestRefuse(t *testing.T) {
	state := NewSession(PolicyRefuse)
	if state.Start() != nil {
		t.Errorf("Refuse policy sent initial negotiation")
	}
	data, _ := feed(state, []byte{'A', tnIAC, tnWILL, tnOptionEcho, 'B', tnIAC, tnDO, tnOptionSGA, 'C'})
	if !bytes.Equal(data, []byte("ABC")) {
		t.Errorf("Data not correct got: %v", data)
	}
	expect := []byte{tnIAC, tnDONT, tnOptionEcho, tnIAC, tnWONT, tnOptionSGA}
	reply := state.Reply()
	if !bytes.Equal(reply, expect) {
		t.Errorf("Reply not correct got: %v expected: %v", reply, expect)
	}
	// Second request should not get a second answer.
	_, _ = feed(state, []byte{tnIAC, tnWILL, tnOptionEcho})
	if len(state.Reply()) != 0 {
		t.Errorf("Refusal repeated")
	}
}

// Commands split across buffers are still consumed.
func TestSplitCommand(t *testing.T) {
	state := NewSession(PolicyRefuse)
	data1, _ := feed(state, []byte{'x', tnIAC})
	data2, tok := feed(state, []byte{tnIP, tnIAC, tnIAC, 'y', tnIAC, tnNOP, 'z', tnIAC})
	data3, _ := feed(state, []byte{tnDO})
	data4, _ := feed(state, []byte{tnOptionBinary, 'w'})
	all := append(append(append(data1, data2...), data3...), data4...)
	if !bytes.Equal(all, []byte{'x', 0xff, 'y', 'z', 'w'}) {
		t.Errorf("Data not correct got: %v", all)
	}
	if len(tok) != 1 || tok[0] != TokIP {
		t.Errorf("Interrupt not reported: %v", tok)
	}
}

// Sub negotiation is skipped.
func TestSubNegotiation(t *testing.T) {
	state := NewSession(PolicyRefuse)
	data, _ := feed(state, []byte{'a', tnIAC, tnSB, tnOptionNAWS, 0, 80, 0, 24, tnIAC, tnSE, 'b'})
	if !bytes.Equal(data, []byte("ab")) {
		t.Errorf("Data not correct got: %v", data)
	}
}

// 3270 client negotiation.
func TestTerminal3270(t *testing.T) {
	state := NewSession(PolicyTerminal)
	start := state.Start()
	if !bytes.Equal(start, []byte{tnIAC, tnDO, tnOptionTerm}) {
		t.Errorf("Start not correct got: %v", start)
	}
	_, _ = feed(state, []byte{tnIAC, tnWILL, tnOptionTerm})
	reply := state.Reply()
	if !bytes.Equal(reply, []byte{tnIAC, tnSB, tnOptionTerm, tnSend, tnIAC, tnSE}) {
		t.Errorf("Term request not correct got: %v", reply)
	}
	input := []byte{tnIAC, tnSB, tnOptionTerm, tnIS}
	input = append(input, []byte("IBM-3278-2-E@tso")...)
	input = append(input, tnIAC, tnSE)
	_, tok := feed(state, input)
	if len(tok) != 1 || tok[0] != TokTerm {
		t.Fatalf("Terminal not reported: %v", tok)
	}
	if !state.Is3270 || state.Model != '2' || !state.ExtAttr {
		t.Errorf("Terminal not decoded model: %c 3270: %t ext: %t", state.Model, state.Is3270, state.ExtAttr)
	}
	if state.Group != "TSO" || state.TermType != "IBM-3278-2-E" {
		t.Errorf("Group not split got: %q type: %q", state.Group, state.TermType)
	}
	reply = state.Reply()
	expect := []byte{
		tnIAC, tnDO, tnOptionEOR, tnIAC, tnWILL, tnOptionEOR,
		tnIAC, tnDO, tnOptionBinary, tnIAC, tnWILL, tnOptionBinary,
	}
	if !bytes.Equal(reply, expect) {
		t.Errorf("3270 negotiation not correct got: %v", reply)
	}
	// Agreement should not cause more traffic.
	_, _ = feed(state, []byte{tnIAC, tnWILL, tnOptionEOR, tnIAC, tnDO, tnOptionBinary})
	if len(state.Reply()) != 0 {
		t.Errorf("Agreement caused reply")
	}
	_, tok = feed(state, []byte{1, 2, tnIAC, tnEOR})
	if len(tok) != 1 || tok[0] != TokEOR {
		t.Errorf("EOR not reported")
	}
}

// ANSI line mode client.
func TestTerminalANSI(t *testing.T) {
	state := NewSession(PolicyTerminal)
	_ = state.Start()
	input := []byte{tnIAC, tnSB, tnOptionTerm, tnIS}
	input = append(input, []byte("xterm")...)
	input = append(input, tnIAC, tnSE)
	_, _ = feed(state, input)
	if state.Is3270 || !state.ANSI {
		t.Errorf("ANSI terminal not detected")
	}
	reply := state.Reply()
	if !bytes.Equal(reply, []byte{tnIAC, tnWONT, tnOptionEcho, tnIAC, tnDONT, tnOptionEcho}) {
		t.Errorf("Echo negotiation not correct got: %v", reply)
	}

	// A dumb terminal does not get echo negotiation.
	state = NewSession(PolicyTerminal)
	input = []byte{tnIAC, tnSB, tnOptionTerm, tnIS}
	input = append(input, []byte("DUMB")...)
	input = append(input, tnIAC, tnSE)
	_, _ = feed(state, input)
	if len(state.Reply()) != 0 {
		t.Errorf("Dumb terminal got negotiation")
	}
}

// Escape and record framing.
func TestEscape(t *testing.T) {
	out := Record([]byte{1, 0xff, 2})
	if !bytes.Equal(out, []byte{1, 0xff, 0xff, 2, tnIAC, tnEOR}) {
		t.Errorf("Record not correct got: %v", out)
	}
}

// Two users of a port share one listener.
func TestListenShare(t *testing.T) {
	s1, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer Release(s1)
	address := s1.Addr().String()

	conn, err := net.Dial("tcp", address)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	select {
	case c := <-s1.Connection():
		c.Close()
	case <-time.After(2 * time.Second):
		t.Errorf("Connection not delivered")
	}
}
