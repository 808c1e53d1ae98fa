/*
 * Commadpt - telnet option negotiation
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
	"strings"
)

// Telnet protocol constants.

const (
	tnIAC   byte = 255 // protocol delim
	tnDONT  byte = 254 // dont
	tnDO    byte = 253 // do
	tnWONT  byte = 252 // wont
	tnWILL  byte = 251 // will
	tnSB    byte = 250 // Sub negotiations begin
	tnGA    byte = 249 // Go ahead
	tnIP    byte = 244 // Interrupt process
	tnBRK   byte = 243 // break
	tnNOP   byte = 241 // no operation
	tnSE    byte = 240 // Sub negotiations end
	tnEOR   byte = 239 // End of record
	tnIS    byte = 0
	tnSend  byte = 1

	// Telnet line states.

	tnStateData int = 1 + iota // normal
	tnStateIAC                 // IAC seen
	tnStateWILL                // WILL seen
	tnStateDO                  // DO seen
	tnStateDONT                // DONT seen
	tnStateWONT                // WONT seen
	tnStateSB                  // Start of SB expect type
	tnStateSE                  // Waiting for SE
	tnStateSEIAC               // IAC seen waiting for SE
	tnStateSBIS                // Waiting for IS
	tnStateSTerm               // Grab terminal type

	// Telnet options.
	tnOptionBinary byte = 0  // Binary data transfer
	tnOptionEcho   byte = 1  // Echo
	tnOptionSGA    byte = 3  // Send Go Ahead
	tnOptionTerm   byte = 24 // Request Terminal Type
	tnOptionEOR    byte = 25 // Handle end of record
	tnOptionNAWS   byte = 31 // Negotiate about terminal size
	tnOptionLINE   byte = 34 // line mode
	tnOptionENV    byte = 39 // Environment

	// Telnet flags.
	tnFlagDo   uint8 = 0x01 // Do sent
	tnFlagDont uint8 = 0x02 // Don't sent
	tnFlagWill uint8 = 0x04 // Will sent
	tnFlagWont uint8 = 0x08 // Wont sent
	tnFlagPeer uint8 = 0x10 // Peer agreed
)

// Exported protocol bytes.
const (
	IAC = tnIAC
	IP  = tnIP
	BRK = tnBRK
	EOR = tnEOR
)

// Negotiation policy for session.
type Policy int

const (
	// Refuse every option the client offers.
	PolicyRefuse Policy = iota
	// Ask for terminal type and switch 3270 clients into binary record mode.
	PolicyTerminal
)

// Token returned from feeding one byte.
type Token int

const (
	TokNone  Token = iota // Byte consumed by protocol
	TokData               // Byte is data
	TokIP                 // Interrupt process
	TokBreak              // Break
	TokEOR                // End of record
	TokTerm               // Terminal type known
)

// Convert option number to string.
func optName(opt byte) string {
	switch opt {
	case tnOptionBinary:
		return "bin"
	case tnOptionEcho:
		return "echo"
	case tnOptionSGA:
		return "sga"
	case tnOptionTerm:
		return "term"
	case tnOptionEOR:
		return "eor"
	case tnOptionNAWS:
		return "naws"
	case tnOptionLINE:
		return "line"
	case tnOptionENV:
		return "env"
	}
	return "unknown"
}

// Session holds telnet state for one connection.
type Session struct {
	optionState [256]uint8 // Current state of telnet options
	sbtype      byte       // Type of SB being received
	state       int        // Current line State
	policy      Policy     // How to answer requests
	term        []byte     // Terminal type being collected
	reply       []byte     // Pending replies to send
	TermType    string     // Terminal type reported by client
	Model       byte       // 3270 model, 0 for line mode
	ExtAttr     bool       // Extended attributes
	Group       string     // Group user asked for
	Is3270      bool       // Client is a 3270
	ANSI        bool       // Client is an ANSI type terminal
	Trace       func(format string, a ...any)
}

// Create new telnet session.
func NewSession(policy Policy) *Session {
	return &Session{state: tnStateData, policy: policy}
}

// Return initial negotiation to send to client.
func (state *Session) Start() []byte {
	if state.policy != PolicyTerminal {
		return nil
	}
	state.sendOption(tnDO, tnOptionTerm)
	return state.Reply()
}

// Return and clear pending replies.
func (state *Session) Reply() []byte {
	out := state.reply
	state.reply = nil
	return out
}

// Reset to data state, used after interrupt.
func (state *Session) Reset() {
	state.state = tnStateData
}

func (state *Session) trace(format string, a ...any) {
	if state.Trace != nil {
		state.Trace(format, a...)
	}
}

// Queue an option response, and remember what we sent.
func (state *Session) sendOption(setState, option byte) {
	state.reply = append(state.reply, tnIAC, setState, option)
	state.trace("send %s %s", cmdName(setState), optName(option))
	switch setState {
	case tnWILL:
		state.optionState[option] |= tnFlagWill
	case tnWONT:
		state.optionState[option] |= tnFlagWont
	case tnDO:
		state.optionState[option] |= tnFlagDo
	case tnDONT:
		state.optionState[option] |= tnFlagDont
	}
}

// Refuse an option only once.
func (state *Session) refuse(setState, option byte) {
	flag := tnFlagWont
	if setState == tnDONT {
		flag = tnFlagDont
	}
	if (state.optionState[option] & flag) == 0 {
		state.sendOption(setState, option)
	}
}

// Handle DO request.
func (state *Session) handleDO(input byte) {
	if state.policy == PolicyTerminal && state.Is3270 {
		switch input {
		case tnOptionEOR, tnOptionBinary:
			state.optionState[input] |= tnFlagPeer
			if (state.optionState[input] & tnFlagWill) == 0 {
				state.sendOption(tnWILL, input)
			}
			return
		}
	}
	state.refuse(tnWONT, input)
}

// Handle WILL request.
func (state *Session) handleWILL(input byte) {
	if state.policy == PolicyTerminal {
		switch input {
		case tnOptionTerm:
			if (state.optionState[input] & tnFlagPeer) == 0 {
				state.optionState[input] |= tnFlagPeer
				state.trace("send term request")
				state.reply = append(state.reply, tnIAC, tnSB, tnOptionTerm, tnSend, tnIAC, tnSE)
			}
			return
		case tnOptionEOR, tnOptionBinary:
			if state.Is3270 {
				state.optionState[input] |= tnFlagPeer
				if (state.optionState[input] & tnFlagDo) == 0 {
					state.sendOption(tnDO, input)
				}
				return
			}
		}
	}
	state.refuse(tnDONT, input)
}

// Handle end of sub negotiation.
func (state *Session) handleSE() Token {
	if state.sbtype != tnOptionTerm {
		return TokNone
	}
	state.determineTerm(state.term)
	state.term = nil
	state.trace("terminal %s model: %c 3270: %t", state.TermType, state.Model, state.Is3270)
	if state.Is3270 {
		state.sendOption(tnDO, tnOptionEOR)
		state.sendOption(tnWILL, tnOptionEOR)
		state.sendOption(tnDO, tnOptionBinary)
		state.sendOption(tnWILL, tnOptionBinary)
	} else if state.ANSI {
		state.sendOption(tnWONT, tnOptionEcho)
		state.sendOption(tnDONT, tnOptionEcho)
	}
	return TokTerm
}

// Process one byte of input.
func (state *Session) Feed(input byte) Token {
	switch state.state {
	case tnStateData: // normal
		if input == tnIAC {
			state.state = tnStateIAC
			return TokNone
		}
		return TokData

	case tnStateIAC: // IAC seen
		state.state = tnStateData
		switch input {
		case tnIAC:
			return TokData
		case tnBRK:
			state.trace("BRK")
			return TokBreak
		case tnIP:
			state.trace("IP")
			return TokIP
		case tnEOR:
			return TokEOR
		case tnWILL:
			state.state = tnStateWILL
		case tnWONT:
			state.state = tnStateWONT
		case tnDO:
			state.state = tnStateDO
		case tnDONT:
			state.state = tnStateDONT
		case tnSB:
			state.state = tnStateSB
		default:
			state.trace("IAC Char: %02x", input)
		}
		return TokNone

	case tnStateWILL: // WILL seen
		state.trace("Will %s", optName(input))
		state.handleWILL(input)
		state.state = tnStateData

	case tnStateWONT: // WONT seen
		state.trace("Wont %s", optName(input))
		state.optionState[input] &^= tnFlagPeer
		state.state = tnStateData

	case tnStateDO: // DO seen
		state.trace("Do %s", optName(input))
		state.handleDO(input)
		state.state = tnStateData

	case tnStateDONT:
		state.trace("Dont %s", optName(input))
		state.optionState[input] &^= tnFlagPeer
		state.state = tnStateData

	case tnStateSB: // Start of SB expect type
		state.sbtype = input
		state.state = tnStateSBIS

	case tnStateSBIS: // Waiting for IS
		if state.sbtype == tnOptionTerm && input == tnIS {
			state.term = state.term[:0]
			state.state = tnStateSTerm
		} else {
			state.state = tnStateSE
		}

	case tnStateSTerm:
		if input == tnIAC {
			state.state = tnStateSEIAC
		} else {
			state.term = append(state.term, input)
		}

	case tnStateSE:
		if input == tnIAC {
			state.state = tnStateSEIAC
		}

	case tnStateSEIAC:
		state.state = tnStateSE
		if input == tnSE {
			state.state = tnStateData
			return state.handleSE()
		}
	}
	return TokNone
}

// Map of terminal types that support 3270 protocol.
var term3270 = map[string]byte{
	"3277": '2', "3270": '2', "3178": '2', "3278": '2', "3179": '2', "3180": '2', "3287": '2', "3279": '2',
}

// Prefixes of terminal types that are ANSI terminals.
var ansiTerms = []string{"ANSI", "VT", "XTERM", "LINUX", "SCREEN", "TMUX", "RXVT"}

// Determine type of terminal.
func (state *Session) determineTerm(termType []byte) {
	termStr := strings.ToUpper(string(termType))
	if i := strings.Index(termStr, "@"); i >= 0 {
		state.Group = termStr[i+1:]
		termStr = termStr[:i]
	}
	state.TermType = termStr
	state.Model = 0
	state.Is3270 = false
	state.ExtAttr = false
	state.ANSI = false
	for _, prefix := range ansiTerms {
		if strings.HasPrefix(termStr, prefix) {
			state.ANSI = true
			return
		}
	}
	if !strings.HasPrefix(termStr, "IBM-") {
		return
	}
	if termStr == "IBM-DYNAMIC" {
		state.Model = '2'
		state.Is3270 = true
		return
	}
	if len(termStr) < 8 {
		return
	}
	model, ok := term3270[termStr[4:8]]
	if !ok {
		return
	}
	state.Model = model
	state.Is3270 = true
	if len(termStr) < 10 || termStr[8] != '-' {
		return
	}
	if termStr[9] < '1' || termStr[9] > '5' {
		return
	}
	state.Model = termStr[9]
	if termStr[4:7] == "328" {
		state.Model = '2'
	}
	if strings.HasSuffix(termStr, "-E") {
		state.ExtAttr = true
	}
}

// Double any IAC characters in data.
func Escape(data []byte) []byte {
	out := make([]byte, 0, len(data)+4)
	for _, by := range data {
		if by == tnIAC {
			out = append(out, tnIAC)
		}
		out = append(out, by)
	}
	return out
}

// Escape a 3270 record and terminate it with IAC EOR.
func Record(data []byte) []byte {
	return append(Escape(data), tnIAC, tnEOR)
}

func cmdName(cmd byte) string {
	switch cmd {
	case tnWILL:
		return "WILL"
	case tnWONT:
		return "WONT"
	case tnDO:
		return "DO"
	case tnDONT:
		return "DONT"
	}
	return "?"
}
