/*
 * Commadpt - Channel device definitions
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

const (
	// Channel status bits.
	CStatusAttn   uint8 = 0x80 // Unit attention
	CStatusSMS    uint8 = 0x40 // Status modifier
	CStatusCtlEnd uint8 = 0x20 // Control unit end
	CStatusBusy   uint8 = 0x10 // Unit Busy
	CStatusChnEnd uint8 = 0x08 // Channel end
	CStatusDevEnd uint8 = 0x04 // Device end
	CStatusCheck  uint8 = 0x02 // Unit check
	CStatusExpt   uint8 = 0x01 // Unit exception

	// Common ending status.
	StatusEnd = CStatusChnEnd | CStatusDevEnd

	// Basic sense information.
	SenseCMDREJ   uint8 = 0x80 // Command reject
	SenseINTVENT  uint8 = 0x40 // Unit intervention required
	SenseBUSCHK   uint8 = 0x20 // Parity error on bus
	SenseEQUCHK   uint8 = 0x10 // Equipment check
	SenseDATCHK   uint8 = 0x08 // Data Check
	SenseOVRRUN   uint8 = 0x04 // Data lost
	SenseRECEIVE  uint8 = 0x02 // Receiving when write issued
	SenseTIMEOUT  uint8 = 0x01 // Timeout on line
	SenseBADFRAME       = SenseCMDREJ | SenseDATCHK

	// Line adapter commands.
	CmdWrite   uint8 = 0x01 // Write data
	CmdRead    uint8 = 0x02 // Read data
	CmdNOP     uint8 = 0x03 // No operation
	CmdSense   uint8 = 0x04 // Sense
	CmdPrepare uint8 = 0x06 // Wait for data
	CmdPoll    uint8 = 0x09 // BSC poll
	CmdSetMode uint8 = 0x23 // BSC set mode
	CmdEnable  uint8 = 0x27 // Enable line
	CmdDial    uint8 = 0x29 // Dial out
	CmdDisable uint8 = 0x2f // Disable line
	CmdSenseID uint8 = 0xe4 // Sense ID

	NoDev uint16 = 0xffff // Code for no device
)

// Result of executing one channel command.
type Result struct {
	Status   uint8 // Channel status bits.
	Sense    uint8 // Sense bits, valid with unit check.
	Residual int   // Count not transferred.
	More     bool  // Device has more data.
}

// Interface for devices driven by host channel program.
type Device interface {
	Execute(cmd uint8, data []byte, count int) Result
	Halt()
	AttentionPending() bool
	Query() string
	Close() error
}

// Return printable name of command.
func CmdName(cmd uint8) string {
	switch cmd {
	case CmdWrite:
		return "WRITE"
	case CmdRead:
		return "READ"
	case CmdNOP:
		return "NOP"
	case CmdSense:
		return "SENSE"
	case CmdPrepare:
		return "PREPARE"
	case CmdPoll:
		return "POLL"
	case CmdSetMode:
		return "SETMODE"
	case CmdEnable:
		return "ENABLE"
	case CmdDial:
		return "DIAL"
	case CmdDisable:
		return "DISABLE"
	case CmdSenseID:
		return "SENSEID"
	}
	return "UNKNOWN"
}
