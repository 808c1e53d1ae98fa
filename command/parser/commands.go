/*
 * Commadpt - Console commands
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

package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rcornwell/commadpt/config/debugconfig"
	"github.com/rcornwell/commadpt/emu/bsc"
	"github.com/rcornwell/commadpt/emu/device"
	ln "github.com/rcornwell/commadpt/emu/line"
	"github.com/rcornwell/commadpt/util/hex"
	"github.com/rcornwell/commadpt/util/xlat"
)

const readSize = 4096

var cmdList = []cmd{
	{Name: "show", Min: 2, Process: show, Complete: lineComplete},
	{Name: "enable", Min: 2, Process: enable, Complete: lineComplete},
	{Name: "disable", Min: 3, Process: disable, Complete: lineComplete},
	{Name: "dial", Min: 3, Process: dial, Complete: lineComplete},
	{Name: "prepare", Min: 2, Process: prepare, Complete: lineComplete},
	{Name: "read", Min: 1, Process: read, Complete: lineComplete},
	{Name: "write", Min: 1, Process: write, Complete: lineComplete},
	{Name: "poll", Min: 2, Process: poll, Complete: lineComplete},
	{Name: "sense", Min: 2, Process: sense, Complete: lineComplete},
	{Name: "halt", Min: 1, Process: halt, Complete: lineComplete},
	{Name: "debug", Min: 3, Process: setDebug, Complete: lineComplete},
	{Name: "quit", Min: 4, Process: quit},
}

// Get line from address on command line.
func (line *cmdLine) getLine() (*ln.Line, error) {
	addr, err := line.getHex()
	if err != nil {
		return nil, err
	}
	return ln.Get(addr)
}

// Make sure nothing follows command.
func (line *cmdLine) done() error {
	line.skipSpace()
	if !line.isEOL() {
		return errors.New("extra text after command: " + line.rest())
	}
	return nil
}

// Print result of a command.
func (c *Console) result(l *ln.Line, cmd uint8, res device.Result, data []byte) {
	msg := strings.Builder{}
	msg.WriteString(fmt.Sprintf("%03x: %s status ", l.Addr(), device.CmdName(cmd)))
	hex.FormatByte(&msg, res.Status)
	if res.Status&device.CStatusCheck != 0 {
		msg.WriteString(" sense ")
		hex.FormatByte(&msg, res.Sense)
	}
	if len(data) != 0 {
		msg.WriteString(" data ")
		hex.FormatBytes(&msg, false, data)
		msg.WriteString(" \"" + xlat.EBCDICToString(data) + "\"")
	}
	c.printf("%s", msg.String())
}

// Execute command on line in background and print result.
func (c *Console) execute(l *ln.Line, cmd uint8, data []byte, count int, input bool) {
	c.background(func() {
		res := l.Execute(cmd, data, count)
		var got []byte
		if input && res.Residual < count {
			got = data[:count-res.Residual]
		}
		c.result(l, cmd, res, got)
	})
}

// Process the show command.
func show(line *cmdLine, console *Console) (bool, error) {
	slog.Debug("Command Show")
	line.skipSpace()
	pos := line.pos
	if line.isEOL() || line.getWord() == "all" {
		for _, l := range ln.All() {
			console.printf("%s", l.Query())
		}
		return false, nil
	}
	line.pos = pos
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	console.printf("%s", l.Query())
	return false, line.done()
}

// Enable line, waits for connection.
func enable(line *cmdLine, console *Console) (bool, error) {
	slog.Debug("Command Enable")
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	if err := line.done(); err != nil {
		return false, err
	}
	console.execute(l, device.CmdEnable, nil, 0, false)
	return false, nil
}

// Disable line, dropping connection.
func disable(line *cmdLine, console *Console) (bool, error) {
	slog.Debug("Command Disable")
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	if err := line.done(); err != nil {
		return false, err
	}
	console.execute(l, device.CmdDisable, nil, 0, false)
	return false, nil
}

// Dial remote host:port.
func dial(line *cmdLine, console *Console) (bool, error) {
	slog.Debug("Command Dial")
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	digits, err := ln.EncodeDialData(line.getToken())
	if err != nil {
		return false, err
	}
	if err := line.done(); err != nil {
		return false, err
	}
	console.execute(l, device.CmdDial, digits, len(digits), false)
	return false, nil
}

// Wait for data from line.
func prepare(line *cmdLine, console *Console) (bool, error) {
	slog.Debug("Command Prepare")
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	if err := line.done(); err != nil {
		return false, err
	}
	console.execute(l, device.CmdPrepare, nil, 0, false)
	return false, nil
}

// Read data from line, optional count.
func read(line *cmdLine, console *Console) (bool, error) {
	slog.Debug("Command Read")
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	count := readSize
	if line.skipSpace(); !line.isEOL() {
		count, err = line.getNumber()
		if err != nil {
			return false, err
		}
	}
	if err := line.done(); err != nil {
		return false, err
	}
	console.execute(l, device.CmdRead, make([]byte, count), count, true)
	return false, nil
}

// Write text or hex bytes to line.
func write(line *cmdLine, console *Console) (bool, error) {
	slog.Debug("Command Write")
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	var data []byte
	pos := line.pos
	if line.getWord() == "hex" {
		data, err = decodeHex(line.rest())
		if err != nil {
			return false, errors.New("invalid hex data")
		}
	} else {
		line.pos = pos
		text, ok := line.parseQuoteString()
		if !ok {
			return false, errors.New("unterminated string")
		}
		if err := line.done(); err != nil {
			return false, err
		}
		data = xlat.StringToEBCDIC(text)
		cfg := l.Config()
		if cfg.Kind == ln.KindBSC && !cfg.SNA {
			data = bsc.Encode([]bsc.Block{{Data: data}})
		}
	}
	if len(data) == 0 {
		return false, errors.New("nothing to write")
	}
	console.execute(l, device.CmdWrite, data, len(data), false)
	return false, nil
}

// Poll list of stations given as hex bytes.
func poll(line *cmdLine, console *Console) (bool, error) {
	slog.Debug("Command Poll")
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	data, err := decodeHex(line.rest())
	if err != nil || len(data) == 0 {
		return false, errors.New("poll requires hex station list")
	}
	console.execute(l, device.CmdPoll, data, len(data), false)
	return false, nil
}

// Show sense byte of line.
func sense(line *cmdLine, console *Console) (bool, error) {
	slog.Debug("Command Sense")
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	if err := line.done(); err != nil {
		return false, err
	}
	data := make([]byte, 1)
	res := l.Execute(device.CmdSense, data, 1)
	console.result(l, device.CmdSense, res, nil)
	console.printf("sense %02x", data[0])
	return false, nil
}

// Halt current operation.
func halt(line *cmdLine, _ *Console) (bool, error) {
	slog.Debug("Command Halt")
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	if err := line.done(); err != nil {
		return false, err
	}
	l.Halt()
	return false, nil
}

// Enable debug options on line.
func setDebug(line *cmdLine, _ *Console) (bool, error) {
	slog.Debug("Command Debug")
	l, err := line.getLine()
	if err != nil {
		return false, err
	}
	opts := strings.FieldsFunc(line.rest(), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(opts) == 0 {
		return false, errors.New("debug requires options")
	}
	return false, debugconfig.Enable(l.Addr(), opts...)
}

// Handle commands that quit.
func quit(_ *cmdLine, _ *Console) (bool, error) {
	slog.Debug("Command Quit")
	return true, nil
}

// Hex bytes, spaces ignored.
func decodeHex(text string) ([]byte, error) {
	text = strings.Join(strings.Fields(text), "")
	if len(text)%2 != 0 {
		return nil, errors.New("odd number of hex digits")
	}
	out := make([]byte, 0, len(text)/2)
	for i := 0; i < len(text); i += 2 {
		by, err := strconv.ParseUint(text[i:i+2], 16, 8)
		if err != nil {
			return nil, errors.New("invalid hex digits: " + text[i:i+2])
		}
		out = append(out, byte(by))
	}
	return out, nil
}
