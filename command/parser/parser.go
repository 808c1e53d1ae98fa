/*
 * Commadpt - Console command parser
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
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

type cmd struct {
	Name     string // Command name.
	Min      int    // Minimum match size.
	Process  func(*cmdLine, *Console) (bool, error)
	Complete func(*cmdLine) []string
}

type cmdLine struct {
	line string // Current command.
	pos  int    // Position in line.
}

// Console runs operator commands against lines. Commands that wait for
// the remote end run in the background and report when done.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	wg  sync.WaitGroup
}

// Create console writing results to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Print a message to console.
func (c *Console) printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", a...)
}

// Run function in background.
func (c *Console) background(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// Wait for background commands to finish.
func (c *Console) Wait() {
	c.wg.Wait()
}

// Execute the command line given.
func ProcessCommand(commandLine string, console *Console) (bool, error) {
	line := cmdLine{line: commandLine}
	command := line.getWord()
	if command == "" {
		if !line.isEOL() {
			return false, errors.New("command not found: " + line.rest())
		}
		return false, nil
	}

	match := matchList(command)
	if len(match) == 0 {
		return false, errors.New("command not found: " + command)
	}

	if len(match) > 1 {
		return false, errors.New("unique command not found: " + command)
	}

	return match[0].Process(&line, console)
}

// Check if command matches at least to minimum length.
func matchCommand(match cmd, command string) bool {
	if len(command) > len(match.Name) {
		return false
	}
	return strings.HasPrefix(match.Name, command) && len(command) >= match.Min
}

// Check if command matches one of the commands.
func matchList(command string) []cmd {
	var match []cmd
	for _, m := range cmdList {
		if m.Name == command {
			return []cmd{m}
		}
		if matchCommand(m, command) {
			match = append(match, m)
		}
	}
	return match
}

// Skip forward over line until none whitespace character found.
func (line *cmdLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

// Check if at end of line.
func (line *cmdLine) isEOL() bool {
	return line.pos >= len(line.line) || line.line[line.pos] == '#'
}

// Return next space separated token.
func (line *cmdLine) getToken() string {
	line.skipSpace()
	start := line.pos
	for !line.isEOL() && !unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
	return line.line[start:line.pos]
}

// Parse a word of letters, returned in lower case.
func (line *cmdLine) getWord() string {
	line.skipSpace()
	start := line.pos
	for !line.isEOL() && unicode.IsLetter(rune(line.line[line.pos])) {
		line.pos++
	}
	if !line.isEOL() && !unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos = start
		return ""
	}
	return strings.ToLower(line.line[start:line.pos])
}

// Parse hex number.
func (line *cmdLine) getHex() (uint16, error) {
	pos := line.pos
	token := line.getToken()
	value, err := strconv.ParseUint(token, 16, 12)
	if err != nil {
		line.pos = pos
		return 0, errors.New("not a line address: " + token)
	}
	return uint16(value), nil
}

// Parse decimal number.
func (line *cmdLine) getNumber() (int, error) {
	token := line.getToken()
	value, err := strconv.Atoi(token)
	if err != nil || value < 0 {
		return 0, errors.New("not a number: " + token)
	}
	return value, nil
}

// Parse string that is "string" or just string.
func (line *cmdLine) parseQuoteString() (string, bool) {
	line.skipSpace()
	if line.pos >= len(line.line) || line.line[line.pos] != '"' {
		return line.getToken(), true
	}

	var value strings.Builder
	line.pos++
	for line.pos < len(line.line) {
		by := line.line[line.pos]
		line.pos++
		// "" gets replaced by single quote.
		if by == '"' {
			if line.pos >= len(line.line) || line.line[line.pos] != '"' {
				return value.String(), true
			}
			line.pos++
		}
		value.WriteByte(by)
	}
	return value.String(), false
}

// Remainder of line.
func (line *cmdLine) rest() string {
	line.skipSpace()
	return strings.TrimSpace(line.line[line.pos:])
}
