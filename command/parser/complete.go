/*
 * Commadpt - Console command completion
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
	"fmt"
	"slices"
	"strings"
	"unicode"

	ln "github.com/rcornwell/commadpt/emu/line"
)

// Called to complete a command line, during line editing.
func CompleteCmd(commandLine string) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	// We have a command, let it try and complete it.
	if !line.isEOL() && unicode.IsSpace(rune(line.line[line.pos])) {
		match := matchList(name)
		if len(match) != 1 || match[0].Complete == nil {
			return nil
		}
		return match[0].Complete(&line)
	}

	// Try and match one command.
	var matches []string
	for _, m := range cmdList {
		if strings.HasPrefix(m.Name, name) {
			matches = append(matches, m.Name+" ")
		}
	}
	slices.Sort(matches)
	return matches
}

// Complete line address after command.
func lineComplete(line *cmdLine) []string {
	line.skipSpace()
	leading := line.line[:line.pos]
	prefix := strings.ToLower(line.getToken())
	if line.pos < len(line.line) {
		// Address already complete.
		return nil
	}

	var matches []string
	for _, l := range ln.All() {
		addr := fmt.Sprintf("%03x", l.Addr())
		if strings.HasPrefix(addr, prefix) {
			matches = append(matches, leading+addr+" ")
		}
	}
	return matches
}
