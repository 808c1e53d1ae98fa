/*
 * Commadpt - Line table
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

package line

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	tableLock sync.Mutex
	lineTab   = map[uint16]*Line{}
)

// Add a line at its address.
func Register(l *Line) error {
	tableLock.Lock()
	defer tableLock.Unlock()
	if _, ok := lineTab[l.addr]; ok {
		return fmt.Errorf("line %03x already exists", l.addr)
	}
	lineTab[l.addr] = l
	return nil
}

// Get a line pointer.
func Get(addr uint16) (*Line, error) {
	tableLock.Lock()
	defer tableLock.Unlock()
	l, ok := lineTab[addr]
	if !ok {
		return nil, fmt.Errorf("line %03x doesn't exist", addr)
	}
	return l, nil
}

// Return all lines ordered by address.
func All() []*Line {
	tableLock.Lock()
	lines := make([]*Line, 0, len(lineTab))
	for _, l := range lineTab {
		lines = append(lines, l)
	}
	tableLock.Unlock()
	sort.Slice(lines, func(i, j int) bool { return lines[i].addr < lines[j].addr })
	return lines
}

// Close every line and empty the table.
func CloseAll() error {
	tableLock.Lock()
	lines := lineTab
	lineTab = map[uint16]*Line{}
	tableLock.Unlock()

	var g errgroup.Group
	for _, l := range lines {
		g.Go(l.Close)
	}
	return g.Wait()
}
