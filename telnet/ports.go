/*
 * Commadpt - telnet server, share listening ports between lines.
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
	"sync"
)

var mapLock sync.Mutex

// Servers by listening address.
var servers = map[string]*Server{}

// Open or share a listener on address. Lines sharing a port compete for
// each incoming connection.
func Listen(address string) (*Server, error) {
	mapLock.Lock()
	defer mapLock.Unlock()

	s, ok := servers[address]
	if ok {
		s.refs++
		return s, nil
	}

	s, err := newServer(address)
	if err != nil {
		return nil, err
	}
	s.refs = 1
	// Port zero is always a private listener.
	if !strings.HasSuffix(address, ":0") {
		servers[address] = s
	}
	s.start()
	return s, nil
}

// Release a listener, closing it when last user is gone.
func Release(s *Server) {
	if s == nil {
		return
	}
	mapLock.Lock()
	s.refs--
	last := s.refs <= 0
	if last && servers[s.address] == s {
		delete(servers, s.address)
	}
	mapLock.Unlock()

	if last {
		s.stop()
	}
}
