/*
 * Commadpt - telnet server, listener.
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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Server accepts connections on one port and hands them to whichever
// line is waiting on Connection.
type Server struct {
	wg         sync.WaitGroup
	listener   net.Listener
	shutdown   chan struct{}
	connection chan net.Conn
	address    string
	refs       int
}

// Open new listener.
func newServer(address string) (*Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on address %s: %w", address, err)
	}

	return &Server{
		listener:   listener,
		shutdown:   make(chan struct{}),
		connection: make(chan net.Conn),
		address:    address,
	}, nil
}

// Channel new connections are delivered on.
func (s *Server) Connection() <-chan net.Conn {
	return s.connection
}

// Address server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Accept a connection.
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("Accept error", "address", s.address, "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		select {
		case s.connection <- conn:
		case <-s.shutdown:
			conn.Close()
			return
		}
	}
}

// Start accepting connections.
func (s *Server) start() {
	host, port, err := net.SplitHostPort(s.listener.Addr().String())
	if err == nil {
		if host == "::" {
			host = "localhost"
		}
		slog.Info("Server started on " + host + ":" + port)
	}
	s.wg.Add(1)
	go s.acceptConnections()
}

// Stop a running server.
func (s *Server) stop() {
	close(s.shutdown)
	s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		slog.Warn("Timed out waiting for listener to finish", "address", s.address)
	}
}
