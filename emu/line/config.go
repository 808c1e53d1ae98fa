/*
 * Commadpt - Communications line configuration
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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcornwell/commadpt/emu/async"
)

// Line control discipline.
type Kind int

const (
	KindBSC   Kind = iota // Binary synchronous
	KindAsync             // Start/stop terminal
)

func (k Kind) String() string {
	if k == KindAsync {
		return "async"
	}
	return "bsc"
}

// Convert name to line kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "bsc", "":
		return KindBSC, nil
	case "async", "asy", "tty":
		return KindAsync, nil
	}
	return KindBSC, fmt.Errorf("unknown line control: %s", name)
}

// Dial direction.
type DialMode int

const (
	DialNo    DialMode = iota // Leased line
	DialIn                    // Answer incoming calls
	DialOut                   // Place outgoing calls
	DialInOut                 // Both
)

func (d DialMode) String() string {
	switch d {
	case DialIn:
		return "in"
	case DialOut:
		return "out"
	case DialInOut:
		return "inout"
	}
	return "no"
}

// Convert name to dial mode.
func ParseDial(name string) (DialMode, error) {
	switch strings.ToLower(name) {
	case "no", "":
		return DialNo, nil
	case "in":
		return DialIn, nil
	case "out":
		return DialOut, nil
	case "inout":
		return DialInOut, nil
	}
	return DialNo, fmt.Errorf("unknown dial mode: %s", name)
}

// Supported adapter models.
const (
	Model2703 = "2703"
	Model3705 = "3705"
)

const (
	defReadTimeout = 3 * time.Second
	defPollTimeout = 3 * time.Second
	longTimeout    = 28 * time.Second
	defDialTimeout = 30 * time.Second
)

// Config describes one line.
type Config struct {
	Model         string        // 2703 or 3705
	Bind          string        // Local interface to listen on
	LPort         int           // Listen port
	RHost         string        // Remote host for leased outgoing line
	RPort         int           // Remote port
	Dial          DialMode      // Dial direction
	Kind          Kind          // Line control
	SNA           bool          // Line carries SNA PIUs to a terminal
	Async         async.Options // Async terminal handling
	ReadTimeout   time.Duration // BSC read timeout
	PollTimeout   time.Duration // Poll timeout per station
	EnableTimeout time.Duration // Enable or dial timeout, zero waits forever
	KAIdle        time.Duration // Keepalive idle time
	KAInterval    time.Duration // Keepalive probe interval
	KACount       int           // Keepalive probes before drop
	MaxRU         int           // Largest RU built for host
	LoadMod       string        // Load module name returned on ACTPU
	Buffers       int           // SNA frame buffers
}

var ErrBadDial = errors.New("invalid dial data")

// Fill in defaults for zero values.
func (c *Config) setDefaults() {
	if c.Model == "" {
		c.Model = Model2703
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defReadTimeout
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = defPollTimeout
	}
	if c.Async.EOL == 0 {
		c.Async.EOL = '\r'
	}
	if c.Buffers == 0 {
		c.Buffers = 32
	}
	if c.MaxRU == 0 {
		c.MaxRU = 256
	}
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}

// Check that configuration is consistent.
func (c *Config) Validate() error {
	c.setDefaults()
	switch c.Model {
	case Model2703:
		if c.SNA {
			return errors.New("SNA requires a 3705")
		}
	case Model3705:
	default:
		return fmt.Errorf("unknown model: %s", c.Model)
	}
	if c.RHost != "" && !validPort(c.RPort) {
		return fmt.Errorf("remote port %d out of range", c.RPort)
	}
	if c.SNA {
		if !validPort(c.LPort) {
			return errors.New("SNA line requires listen port")
		}
		if c.MaxRU < 1 || c.MaxRU > 256 {
			return fmt.Errorf("maxru %d out of range", c.MaxRU)
		}
	} else {
		switch c.Dial {
		case DialOut:
			if c.LPort != 0 {
				return errors.New("dial out line can't have listen port")
			}
		case DialNo:
			if c.RHost == "" && !validPort(c.LPort) {
				return errors.New("leased line requires listen port or remote host")
			}
			if c.RHost != "" && c.LPort != 0 {
				return errors.New("leased line can't have both listen port and remote host")
			}
		default:
			if !validPort(c.LPort) {
				return fmt.Errorf("dial %s line requires listen port", c.Dial)
			}
		}
	}
	if c.LPort < 0 || c.LPort > 65535 {
		return fmt.Errorf("listen port %d out of range", c.LPort)
	}
	if c.ReadTimeout < 0 || c.PollTimeout < 0 || c.EnableTimeout < 0 {
		return errors.New("timeouts can't be negative")
	}
	if c.KAIdle < 0 || c.KAInterval < 0 || c.KACount < 0 {
		return errors.New("keepalive values can't be negative")
	}
	if _, err := async.NewTranscoder(c.Async.Term, c.Async.Code); err != nil {
		return err
	}
	return nil
}

// Address to listen on, empty if line does not listen.
func (c *Config) listenAddress() string {
	if c.LPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Bind, c.LPort)
}
