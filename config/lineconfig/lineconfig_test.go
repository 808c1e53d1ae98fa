/*
 * Commadpt - Line configuration test set.
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

package lineconfig

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	config "github.com/rcornwell/commadpt/config/configparser"
	"github.com/rcornwell/commadpt/emu/async"
	"github.com/rcornwell/commadpt/emu/line"
)

// Find a port nobody is listening on.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Unable to find free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func cleanUpLines(t *testing.T) {
	t.Cleanup(func() {
		if err := line.CloseAll(); err != nil {
			t.Errorf("CloseAll failed: %v", err)
		}
	})
}

func TestApply(t *testing.T) {
	cfg := line.Config{}
	opts := []struct {
		name  string
		value string
		extra []string
	}{
		{"lport", "3780", nil},
		{"dial", "inout", nil},
		{"term", "2741", nil},
		{"code", "EBCD", nil},
		{"uctrans", "", nil},
		{"skip", "88C9", nil},
		{"iskip", "0x0a", []string{"0x00"}},
		{"prepend", "16", nil},
		{"append", "25", nil},
		{"eol", "0D", nil},
		{"crlf", "yes", nil},
		{"echo", "no", nil},
		{"bs", "dumb", nil},
		{"break", "none", nil},
		{"rto", "1500", nil},
		{"eto", "0", nil},
		{"kaidle", "30", nil},
		{"kaintv", "5", nil},
		{"kacnt", "3", nil},
	}
	for _, opt := range opts {
		if err := Apply(&cfg, opt.name, opt.value, opt.extra...); err != nil {
			t.Fatalf("Apply %s failed: %v", opt.name, err)
		}
	}
	if cfg.LPort != 3780 || cfg.Dial != line.DialInOut {
		t.Errorf("Port or dial wrong: %d %v", cfg.LPort, cfg.Dial)
	}
	if cfg.Kind != line.KindAsync || cfg.Async.Term != async.Term2741 || cfg.Async.Code != "ebcd" {
		t.Errorf("Terminal wrong: %v %v %s", cfg.Kind, cfg.Async.Term, cfg.Async.Code)
	}
	if !cfg.Async.Upper || !cfg.Async.CRLF || cfg.Async.Echo || !cfg.Async.BSEdit || cfg.Async.DumbBreak {
		t.Errorf("Flags wrong: %+v", cfg.Async)
	}
	if string(cfg.Async.SkipOut) != "\x88\xc9" || string(cfg.Async.SkipIn) != "\x0a\x00" {
		t.Errorf("Skip wrong: %x %x", cfg.Async.SkipOut, cfg.Async.SkipIn)
	}
	if string(cfg.Async.Prepend) != "\x16" || string(cfg.Async.Append) != "\x25" || cfg.Async.EOL != 0x0d {
		t.Errorf("Prepend/append/eol wrong: %x %x %02x", cfg.Async.Prepend, cfg.Async.Append, cfg.Async.EOL)
	}
	if cfg.ReadTimeout != 1500*time.Millisecond || cfg.KAIdle != 30*time.Second ||
		cfg.KAInterval != 5*time.Second || cfg.KACount != 3 {
		t.Errorf("Timing wrong: %v %v %v %d", cfg.ReadTimeout, cfg.KAIdle, cfg.KAInterval, cfg.KACount)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Config not valid: %v", err)
	}
}

func TestApplyErrors(t *testing.T) {
	bad := [][2]string{
		{"lport", "abc"},
		{"dial", "sideways"},
		{"term", "3270"},
		{"skip", "8"},
		{"eol", "0d0a"},
		{"rto", "-1"},
		{"crlf", "maybe"},
		{"bs", "smart"},
		{"bogus", "1"},
	}
	for _, opt := range bad {
		cfg := line.Config{}
		if err := Apply(&cfg, opt[0], opt[1]); err == nil {
			t.Errorf("Apply %s=%s succeeded", opt[0], opt[1])
		}
	}
}

func TestConfigFile(t *testing.T) {
	cleanUpLines(t)
	bscPort := freePort(t)
	snaPort := freePort(t)
	input := fmt.Sprintf(`# test lines
2703 040 bind=127.0.0.1 lport=%d lnctl=bsc rto=500
3705 060 bind=127.0.0.1 lport=%d sna maxru=128 loadmod="NCP 01"
debug 040 cmd,data
`, bscPort, snaPort)
	if err := config.Load(strings.NewReader(input)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	l, err := line.Get(0x40)
	if err != nil {
		t.Fatalf("Line 040 not created: %v", err)
	}
	if l.ListenAddr() == nil {
		t.Errorf("Line 040 not listening")
	}
	if _, err := line.Get(0x60); err != nil {
		t.Errorf("Line 060 not created: %v", err)
	}
	if len(line.All()) != 2 {
		t.Errorf("Expected 2 lines got %d", len(line.All()))
	}

	err = config.Load(strings.NewReader("2703 041 bind=127.0.0.1 sna lport=1\n"))
	if err == nil {
		t.Errorf("Load accepted SNA on 2703")
	}
	err = config.Load(strings.NewReader("debug 041 cmd\n"))
	if err == nil {
		t.Errorf("Load accepted debug for missing line")
	}
	err = config.Load(strings.NewReader("debug 040 bogus\n"))
	if err == nil {
		t.Errorf("Load accepted bad debug option")
	}
}

func TestYAML(t *testing.T) {
	cleanUpLines(t)
	port := freePort(t)
	input := fmt.Sprintf(`
lines:
  - addr: 042
    model: "2703"
    bind: 127.0.0.1
    lport: %d
    term: tty
    skip: [88, C9]
    uctrans: yes
  - addr: "043"
    bind: 127.0.0.1
    lport: %d
    lnctl: bsc
debug:
  lines:
    "042": [CMD, TELNET]
`, port, port)
	if err := DecodeYAML(strings.NewReader(input)); err != nil {
		t.Fatalf("DecodeYAML failed: %v", err)
	}
	for _, addr := range []uint16{0x42, 0x43} {
		if _, err := line.Get(addr); err != nil {
			t.Errorf("Line %03x not created: %v", addr, err)
		}
	}

	bad := []string{
		"lines:\n  - model: 2703\n",
		"lines:\n  - addr: 044\n    colour: red\n",
		"lines:\n  - addr: xyz\n",
		"unknown: 1\n",
	}
	for _, in := range bad {
		if err := DecodeYAML(strings.NewReader(in)); err == nil {
			t.Errorf("DecodeYAML accepted: %q", in)
		}
	}
}
