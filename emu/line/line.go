/*
 * Commadpt - Communications line context
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
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rcornwell/commadpt/emu/async"
	"github.com/rcornwell/commadpt/emu/bsc"
	"github.com/rcornwell/commadpt/emu/device"
	"github.com/rcornwell/commadpt/emu/sna"
	"github.com/rcornwell/commadpt/telnet"
	"github.com/rcornwell/commadpt/util/debug"
	"github.com/rcornwell/commadpt/util/metrics"
	"github.com/rcornwell/commadpt/util/ring"
)

// Operation line is working on.
type Pending int

const (
	PendIdle     Pending = iota // No operation
	PendRead                    // Waiting for input
	PendWrite                   // Sending output
	PendPoll                    // Polling stations
	PendDial                    // Placing call
	PendEnable                  // Waiting for connection
	PendDisable                 // Dropping connection
	PendPrepare                 // Waiting for data to arrive
	PendInit                    // Worker starting
	PendClosed                  // Worker gone
)

func (p Pending) String() string {
	switch p {
	case PendIdle:
		return "idle"
	case PendRead:
		return "read"
	case PendWrite:
		return "write"
	case PendPoll:
		return "poll"
	case PendDial:
		return "dial"
	case PendEnable:
		return "enable"
	case PendDisable:
		return "disable"
	case PendPrepare:
		return "prepare"
	case PendInit:
		return "init"
	case PendClosed:
		return "closed"
	}
	return "unknown"
}

// True if operation is waiting on worker.
func (p Pending) active() bool {
	return p >= PendRead && p <= PendPrepare
}

// State of data connection.
type connState int

const (
	stateIdle connState = iota
	stateListen
	stateDialing
	stateConnected
)

func (s connState) String() string {
	switch s {
	case stateListen:
		return "listening"
	case stateDialing:
		return "dialing"
	case stateConnected:
		return "connected"
	}
	return "idle"
}

// Reason worker was woken.
type ctlCode int

const (
	ctlRedrive ctlCode = iota
	ctlHalt
	ctlShutdown
)

const (
	// Debug options.
	debugCmd    = 1 << iota // Commands from host.
	debugData               // Data transfered.
	debugTelnet             // Telnet negotiation.
	debugSNA                // SNA session.
	debugState              // Line state changes.
)

var debugOption = map[string]int{
	"CMD":    debugCmd,
	"DATA":   debugData,
	"TELNET": debugTelnet,
	"SNA":    debugSNA,
	"STATE":  debugState,
	"ALL":    debugCmd | debugData | debugTelnet | debugSNA | debugState,
}

const (
	ringSize = 16384
	readSize = 4096
)

// Data connection with its reader.
type link struct {
	conn  net.Conn
	rx    chan []byte   // Data from reader, closed on error
	quit  chan struct{} // Closed to stop reader
	wdone chan error    // Result of write
}

type dialResult struct {
	conn net.Conn
	err  error
}

// Line is one emulated communications line.
type Line struct {
	addr       uint16              // Line address.
	cfg        Config              // Line configuration.
	debugMsk   atomic.Int32        // Debug option mask.
	lock       sync.Mutex          // Guards everything below.
	ipc        *sync.Cond          // Signaled when operation completes.
	haltCond   *sync.Cond          // Signaled when halt is done.
	ctl        chan ctlCode        // Wakes worker.
	done       chan struct{}       // Closed when worker exits.
	pending    Pending             // Current operation.
	started    bool                // Worker has begun operation.
	haltReq    bool                // Halt requested.
	halted     bool                // Last operation was halted.
	closeReq   bool                // Shutdown requested.
	result     device.Result       // Completion of last operation.
	sense      uint8               // Current sense byte.
	state      connState           // Connection state.
	server     *telnet.Server      // Listener, nil if line does not listen.
	link       *link               // Data connection.
	remote     string              // Address of remote end.
	writing    bool                // Write in progress.
	dropOut    bool                // Hang up once output is sent.
	dialAddr   string              // Address to dial.
	cancel     context.CancelFunc  // Cancels outgoing call.
	dialDone   chan dialResult     // Result of outgoing call.
	timer      *time.Timer         // Operation timeout.
	timerC     <-chan time.Time    // Timer channel, nil when not armed.
	in         *ring.Ring          // Raw data from connection.
	out        *ring.Ring          // Raw data to connection.
	poll       *ring.Ring          // Response to poll.
	read       *ring.Ring          // Data ready for host.
	tty        *ring.Ring          // Partial line from terminal.
	bsc        *bsc.Machine        // BSC framing.
	async      *async.Machine      // Async terminal handling.
	tn         *telnet.Session     // SNA terminal negotiation.
	pool       *sna.Pool           // SNA frame buffers.
	sess       *sna.Session        // SNA session.
	pollList   [][]byte            // Stations to poll.
	pollData   []byte              // Poll list as given by host.
	pollCount  int                 // Count from poll command.
	pollIndex  int                 // Station being polled.
	pollTried  int                 // Stations polled by this command.
	pollActive bool                // Polling in progress.
	stats      *metrics.Line       // Line counters.
	wg         sync.WaitGroup      // Worker running.
}

// Create line and start its worker.
func New(addr uint16, cfg Config) (*Line, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("line %03x: %w", addr, err)
	}
	l := &Line{
		addr:     addr,
		cfg:      cfg,
		ctl:      make(chan ctlCode, 1),
		done:     make(chan struct{}),
		dialDone: make(chan dialResult, 1),
		pending:  PendInit,
		in:       ring.New(ringSize),
		out:      ring.New(ringSize),
		poll:     ring.New(ringSize),
		read:     ring.New(ringSize),
		tty:      ring.New(ringSize),
		bsc:      &bsc.Machine{},
	}
	l.ipc = sync.NewCond(&l.lock)
	l.haltCond = sync.NewCond(&l.lock)

	var err error
	l.async, err = async.New(cfg.Async, l.tty)
	if err != nil {
		return nil, fmt.Errorf("line %03x: %w", addr, err)
	}
	l.async.SetTrace(l.traceFunc(debugTelnet))
	if cfg.SNA {
		l.pool = sna.NewPool(cfg.Buffers)
		l.sess = sna.NewSession(l.pool, sna.Options{MaxRU: cfg.MaxRU, LoadMod: cfg.LoadMod})
		l.sess.Trace = l.traceFunc(debugSNA)
		l.tn = telnet.NewSession(telnet.PolicyTerminal)
	}

	if address := cfg.listenAddress(); address != "" {
		l.server, err = telnet.Listen(address)
		if err != nil {
			return nil, fmt.Errorf("line %03x: %w", addr, err)
		}
	}
	l.stats = metrics.ForLine(addr)

	l.wg.Add(1)
	go l.worker()
	l.lock.Lock()
	for l.pending == PendInit {
		l.ipc.Wait()
	}
	l.lock.Unlock()
	slog.Info("Line started", "line", l.name(), "model", cfg.Model, "kind", l.kindName())
	return l, nil
}

func (l *Line) name() string {
	return fmt.Sprintf("%03x", l.addr)
}

func (l *Line) kindName() string {
	if l.cfg.SNA {
		return "sna"
	}
	if l.cfg.Kind == KindAsync {
		return "async/" + l.cfg.Async.Term.String()
	}
	return "bsc"
}

// Return line address.
func (l *Line) Addr() uint16 {
	return l.addr
}

// Return line configuration.
func (l *Line) Config() Config {
	return l.cfg
}

// Return listening address, nil if line does not listen.
func (l *Line) ListenAddr() net.Addr {
	if l.server == nil {
		return nil
	}
	return l.server.Addr()
}

// Return line counters.
func (l *Line) Stats() *metrics.Line {
	return l.stats
}

// Enable debug options.
func (l *Line) Debug(opt string) error {
	flag, err := debug.ParseMask(debugOption, opt)
	if err != nil {
		return fmt.Errorf("line %s: %w", l.name(), err)
	}
	l.debugMsk.Or(int32(flag))
	return nil
}

func (l *Line) debugf(level int, format string, a ...any) {
	debug.DebugDevf(l.addr, int(l.debugMsk.Load()), level, format, a...)
}

func (l *Line) traceFunc(level int) func(format string, a ...any) {
	return func(format string, a ...any) {
		l.debugf(level, format, a...)
	}
}

// True if line has data the host should read.
func (l *Line) AttentionPending() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	switch {
	case l.cfg.SNA:
		return l.pool.Pending() != 0
	case l.cfg.Kind == KindAsync:
		return l.async.Interrupt || l.async.EOL
	}
	return l.read.HasData()
}

// Stop worker and drop connection.
func (l *Line) Close() error {
	l.lock.Lock()
	if l.pending == PendClosed {
		l.lock.Unlock()
		return nil
	}
	l.closeReq = true
	l.wake(ctlShutdown)
	l.lock.Unlock()
	l.wg.Wait()
	slog.Info("Line stopped", "line", l.name())
	return nil
}

// Wake worker, a wake already queued is enough.
func (l *Line) wake(code ctlCode) {
	select {
	case l.ctl <- code:
	default:
	}
}
