/*
 * Commadpt - Communications line worker
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
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/rcornwell/commadpt/emu/async"
	"github.com/rcornwell/commadpt/emu/bsc"
	"github.com/rcornwell/commadpt/emu/device"
	"github.com/rcornwell/commadpt/telnet"
	"github.com/rcornwell/commadpt/util/xlat"
)

// Worker owns the connection. It waits for input, connections, write
// completion and timeouts, advancing the pending operation under lock.
func (l *Line) worker() {
	defer l.wg.Done()
	l.lock.Lock()
	l.pending = PendIdle
	l.ipc.Broadcast()
	for {
		if l.closeReq {
			l.shutdown()
			l.lock.Unlock()
			return
		}
		if l.haltReq {
			l.abort()
		}
		if !l.started && l.pending.active() {
			l.started = true
			l.begin()
		}
		l.consume()
		l.flush()
		l.checkDone()

		var rx <-chan []byte
		if l.link != nil && l.wantInput() {
			rx = l.link.rx
		}
		var accept <-chan net.Conn
		if l.server != nil && l.link == nil && (l.state == stateListen || l.cfg.SNA) {
			accept = l.server.Connection()
		}
		var wdone <-chan error
		if l.writing {
			wdone = l.link.wdone
		}
		timerC := l.timerC
		l.lock.Unlock()

		select {
		case code := <-l.ctl:
			l.lock.Lock()
			l.debugf(debugState, "wake %d pending %s", code, l.pending)
		case data, ok := <-rx:
			l.lock.Lock()
			if !ok {
				l.hangup("connection closed by remote")
				break
			}
			l.received(data)
		case conn := <-accept:
			l.lock.Lock()
			l.connected(conn)
		case res := <-l.dialDone:
			l.lock.Lock()
			l.dialed(res)
		case err := <-wdone:
			l.lock.Lock()
			l.writing = false
			if err != nil {
				slog.Warn("Write failed", "line", l.name(), "error", err)
				l.hangup("write error")
			}
		case <-timerC:
			l.lock.Lock()
			l.timer = nil
			l.timerC = nil
			l.timeout()
		}
	}
}

// BSC lines only take data from connection while an operation wants it.
func (l *Line) wantInput() bool {
	if l.cfg.SNA || l.cfg.Kind == KindAsync {
		return true
	}
	switch l.pending {
	case PendRead, PendPoll, PendPrepare:
		return l.started
	}
	return false
}

// Finish pending operation and wake executor.
func (l *Line) complete(res device.Result) {
	l.debugf(debugState, "complete %s status %02x sense %02x", l.pending, res.Status, res.Sense)
	l.stopTimer()
	l.result = res
	l.pending = PendIdle
	l.started = false
	if l.haltReq {
		l.haltReq = false
		l.haltCond.Broadcast()
	}
	l.ipc.Broadcast()
}

func (l *Line) fail(sense uint8) {
	l.complete(device.Result{Status: device.StatusEnd | device.CStatusCheck, Sense: sense})
}

// Stop current operation because of halt.
func (l *Line) abort() {
	if !l.pending.active() {
		l.haltReq = false
		l.haltCond.Broadcast()
		return
	}
	l.debugf(debugState, "halt %s", l.pending)
	status := device.StatusEnd
	switch l.pending {
	case PendRead:
		status |= device.CStatusExpt
	case PendPoll:
		l.pollActive = false
		l.poll.Flush()
		l.bsc.Reset()
	case PendDial, PendEnable:
		l.cancelDial()
		l.state = stateIdle
	}
	l.stats.Halts.Inc()
	l.halted = true
	l.complete(device.Result{Status: status})
}

// Start operation just given by executor.
func (l *Line) begin() {
	l.debugf(debugState, "begin %s", l.pending)
	switch l.pending {
	case PendRead:
		if !l.cfg.SNA && l.cfg.Kind == KindBSC {
			l.armTimer(l.readTimeout())
		}
	case PendPoll:
		l.pollTried = 0
		l.sendPoll()
	case PendEnable:
		if l.link != nil {
			l.complete(device.Result{Status: device.StatusEnd})
			return
		}
		if l.cfg.RHost != "" && l.cfg.Dial == DialNo {
			l.startDial(net.JoinHostPort(l.cfg.RHost, strconv.Itoa(l.cfg.RPort)))
			return
		}
		l.state = stateListen
		if l.cfg.EnableTimeout > 0 {
			l.armTimer(l.cfg.EnableTimeout)
		}
	case PendDial:
		l.startDial(l.dialAddr)
	case PendDisable:
		l.hangup("disabled by host")
		l.state = stateIdle
		l.complete(device.Result{Status: device.StatusEnd})
	}
}

// BSC text blocks can be long, allow more time inside one.
func (l *Line) readTimeout() time.Duration {
	if l.bsc.Text {
		return longTimeout
	}
	return l.cfg.ReadTimeout
}

func (l *Line) armTimer(d time.Duration) {
	l.stopTimer()
	l.timer = time.NewTimer(d)
	l.timerC = l.timer.C
}

func (l *Line) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.timerC = nil
}

// Timer expired for current operation.
func (l *Line) timeout() {
	l.debugf(debugState, "timeout %s", l.pending)
	switch l.pending {
	case PendRead:
		l.bsc.Reset()
		l.read.Flush()
		l.fail(device.SenseTIMEOUT)
	case PendPoll:
		l.pollActive = false
		l.bsc.Reset()
		l.poll.Flush()
		l.fail(device.SenseTIMEOUT)
	case PendEnable:
		l.state = stateIdle
		l.fail(device.SenseINTVENT)
	}
}

// Place outgoing call.
func (l *Line) startDial(address string) {
	timeout := l.cfg.EnableTimeout
	if timeout == 0 {
		timeout = defDialTimeout
	}
	l.debugf(debugState, "dial %s", address)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	l.cancel = cancel
	l.state = stateDialing
	go func() {
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "tcp", address)
		cancel()
		select {
		case l.dialDone <- dialResult{conn: conn, err: err}:
		case <-l.done:
			if conn != nil {
				conn.Close()
			}
		}
	}()
}

func (l *Line) cancelDial() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Outgoing call finished.
func (l *Line) dialed(res dialResult) {
	l.cancel = nil
	if l.pending != PendDial && l.pending != PendEnable {
		// Operation was halted.
		if res.conn != nil {
			res.conn.Close()
		}
		return
	}
	if res.err != nil {
		slog.Warn("Call failed", "line", l.name(), "error", res.err)
		l.state = stateIdle
		l.fail(device.SenseINTVENT)
		return
	}
	l.connected(res.conn)
}

// Attach new connection to line.
func (l *Line) connected(conn net.Conn) {
	if l.link != nil {
		conn.Close()
		return
	}
	if err := setKeepalive(conn, l.cfg.KAIdle, l.cfg.KAInterval, l.cfg.KACount); err != nil {
		slog.Warn("Unable to set keepalive", "line", l.name(), "error", err)
	}
	k := &link{
		conn:  conn,
		rx:    make(chan []byte),
		quit:  make(chan struct{}),
		wdone: make(chan error, 1),
	}
	go k.reader()
	l.link = k
	l.remote = conn.RemoteAddr().String()
	l.state = stateConnected
	l.stats.Connects.Inc()
	slog.Info("Line connected", "line", l.name(), "remote", l.remote)

	l.in.Flush()
	l.out.Flush()
	l.poll.Flush()
	l.read.Flush()
	l.bsc.Reset()
	l.async.Reset()
	l.dropOut = false
	if l.cfg.SNA {
		l.tty.Flush()
		l.tn = telnet.NewSession(telnet.PolicyTerminal)
		l.tn.Trace = l.traceFunc(debugTelnet)
		l.out.PushBuffer(l.tn.Start())
		l.sess.Connected = true
		l.sess.Is3270 = false
		if err := l.sess.Notify(true); err != nil {
			slog.Warn("Unable to send notify", "line", l.name(), "error", err)
		}
	}
	if l.pending == PendEnable || l.pending == PendDial {
		l.complete(device.Result{Status: device.StatusEnd})
	}
}

// Drop connection.
func (l *Line) hangup(reason string) {
	if l.link == nil {
		return
	}
	slog.Info("Line disconnected", "line", l.name(), "remote", l.remote, "reason", reason)
	close(l.link.quit)
	l.link.conn.Close()
	l.link = nil
	l.writing = false
	l.dropOut = false
	l.remote = ""
	l.state = stateIdle
	l.in.Flush()
	l.out.Flush()
	l.tty.Flush()
	if l.cfg.SNA {
		l.sess.Connected = false
		if err := l.sess.Notify(false); err != nil {
			slog.Warn("Unable to send notify", "line", l.name(), "error", err)
		}
	}
	// SNA operations do not depend on the terminal.
	if l.cfg.SNA {
		return
	}
	switch l.pending {
	case PendRead, PendWrite, PendPoll, PendPrepare:
		l.fail(device.SenseINTVENT)
	}
}

// Data from connection.
func (l *Line) received(data []byte) {
	l.stats.BytesIn.Add(len(data))
	l.debugf(debugData, "recv % x", data)
	l.in.PushBuffer(data)
	if l.in.Overflow() {
		slog.Warn("Input overrun", "line", l.name(), "size", l.in.Cap())
		l.stats.Overflows.Inc()
		l.in.ClearOverflow()
	}
	if l.pending == PendRead && l.started && !l.cfg.SNA && l.cfg.Kind == KindBSC {
		l.armTimer(l.readTimeout())
	}
}

// Process data waiting in input ring.
func (l *Line) consume() {
	if l.link == nil {
		return
	}
	switch {
	case l.cfg.SNA:
		l.consumeSNA()
	case l.cfg.Kind == KindAsync:
		l.consumeAsync()
	default:
		l.consumeBSC()
	}
}

func (l *Line) consumeBSC() {
	if !l.started {
		return
	}
	switch l.pending {
	case PendRead:
		for l.in.HasData() {
			done, eot := l.bsc.Feed(l.in.Pop(), l.read)
			if done {
				l.stats.FramesIn.Inc()
				status := device.StatusEnd
				if eot {
					status |= device.CStatusExpt
				}
				l.complete(device.Result{Status: status})
				return
			}
		}
	case PendPoll:
		for l.in.HasData() {
			done, eot := l.bsc.Feed(l.in.Pop(), l.poll)
			if !done {
				continue
			}
			if eot || isNAK(l.poll.Bytes()) {
				l.nextStation()
				if l.pending != PendPoll {
					return
				}
				continue
			}
			// Station has data for host.
			l.stats.FramesIn.Inc()
			l.read.PushBuffer(l.poll.Bytes())
			l.poll.Flush()
			l.complete(device.Result{
				Status:   device.StatusEnd | device.CStatusSMS,
				Residual: l.pollCount - pollEnd(l.pollList, l.pollIndex),
			})
			return
		}
	case PendPrepare:
		if l.in.HasData() {
			l.complete(device.Result{Status: device.StatusEnd})
		}
	}
}

func isNAK(frame []byte) bool {
	return len(frame) == 1 && frame[0] == bsc.NAK
}

// Offset just past poll list entry.
func pollEnd(list [][]byte, index int) int {
	end := 0
	for i := 0; i <= index && i < len(list); i++ {
		end += len(list[i]) + 1
	}
	return end
}

// Send poll to current station.
func (l *Line) sendPoll() {
	entry := l.pollList[l.pollIndex]
	l.debugf(debugData, "poll % x", entry)
	l.poll.Flush()
	l.bsc.Reset()
	l.out.PushBuffer(bsc.PollSequence(entry))
	l.armTimer(l.cfg.PollTimeout)
}

// Station had nothing to send, move on to next one.
func (l *Line) nextStation() {
	l.poll.Flush()
	l.bsc.Reset()
	l.pollIndex = (l.pollIndex + 1) % len(l.pollList)
	l.pollTried++
	if l.pollTried >= len(l.pollList) {
		l.complete(device.Result{Status: device.StatusEnd, Residual: l.pollCount})
		return
	}
	l.sendPoll()
}

func (l *Line) consumeAsync() {
	for l.in.HasData() {
		switch l.async.Feed(l.in.Pop(), l.read) {
		case async.EventLine:
			l.stats.FramesIn.Inc()
			l.debugf(debugData, "line % x", l.read.Bytes())
		case async.EventInterrupt:
			l.debugf(debugData, "attention")
			l.read.Flush()
			l.poll.Flush()
			l.out.Flush()
			l.async.EOL = false
		}
	}
	l.out.PushBuffer(l.async.Reply())
	if !l.started {
		return
	}
	switch l.pending {
	case PendRead:
		if l.async.Interrupt {
			l.complete(device.Result{Status: device.StatusEnd | device.CStatusExpt})
		} else if l.async.EOL {
			l.complete(device.Result{Status: device.StatusEnd})
		}
	case PendPrepare:
		if l.async.Interrupt || l.async.EOL {
			l.complete(device.Result{Status: device.StatusEnd})
		}
	}
}

func (l *Line) consumeSNA() {
	for l.in.HasData() {
		by := l.in.Pop()
		switch l.tn.Feed(by) {
		case telnet.TokData:
			if l.sess.Is3270 {
				l.tty.Push(by)
				continue
			}
			switch by {
			case '\r':
				for l.tty.HasData() {
					l.read.Push(xlat.ASCIIToEBCDIC[l.tty.Pop()])
				}
				l.buildRequests()
			case '\n', 0:
			default:
				l.tty.Push(by)
			}
		case telnet.TokEOR:
			l.read.PushBuffer(l.tty.Bytes())
			l.tty.Flush()
			l.buildRequests()
		case telnet.TokIP, telnet.TokBreak:
			if err := l.sess.Signal(); err != nil {
				slog.Warn("Unable to send signal", "line", l.name(), "error", err)
			}
		case telnet.TokTerm:
			l.sess.Is3270 = l.tn.Is3270
			l.debugf(debugTelnet, "terminal %s 3270 %v model %q extended %v group %q",
				l.tn.TermType, l.tn.Is3270, l.tn.Model, l.tn.ExtAttr, l.tn.Group)
		}
	}
	l.out.PushBuffer(l.tn.Reply())
}

func (l *Line) buildRequests() {
	count, err := l.sess.BuildRequests(l.read)
	l.stats.FramesIn.Add(count)
	if err != nil {
		slog.Warn("Terminal input dropped", "line", l.name(), "error", err)
	}
}

// Start writer if output is waiting.
func (l *Line) flush() {
	if l.link == nil {
		l.out.Flush()
		return
	}
	if l.writing || !l.out.HasData() {
		return
	}
	data := make([]byte, l.out.Len())
	l.out.PopBuffer(data)
	l.debugf(debugData, "send % x", data)
	l.stats.BytesOut.Add(len(data))
	l.writing = true
	go func(k *link) {
		_, err := k.conn.Write(data)
		k.wdone <- err
	}(l.link)
}

// Complete operations that wait on output or frames.
func (l *Line) checkDone() {
	idle := !l.writing && !l.out.HasData()
	if l.dropOut && idle {
		l.hangup("session ended by host")
	}
	if !l.started {
		return
	}
	switch l.pending {
	case PendWrite:
		if idle {
			l.complete(device.Result{Status: device.StatusEnd})
		}
	case PendRead, PendPrepare:
		if l.cfg.SNA && l.pool.Pending() != 0 {
			l.complete(device.Result{Status: device.StatusEnd})
		}
	}
}

// Stop worker.
func (l *Line) shutdown() {
	l.debugf(debugState, "shutdown")
	if l.pending.active() {
		l.fail(device.SenseINTVENT)
	}
	l.hangup("line shut down")
	l.cancelDial()
	l.stopTimer()
	telnet.Release(l.server)
	close(l.done)
	l.pending = PendClosed
	l.haltReq = false
	l.stats.Release()
	l.haltCond.Broadcast()
	l.ipc.Broadcast()
}

// Copy data from connection until error or told to quit.
func (k *link) reader() {
	defer close(k.rx)
	buf := make([]byte, readSize)
	for {
		n, err := k.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case k.rx <- data:
			case <-k.quit:
				return
			}
		}
		if err != nil {
			return
		}
	}
}
