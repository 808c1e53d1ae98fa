/*
 * Commadpt - Communications line command executor
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
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/rcornwell/commadpt/emu/bsc"
	"github.com/rcornwell/commadpt/emu/device"
	"github.com/rcornwell/commadpt/emu/sna"
	"github.com/rcornwell/commadpt/util/hex"
)

var (
	senseID2703 = []byte{0xff, 0x27, 0x03, 0x00}
	senseID3705 = []byte{0xff, 0x37, 0x05, 0x00}
)

func end(residual int) device.Result {
	return device.Result{Status: device.StatusEnd, Residual: residual}
}

// Post unit check with sense.
func (l *Line) check(sense uint8, residual int) device.Result {
	l.sense = sense
	return device.Result{Status: device.StatusEnd | device.CStatusCheck, Sense: sense, Residual: residual}
}

// Hand operation to worker and wait for it to finish.
func (l *Line) run(p Pending) device.Result {
	l.pending = p
	l.started = false
	l.halted = false
	l.wake(ctlRedrive)
	for l.pending != PendIdle && l.pending != PendClosed {
		l.ipc.Wait()
	}
	res := l.result
	if res.Status&device.CStatusCheck != 0 {
		l.sense = res.Sense
	}
	return res
}

// Execute one channel command. Data holds output for write type commands
// and receives input for read type commands.
func (l *Line) Execute(cmd uint8, data []byte, count int) device.Result {
	l.lock.Lock()
	defer l.lock.Unlock()

	if count > len(data) {
		count = len(data)
	}
	l.debugf(debugCmd, "%s count %d", device.CmdName(cmd), count)
	if l.pending == PendClosed || l.closeReq {
		return l.check(device.SenseINTVENT, count)
	}
	if l.pending != PendIdle {
		return device.Result{Status: device.CStatusBusy, Residual: count}
	}

	var res device.Result
	switch cmd {
	case device.CmdNOP:
		res = end(count)
	case device.CmdSense:
		res = l.doSense(data, count)
	case device.CmdSenseID:
		id := senseID2703
		if l.cfg.Model == Model3705 {
			id = senseID3705
		}
		res = end(count - copy(data[:count], id))
	case device.CmdSetMode:
		res = l.doSetMode(data, count)
	case device.CmdEnable:
		res = l.doEnable(count)
	case device.CmdDisable:
		res = l.doDisable(count)
	case device.CmdDial:
		res = l.doDial(data, count)
	case device.CmdRead:
		res = l.doRead(data, count)
	case device.CmdWrite:
		res = l.doWrite(data, count)
	case device.CmdPoll:
		res = l.doPoll(data, count)
	case device.CmdPrepare:
		res = l.doPrepare(count)
	default:
		res = l.check(device.SenseCMDREJ, count)
	}
	l.debugf(debugCmd, "%s status %02x sense %02x residual %d", device.CmdName(cmd), res.Status, res.Sense, res.Residual)
	return res
}

// Return sense byte and clear it.
func (l *Line) doSense(data []byte, count int) device.Result {
	if count == 0 {
		return end(0)
	}
	data[0] = l.sense
	l.sense = 0
	return end(count - 1)
}

func (l *Line) doSetMode(data []byte, count int) device.Result {
	if l.cfg.SNA || l.cfg.Kind != KindBSC || count < 1 {
		return l.check(device.SenseCMDREJ, count)
	}
	l.bsc.EIB = (data[0] & 0x40) != 0
	return end(count - 1)
}

func (l *Line) doEnable(count int) device.Result {
	if l.cfg.SNA || l.link != nil {
		return end(count)
	}
	if l.cfg.Dial == DialOut {
		return l.check(device.SenseCMDREJ, count)
	}
	return withResidual(l.run(PendEnable), count)
}

func (l *Line) doDisable(count int) device.Result {
	if l.link == nil {
		l.state = stateIdle
		return end(count)
	}
	return withResidual(l.run(PendDisable), count)
}

func (l *Line) doDial(data []byte, count int) device.Result {
	if l.cfg.SNA || (l.cfg.Dial != DialOut && l.cfg.Dial != DialInOut) {
		return l.check(device.SenseCMDREJ, count)
	}
	if l.link != nil {
		return end(0)
	}
	address, err := ParseDialData(data[:count])
	if err != nil {
		slog.Warn("Bad dial data", "line", l.name(), "error", err)
		return l.check(device.SenseCMDREJ, count)
	}
	l.dialAddr = address
	res := l.run(PendDial)
	if res.Status == device.StatusEnd {
		res.Residual = 0
	}
	return res
}

func (l *Line) doRead(data []byte, count int) device.Result {
	if l.cfg.SNA {
		return l.readSNA(data, count)
	}
	if l.link == nil && !l.read.HasData() {
		return l.check(device.SenseINTVENT, count)
	}
	if l.cfg.Kind == KindAsync {
		if l.async.Interrupt {
			l.async.Interrupt = false
			return device.Result{Status: device.StatusEnd | device.CStatusExpt, Residual: count}
		}
		if !l.async.EOL {
			res := l.run(PendRead)
			if res.Status != device.StatusEnd {
				if res.Status&device.CStatusExpt != 0 {
					l.async.Interrupt = false
				}
				return withResidual(res, count)
			}
		}
		res := l.transfer(data, count)
		if !res.More {
			l.async.EOL = false
		}
		return res
	}

	if !l.read.HasData() {
		res := l.run(PendRead)
		if res.Status&device.CStatusCheck != 0 || l.halted {
			return withResidual(res, count)
		}
		out := l.transfer(data, count)
		out.Status = res.Status
		return out
	}
	return l.transfer(data, count)
}

// Move data waiting for host into buffer.
func (l *Line) transfer(data []byte, count int) device.Result {
	n := l.read.PopBuffer(data[:count])
	return device.Result{
		Status:   device.StatusEnd,
		Residual: count - n,
		More:     l.read.HasData(),
	}
}

func (l *Line) readSNA(data []byte, count int) device.Result {
	if l.pool.Pending() == 0 {
		res := l.run(PendRead)
		if res.Status != device.StatusEnd || l.pool.Pending() == 0 {
			return withResidual(res, count)
		}
	}
	f, _ := l.pool.Next()
	n := copy(data[:count], f.Bytes())
	l.debugf(debugSNA, "read PIU %s", hex.Bytes(f.Bytes()))
	l.pool.Put(f)
	return device.Result{
		Status:   device.StatusEnd,
		Residual: count - n,
		More:     l.pool.Pending() != 0,
	}
}

func (l *Line) doWrite(data []byte, count int) device.Result {
	if l.cfg.SNA {
		return l.writeSNA(data[:count])
	}
	if l.link == nil {
		return l.check(device.SenseINTVENT, count)
	}
	if l.cfg.Kind == KindAsync {
		l.out.PushBuffer(l.async.Outbound(data[:count]))
	} else {
		// Station started sending first, host must read it.
		if l.inputWaiting() {
			l.debugf(debugData, "write contention")
			return device.Result{Status: device.StatusEnd | device.CStatusExpt, Residual: count}
		}
		if l.link == nil {
			return l.check(device.SenseINTVENT, count)
		}
		l.bsc.Outbound(data[:count])
		l.out.PushBuffer(data[:count])
	}
	l.stats.FramesOut.Inc()
	res := l.run(PendWrite)
	if res.Status == device.StatusEnd {
		return end(0)
	}
	return withResidual(res, count)
}

// Check without blocking for data station sent while no operation wanted it.
func (l *Line) inputWaiting() bool {
	select {
	case data, ok := <-l.link.rx:
		if !ok {
			l.hangup("connection closed by remote")
			return false
		}
		l.received(data)
	default:
	}
	// Idle fill between blocks is not contention.
	for {
		by, ok := l.in.Peek()
		if !ok || by != bsc.SYN || l.bsc.Transparent {
			return ok
		}
		l.in.Pop()
	}
}

func (l *Line) writeSNA(piu []byte) device.Result {
	l.debugf(debugSNA, "write PIU %s", hex.Bytes(piu))
	l.stats.FramesOut.Inc()
	out, err := l.sess.Receive(piu)
	switch {
	case errors.Is(err, sna.ErrNoBuffers):
		// Reply is lost, request itself was applied.
		slog.Warn("SNA reply dropped", "line", l.name(), "error", err)
		l.stats.Overflows.Inc()
	case err != nil:
		slog.Warn("Bad PIU from host", "line", l.name(), "error", err)
		return l.check(device.SenseBADFRAME, len(piu))
	}
	if l.link == nil {
		return end(0)
	}
	l.out.PushBuffer(out.Terminal)
	if out.Hangup {
		if out.Message != "" {
			l.out.PushBuffer([]byte("\r\n" + out.Message + "\r\n"))
		}
		l.dropOut = true
	}
	if !l.out.HasData() && !l.dropOut {
		return end(0)
	}
	res := l.run(PendWrite)
	if res.Status == device.StatusEnd {
		return end(0)
	}
	return res
}

func (l *Line) doPoll(data []byte, count int) device.Result {
	if l.cfg.SNA || l.cfg.Kind != KindBSC {
		return l.check(device.SenseCMDREJ, count)
	}
	if l.link == nil {
		return l.check(device.SenseINTVENT, count)
	}
	list, err := bsc.ParsePollList(data[:count])
	if err != nil {
		return l.check(device.SenseBADFRAME, count)
	}
	// New list, or cycle ended by timeout or halt, starts at first station.
	if !l.pollActive || !bytes.Equal(data[:count], l.pollData) {
		l.pollData = bytes.Clone(data[:count])
		l.pollIndex = 0
	}
	l.pollList = list
	l.pollCount = count
	l.pollActive = true
	return l.run(PendPoll)
}

func (l *Line) doPrepare(count int) device.Result {
	switch {
	case l.cfg.SNA:
		if l.pool.Pending() != 0 {
			return end(count)
		}
	case l.link == nil:
		return l.check(device.SenseINTVENT, count)
	case l.cfg.Kind == KindAsync:
		if l.async.EOL || l.async.Interrupt {
			return end(count)
		}
	default:
		if l.in.HasData() || l.read.HasData() {
			return end(count)
		}
	}
	return withResidual(l.run(PendPrepare), count)
}

func withResidual(res device.Result, count int) device.Result {
	res.Residual = count
	return res
}

// Stop current operation.
func (l *Line) Halt() {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.pending.active() {
		return
	}
	l.debugf(debugCmd, "halt %s", l.pending)
	l.haltReq = true
	l.wake(ctlHalt)
	for l.haltReq {
		l.haltCond.Wait()
	}
}

// Report line state.
func (l *Line) Query() string {
	l.lock.Lock()
	defer l.lock.Unlock()
	str := fmt.Sprintf("%03x: %s %s", l.addr, l.cfg.Model, l.kindName())
	if !l.cfg.SNA {
		str += " dial=" + l.cfg.Dial.String()
	}
	if l.server != nil {
		str += " listen=" + l.server.Addr().String()
	}
	str += " " + l.state.String()
	if l.remote != "" {
		str += " to " + l.remote
	}
	if l.cfg.SNA {
		str += fmt.Sprintf(" lu=%04x active=%v bound=%v buffers=%d/%d",
			l.sess.LU(), l.sess.ActiveLU, l.sess.Bound, l.pool.Pending(), l.pool.Free())
	} else if l.cfg.Kind == KindAsync {
		str += " code=" + l.async.Transcoder().Name()
	}
	str += fmt.Sprintf(" pending=%s in=%s out=%s frames=%s/%s halts=%s",
		l.pending,
		humanize.Bytes(l.stats.BytesIn.Value()),
		humanize.Bytes(l.stats.BytesOut.Value()),
		humanize.Comma(int64(l.stats.FramesIn.Value())),
		humanize.Comma(int64(l.stats.FramesOut.Value())),
		humanize.Comma(int64(l.stats.Halts.Value())))
	if l.pollActive {
		str += fmt.Sprintf(" poll=%d/%d", l.pollIndex, len(l.pollList))
	}
	return str
}
