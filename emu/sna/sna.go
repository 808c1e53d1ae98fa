/*
 * Commadpt - SNA path information unit engine
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

package sna

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rcornwell/commadpt/telnet"
	"github.com/rcornwell/commadpt/util/ring"
	"github.com/rcornwell/commadpt/util/xlat"
)

const (
	thSize = 10  // FID1 transmission header
	rhSize = 3   // Request/response header
	MaxRU  = 256 // Largest request unit
)

// Transmission header.
const (
	thFID1 = 0x1C // FID1, whole BIU
	thDAF  = 2
	thOAF  = 4
	thSNF  = 6
	thDCF  = 8
)

// Request header byte 0.
const (
	rhRRI   = 0x80 // Response
	rhCat   = 0x60 // Category mask
	rhFMD   = 0x00
	rhNC    = 0x20
	rhDFC   = 0x40
	rhSC    = 0x60
	rhFI    = 0x08 // Format indicator
	rhSDI   = 0x04 // Sense data included
	rhBCI   = 0x02 // Begin chain
	rhECI   = 0x01 // End chain
	rhChain = rhBCI | rhECI
)

// Request header byte 1.
const (
	rhDR1 = 0x80
	rhDR2 = 0x20
	rhERI = 0x10 // Exception response only, negative on response
)

// Request header byte 2.
const (
	rhCDI = 0x20 // Change direction
)

// Session control request codes.
const (
	scACTLU  = 0x0D
	scDACTLU = 0x0E
	scACTPU  = 0x11
	scDACTPU = 0x12
	scBIND   = 0x31
	scUNBIND = 0x32
	scSDT    = 0xA0
	scCLEAR  = 0xA1
	dfcSIG   = 0xC9
)

// Network services headers.
const (
	nsContact    = 0x010201
	nsDiscontact = 0x010202
	nsABConn     = 0x01020F
	nsContacted  = 0x010280
	nsNotify     = 0x810620
)

// Flow paths that carry their own sequence numbers.
const (
	pathSSCPPU = iota
	pathSSCPLU
	pathLULU
	pathExpedited
	pathCount
)

var (
	ErrShortPIU  = errors.New("PIU too short")
	ErrNotFID1   = errors.New("PIU not FID1")
	ErrNoBuffers = errors.New("no free frame buffers")
)

// Session options.
type Options struct {
	MaxRU   int    // Largest RU sent to host
	LoadMod string // Name returned on ACTPU
}

// Result of processing a PIU from host.
type Output struct {
	Terminal []byte // Data for terminal
	Hangup   bool   // Drop terminal connection
	Message  string // Text to show terminal before hangup
}

// Session tracks the PU and the single LU of a line.
type Session struct {
	pool      *Pool
	maxRU     int
	loadMod   [8]byte
	sscp      uint16 // SSCP address
	pu        uint16 // PU address
	lu        uint16 // LU address
	tso       uint16 // Partner of bound session
	seq       [pathCount]uint16
	ActivePU  bool
	ActiveLU  bool
	Bound     bool
	Is3270    bool // Terminal takes 3270 data stream
	Connected bool // Terminal attached to LU
	Trace     func(format string, a ...any)
}

// Create session sending frames from pool.
func NewSession(pool *Pool, opts Options) *Session {
	s := &Session{pool: pool, maxRU: opts.MaxRU}
	if s.maxRU <= 0 || s.maxRU > MaxRU {
		s.maxRU = MaxRU
	}
	name := opts.LoadMod
	if name == "" {
		name = "NCP"
	}
	for i := range s.loadMod {
		s.loadMod[i] = xlat.ASCIIToEBCDIC[' ']
		if i < len(name) {
			s.loadMod[i] = xlat.ASCIIToEBCDIC[name[i]]
		}
	}
	return s
}

func (s *Session) trace(format string, a ...any) {
	if s.Trace != nil {
		s.Trace(format, a...)
	}
}

// Clear all session state, frames waiting for the host are dropped.
func (s *Session) Reset() {
	s.sscp, s.pu, s.lu, s.tso = 0, 0, 0, 0
	s.seq = [pathCount]uint16{}
	s.ActivePU = false
	s.ActiveLU = false
	s.Bound = false
	s.pool.Reset()
}

// Return LU address.
func (s *Session) LU() uint16 {
	return s.lu
}

func (s *Session) nextSeq(path int) uint16 {
	s.seq[path]++
	return s.seq[path]
}

// Fill in header of frame.
func putHeader(f *Frame, daf, oaf, snf uint16, rh0, rh1, rh2 byte, ru []byte) {
	d := f.Data[:]
	d[0] = thFID1
	d[1] = 0
	binary.BigEndian.PutUint16(d[thDAF:], daf)
	binary.BigEndian.PutUint16(d[thOAF:], oaf)
	binary.BigEndian.PutUint16(d[thSNF:], snf)
	binary.BigEndian.PutUint16(d[thDCF:], uint16(rhSize+len(ru)))
	d[thSize] = rh0
	d[thSize+1] = rh1
	d[thSize+2] = rh2
	f.Len = thSize + rhSize + copy(d[thSize+rhSize:], ru)
}

// Queue a request to the host.
func (s *Session) queue(daf, oaf uint16, path int, rh0, rh1, rh2 byte, ru []byte) error {
	f, ok := s.pool.Get()
	if !ok {
		return ErrNoBuffers
	}
	putHeader(f, daf, oaf, s.nextSeq(path), rh0, rh1, rh2, ru)
	s.pool.Queue(f)
	return nil
}

// Turn terminal input into data requests. Returns number of frames queued.
func (s *Session) BuildRequests(work *ring.Ring) (int, error) {
	if !s.ActiveLU {
		s.trace("LU not active, input dropped")
		work.Flush()
		return 0, nil
	}
	count := 0
	first := true
	for work.HasData() {
		f, ok := s.pool.Get()
		if !ok {
			work.Flush()
			return count, ErrNoBuffers
		}
		ru := make([]byte, min(work.Len(), s.maxRU))
		work.PopBuffer(ru)
		var rh0, rh2 byte
		if first {
			rh0 |= rhBCI
		}
		last := !work.HasData()
		if last {
			rh0 |= rhECI
		}
		if s.Bound {
			if last {
				rh2 |= rhCDI
			}
			putHeader(f, s.tso, s.lu, s.nextSeq(pathLULU), rh0, rhDR1|rhERI, rh2, ru)
		} else {
			putHeader(f, s.sscp, s.lu, s.nextSeq(pathSSCPLU), rh0, rhDR1|rhERI, rh2, ru)
		}
		s.pool.Queue(f)
		first = false
		count++
	}
	return count, nil
}

// Send SIGNAL to partner of bound session.
func (s *Session) Signal() error {
	if !s.Bound {
		return nil
	}
	s.trace("send SIGNAL")
	return s.queue(s.tso, s.lu, pathExpedited, rhDFC|rhFI|rhChain, rhDR1, 0,
		[]byte{dfcSIG, 0x00, 0x01, 0x00, 0x00})
}

// Tell SSCP terminal availability of the LU.
func (s *Session) Notify(available bool) error {
	if !s.ActiveLU {
		return nil
	}
	status := byte(0x01)
	if available {
		status = 0x03
	}
	s.trace("send NOTIFY available %v", available)
	ru := append(nsHeader(nsNotify), 0x0C, 0x06, status, 0x00, 0x01, 0x00, 0x00)
	return s.queue(s.sscp, s.lu, pathSSCPLU, rhFMD|rhFI|rhChain, rhDR1, 0, ru)
}

func nsHeader(ns uint32) []byte {
	return []byte{byte(ns >> 16), byte(ns >> 8), byte(ns)}
}

// Queue response to request in piu.
func (s *Session) respond(piu []byte, ru []byte, sense uint32) error {
	f, ok := s.pool.Get()
	if !ok {
		return ErrNoBuffers
	}
	daf := binary.BigEndian.Uint16(piu[thOAF:])
	oaf := binary.BigEndian.Uint16(piu[thDAF:])
	snf := binary.BigEndian.Uint16(piu[thSNF:])
	rh0 := rhRRI | (piu[thSize] & (rhCat | rhFI)) | rhChain
	rh1 := piu[thSize+1] & (rhDR1 | rhDR2)
	if sense != 0 {
		rh0 |= rhSDI
		rh1 |= rhERI
		data := make([]byte, 4, 4+len(ru))
		binary.BigEndian.PutUint32(data, sense)
		ru = append(data, ru...)
	}
	putHeader(f, daf, oaf, snf, rh0, rh1, 0, ru)
	s.pool.Queue(f)
	return nil
}

// True if request wants a definite response.
func definite(rh1 byte) bool {
	return rh1&(rhDR1|rhDR2) != 0 && rh1&rhERI == 0
}

// Process a PIU written by the host.
func (s *Session) Receive(piu []byte) (Output, error) {
	var out Output
	if len(piu) < thSize+rhSize {
		return out, fmt.Errorf("%w: %d bytes", ErrShortPIU, len(piu))
	}
	if piu[0]&0xF0 != 0x10 {
		return out, fmt.Errorf("%w: FID %02x", ErrNotFID1, piu[0]>>4)
	}
	dcf := int(binary.BigEndian.Uint16(piu[thDCF:]))
	if dcf >= rhSize && thSize+dcf <= len(piu) {
		piu = piu[:thSize+dcf]
	}
	daf := binary.BigEndian.Uint16(piu[thDAF:])
	oaf := binary.BigEndian.Uint16(piu[thOAF:])
	rh0 := piu[thSize]
	rh1 := piu[thSize+1]
	ru := piu[thSize+rhSize:]

	if rh0&rhRRI != 0 {
		return out, nil
	}

	switch rh0 & rhCat {
	case rhSC:
		return s.control(piu, daf, oaf, ru)
	case rhFMD:
		if rh0&rhFI != 0 {
			return s.services(piu, ru)
		}
		if s.ActiveLU && daf == s.lu {
			out.Terminal = s.terminalData(ru, rh0&rhECI != 0)
		}
	}
	if definite(rh1) {
		var code []byte
		if rh0&rhCat != rhFMD && len(ru) != 0 {
			code = ru[:1]
		}
		return out, s.respond(piu, code, 0)
	}
	return out, nil
}

// Convert data for LU into terminal output.
func (s *Session) terminalData(ru []byte, end bool) []byte {
	if s.Is3270 {
		if end {
			return telnet.Record(ru)
		}
		return telnet.Escape(ru)
	}
	out := make([]byte, 0, len(ru)+8)
	for _, by := range ru {
		ch := xlat.EBCDICToASCII[by]
		if ch == '\n' {
			out = append(out, '\r')
		}
		out = append(out, ch)
	}
	return telnet.Escape(out)
}

// Process session control request.
func (s *Session) control(piu []byte, daf, oaf uint16, ru []byte) (Output, error) {
	var out Output
	if len(ru) == 0 {
		return out, fmt.Errorf("%w: empty RU", ErrShortPIU)
	}
	resp := ru[:1]
	switch ru[0] {
	case scACTPU:
		s.trace("ACTPU pu %04x sscp %04x", daf, oaf)
		s.pu = daf
		s.sscp = oaf
		s.seq = [pathCount]uint16{}
		s.ActivePU = true
		resp = append([]byte{scACTPU, 0x02}, s.loadMod[:]...)
	case scDACTPU:
		s.trace("DACTPU")
		s.Reset()
		if s.Connected {
			out.Hangup = true
			out.Message = "Physical unit deactivated by host"
		}
	case scACTLU:
		s.trace("ACTLU lu %04x sscp %04x", daf, oaf)
		s.lu = daf
		s.sscp = oaf
		s.ActiveLU = true
		s.Bound = false
		resp = []byte{scACTLU, 0x01, 0x01}
	case scDACTLU:
		s.trace("DACTLU")
		s.ActiveLU = false
		s.Bound = false
		if s.Connected {
			out.Hangup = true
			out.Message = "Logical unit deactivated by host"
		}
	case scBIND:
		s.trace("BIND partner %04x", oaf)
		s.tso = oaf
		s.Bound = true
	case scUNBIND:
		s.trace("UNBIND")
		s.Bound = false
	case scSDT, scCLEAR:
	default:
		if definite(piu[thSize+1]) {
			s.trace("reject SC %02x", ru[0])
			return out, s.respond(piu, ru[:1], 0x10030000)
		}
		return out, nil
	}
	var err error
	if definite(piu[thSize+1]) {
		err = s.respond(piu, resp, 0)
	}
	if err == nil && ru[0] == scACTLU && s.Connected {
		err = s.Notify(true)
	}
	return out, err
}

// Process network services request.
func (s *Session) services(piu []byte, ru []byte) (Output, error) {
	var out Output
	if len(ru) < 3 {
		return out, fmt.Errorf("%w: network services header", ErrShortPIU)
	}
	ns := uint32(ru[0])<<16 | uint32(ru[1])<<8 | uint32(ru[2])
	rh1 := piu[thSize+1]
	switch ns {
	case nsContact:
		s.trace("CONTACT")
		if definite(rh1) {
			if err := s.respond(piu, ru[:3], 0); err != nil {
				return out, err
			}
		}
		contacted := nsHeader(nsContacted)
		contacted = append(contacted, ru[3:min(5, len(ru))]...)
		contacted = append(contacted, 0x01)
		return out, s.queue(s.sscp, s.pu, pathSSCPPU, rhFMD|rhFI|rhChain, rhDR1, 0, contacted)
	case nsDiscontact:
		s.trace("DISCONTACT")
	case nsABConn:
		s.trace("ABCONN")
		s.Bound = false
		if s.Connected {
			out.Hangup = true
			out.Message = "Session terminated by host"
		}
	default:
		if definite(rh1) {
			s.trace("reject NS %06x", ns)
			return out, s.respond(piu, ru[:3], 0x10030000)
		}
		return out, nil
	}
	if definite(rh1) {
		return out, s.respond(piu, ru[:3], 0)
	}
	return out, nil
}
