/*
 * Commadpt - SNA frame buffer pool
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

// Size of largest PIU a frame can hold.
const FrameSize = thSize + rhSize + MaxRU

// Frame holds one PIU.
type Frame struct {
	id   int
	Len  int
	Data [FrameSize]byte
}

// Return PIU held in frame.
func (f *Frame) Bytes() []byte {
	return f.Data[:f.Len]
}

// Pool is a fixed set of frames. Free and send lists hold frame indexes.
type Pool struct {
	frames []Frame
	free   []int
	send   []int
}

// Create pool of n frames, all free.
func NewPool(n int) *Pool {
	p := &Pool{frames: make([]Frame, n)}
	p.Reset()
	return p
}

// Return all frames to the free list.
func (p *Pool) Reset() {
	p.free = p.free[:0]
	p.send = p.send[:0]
	for i := range p.frames {
		p.frames[i].id = i
		p.frames[i].Len = 0
		p.free = append(p.free, i)
	}
}

// Take a frame from free list.
func (p *Pool) Get() (*Frame, bool) {
	if len(p.free) == 0 {
		return nil, false
	}
	i := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	f := &p.frames[i]
	f.Len = 0
	return f, true
}

// Return frame to free list.
func (p *Pool) Put(f *Frame) {
	p.free = append(p.free, f.id)
}

// Put frame on end of send list.
func (p *Pool) Queue(f *Frame) {
	p.send = append(p.send, f.id)
}

// Remove first frame from send list.
func (p *Pool) Next() (*Frame, bool) {
	if len(p.send) == 0 {
		return nil, false
	}
	i := p.send[0]
	p.send = append(p.send[:0], p.send[1:]...)
	return &p.frames[i], true
}

// Number of frames waiting to be sent.
func (p *Pool) Pending() int {
	return len(p.send)
}

// Number of free frames.
func (p *Pool) Free() int {
	return len(p.free)
}
