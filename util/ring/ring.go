/*
 * Commadpt - Byte ring buffer
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

package ring

// Ring is a fixed size circular byte queue. When full the oldest byte
// is overwritten and the overflow flag is set. Callers must provide
// their own locking.
type Ring struct {
	buf      []byte // Ring storage, one slot larger than capacity.
	hi       int    // Next slot to fill.
	lo       int    // Next slot to empty.
	overflow bool   // Data was lost.
}

// Create a new ring able to hold size bytes.
func New(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{buf: make([]byte, size+1)}
}

// Push a byte on to ring.
func (r *Ring) Push(by byte) {
	r.buf[r.hi] = by
	r.hi = r.next(r.hi)
	if r.hi == r.lo {
		// Drop oldest byte.
		r.lo = r.next(r.lo)
		r.overflow = true
	}
}

// Push a buffer of data on to ring.
func (r *Ring) PushBuffer(data []byte) {
	for _, by := range data {
		r.Push(by)
	}
}

// Pop a byte from ring, returns 0 when empty.
func (r *Ring) Pop() byte {
	if r.hi == r.lo {
		return 0
	}
	by := r.buf[r.lo]
	r.lo = r.next(r.lo)
	return by
}

// Peek at next byte without removing it.
func (r *Ring) Peek() (byte, bool) {
	if r.hi == r.lo {
		return 0, false
	}
	return r.buf[r.lo], true
}

// Pop up to len(data) bytes, returns number of bytes popped.
func (r *Ring) PopBuffer(data []byte) int {
	n := 0
	for n < len(data) && r.hi != r.lo {
		data[n] = r.buf[r.lo]
		r.lo = r.next(r.lo)
		n++
	}
	return n
}

// Flush all data and clear overflow.
func (r *Ring) Flush() {
	r.hi = 0
	r.lo = 0
	r.overflow = false
}

// Return true if ring has any data.
func (r *Ring) HasData() bool {
	return r.hi != r.lo
}

// Number of bytes waiting in ring.
func (r *Ring) Len() int {
	if r.hi >= r.lo {
		return r.hi - r.lo
	}
	return len(r.buf) - r.lo + r.hi
}

// Capacity of ring.
func (r *Ring) Cap() int {
	return len(r.buf) - 1
}

// Return true if data has been lost since last flush or clear.
func (r *Ring) Overflow() bool {
	return r.overflow
}

// Reset overflow indicator.
func (r *Ring) ClearOverflow() {
	r.overflow = false
}

// Return copy of contents without removing them.
func (r *Ring) Bytes() []byte {
	out := make([]byte, 0, r.Len())
	for i := r.lo; i != r.hi; i = r.next(i) {
		out = append(out, r.buf[i])
	}
	return out
}

func (r *Ring) next(i int) int {
	i++
	if i == len(r.buf) {
		return 0
	}
	return i
}
