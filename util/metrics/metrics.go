/*
 * Commadpt - Line counters
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

package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holding line counters.
var Registry = prometheus.NewRegistry()

var vectors = map[string]*prometheus.CounterVec{}

func newVec(name, help string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commadpt",
		Name:      name,
		Help:      help,
	}, []string{"line"})
	Registry.MustRegister(vec)
	vectors[name] = vec
	return vec
}

var (
	bytesIn   = newVec("bytes_in_total", "Bytes received from terminal connection.")
	bytesOut  = newVec("bytes_out_total", "Bytes sent to terminal connection.")
	framesIn  = newVec("frames_in_total", "Frames or lines passed to host.")
	framesOut = newVec("frames_out_total", "Frames written by host.")
	overflows = newVec("overflows_total", "Ring buffer overflows.")
	halts     = newVec("halts_total", "Halt requests that ended an operation.")
	connects  = newVec("connects_total", "Terminal connections made.")
)

// Counter tracks a value locally and in the registry.
type Counter struct {
	value atomic.Uint64
	prom  prometheus.Counter
}

// Add n to counter.
func (c *Counter) Add(n int) {
	if n <= 0 {
		return
	}
	c.value.Add(uint64(n))
	c.prom.Add(float64(n))
}

// Add one to counter.
func (c *Counter) Inc() {
	c.Add(1)
}

// Current value of counter.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// Counters for one line.
type Line struct {
	label     string
	BytesIn   Counter
	BytesOut  Counter
	FramesIn  Counter
	FramesOut Counter
	Overflows Counter
	Halts     Counter
	Connects  Counter
}

// Create counters for line at address.
func ForLine(addr uint16) *Line {
	label := fmt.Sprintf("%03x", addr)
	l := &Line{label: label}
	l.BytesIn.prom = bytesIn.WithLabelValues(label)
	l.BytesOut.prom = bytesOut.WithLabelValues(label)
	l.FramesIn.prom = framesIn.WithLabelValues(label)
	l.FramesOut.prom = framesOut.WithLabelValues(label)
	l.Overflows.prom = overflows.WithLabelValues(label)
	l.Halts.prom = halts.WithLabelValues(label)
	l.Connects.prom = connects.WithLabelValues(label)
	return l
}

// Remove line from registry.
func (l *Line) Release() {
	for _, vec := range vectors {
		vec.DeleteLabelValues(l.label)
	}
}

// Handler serving registry in prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
