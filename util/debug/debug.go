/*
 * Commadpt - Debug trace output
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

package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

var (
	logLock sync.Mutex
	logFile *os.File
)

// Generic debug message.
func Debugf(module string, mask int, level int, format string, a ...interface{}) {
	if (mask & level) != 0 {
		output(module+": "+format, a...)
	}
}

// Device debug message.
func DebugDevf(devNum uint16, mask int, level int, format string, a ...interface{}) {
	if (mask & level) != 0 {
		dev := strconv.FormatUint(uint64(devNum), 16)
		output(dev+": "+format, a...)
	}
}

// Send message to debug file, or slog when none open.
func output(format string, a ...interface{}) {
	logLock.Lock()
	defer logLock.Unlock()
	if logFile == nil {
		slog.Debug(fmt.Sprintf(format, a...))
		return
	}
	fmt.Fprintf(logFile, format+"\n", a...)
}

// Open debug file.
func SetFile(fileName string) error {
	logLock.Lock()
	defer logLock.Unlock()
	if logFile != nil {
		return fmt.Errorf("can't have more then one debug file, previous: %s", logFile.Name())
	}

	file, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("unable to create debug file: %s: %w", fileName, err)
	}

	logFile = file
	return nil
}

// Close debug file.
func Close() error {
	logLock.Lock()
	defer logLock.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// Convert list of option names into mask bits.
func ParseMask(names map[string]int, opts ...string) (int, error) {
	mask := 0
	for _, opt := range opts {
		bit, ok := names[opt]
		if !ok {
			return 0, fmt.Errorf("invalid debug option: %s", opt)
		}
		mask |= bit
	}
	return mask, nil
}
