/*
 * Commadpt - Debug configuration
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

package debugconfig

import (
	"errors"
	"strings"

	config "github.com/rcornwell/commadpt/config/configparser"
	"github.com/rcornwell/commadpt/emu/device"
	"github.com/rcornwell/commadpt/emu/line"
	"github.com/rcornwell/commadpt/util/debug"
)

// register debug options on initialize.
func init() {
	config.RegisterModel("DEBUG", config.TypeOptions, setDebug)
	config.RegisterOption("DEBUGFILE", setDebugFile)
	config.RegisterSwitch("DEBUGALL", setDebugAll)
}

// Process DEBUG <addr> opt,opt line.
func setDebug(devNum uint16, value string, options []config.Option) error {
	if devNum == device.NoDev {
		return errors.New("debug option invalid: " + value)
	}
	opts := []string{}
	for _, opt := range options {
		if opt.EqualOpt != "" {
			return errors.New("debug option can't have value: " + opt.Name)
		}
		opts = append(opts, opt.Name)
		opts = append(opts, opt.Value...)
	}
	return Enable(devNum, opts...)
}

// Send debug output to file.
func setDebugFile(_ uint16, fileName string, _ []config.Option) error {
	return debug.SetFile(fileName)
}

// Trace everything on every line defined so far.
func setDebugAll(_ uint16, _ string, _ []config.Option) error {
	for _, l := range line.All() {
		if err := l.Debug("ALL"); err != nil {
			return err
		}
	}
	return nil
}

// Enable debug options on line.
func Enable(devNum uint16, opts ...string) error {
	l, err := line.Get(devNum)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		if err := l.Debug(strings.ToUpper(opt)); err != nil {
			return err
		}
	}
	return nil
}
