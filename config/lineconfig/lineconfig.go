/*
 * Commadpt - Line configuration
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
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	config "github.com/rcornwell/commadpt/config/configparser"
	"github.com/rcornwell/commadpt/emu/async"
	"github.com/rcornwell/commadpt/emu/line"
)

// register line adapters on initialize.
func init() {
	config.RegisterModel(line.Model2703, config.TypeModel, create2703)
	config.RegisterModel(line.Model3705, config.TypeModel, create3705)
}

func create2703(devNum uint16, _ string, options []config.Option) error {
	return createLine(line.Model2703, devNum, options)
}

func create3705(devNum uint16, _ string, options []config.Option) error {
	return createLine(line.Model3705, devNum, options)
}

// Build line from configuration file options.
func createLine(model string, devNum uint16, options []config.Option) error {
	cfg := line.Config{Model: model}
	for _, opt := range options {
		if err := Apply(&cfg, opt.Name, opt.EqualOpt, opt.Value...); err != nil {
			return err
		}
	}
	return Activate(devNum, cfg)
}

// Create line and add it to the line table.
func Activate(devNum uint16, cfg line.Config) error {
	l, err := line.New(devNum, cfg)
	if err != nil {
		return err
	}
	if err := line.Register(l); err != nil {
		_ = l.Close()
		return err
	}
	return nil
}

// Apply one named option to a line configuration. Extra holds values
// given after commas.
func Apply(cfg *line.Config, name, value string, extra ...string) error {
	var err error
	name = strings.ToLower(name)
	switch name {
	case "lport":
		cfg.LPort, err = strconv.Atoi(value)
	case "rhost":
		cfg.RHost = value
	case "rport":
		cfg.RPort, err = strconv.Atoi(value)
	case "bind":
		cfg.Bind = value
	case "dial":
		cfg.Dial, err = line.ParseDial(value)
	case "lnctl", "kind":
		cfg.Kind, err = line.ParseKind(value)
	case "term":
		cfg.Async.Term, err = async.ParseTerm(value)
		if err == nil {
			cfg.Kind = line.KindAsync
		}
	case "code":
		cfg.Async.Code = strings.ToLower(value)
	case "uctrans":
		cfg.Async.Upper, err = parseFlag(value)
	case "crlf":
		cfg.Async.CRLF, err = parseFlag(value)
	case "echo":
		cfg.Async.Echo, err = parseFlag(value)
	case "bs":
		switch strings.ToLower(value) {
		case "dumb", "yes", "":
			cfg.Async.BSEdit = true
		case "none", "no":
			cfg.Async.BSEdit = false
		default:
			err = errors.New("bs must be dumb or none")
		}
	case "break":
		switch strings.ToLower(value) {
		case "dumb", "yes", "":
			cfg.Async.DumbBreak = true
		case "none", "no":
			cfg.Async.DumbBreak = false
		default:
			err = errors.New("break must be dumb or none")
		}
	case "skip":
		cfg.Async.SkipOut, err = parseBytes(value, extra)
	case "iskip":
		cfg.Async.SkipIn, err = parseBytes(value, extra)
	case "prepend":
		cfg.Async.Prepend, err = parseBytes(value, extra)
	case "append":
		cfg.Async.Append, err = parseBytes(value, extra)
	case "eol":
		var eol []byte
		eol, err = parseBytes(value, nil)
		if err == nil && len(eol) != 1 {
			err = errors.New("eol must be a single byte")
		}
		if err == nil {
			cfg.Async.EOL = eol[0]
		}
	case "rto":
		cfg.ReadTimeout, err = parseDuration(value, time.Millisecond)
	case "pto":
		cfg.PollTimeout, err = parseDuration(value, time.Millisecond)
	case "eto":
		cfg.EnableTimeout, err = parseDuration(value, time.Millisecond)
	case "kaidle":
		cfg.KAIdle, err = parseDuration(value, time.Second)
	case "kaintv":
		cfg.KAInterval, err = parseDuration(value, time.Second)
	case "kacnt":
		cfg.KACount, err = strconv.Atoi(value)
	case "sna":
		cfg.SNA, err = parseFlag(value)
	case "maxru":
		cfg.MaxRU, err = strconv.Atoi(value)
	case "loadmod":
		cfg.LoadMod = value
	case "buffers":
		cfg.Buffers, err = strconv.Atoi(value)
	default:
		return errors.New("unknown line option: " + name)
	}
	if err != nil {
		return fmt.Errorf("option %s: %w", name, err)
	}
	return nil
}

// Empty value means option given without =.
func parseFlag(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "", "yes", "on", "true":
		return true, nil
	case "no", "off", "false":
		return false, nil
	}
	return false, errors.New("invalid flag: " + value)
}

func parseDuration(value string, unit time.Duration) (time.Duration, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative value: " + value)
	}
	return time.Duration(n) * unit, nil
}

// Hex byte string, optionally split by commas, each part may start 0x.
func parseBytes(value string, extra []string) ([]byte, error) {
	var out []byte
	for _, part := range append([]string{value}, extra...) {
		part = strings.TrimPrefix(strings.ToLower(part), "0x")
		b, err := hex.DecodeString(part)
		if err != nil {
			return nil, fmt.Errorf("invalid hex bytes: %s", part)
		}
		out = append(out, b...)
	}
	return out, nil
}
