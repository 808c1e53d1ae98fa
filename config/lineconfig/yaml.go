/*
 * Commadpt - YAML line configuration
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
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/rcornwell/commadpt/config/debugconfig"
	"github.com/rcornwell/commadpt/emu/line"
	"github.com/rcornwell/commadpt/util/debug"
)

// YAML configuration file layout.
//
//	lines:
//	  - addr: "040"
//	    model: 2703
//	    lport: 3780
//	    skip: [88, C9]
//	debug:
//	  file: trace.log
//	  lines:
//	    "040": [CMD, DATA]
type yamlFile struct {
	Lines []map[string]yaml.Node `yaml:"lines"`
	Debug struct {
		File  string              `yaml:"file"`
		Lines map[string][]string `yaml:"lines"`
	} `yaml:"debug"`
}

// A line parsed from YAML but not yet activated.
type lineDef struct {
	addr uint16
	cfg  line.Config
}

// Load a YAML configuration file.
func LoadYAML(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()
	return DecodeYAML(file)
}

// Decode YAML configuration and activate its lines.
func DecodeYAML(r io.Reader) error {
	var f yamlFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("yaml: %w", err)
	}

	defs := make([]lineDef, 0, len(f.Lines))
	for i, node := range f.Lines {
		def, err := parseLine(node)
		if err != nil {
			return fmt.Errorf("line entry %d: %w", i+1, err)
		}
		defs = append(defs, def)
	}

	if f.Debug.File != "" {
		if err := debug.SetFile(f.Debug.File); err != nil {
			return err
		}
	}

	var g errgroup.Group
	for _, def := range defs {
		g.Go(func() error {
			return Activate(def.addr, def.cfg)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for addr, opts := range f.Debug.Lines {
		devNum, err := parseAddr(addr)
		if err != nil {
			return err
		}
		if err := debugconfig.Enable(devNum, opts...); err != nil {
			return err
		}
	}
	return nil
}

// Turn one YAML mapping into a line definition.
func parseLine(node map[string]yaml.Node) (lineDef, error) {
	def := lineDef{cfg: line.Config{Model: line.Model2703}}
	addrNode, ok := node["addr"]
	if !ok {
		return def, errors.New("addr required")
	}
	addr, err := parseAddr(addrNode.Value)
	if err != nil {
		return def, err
	}
	def.addr = addr
	if model, ok := node["model"]; ok {
		def.cfg.Model = model.Value
	}

	keys := make([]string, 0, len(node))
	for key := range node {
		if key != "addr" && key != "model" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := node[key]
		switch value.Kind {
		case yaml.ScalarNode:
			err = Apply(&def.cfg, key, value.Value)
		case yaml.SequenceNode:
			values := make([]string, 0, len(value.Content))
			for _, item := range value.Content {
				values = append(values, item.Value)
			}
			if len(values) == 0 {
				values = append(values, "")
			}
			err = Apply(&def.cfg, key, values[0], values[1:]...)
		default:
			err = fmt.Errorf("option %s must be a value or list", key)
		}
		if err != nil {
			return def, fmt.Errorf("line %03x: %w", addr, err)
		}
	}
	return def, nil
}

// Line address in hex.
func parseAddr(value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 16, 12)
	if err != nil {
		return 0, errors.New("invalid line address: " + value)
	}
	return uint16(addr), nil
}
