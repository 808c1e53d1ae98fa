/*
 * Commadpt - Configuration file parser
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

package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/rcornwell/commadpt/emu/device"
)

// List of options to pass to create routine.
type Option struct {
	Name     string   // Name of option.
	EqualOpt string   // Value of string after =.
	Value    []string // Values following a comma.
}

// Option after model.
type FirstOption struct {
	devNum uint16 // Value of option if hex.
	isAddr bool   // Valid address in devNum
	value  string // String value of option.
}

// Current option line being parsed.
type optionLine struct {
	line   string // Current option line.
	pos    int    // Current position in line.
	number int    // Line number in file.
}

/* Configuration file format:
 *
 * '#' indicates comment, rest of line is ignored.
 * <line> := <model> <whitespace> <address> <whitespace> <options> |
 *            <option> <whitespace> <value> |
 *            <switch>
 * <address> ::= <hexnumber>
 * <options> ::= *(<option> *(<whitespace>))
 * <option> ::= <name> ['=' <value>] *(',' *(<whitespace>) <value>)
 * <value> ::= *<valuechar> | '"' *(<char>) '"'
 * <name> ::= <letter> *(<letter> | <number>)
 * <valuechar> ::= any character except whitespace ',' '=' '"' '#'
 */

const (
	TypeModel   = 1 + iota // Line adapter, requires address.
	TypeOption             // Accepts a option parameter.
	TypeOptions            // Accepts a value followed by list of options.
	TypeSwitch             // Option only used to set a flag.
)

// CreateFunc is called for each configuration line with a registered model.
type CreateFunc func(devNum uint16, value string, options []Option) error

// Model creation list.
type modelDef struct {
	create CreateFunc
	ty     int
}

var models = map[string]modelDef{}

// Return type of model or 0 if no model.
func getModel(mod string) int {
	model, ok := models[strings.ToUpper(mod)]
	if !ok {
		return 0
	}
	return model.ty
}

// Register should be called from init functions.
func RegisterModel(mod string, ty int, fn CreateFunc) {
	mod = strings.ToUpper(mod)
	slog.Debug("Registering model: " + mod)
	models[mod] = modelDef{create: fn, ty: ty}
}

// Register should be called from init functions.
func RegisterSwitch(mod string, fn CreateFunc) {
	RegisterModel(mod, TypeSwitch, fn)
}

// Register should be called from init functions.
func RegisterOption(mod string, fn CreateFunc) {
	RegisterModel(mod, TypeOption, fn)
}

// Call create function for model, checking it is of type ty.
func create(mod string, ty int, first *FirstOption, options []Option) error {
	mod = strings.ToUpper(mod)
	model, ok := models[mod]
	if !ok {
		return errors.New("unknown model: " + mod)
	}
	if model.ty != ty {
		return fmt.Errorf("%s is not a %s", mod, typeName(ty))
	}
	if first == nil {
		return model.create(device.NoDev, "", options)
	}
	if ty == TypeModel {
		return model.create(first.devNum, "", options)
	}
	if first.isAddr {
		return model.create(first.devNum, first.value, options)
	}
	return model.create(device.NoDev, first.value, options)
}

func typeName(ty int) string {
	switch ty {
	case TypeModel:
		return "device"
	case TypeOption:
		return "option"
	case TypeOptions:
		return "options"
	case TypeSwitch:
		return "switch"
	}
	return "unknown"
}

// Load in a configuration file.
func LoadConfigFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()
	return Load(file)
}

// Load configuration lines from reader.
func Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	number := 0
	for scanner.Scan() {
		number++
		line := optionLine{line: scanner.Text(), number: number}
		if err := line.parseLine(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Return error tagged with current line number.
func (line *optionLine) errorf(format string, args ...any) error {
	return fmt.Errorf("%s, line: %d", fmt.Sprintf(format, args...), line.number)
}

// Parse one line from file.
func (line *optionLine) parseLine() error {
	model := line.parseModel()
	if model == "" {
		return nil
	}
	switch getModel(model) {
	case TypeModel:
		first, err := line.parseFirst()
		if err != nil {
			return err
		}
		if first == nil || !first.isAddr {
			return line.errorf("device %s requires device address", model)
		}
		options, err := line.parseOptions()
		if err != nil {
			return err
		}
		if err := create(model, TypeModel, first, options); err != nil {
			return line.errorf("%s %03x: %v", model, first.devNum, err)
		}
		return nil

	case TypeOption:
		first, err := line.parseFirst()
		if err != nil {
			return err
		}
		line.skipSpace()
		if !line.isEOL() || first == nil {
			return line.errorf("option: %s not followed by value", model)
		}
		return create(model, TypeOption, first, nil)

	case TypeOptions:
		first, err := line.parseFirst()
		if err != nil {
			return err
		}
		if first == nil {
			return line.errorf("option: %s not followed by value", model)
		}
		options, err := line.parseOptions()
		if err != nil {
			return err
		}
		return create(model, TypeOptions, first, options)

	case TypeSwitch:
		line.skipSpace()
		if !line.isEOL() {
			return line.errorf("switch option: %s followed by options", model)
		}
		return create(model, TypeSwitch, nil, nil)
	}
	return line.errorf("no type: %s registered", model)
}

// Skip forward over line until none whitespace character found.
func (line *optionLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

// Check if at end of line.
func (line *optionLine) isEOL() bool {
	return line.pos >= len(line.line) || line.line[line.pos] == '#'
}

// Current character, 0 at end of line.
func (line *optionLine) peek() byte {
	if line.isEOL() {
		return 0
	}
	return line.line[line.pos]
}

func isNameChar(by byte) bool {
	return unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by))
}

func isValueChar(by byte) bool {
	switch by {
	case 0, ',', '=', '"', '#':
		return false
	}
	return !unicode.IsSpace(rune(by))
}

// Parse model name.
func (line *optionLine) parseModel() string {
	line.skipSpace()
	start := line.pos
	for !line.isEOL() && isNameChar(line.line[line.pos]) {
		line.pos++
	}
	return strings.ToUpper(line.line[start:line.pos])
}

// Parse first option parameter.
func (line *optionLine) parseFirst() (*FirstOption, error) {
	line.skipSpace()
	if line.isEOL() {
		return nil, nil
	}
	value, err := line.parseValue()
	if err != nil {
		return nil, err
	}
	option := FirstOption{devNum: device.NoDev, value: value}
	if devNum, err := strconv.ParseUint(value, 16, 12); err == nil {
		option.devNum = uint16(devNum)
		option.isAddr = true
	}
	return &option, nil
}

// Parse string that is "string" or just string.
func (line *optionLine) parseValue() (string, error) {
	if line.peek() != '"' {
		start := line.pos
		for isValueChar(line.peek()) {
			line.pos++
		}
		return line.line[start:line.pos], nil
	}

	// Quoted string, "" gets replaced by single quote.
	var value strings.Builder
	line.pos++
	for line.pos < len(line.line) {
		by := line.line[line.pos]
		line.pos++
		if by == '"' {
			if line.pos < len(line.line) && line.line[line.pos] == '"' {
				line.pos++
			} else {
				return value.String(), nil
			}
		}
		value.WriteByte(by)
	}
	return "", line.errorf("invalid quoted string [%d]", line.pos)
}

// Parse option name.
func (line *optionLine) getName() (string, error) {
	if line.isEOL() {
		return "", nil
	}

	// First character must be alphabetic.
	if !unicode.IsLetter(rune(line.line[line.pos])) {
		return "", line.errorf("invalid option encountered [%d]", line.pos)
	}
	start := line.pos
	for !line.isEOL() && isNameChar(line.line[line.pos]) {
		line.pos++
	}
	return line.line[start:line.pos], nil
}

// Parse options for a line.
func (line *optionLine) parseOption() (*Option, error) {
	line.skipSpace()

	name, err := line.getName()
	if name == "" {
		return nil, err
	}
	option := Option{Name: name}

	// Check if equals option.
	if line.peek() == '=' {
		line.pos++
		option.EqualOpt, err = line.parseValue()
		if err != nil {
			return nil, err
		}
	}

	line.skipSpace()

	// Grab all , options
	for line.peek() == ',' {
		line.pos++
		line.skipSpace()
		v, err := line.parseValue()
		if err != nil {
			return nil, err
		}
		if v != "" {
			option.Value = append(option.Value, v)
		}
		line.skipSpace()
	}

	if !line.isEOL() && !unicode.IsLetter(rune(line.line[line.pos])) {
		return nil, line.errorf("invalid option encountered [%d]", line.pos)
	}
	return &option, nil
}

// Collect all options for line.
func (line *optionLine) parseOptions() ([]Option, error) {
	options := []Option{}
	for {
		option, err := line.parseOption()
		if err != nil {
			return nil, err
		}
		if option == nil {
			break
		}
		options = append(options, *option)
	}
	return options, nil
}
