/*
 * Commadpt - Configuration file parser test set.
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
	"strings"
	"testing"

	"github.com/rcornwell/commadpt/emu/device"
)

var testOptions []Option
var testDevNum uint16
var testValue string
var testType string

func resetTest() {
	testOptions = []Option{}
	testDevNum = 0xffff
	testValue = "error"
	testType = ""
}

func cleanUpConfig() {
	models = map[string]modelDef{}
	resetTest()
}

// Create a device.
func modDevice(devNum uint16, value string, options []Option) error {
	testDevNum = devNum
	testValue = value
	testType = "model"
	testOptions = options
	return nil
}

// Create a switch.
func modSwitch(devNum uint16, value string, options []Option) error {
	testDevNum = devNum
	testValue = value
	testType = "switch"
	testOptions = options
	return nil
}

// Create a Option type.
func modOption(devNum uint16, value string, options []Option) error {
	testDevNum = devNum
	testValue = value
	testType = "option"
	testOptions = options
	return nil
}

// Test regisering a model.
func TestRegisterModel(t *testing.T) {
	cleanUpConfig()

	RegisterModel("testdev", TypeModel, modDevice)
	fTest := FirstOption{devNum: 0x100, isAddr: true, value: "test"}
	err := create("test", TypeModel, &fTest, nil)
	if err == nil {
		t.Errorf("Create non existent model succeeded")
	}
	err = create("testdev", TypeModel, &fTest, nil)
	if err != nil {
		t.Errorf("Unable to create model")
	}
	if testDevNum != 0x100 {
		t.Errorf("Device number not valid: %d", testDevNum)
	}
	if testValue != "" {
		t.Errorf("Device value not valid: %s", testValue)
	}
	err = create("testdev", TypeSwitch, nil, nil)
	if err == nil {
		t.Errorf("Create device as switch succeeded")
	}
}

// Test register a switch.
func TestRegisterSwitch(t *testing.T) {
	cleanUpConfig()

	RegisterSwitch("testswitch", modSwitch)
	if getModel("TESTSWITCH") != TypeSwitch {
		t.Errorf("Switch not registered")
	}
	err := create("testswitch", TypeSwitch, nil, nil)
	if err != nil {
		t.Errorf("Unable to create switch: %v", err)
	}
	if testType != "switch" {
		t.Errorf("Switch create not called")
	}
	if testDevNum != device.NoDev {
		t.Errorf("Switch given address: %04x", testDevNum)
	}
}

// Test register an option.
func TestRegisterOption(t *testing.T) {
	cleanUpConfig()

	RegisterOption("testoption", modOption)
	fTest := FirstOption{devNum: device.NoDev, value: "value"}
	err := create("testoption", TypeOption, &fTest, nil)
	if err != nil {
		t.Errorf("Unable to create option: %v", err)
	}
	if testValue != "value" {
		t.Errorf("Option value not valid: %s", testValue)
	}
	if testDevNum != device.NoDev {
		t.Errorf("Option given address: %04x", testDevNum)
	}
	err = create("testoption", TypeModel, &fTest, nil)
	if err == nil {
		t.Errorf("Create option as device succeeded")
	}
}

func TestParseLineSwitch(t *testing.T) {
	cleanUpConfig()
	RegisterSwitch("testswitch", modSwitch)

	line := optionLine{line: "  testswitch   # comment"}
	if err := line.parseLine(); err != nil {
		t.Errorf("ParseLine failed: %v", err)
	}
	if testType != "switch" {
		t.Errorf("ParseLine did not create switch")
	}

	resetTest()
	line = optionLine{line: "testswitch extra"}
	if err := line.parseLine(); err == nil {
		t.Errorf("ParseLine accepted switch with options")
	}
	if testType != "" {
		t.Errorf("ParseLine created switch with options")
	}
}

func TestParseLineOption(t *testing.T) {
	cleanUpConfig()
	RegisterOption("testoption", modOption)

	line := optionLine{line: "testoption trace.log"}
	if err := line.parseLine(); err != nil {
		t.Errorf("ParseLine failed: %v", err)
	}
	if testType != "option" || testValue != "trace.log" {
		t.Errorf("ParseLine option %s value %s", testType, testValue)
	}

	resetTest()
	line = optionLine{line: `testoption "my file.log"  `}
	if err := line.parseLine(); err != nil {
		t.Errorf("ParseLine failed: %v", err)
	}
	if testValue != "my file.log" {
		t.Errorf("ParseLine quoted value: %s", testValue)
	}

	resetTest()
	line = optionLine{line: "testoption"}
	if err := line.parseLine(); err == nil {
		t.Errorf("ParseLine accepted option without value")
	}

	resetTest()
	line = optionLine{line: "testoption one two"}
	if err := line.parseLine(); err == nil {
		t.Errorf("ParseLine accepted option with two values")
	}
}

func TestParseLineModel(t *testing.T) {
	cleanUpConfig()
	RegisterModel("testDevice", TypeModel, modDevice)

	line := optionLine{line: "testDevice 0100    "}
	if err := line.parseLine(); err != nil {
		t.Errorf("ParseLine failed to parse address: %v", err)
	}
	if testType != "model" {
		t.Errorf("ParseLine did not create a device")
	}
	if testDevNum != 0x100 {
		t.Errorf("Model set address to %04x", testDevNum)
	}
	if len(testOptions) != 0 {
		t.Errorf("ParseLine gave device some extra options: %d", len(testOptions))
	}

	resetTest()
	line = optionLine{line: "testDevice"}
	if err := line.parseLine(); err == nil {
		t.Errorf("ParseLine accepted device without address")
	}

	resetTest()
	line = optionLine{line: "testDevice xyz"}
	if err := line.parseLine(); err == nil {
		t.Errorf("ParseLine accepted device with bad address")
	}

	resetTest()
	line = optionLine{line: "unknown 100"}
	if err := line.parseLine(); err == nil {
		t.Errorf("ParseLine accepted unregistered model")
	}
}

func TestParseLineModelOptions(t *testing.T) {
	cleanUpConfig()
	RegisterModel("testDevice", TypeModel, modDevice)

	line := optionLine{line: "testDevice 0100   single second  "}
	if err := line.parseLine(); err != nil {
		t.Errorf("ParseLine failed: %v", err)
	}
	if len(testOptions) != 2 {
		t.Fatalf("ParseLine gave device %d options", len(testOptions))
	}
	if testOptions[0].Name != "single" || testOptions[0].EqualOpt != "" || len(testOptions[0].Value) != 0 {
		t.Errorf("ParseLine first option wrong: %v", testOptions[0])
	}
	if testOptions[1].Name != "second" || testOptions[1].EqualOpt != "" || len(testOptions[1].Value) != 0 {
		t.Errorf("ParseLine second option wrong: %v", testOptions[1])
	}
}

func TestParseLineModelOptionsEqual(t *testing.T) {
	cleanUpConfig()
	RegisterModel("2703", TypeModel, modDevice)

	line := optionLine{line: "2703 040 lport=3270 rhost=10.0.0.1 skip=0x00,0x16 eol=15"}
	if err := line.parseLine(); err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if testDevNum != 0x40 {
		t.Errorf("Model set address to %04x", testDevNum)
	}
	if len(testOptions) != 4 {
		t.Fatalf("ParseLine gave device %d options", len(testOptions))
	}
	if testOptions[0].Name != "lport" || testOptions[0].EqualOpt != "3270" {
		t.Errorf("ParseLine lport wrong: %v", testOptions[0])
	}
	if testOptions[1].Name != "rhost" || testOptions[1].EqualOpt != "10.0.0.1" {
		t.Errorf("ParseLine rhost wrong: %v", testOptions[1])
	}
	if testOptions[2].EqualOpt != "0x00" || len(testOptions[2].Value) != 1 || testOptions[2].Value[0] != "0x16" {
		t.Errorf("ParseLine skip wrong: %v", testOptions[2])
	}
	if testOptions[3].EqualOpt != "15" {
		t.Errorf("ParseLine eol wrong: %v", testOptions[3])
	}
}

func TestParseLineModelOptionsComma(t *testing.T) {
	cleanUpConfig()
	RegisterModel("DEBUG", TypeOptions, modOption)

	line := optionLine{line: "debug 040 cmd, data ,telnet"}
	if err := line.parseLine(); err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if testDevNum != 0x40 || testValue != "040" {
		t.Errorf("ParseLine first value %04x %s", testDevNum, testValue)
	}
	if len(testOptions) != 1 {
		t.Fatalf("ParseLine gave %d options", len(testOptions))
	}
	got := testOptions[0].Name + ":" + strings.Join(testOptions[0].Value, ":")
	if got != "cmd:data:telnet" {
		t.Errorf("ParseLine comma list: %s", got)
	}
}

func TestParseLineModelOptionsQuote(t *testing.T) {
	cleanUpConfig()
	RegisterModel("testDevice", TypeModel, modDevice)

	line := optionLine{line: `testDevice 100 loadmod="TEST ""A"" # x" next`}
	if err := line.parseLine(); err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if len(testOptions) != 2 {
		t.Fatalf("ParseLine gave %d options", len(testOptions))
	}
	if testOptions[0].EqualOpt != `TEST "A" # x` {
		t.Errorf("ParseLine quoted value: %s", testOptions[0].EqualOpt)
	}
	if testOptions[1].Name != "next" {
		t.Errorf("ParseLine option after quote: %s", testOptions[1].Name)
	}

	resetTest()
	line = optionLine{line: `testDevice 100 loadmod="unterminated`}
	if err := line.parseLine(); err == nil {
		t.Errorf("ParseLine accepted unterminated quote")
	}

	resetTest()
	line = optionLine{line: `testDevice 100 =bad`}
	if err := line.parseLine(); err == nil {
		t.Errorf("ParseLine accepted option without name")
	}
}

func TestLoad(t *testing.T) {
	cleanUpConfig()
	RegisterModel("2703", TypeModel, modDevice)
	RegisterSwitch("testswitch", modSwitch)

	input := "# lines\n\n2703 041 lport=3270\r\ntestswitch\n"
	if err := Load(strings.NewReader(input)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if testType != "switch" {
		t.Errorf("Load did not process last line")
	}

	err := Load(strings.NewReader("2703 041\nbogus 1\n"))
	if err == nil {
		t.Fatalf("Load accepted unknown model")
	}
	if !strings.Contains(err.Error(), "line: 2") {
		t.Errorf("Load error missing line number: %v", err)
	}
}
