/*
 * Commadpt - Dial data parsing
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

package line

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	dialSeparator = 0x0C // Between address parts
	dialEnd       = 0x0D // End of number
)

// Convert dial digits into host:port. Digits are the low nibble of
// each byte, four separators divide the address octets and port.
func ParseDialData(data []byte) (string, error) {
	parts := []int{}
	value := 0
	digits := 0
	for _, by := range data {
		digit := by & 0x0f
		if digit == dialEnd {
			break
		}
		switch {
		case digit == dialSeparator:
			if digits == 0 {
				return "", fmt.Errorf("%w: empty field", ErrBadDial)
			}
			parts = append(parts, value)
			value = 0
			digits = 0
			if len(parts) > 4 {
				return "", fmt.Errorf("%w: too many fields", ErrBadDial)
			}
		case digit <= 9:
			value = value*10 + int(digit)
			digits++
			if value > 65535 {
				return "", fmt.Errorf("%w: number too large", ErrBadDial)
			}
		default:
			return "", fmt.Errorf("%w: invalid digit %x", ErrBadDial, digit)
		}
	}
	if digits == 0 {
		return "", fmt.Errorf("%w: empty field", ErrBadDial)
	}
	parts = append(parts, value)
	if len(parts) != 5 {
		return "", fmt.Errorf("%w: expected 5 fields got %d", ErrBadDial, len(parts))
	}
	octets := make([]string, 4)
	for i, octet := range parts[:4] {
		if octet > 255 {
			return "", fmt.Errorf("%w: address octet %d too large", ErrBadDial, octet)
		}
		octets[i] = strconv.Itoa(octet)
	}
	if parts[4] == 0 {
		return "", fmt.Errorf("%w: port zero", ErrBadDial)
	}
	return strings.Join(octets, ".") + ":" + strconv.Itoa(parts[4]), nil
}

// Convert host:port into dial digits for a dial command.
func EncodeDialData(address string) ([]byte, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDial, err)
	}
	octets := strings.Split(host, ".")
	if len(octets) != 4 {
		return nil, fmt.Errorf("%w: %s not dotted address", ErrBadDial, host)
	}
	out := []byte{}
	for _, field := range append(octets, port) {
		if field == "" {
			return nil, fmt.Errorf("%w: empty field", ErrBadDial)
		}
		for _, ch := range field {
			if ch < '0' || ch > '9' {
				return nil, fmt.Errorf("%w: invalid digit %c", ErrBadDial, ch)
			}
			out = append(out, 0xf0|byte(ch-'0'))
		}
		out = append(out, dialSeparator)
	}
	out[len(out)-1] = dialEnd
	return out, nil
}
