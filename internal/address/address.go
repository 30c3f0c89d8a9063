// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package address provides the pure IPv4/IPv6 arithmetic that every other
// engine package builds on (spec.md §4.1, component C1): parsing,
// comparison, offset arithmetic, CIDR containment, and netmask
// conversion. Everything here operates on the canonical Address value;
// there is deliberately no decomposed "octets"/"parts" representation; a
// *net.IP* the caller parsed elsewhere must round-trip through Parse, not
// be accepted as-is (Open Question (a) in DESIGN.md).
package address

import (
	"fmt"
	"math/big"
	"net"

	"github.com/apparentlymart/go-cidr/cidr"
)

// maxOffset bounds Plus/Minus per spec.md §4.1.
const maxOffset = 1<<32 - 1

// Address is a parsed IPv4 or IPv6 address.
type Address struct {
	ip net.IP // 4 bytes for IPv4, 16 bytes for IPv6; never nil once valid
}

// Parse parses s (dotted-quad or IPv6 textual form) into an Address. It
// never accepts anything other than a canonical address string.
func Parse(s string) (Address, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return Address{}, fmt.Errorf("address: invalid address %q", s)
	}
	if v4 := ip.To4(); v4 != nil {
		return Address{ip: v4}, nil
	}
	return Address{ip: ip.To16()}, nil
}

// FromIP converts an already-parsed net.IP into an Address.
func FromIP(ip net.IP) (Address, error) {
	if ip == nil {
		return Address{}, fmt.Errorf("address: nil IP")
	}
	return Parse(ip.String())
}

// IsZero reports whether a is the zero value (i.e. was never parsed).
func (a Address) IsZero() bool { return a.ip == nil }

// IsV4 reports whether a is an IPv4 address.
func (a Address) IsV4() bool { return len(a.ip) == net.IPv4len }

// String renders a in canonical form.
func (a Address) String() string {
	if a.ip == nil {
		return ""
	}
	return a.ip.String()
}

// IP returns the underlying net.IP.
func (a Address) IP() net.IP { return a.ip }

// Compare orders two addresses, mapping IPv4 into v4-mapped-IPv6 form so
// that cross-family comparisons are well-defined (spec.md §4.1). It
// returns -1, 0 or 1.
func Compare(a, b Address) int {
	ab, bb := a.ip.To16(), b.ip.To16()
	for i := range ab {
		if ab[i] != bb[i] {
			if ab[i] < bb[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Equal reports whether a and b are the same address.
func Equal(a, b Address) bool { return Compare(a, b) == 0 }

// Plus returns the address n past a, failing with an error if n is out of
// [-(2^32-1), 2^32-1] or if the result over/underflows the address space
// (spec.md §4.1).
func Plus(a Address, n int64) (Address, error) {
	if n > maxOffset || n < -maxOffset {
		return Address{}, fmt.Errorf("address: offset %d out of range [-%d, %d]", n, maxOffset, maxOffset)
	}
	return addBig(a, big.NewInt(n))
}

// Minus returns the address n before a; equivalent to Plus(a, -n).
func Minus(a Address, n int64) (Address, error) {
	return Plus(a, -n)
}

// PlusBig returns the address offset by an arbitrary-precision n. Unlike
// Plus/Minus, it carries no magnitude cap: callers stepping by a CIDR
// block size - an IPv6 /64 is 2^64 addresses, far past maxOffset - use
// this instead. It still fails on over/underflow of the address space.
func PlusBig(a Address, n *big.Int) (Address, error) {
	return addBig(a, n)
}

// MinusBig is PlusBig(a, -n).
func MinusBig(a Address, n *big.Int) (Address, error) {
	return addBig(a, new(big.Int).Neg(n))
}

func addBig(a Address, n *big.Int) (Address, error) {
	if a.ip == nil {
		return Address{}, fmt.Errorf("address: offset of zero value")
	}

	length := len(a.ip)
	val := new(big.Int).SetBytes(a.ip)
	val.Add(val, n)

	if val.Sign() < 0 {
		return Address{}, fmt.Errorf("address: underflow computing %s %+d", a, n)
	}
	ceiling := new(big.Int).Lsh(big.NewInt(1), uint(length*8))
	if val.Cmp(ceiling) >= 0 {
		return Address{}, fmt.Errorf("address: overflow computing %s %+d", a, n)
	}

	out := make(net.IP, length)
	b := val.Bytes()
	copy(out[length-len(b):], b)
	return Address{ip: out}, nil
}

// Contains reports whether cidrStr (in CIDR notation) contains addr. It
// returns an error if cidrStr doesn't parse; cross-family containment is
// always false, never an error.
func Contains(cidrStr string, addr Address) (bool, error) {
	_, ipnet, err := net.ParseCIDR(cidrStr)
	if err != nil {
		return false, fmt.Errorf("address: invalid CIDR %q: %w", cidrStr, err)
	}
	return ipnet.Contains(addr.ip), nil
}

// Range returns the first and last address of cidrStr, using go-cidr's
// AddressRange so that both IPv4 and IPv6 are handled uniformly.
func Range(cidrStr string) (first, last Address, err error) {
	_, ipnet, err := net.ParseCIDR(cidrStr)
	if err != nil {
		return Address{}, Address{}, fmt.Errorf("address: invalid CIDR %q: %w", cidrStr, err)
	}
	lo, hi := cidr.AddressRange(ipnet)
	first, err = FromIP(lo)
	if err != nil {
		return Address{}, Address{}, err
	}
	last, err = FromIP(hi)
	if err != nil {
		return Address{}, Address{}, err
	}
	return first, last, nil
}

// BitsToNetmask renders an IPv4 prefix length as a dotted-quad netmask.
func BitsToNetmask(bits int) (net.IP, error) {
	if bits < 0 || bits > 32 {
		return nil, fmt.Errorf("address: prefix length %d out of range [0, 32]", bits)
	}
	return net.IP(net.CIDRMask(bits, 32)), nil
}

// NetmaskToBits parses an IPv4 dotted-quad netmask into a prefix length.
// It rejects non-contiguous masks (e.g. 255.0.255.0).
func NetmaskToBits(netmask net.IP) (int, error) {
	v4 := netmask.To4()
	if v4 == nil {
		return 0, fmt.Errorf("address: %s is not an IPv4 netmask", netmask)
	}
	ones, bits := net.IPMask(v4).Size()
	if bits != 32 {
		return 0, fmt.Errorf("address: %s is not a contiguous netmask", netmask)
	}
	return ones, nil
}
