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

// Package subnetalloc streams candidate subnets over the RFC 1918/ULA
// address plan (spec.md §4.7, component C7). It replaces the source's
// class-inheritance transform streams (spec.md §9 Design Note "Object
// inheritance for streams") with two plain functions over channels, each
// buffering at most 16 candidates.
package subnetalloc

import (
	"fmt"
	"math/big"

	"napi.io/internal/address"
	"napi.io/internal/napi"
)

// MaxEmissions bounds every stream's total output (spec.md §4.7 "bounded
// by 16 total emissions").
const MaxEmissions = 16

type planRange struct {
	start, end address.Address
}

func mustParse(s string) address.Address {
	a, err := address.Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ipv4Plan treats 10.0.0.0/8, 172.16.0.0/12 and 192.168.0.0/16 as one
// contiguous address plan (spec.md §4.7 "Adjacency across private
// spaces").
var ipv4Plan = []planRange{
	{mustParse("10.0.0.0"), mustParse("10.255.255.255")},
	{mustParse("172.16.0.0"), mustParse("172.31.255.255")},
	{mustParse("192.168.0.0"), mustParse("192.168.255.255")},
}

// ipv6Plan restricts IPv6 auto-allocation to fd00::/8 (spec.md §4.7).
var ipv6Plan = []planRange{
	{mustParse("fd00::"), mustParse("fdff:ffff:ffff:ffff:ffff:ffff:ffff:ffff")},
}

func planFor(family napi.Family) []planRange {
	if family == napi.IPv6 {
		return ipv6Plan
	}
	return ipv4Plan
}

func rangeIndexContaining(plan []planRange, a address.Address) int {
	for i, r := range plan {
		if address.Compare(a, r.start) >= 0 && address.Compare(a, r.end) <= 0 {
			return i
		}
	}
	return -1
}

// planNext returns the address n past a within the plan, crossing plan
// boundaries the way spec.md §4.7 defines (e.g. 172.16.0.0 is the address
// immediately following 10.255.255.255). ok is false if the step would run
// off the end of the plan.
func planNext(plan []planRange, a address.Address, n int64) (address.Address, bool) {
	idx := rangeIndexContaining(plan, a)
	if idx < 0 {
		return address.Address{}, false
	}
	next, err := address.Plus(a, n)
	if err == nil && address.Compare(next, plan[idx].end) <= 0 {
		return next, true
	}
	if idx+1 < len(plan) {
		return plan[idx+1].start, true
	}
	return address.Address{}, false
}

// planPrev returns the address n before a within the plan, crossing plan
// boundaries backward (spec.md §8 "previousAddr(172.16.0.0) =
// 10.255.255.255"). ok is false if the step would run off the start of the
// plan.
func planPrev(plan []planRange, a address.Address, n int64) (address.Address, bool) {
	idx := rangeIndexContaining(plan, a)
	if idx < 0 {
		return address.Address{}, false
	}
	prev, err := address.Minus(a, n)
	if err == nil && address.Compare(prev, plan[idx].start) >= 0 {
		return prev, true
	}
	if idx-1 >= 0 {
		pb, err := address.Minus(plan[idx-1].end, n-1)
		if err != nil {
			return address.Address{}, false
		}
		return pb, true
	}
	return address.Address{}, false
}

// Subnet is a CIDR block of a fixed prefix length within the address plan.
type Subnet struct {
	Base      address.Address
	PrefixLen int
}

// String renders s as CIDR notation.
func (s Subnet) String() string {
	return fmt.Sprintf("%s/%d", s.Base, s.PrefixLen)
}

// blockSize returns the number of addresses in a prefixLen-sized block of
// family, as a *big.Int: an IPv6 block as short as /64 already holds 2^64
// addresses, past what an int64 shift can hold without wrapping to zero.
func blockSize(family napi.Family, prefixLen int) *big.Int {
	bits := 32
	if family == napi.IPv6 {
		bits = 128
	}
	return new(big.Int).Lsh(big.NewInt(1), uint(bits-prefixLen))
}

// blockSizeLess1 is blockSize(family, prefixLen) - 1, the offset from a
// block's base to its last address.
func blockSizeLess1(family napi.Family, prefixLen int) *big.Int {
	return new(big.Int).Sub(blockSize(family, prefixLen), big.NewInt(1))
}

// end returns the last address of s.
func (s Subnet) end(family napi.Family) (address.Address, error) {
	return address.PlusBig(s.Base, blockSizeLess1(family, s.PrefixLen))
}

// nextSubnet returns the subnet of the same prefix length immediately
// following s within the plan (spec.md §8 "incrementSubnet(192.168.255.0/24,
// 24) = ⊥" at the plan's upper edge).
func nextSubnet(plan []planRange, family napi.Family, s Subnet) (Subnet, bool) {
	last, err := s.end(family)
	if err != nil {
		return Subnet{}, false
	}
	base, ok := planNext(plan, last, 1)
	if !ok {
		return Subnet{}, false
	}
	return Subnet{Base: base, PrefixLen: s.PrefixLen}, true
}
