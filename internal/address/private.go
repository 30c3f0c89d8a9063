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

package address

import "net"

// rfc1918Spaces are the three private IPv4 blocks that the subnet
// auto-allocator (C7) treats as one contiguous address plan (spec.md
// §4.7).
var rfc1918Spaces = mustParseCIDRs("10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16")

// uniqueLocalSpace is the IPv6 unique-local block (spec.md §4.7 restricts
// IPv6 auto-allocation to fd00::/8).
var uniqueLocalSpace = mustParseCIDRs("fd00::/8")

func mustParseCIDRs(strs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, len(strs))
	for i, s := range strs {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			panic(err)
		}
		nets[i] = n
	}
	return nets
}

// IsRFC1918 reports whether cidrStr is nested inside one of the three
// RFC 1918 private blocks: the candidate's network address must fall
// inside the private space, and the candidate's prefix must be at least
// as specific (spec.md §4.1: "nested-subnet" definition).
func IsRFC1918(cidrStr string) (bool, error) {
	return nestedInAny(cidrStr, rfc1918Spaces)
}

// IsUniqueLocal reports whether cidrStr is nested inside fd00::/8, using
// the same nested-subnet definition as IsRFC1918.
func IsUniqueLocal(cidrStr string) (bool, error) {
	return nestedInAny(cidrStr, uniqueLocalSpace)
}

func nestedInAny(cidrStr string, spaces []*net.IPNet) (bool, error) {
	_, candidate, err := net.ParseCIDR(cidrStr)
	if err != nil {
		return false, err
	}
	candidateOnes, _ := candidate.Mask.Size()
	for _, space := range spaces {
		spaceOnes, _ := space.Mask.Size()
		if spaceOnes <= candidateOnes && space.Contains(candidate.IP) {
			return true, nil
		}
	}
	return false, nil
}
