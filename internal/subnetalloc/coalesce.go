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

package subnetalloc

import (
	"fmt"
	"math/big"

	"github.com/EvilSuperstars/go-cidrman"

	"napi.io/internal/napi"
)

// CoalesceFreeSpace merges and normalizes a batch of candidate subnets
// (as produced by AvailableSubnetStream) into the smallest equivalent
// set of CIDR blocks, the way an operator-facing "free space" report
// wants to see it rather than as a flat list of same-size candidates.
func CoalesceFreeSpace(candidates []Subnet) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	cidrs := make([]string, len(candidates))
	for i, s := range candidates {
		cidrs[i] = s.String()
	}
	merged, err := cidrman.MergeCIDRs(cidrs)
	if err != nil {
		return nil, fmt.Errorf("coalesce free space: %w", err)
	}
	return merged, nil
}

// DividesEvenly reports whether prefixLen's block size divides evenly
// into every contiguous range of family's private address plan, so a
// requested auto-allocation prefix tiles the plan without a ragged
// remainder at either end.
func DividesEvenly(family napi.Family, prefixLen int) bool {
	size := blockSize(family, prefixLen)
	for _, r := range planFor(family) {
		span := new(big.Int).Sub(new(big.Int).SetBytes(r.end.IP()), new(big.Int).SetBytes(r.start.IP()))
		span.Add(span, big.NewInt(1))
		if new(big.Int).Mod(span, size).Sign() != 0 {
			return false
		}
	}
	return true
}
