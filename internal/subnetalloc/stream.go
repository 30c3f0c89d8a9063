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
	"context"

	"napi.io/internal/address"
	"napi.io/internal/napi"
)

// Pair is a sliding window of two subnets; Second is nil for the trailing
// window emitted once the input closes (spec.md §4.7 "SubnetPairStream").
type Pair struct {
	First, Second *Subnet
}

// SubnetPairStream consumes an ordered stream of existing subnets and
// emits a sliding window of two: (s1,s2), (s2,s3), ... On close it emits
// one final window (last, nil) so the consumer learns which subnet was
// largest, even when only one subnet was ever received. If no subnet
// was received, it emits nothing.
func SubnetPairStream(ctx context.Context, in <-chan Subnet) <-chan Pair {
	out := make(chan Pair)
	go func() {
		defer close(out)
		var prev *Subnet
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-in:
				if !ok {
					if prev != nil {
						send(ctx, out, Pair{First: prev})
					}
					return
				}
				cur := s
				if prev != nil {
					send(ctx, out, Pair{First: prev, Second: &cur})
				}
				prev = &cur
			}
		}
	}()
	return out
}

func send(ctx context.Context, out chan<- Pair, p Pair) bool {
	select {
	case out <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

// AvailableSubnetStream consumes the pair windows SubnetPairStream emits
// and produces candidate subnets of prefixLen, lazily and bounded to
// MaxEmissions total (spec.md §4.7 "AvailableSubnetStream").
func AvailableSubnetStream(ctx context.Context, pairs <-chan Pair, family napi.Family, prefixLen int) <-chan Subnet {
	out := make(chan Subnet)
	plan := planFor(family)

	go func() {
		defer close(out)
		budget := MaxEmissions
		var smallest, largest *Subnet

		emit := func(s Subnet) bool {
			if budget <= 0 {
				return false
			}
			budget--
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-pairs:
				if !ok {
					goto drain
				}
				if smallest == nil {
					smallest = p.First
				}
				if p.Second != nil {
					largest = p.Second
					if budget <= 0 {
						continue
					}
					if !emitGap(plan, family, prefixLen, *p.First, *p.Second, budget, emit) {
						continue
					}
				} else {
					largest = p.First
				}
			}
		}

	drain:
		if smallest == nil {
			emitFromPlanStart(plan, family, prefixLen, emit)
			return
		}
		emitBelow(plan, family, prefixLen, *smallest, emit)
		emitAbove(plan, family, prefixLen, *largest, emit)
	}()

	return out
}

// emitGap emits up to min(16, budget) candidates of prefixLen strictly
// between s1 and s2, stopping at s2 (spec.md §4.7). It returns false if the
// shared budget reached zero.
func emitGap(plan []planRange, family napi.Family, prefixLen int, s1, s2 Subnet, budget int, emit func(Subnet) bool) bool {
	s1End, err := s1.end(family)
	if err != nil {
		return true
	}
	if address.Compare(s2.Base, s1End) <= 0 {
		return true // overlapping: no gap
	}
	adjacentBase, ok := planNext(plan, s1End, 1)
	if ok && address.Equal(adjacentBase, s2.Base) {
		return true // adjacent: no gap
	}
	if !ok {
		return true
	}

	perPairCap := MaxEmissions
	if budget < perPairCap {
		perPairCap = budget
	}
	cursor := adjacentBase
	for i := 0; i < perPairCap; i++ {
		candEnd, err := address.PlusBig(cursor, blockSizeLess1(family, prefixLen))
		if err != nil {
			break
		}
		if address.Compare(candEnd, s2.Base) >= 0 {
			break
		}
		if !emit(Subnet{Base: cursor, PrefixLen: prefixLen}) {
			return false
		}
		next, ok := planNext(plan, candEnd, 1)
		if !ok {
			break
		}
		cursor = next
	}
	return true
}

func emitFromPlanStart(plan []planRange, family napi.Family, prefixLen int, emit func(Subnet) bool) {
	cursor := plan[0].start
	for {
		if !emit(Subnet{Base: cursor, PrefixLen: prefixLen}) {
			return
		}
		next, ok := nextSubnet(plan, family, Subnet{Base: cursor, PrefixLen: prefixLen})
		if !ok {
			return
		}
		cursor = next.Base
	}
}

// subnetEndingAt returns the prefixLen-sized subnet whose last address is
// end, or false if that block would run past the start of end's plan
// range (a partial, unrepresentable block).
func subnetEndingAt(plan []planRange, family napi.Family, prefixLen int, end address.Address) (Subnet, bool) {
	idx := rangeIndexContaining(plan, end)
	if idx < 0 {
		return Subnet{}, false
	}
	base, err := address.MinusBig(end, blockSizeLess1(family, prefixLen))
	if err != nil || address.Compare(base, plan[idx].start) < 0 {
		return Subnet{}, false
	}
	return Subnet{Base: base, PrefixLen: prefixLen}, true
}

// subnetStartingAt returns the prefixLen-sized subnet based at start, or
// false if that block would run past the end of start's plan range.
func subnetStartingAt(plan []planRange, family napi.Family, prefixLen int, start address.Address) (Subnet, bool) {
	idx := rangeIndexContaining(plan, start)
	if idx < 0 {
		return Subnet{}, false
	}
	end, err := address.PlusBig(start, blockSizeLess1(family, prefixLen))
	if err != nil || address.Compare(end, plan[idx].end) > 0 {
		return Subnet{}, false
	}
	return Subnet{Base: start, PrefixLen: prefixLen}, true
}

// emitBelow walks backward from smallest, one address at a time across
// plan boundaries, emitting prefixLen-sized candidates entirely below it.
// smallest may itself be of a different prefix length (it is an existing
// subnet read from the store, not a generated candidate).
func emitBelow(plan []planRange, family napi.Family, prefixLen int, smallest Subnet, emit func(Subnet) bool) {
	cursor := smallest.Base
	for {
		boundary, ok := planPrev(plan, cursor, 1)
		if !ok {
			return
		}
		s, ok := subnetEndingAt(plan, family, prefixLen, boundary)
		if !ok {
			return
		}
		if !emit(s) {
			return
		}
		cursor = s.Base
	}
}

// emitAbove walks forward from largest's last address, emitting
// prefixLen-sized candidates entirely above it.
func emitAbove(plan []planRange, family napi.Family, prefixLen int, largest Subnet, emit func(Subnet) bool) {
	cursor, err := largest.end(family)
	if err != nil {
		return
	}
	for {
		boundary, ok := planNext(plan, cursor, 1)
		if !ok {
			return
		}
		s, ok := subnetStartingAt(plan, family, prefixLen, boundary)
		if !ok {
			return
		}
		if !emit(s) {
			return
		}
		end, err := s.end(family)
		if err != nil {
			return
		}
		cursor = end
	}
}
