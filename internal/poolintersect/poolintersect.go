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

// Package poolintersect computes which (nic_tag, vlan_id, vnet_id, mtu)
// tuples are present in every pool of a set, after a caller-supplied
// filter narrows each pool's candidate networks (spec.md §4.6, component
// C6). There is no per-pool retry or store write here - this is a pure
// computation over already-fetched Network and NetworkPool records.
package poolintersect

import (
	"fmt"

	"napi.io/internal/napi"
)

// Filter narrows the tuples a pool contributes before intersection.
type Filter struct {
	NICTag           *string
	NICTagsAvailable []string
	MTU              *int
	VLANID           *int
	VNetID           *uint32
}

func (f Filter) matches(t napi.PoolTuple) bool {
	if f.NICTag != nil && t.NICTag != *f.NICTag {
		return false
	}
	if len(f.NICTagsAvailable) > 0 && !containsString(f.NICTagsAvailable, t.NICTag) {
		return false
	}
	if f.MTU != nil && t.MTU != *f.MTU {
		return false
	}
	if f.VLANID != nil && t.VLANID != *f.VLANID {
		return false
	}
	if f.VNetID != nil && t.VNetID != *f.VNetID {
		return false
	}
	return true
}

func (f Filter) namesNICTag() bool {
	return f.NICTag != nil || len(f.NICTagsAvailable) > 0
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// PoolFailsConstraintsError is raised when a pool's filtered tuple set is
// empty.
type PoolFailsConstraintsError struct {
	Pool string
}

func (e *PoolFailsConstraintsError) Error() string {
	return fmt.Sprintf("poolintersect: pool %q fails constraints", e.Pool)
}

// PoolNICTagsAmbiguousError is raised when a pool's filtered networks span
// more than one nic_tag and the filter did not name one.
type PoolNICTagsAmbiguousError struct {
	Pool string
}

func (e *PoolNICTagsAmbiguousError) Error() string {
	return fmt.Sprintf("poolintersect: pool %q has ambiguous nic_tags", e.Pool)
}

// NoPoolIntersectionError is raised when every pool passes its own
// constraints but the pools share no common tuple.
type NoPoolIntersectionError struct{}

func (e *NoPoolIntersectionError) Error() string {
	return "poolintersect: no common tuple across the given pools"
}

func tuple(n napi.Network) napi.PoolTuple {
	t := napi.PoolTuple{NICTag: n.NICTag, VLANID: n.VLANID, MTU: n.MTU}
	if n.VNetID != nil {
		t.VNetID = *n.VNetID
	}
	return t
}

// perPoolTuples materializes the deduplicated, filtered tuple set for one
// pool (spec.md §4.6 "for each pool, materialize the set of tuples").
func perPoolTuples(pool napi.NetworkPool, networks map[string]napi.Network, filter Filter) ([]napi.PoolTuple, error) {
	seen := map[napi.PoolTuple]struct{}{}
	tags := map[string]struct{}{}
	var tuples []napi.PoolTuple

	for _, uuid := range pool.Networks {
		n, ok := networks[uuid]
		if !ok {
			continue
		}
		t := tuple(n)
		if !filter.matches(t) {
			continue
		}
		tags[t.NICTag] = struct{}{}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tuples = append(tuples, t)
	}

	if len(tuples) == 0 {
		return nil, &PoolFailsConstraintsError{Pool: pool.Name}
	}
	if len(tags) > 1 && !filter.namesNICTag() {
		return nil, &PoolNICTagsAmbiguousError{Pool: pool.Name}
	}
	return tuples, nil
}

func intersect(a, b []napi.PoolTuple) []napi.PoolTuple {
	inA := make(map[napi.PoolTuple]struct{}, len(a))
	for _, t := range a {
		inA[t] = struct{}{}
	}
	var out []napi.PoolTuple
	for _, t := range b {
		if _, ok := inA[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Intersect computes the tuples present in every pool after filtering, per
// spec.md §4.6's algorithm. networks maps every network referenced by any
// pool to its record (a network not present in the map is treated as
// absent, i.e. skipped - the caller is expected to have already fetched
// every UUID the pools reference).
func Intersect(pools []napi.NetworkPool, networks map[string]napi.Network, filter Filter) ([]napi.PoolTuple, error) {
	if len(pools) == 0 {
		return nil, nil
	}

	perPool := make([][]napi.PoolTuple, 0, len(pools))
	for _, pool := range pools {
		tuples, err := perPoolTuples(pool, networks, filter)
		if err != nil {
			return nil, err
		}
		perPool = append(perPool, tuples)
	}

	result := perPool[0]
	for _, tuples := range perPool[1:] {
		result = intersect(result, tuples)
		if len(result) == 0 {
			return nil, &NoPoolIntersectionError{}
		}
	}
	return result, nil
}
