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

package nic

import "fmt"

// NetworkUnresolvedError is returned when a caller supplies an ip but the
// network lookup (by uuid, or by nic_tag+vlan_id) did not yield a unique
// network (spec.md §4.5 step 2).
type NetworkUnresolvedError struct {
	NICTag string
	VLANID *int
}

func (e *NetworkUnresolvedError) Error() string {
	vlan := "nil"
	if e.VLANID != nil {
		vlan = fmt.Sprintf("%d", *e.VLANID)
	}
	return fmt.Sprintf("nic: ip given but no network resolved (nic_tag=%q vlan_id=%s)", e.NICTag, vlan)
}

// MACInUseError is returned when a caller-supplied MAC collides with an
// existing NIC record. Unlike an auto-generated MAC, this is never
// retried - it surfaces as a duplicate-parameter error (spec.md §8
// scenario 4).
type MACInUseError struct {
	MAC uint64
}

func (e *MACInUseError) Error() string {
	return fmt.Sprintf("nic: mac %012x already in use", e.MAC)
}

// NotFoundError is returned by Get/Update/Delete when no NIC exists with
// the given MAC.
type NotFoundError struct {
	MAC uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("nic: %012x: not found", e.MAC)
}

// NetworkNotFoundError is returned when a network lookup by uuid or
// nic_tag/vlan_id fails and the caller did not ask for an IP (so the
// lookup failure isn't fatal on its own, but the caller asked for a
// specific network that doesn't exist).
type NetworkNotFoundError struct {
	UUID   string
	NICTag string
	VLANID *int
}

func (e *NetworkNotFoundError) Error() string {
	if e.UUID != "" {
		return fmt.Sprintf("nic: network %s: not found", e.UUID)
	}
	vlan := "nil"
	if e.VLANID != nil {
		vlan = fmt.Sprintf("%d", *e.VLANID)
	}
	return fmt.Sprintf("nic: network nic_tag=%q vlan_id=%s: not found", e.NICTag, vlan)
}

// NetworkAmbiguousError is returned when a (nic_tag, vlan_id) lookup
// matches more than one network; the store's uniqueness invariant should
// prevent this, but the engine checks rather than assumes.
type NetworkAmbiguousError struct {
	NICTag string
	VLANID int
}

func (e *NetworkAmbiguousError) Error() string {
	return fmt.Sprintf("nic: nic_tag=%q vlan_id=%d: ambiguous, matches more than one network", e.NICTag, e.VLANID)
}
