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

import (
	"context"

	"napi.io/internal/ipalloc"
	"napi.io/internal/napi"
	"napi.io/internal/store"
)

// DeleteMode selects what happens to an owned IP when its NIC is deleted
// (spec.md §4.5 "delete").
type DeleteMode int

const (
	// Unassign keeps the IP record as a reserved placeholder
	// (reserved=true, belongs_to_* cleared) - typical for a NIC that may
	// be re-provisioned on the same address later.
	Unassign DeleteMode = iota
	// Tombstone turns the IP record into a freed tombstone
	// (reserved=false, identifying columns cleared), making it eligible
	// for freed-first reuse (spec.md §4.3.1).
	Tombstone
)

// Delete removes the NIC identified by mac and, if it owns an IP, either
// unassigns or tombstones that IP depending on mode - but only if the IP's
// ownership hasn't changed out from under it (spec.md §4.5 "delete":
// "Ownership change under foot is handled as in update").
func (e *Engine) Delete(ctx context.Context, mac uint64, mode DeleteMode) error {
	rec, err := e.store.Get(ctx, NICBucket, macKey(mac))
	if store.IsNotFound(err) {
		return &NotFoundError{MAC: mac}
	}
	if err != nil {
		return err
	}
	current := rec.Value.(napi.NIC)
	current.ETag = rec.ETag

	ops := []store.Op{{Bucket: NICBucket, Key: macKey(mac), Delete: true, Precondition: store.Match(current.ETag)}}

	if current.NetworkUUID != "" && current.IP != "" {
		bucket := ipalloc.BucketName(current.NetworkUUID)
		ipRec, err := e.store.Get(ctx, bucket, current.IP)
		if err != nil && !store.IsNotFound(err) {
			return err
		}
		if err == nil {
			ip := ipRec.Value.(napi.IPRecord)
			if ip.BelongsToUUID == current.BelongsToUUID {
				ip.BelongsToUUID = ""
				ip.BelongsToType = ""
				ip.OwnerUUID = ""
				ip.Reserved = mode == Unassign
				ops = append(ops, store.Op{Bucket: bucket, Key: current.IP, Value: ip, Precondition: store.Match(ipRec.ETag)})
			}
		}
	}

	return e.store.Batch(ctx, ops)
}

// Get fetches one NIC by MAC, along with its network if one is bound.
func (e *Engine) Get(ctx context.Context, mac uint64) (*napi.NIC, *napi.Network, error) {
	rec, err := e.store.Get(ctx, NICBucket, macKey(mac))
	if store.IsNotFound(err) {
		return nil, nil, &NotFoundError{MAC: mac}
	}
	if err != nil {
		return nil, nil, err
	}
	n := rec.Value.(napi.NIC)
	n.ETag = rec.ETag

	net, err := e.getNetworkByUUID(ctx, n.NetworkUUID)
	if err != nil {
		return nil, nil, err
	}
	return &n, net, nil
}

// List returns NICs matching filter (nil matches everything), windowed per
// opts (spec.md §4.5 "list").
func (e *Engine) List(ctx context.Context, filter func(napi.NIC) bool, opts store.FindOptions) ([]napi.NIC, error) {
	recs, err := e.store.Find(ctx, NICBucket, func(r *store.Record) bool {
		n, ok := r.Value.(napi.NIC)
		return ok && (filter == nil || filter(n))
	}, opts)
	if err != nil {
		return nil, err
	}
	out := make([]napi.NIC, 0, len(recs))
	for _, rec := range recs {
		n := rec.Value.(napi.NIC)
		n.ETag = rec.ETag
		out = append(out, n)
	}
	return out, nil
}
