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

	"napi.io/internal/address"
	"napi.io/internal/ipalloc"
	"napi.io/internal/metrics"
	"napi.io/internal/napi"
	"napi.io/internal/store"
)

// UpdateInput is a sparse patch: only non-nil fields are applied. There is
// deliberately no MAC field - changing mac is rejected silently (spec.md
// §4.5 "update": "the MAC is the record key").
type UpdateInput struct {
	BelongsToType *napi.BelongsToType
	BelongsToUUID *string
	CNUUID        *string
	Primary       *bool
	State         *napi.NICState
	NICTag        *string
	NICTagsProvided *[]string

	NetworkUUID *string
	IP          *string

	AllowDHCPSpoofing      *bool
	AllowIPSpoofing        *bool
	AllowMACSpoofing       *bool
	AllowRestrictedTraffic *bool
	AllowUnfilteredPromisc *bool
	Underlay               *bool
	Model                  *string
}

func applyUpdate(n *napi.NIC, in UpdateInput) {
	if in.BelongsToType != nil {
		n.BelongsToType = *in.BelongsToType
	}
	if in.BelongsToUUID != nil {
		n.BelongsToUUID = *in.BelongsToUUID
	}
	if in.CNUUID != nil {
		n.CNUUID = *in.CNUUID
	}
	if in.Primary != nil {
		n.Primary = *in.Primary
	}
	if in.State != nil {
		n.State = *in.State
	}
	if in.NICTag != nil {
		n.NICTag = *in.NICTag
	}
	if in.NICTagsProvided != nil {
		n.NICTagsProvided = *in.NICTagsProvided
	}
	if in.NetworkUUID != nil {
		n.NetworkUUID = *in.NetworkUUID
	}
	if in.IP != nil {
		n.IP = *in.IP
	}
	// anti-spoof booleans: a false value here is indistinguishable from
	// "removed" because the field carries `omitempty` at the API boundary
	// (spec.md §4.5 "removed from the stored record rather than written
	// as false").
	if in.AllowDHCPSpoofing != nil {
		n.AllowDHCPSpoofing = *in.AllowDHCPSpoofing
	}
	if in.AllowIPSpoofing != nil {
		n.AllowIPSpoofing = *in.AllowIPSpoofing
	}
	if in.AllowMACSpoofing != nil {
		n.AllowMACSpoofing = *in.AllowMACSpoofing
	}
	if in.AllowRestrictedTraffic != nil {
		n.AllowRestrictedTraffic = *in.AllowRestrictedTraffic
	}
	if in.AllowUnfilteredPromisc != nil {
		n.AllowUnfilteredPromisc = *in.AllowUnfilteredPromisc
	}
	if in.Underlay != nil {
		n.Underlay = *in.Underlay
	}
	if in.Model != nil {
		n.Model = *in.Model
	}
}

// Update applies a sparse patch to the NIC identified by mac (spec.md
// §4.5 "update"). It handles the three cross-record side effects the
// spec names: primary-transition demotion of siblings, IP/network
// reallocation, and conditional freeing of the old IP.
func (e *Engine) Update(ctx context.Context, mac uint64, in UpdateInput) (*napi.NIC, *napi.Network, error) {
	rec, err := e.store.Get(ctx, NICBucket, macKey(mac))
	if store.IsNotFound(err) {
		return nil, nil, &NotFoundError{MAC: mac}
	}
	if err != nil {
		return nil, nil, err
	}
	current := rec.Value.(napi.NIC)
	current.ETag = rec.ETag

	next := current
	applyUpdate(&next, in)

	networkChanged := next.NetworkUUID != current.NetworkUUID
	ipChanged := next.IP != current.IP
	needsRealloc := networkChanged || ipChanged

	var targetNet *napi.Network
	if needsRealloc && next.NetworkUUID != "" {
		targetNet, err = e.getNetworkByUUID(ctx, next.NetworkUUID)
		if err != nil {
			return nil, nil, err
		}
	}

	demoteOps, err := e.demoteSiblingsOps(ctx, current, next, mac, in)
	if err != nil {
		return nil, nil, err
	}

	oldIPOp, err := e.freeOldIPOp(ctx, current, needsRealloc)
	if err != nil {
		return nil, nil, err
	}

	var requested *address.Address
	if needsRealloc && targetNet != nil && next.IP != "" && next.IP != current.IP {
		a, err := address.Parse(next.IP)
		if err != nil {
			return nil, nil, err
		}
		requested = &a
	}

	var ipAttempt *ipalloc.Attempt
	if needsRealloc && targetNet != nil {
		ipAttempt = ipalloc.NewAttempt(e.store, *targetNet, requested, e.ipMaxGap, e.ipRetries, e.logger)
	}

	for {
		toWrite := next
		var newIPCand *ipalloc.Candidate
		if ipAttempt != nil {
			newIPCand, err = ipAttempt.Candidate(ctx)
			if err != nil {
				return nil, nil, err
			}
			toWrite.IP = newIPCand.Record.Address
			toWrite.NetworkUUID = targetNet.UUID
		}

		ops := append([]store.Op{}, demoteOps...)
		ops = append(ops, store.Op{Bucket: NICBucket, Key: macKey(mac), Value: toWrite, Precondition: store.Match(current.ETag)})
		if oldIPOp != nil {
			ops = append(ops, *oldIPOp)
		}
		if newIPCand != nil {
			ipRec := newIPCand.Record
			ipRec.BelongsToType = string(toWrite.BelongsToType)
			ipRec.BelongsToUUID = toWrite.BelongsToUUID
			ipRec.OwnerUUID = toWrite.OwnerUUID
			ops = append(ops, store.Op{
				Bucket:       ipalloc.BucketName(targetNet.UUID),
				Key:          newIPCand.Record.Address,
				Value:        ipRec,
				Precondition: newIPCand.Precondition,
			})
		}

		e.logger.Log("level", "debug", "op", "nic.update.batch", "mac", mac, "ops", len(ops))
		err = e.store.Batch(ctx, ops)
		if err == nil {
			if got, gerr := e.store.Get(ctx, NICBucket, macKey(mac)); gerr == nil {
				toWrite.ETag = got.ETag
			}
			view := targetNet
			if view == nil {
				view, _ = e.getNetworkByUUID(ctx, toWrite.NetworkUUID)
			}
			return &toWrite, view, nil
		}

		bucket, isConflict := store.IsConflict(err)
		if !isConflict {
			return nil, nil, err
		}
		metrics.StoreConflictsTotal.WithLabelValues(bucket).Inc()
		if ipAttempt != nil && bucket == ipalloc.BucketName(targetNet.UUID) {
			if !ipAttempt.ConsumeRetry() {
				metrics.AllocationRejected.WithLabelValues(targetNet.UUID, "subnet_full").Inc()
				return nil, nil, ipalloc.ErrSubnetFull
			}
			continue
		}
		// NIC-bucket (etag mismatch) or sibling conflict: a concurrent
		// writer got there first. Not retried - surfaces as-is, same as
		// an If-Match precondition failure at the API boundary.
		return nil, nil, err
	}
}

func (e *Engine) getNetworkByUUID(ctx context.Context, uuid string) (*napi.Network, error) {
	if uuid == "" {
		return nil, nil
	}
	return e.resolveNetwork(ctx, uuid, "", nil)
}

// demoteSiblingsOps implements "if primary transitions to true, enqueue an
// update of every other NIC with the same belongs_to_uuid to
// primary=false within the same batch" (spec.md §4.5).
func (e *Engine) demoteSiblingsOps(ctx context.Context, current, next napi.NIC, mac uint64, in UpdateInput) ([]store.Op, error) {
	if in.Primary == nil || !*in.Primary || current.Primary {
		return nil, nil
	}
	siblings, err := e.store.Find(ctx, NICBucket, func(r *store.Record) bool {
		n, ok := r.Value.(napi.NIC)
		return ok && n.BelongsToUUID == next.BelongsToUUID && n.MAC != mac && n.Primary
	}, store.FindOptions{})
	if err != nil {
		return nil, err
	}
	ops := make([]store.Op, 0, len(siblings))
	for _, rec := range siblings {
		sib := rec.Value.(napi.NIC)
		sib.Primary = false
		ops = append(ops, store.Op{Bucket: NICBucket, Key: macKey(sib.MAC), Value: sib, Precondition: store.Match(rec.ETag)})
	}
	return ops, nil
}

// freeOldIPOp implements "a freeing write on the old IP only if its
// belongs_to_uuid still equals the NIC's; otherwise the old IP is left
// untouched" (spec.md §4.5).
func (e *Engine) freeOldIPOp(ctx context.Context, current napi.NIC, needsRealloc bool) (*store.Op, error) {
	if !needsRealloc || current.NetworkUUID == "" || current.IP == "" {
		return nil, nil
	}
	bucket := ipalloc.BucketName(current.NetworkUUID)
	rec, err := e.store.Get(ctx, bucket, current.IP)
	if store.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ip := rec.Value.(napi.IPRecord)
	if ip.BelongsToUUID != current.BelongsToUUID {
		return nil, nil
	}
	ip.BelongsToUUID = ""
	ip.BelongsToType = ""
	ip.Reserved = false
	op := store.Op{Bucket: bucket, Key: current.IP, Value: ip, Precondition: store.Match(rec.ETag)}
	return &op, nil
}
