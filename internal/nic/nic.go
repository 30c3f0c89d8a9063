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

// Package nic is the NIC engine (spec.md §4.5, component C5): it composes
// C3 (ipalloc) and C4 (macalloc) candidates into a single compound batch
// that binds a MAC to an IP on a network, and drives the bounded retry
// loops of §4.3.3/§4.4 against whatever bucket a Conflict lands in. It
// never holds a lock across the call - the store's per-write preconditions
// are the only synchronization (spec.md §5).
//
// Grounded on the teacher's internal/pool/allocator.go: the Allocator's
// assign/Unassign/AllocateFromPool compound-update shape is the ancestor of
// Create/Update/Delete here, generalized from an in-process map to a
// versioned store and from a single "assign an IP" operation to a batch
// that also carries a MAC.
package nic

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-kit/log"

	"napi.io/internal/address"
	"napi.io/internal/ipalloc"
	"napi.io/internal/macalloc"
	"napi.io/internal/metrics"
	"napi.io/internal/napi"
	"napi.io/internal/store"
)

// NICBucket is the single global bucket for NIC records, keyed by the MAC
// integer rendered as a base-10 string (spec.md §4.2 "NIC records use MAC
// integer as key").
const NICBucket = "nics"

// NetworkBucket is the single global bucket for Network records.
const NetworkBucket = "networks"

func macKey(mac uint64) string { return strconv.FormatUint(mac, 10) }

// Engine is the NIC lifecycle engine.
type Engine struct {
	store      store.Store
	oui        uint64
	ipRetries  int
	ipMaxGap   int
	macRetries int
	logger     log.Logger
}

// NewEngine builds an Engine. oui is the configured MAC OUI prefix;
// ipRetries/ipMaxGap/macRetries come from config (IP_PROVISION_RETRIES,
// the gap-scan bound, and MAC_RETRIES respectively). logger is threaded
// into every ipalloc/macalloc attempt this engine starts, and used here
// for debug-level tracing of each store round-trip and retry-loop
// iteration; a nil logger is replaced with a no-op one.
func NewEngine(s store.Store, oui uint64, ipRetries, ipMaxGap, macRetries int, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Engine{store: s, oui: oui, ipRetries: ipRetries, ipMaxGap: ipMaxGap, macRetries: macRetries, logger: logger}
}

// CreateInput is the set of caller-supplied fields for create/provision
// (spec.md §4.5 "create/provision").
type CreateInput struct {
	MAC           *uint64
	OwnerUUID     string
	BelongsToType napi.BelongsToType
	BelongsToUUID string
	CNUUID        string

	NetworkUUID string
	NICTag      string
	VLANID      *int
	IP          *string

	Primary         bool
	State           napi.NICState
	NICTagsProvided []string

	AllowDHCPSpoofing      bool
	AllowIPSpoofing        bool
	AllowMACSpoofing       bool
	AllowRestrictedTraffic bool
	AllowUnfilteredPromisc bool
	Underlay               bool
	Model                  string
}

// Create runs the create/provision resolution order of spec.md §4.5 steps
// 2-7. Field validation (step 1) is the caller's responsibility (C8 runs
// before C5 is ever invoked). It returns the persisted NIC and, if one was
// resolved, the network it was provisioned against.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*napi.NIC, *napi.Network, error) {
	// resolveNetwork only returns an error when the caller actually asked
	// for a network (by uuid or by nic_tag+vlan_id); a caller that asked
	// for neither gets (nil, nil) and proceeds with no network.
	net, err := e.resolveNetwork(ctx, in.NetworkUUID, in.NICTag, in.VLANID)
	if err != nil {
		if in.IP != nil {
			// the network lookup failed but an ip was requested against
			// it: spec.md §4.5 step 2 demands this specific error shape.
			return nil, nil, &NetworkUnresolvedError{NICTag: in.NICTag, VLANID: in.VLANID}
		}
		return nil, nil, err
	}
	if net == nil && in.IP != nil {
		return nil, nil, &NetworkUnresolvedError{NICTag: in.NICTag, VLANID: in.VLANID}
	}

	var requested *address.Address
	if in.IP != nil {
		a, err := address.Parse(*in.IP)
		if err != nil {
			return nil, nil, fmt.Errorf("nic: parsing ip %q: %w", *in.IP, err)
		}
		requested = &a
	}

	var ipAttempt *ipalloc.Attempt
	if net != nil {
		ipAttempt = ipalloc.NewAttempt(e.store, *net, requested, e.ipMaxGap, e.ipRetries, e.logger)
	}
	var macAttempt *macalloc.Attempt
	if in.MAC == nil {
		macAttempt = macalloc.NewAttempt(e.oui, e.macRetries, e.logger)
	}

	for {
		mac := uint64(0)
		if in.MAC != nil {
			mac = *in.MAC
		} else {
			mac, err = macAttempt.Candidate()
			if err != nil {
				return nil, nil, err
			}
		}

		var ipCand *ipalloc.Candidate
		if ipAttempt != nil {
			ipCand, err = ipAttempt.Candidate(ctx)
			if err != nil {
				return nil, nil, err
			}
		}

		record := buildNIC(in, mac, net, ipCand)
		ops := []store.Op{{Bucket: NICBucket, Key: macKey(mac), Value: record, Precondition: store.Create()}}
		if ipCand != nil {
			ipRec := ipCand.Record
			ipRec.BelongsToType = string(in.BelongsToType)
			ipRec.BelongsToUUID = in.BelongsToUUID
			ipRec.OwnerUUID = in.OwnerUUID
			ops = append(ops, store.Op{
				Bucket:       ipalloc.BucketName(net.UUID),
				Key:          ipCand.Record.Address,
				Value:        ipRec,
				Precondition: ipCand.Precondition,
			})
		}

		e.logger.Log("level", "debug", "op", "nic.create.batch", "mac", mac, "ops", len(ops))
		err = e.store.Batch(ctx, ops)
		if err == nil {
			if got, gerr := e.store.Get(ctx, NICBucket, macKey(mac)); gerr == nil {
				record.ETag = got.ETag
			}
			return &record, net, nil
		}

		bucket, isConflict := store.IsConflict(err)
		if !isConflict {
			return nil, nil, err
		}
		metrics.StoreConflictsTotal.WithLabelValues(bucket).Inc()

		networkUUID := ""
		if net != nil {
			networkUUID = net.UUID
		}

		switch {
		case bucket == NICBucket && in.MAC != nil:
			metrics.AllocationRejected.WithLabelValues(networkUUID, "mac_in_use").Inc()
			return nil, nil, &MACInUseError{MAC: *in.MAC}
		case bucket == NICBucket:
			if !macAttempt.Retry() {
				metrics.AllocationRejected.WithLabelValues(networkUUID, "mac_exhausted").Inc()
				return nil, nil, macalloc.ErrExhausted
			}
		case ipAttempt != nil && bucket == ipalloc.BucketName(net.UUID):
			if !ipAttempt.ConsumeRetry() {
				metrics.AllocationRejected.WithLabelValues(networkUUID, "subnet_full").Inc()
				return nil, nil, ipalloc.ErrSubnetFull
			}
		default:
			return nil, nil, err
		}
	}
}

// Provision is create with no ip/mac/network parameters resolved from the
// caller beyond network_uuid: it is the provision(network_uuid) operation
// named in spec.md §4.5.
func (e *Engine) Provision(ctx context.Context, networkUUID string, owner string, belongsToType napi.BelongsToType, belongsToUUID string) (*napi.NIC, *napi.Network, error) {
	return e.Create(ctx, CreateInput{
		OwnerUUID:     owner,
		BelongsToType: belongsToType,
		BelongsToUUID: belongsToUUID,
		NetworkUUID:   networkUUID,
		State:         napi.NICProvisioning,
	})
}

func buildNIC(in CreateInput, mac uint64, net *napi.Network, ipCand *ipalloc.Candidate) napi.NIC {
	state := in.State
	if state == "" {
		state = napi.NICProvisioning
	}
	rec := napi.NIC{
		MAC:                    mac,
		OwnerUUID:              in.OwnerUUID,
		BelongsToType:          in.BelongsToType,
		BelongsToUUID:          in.BelongsToUUID,
		CNUUID:                 in.CNUUID,
		Primary:                in.Primary,
		State:                  state,
		NICTag:                 in.NICTag,
		NICTagsProvided:        in.NICTagsProvided,
		AllowDHCPSpoofing:      in.AllowDHCPSpoofing,
		AllowIPSpoofing:        in.AllowIPSpoofing,
		AllowMACSpoofing:       in.AllowMACSpoofing,
		AllowRestrictedTraffic: in.AllowRestrictedTraffic,
		AllowUnfilteredPromisc: in.AllowUnfilteredPromisc,
		Underlay:               in.Underlay,
		Model:                  in.Model,
	}
	if net != nil {
		rec.NetworkUUID = net.UUID
	}
	if ipCand != nil {
		rec.IP = ipCand.Record.Address
	}
	return rec
}

// resolveNetwork implements spec.md §4.5 step 2: by uuid, else by
// (nic_tag, vlan_id) unique lookup, else none (nil, nil).
func (e *Engine) resolveNetwork(ctx context.Context, uuid, nicTag string, vlanID *int) (*napi.Network, error) {
	if uuid != "" {
		rec, err := e.store.Get(ctx, NetworkBucket, uuid)
		if store.IsNotFound(err) {
			return nil, &NetworkNotFoundError{UUID: uuid}
		}
		if err != nil {
			return nil, err
		}
		n := rec.Value.(napi.Network)
		n.ETag = rec.ETag
		return &n, nil
	}

	if nicTag != "" && vlanID != nil {
		recs, err := e.store.Find(ctx, NetworkBucket, func(r *store.Record) bool {
			n, ok := r.Value.(napi.Network)
			return ok && n.NICTag == nicTag && n.VLANID == *vlanID
		}, store.FindOptions{})
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, &NetworkNotFoundError{NICTag: nicTag, VLANID: vlanID}
		}
		if len(recs) > 1 {
			return nil, &NetworkAmbiguousError{NICTag: nicTag, VLANID: *vlanID}
		}
		n := recs[0].Value.(napi.Network)
		n.ETag = recs[0].ETag
		return &n, nil
	}

	return nil, nil
}
