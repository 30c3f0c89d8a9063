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

// Package ipalloc selects IP addresses for provisioning (spec.md §4.3,
// component C3): gap-first, then freed-first, then SubnetFull. It never
// commits on its own - the NIC engine (C5) places the candidate this
// package proposes into a compound batch together with the NIC record,
// and drives the bounded retry loop against whatever Conflict comes back
// (spec.md §4.3.3).
package ipalloc

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-kit/log"

	"napi.io/internal/address"
	"napi.io/internal/napi"
	"napi.io/internal/store"
)

// DefaultRetries is a fallback IP provisioning retry budget (the engine
// tests use it). The service takes its budget from internal/config's
// IPProvisionRetry, which defaults to 10.
const DefaultRetries = 20

// DefaultMaxGap caps how many candidate addresses one gap scan queues.
// Once that queue is used up, the next candidate comes from a fresh scan.
const DefaultMaxGap = 4096

// ErrSubnetFull is returned once neither a gap nor a freed address remains
// (spec.md §4.3.1 step 3), or once the retry budget is exhausted (spec.md
// §4.3.3).
var ErrSubnetFull = errors.New("ipalloc: subnet full")

// ErrIPInUse is returned when a caller requests a specific address that
// already belongs to something else (spec.md §4.3.3 edge case).
var ErrIPInUse = errors.New("ipalloc: address in use")

// BucketName is the per-network IP bucket's name in the store (spec.md §6
// "one per-network bucket for IP records").
func BucketName(networkUUID string) string { return "ips/" + networkUUID }

// Candidate is a proposed IP write: either a brand-new record (create-only)
// or a freed/requested record being reclaimed (match-etag).
type Candidate struct {
	Record       napi.IPRecord
	Precondition store.Precondition
}

// Seed inserts the sentinel records spec.md §4.3 requires at network
// creation: the gateway and IPv4 broadcast address (if applicable), each
// reserved, and the two provision-range placeholders that anchor the gap
// scan. It is idempotent: an address that's already seeded is left alone.
func Seed(ctx context.Context, s store.Store, net napi.Network) error {
	bucket := BucketName(net.UUID)

	provStart, err := address.Parse(net.ProvisionStart)
	if err != nil {
		return fmt.Errorf("ipalloc: seeding %s: %w", net.UUID, err)
	}
	provEnd, err := address.Parse(net.ProvisionEnd)
	if err != nil {
		return fmt.Errorf("ipalloc: seeding %s: %w", net.UUID, err)
	}

	lo, err := address.Minus(provStart, 1)
	if err != nil {
		return fmt.Errorf("ipalloc: seeding %s: %w", net.UUID, err)
	}
	hi, err := address.Plus(provEnd, 1)
	if err != nil {
		return fmt.Errorf("ipalloc: seeding %s: %w", net.UUID, err)
	}

	sentinels := []string{lo.String(), hi.String()}
	if net.Gateway != "" {
		sentinels = append(sentinels, net.Gateway)
	}
	if net.Family == napi.IPv4 {
		if _, last, err := address.Range(net.Subnet); err == nil {
			sentinels = append(sentinels, last.String())
		}
	}

	for _, addr := range sentinels {
		rec := napi.IPRecord{Address: addr, NetworkUUID: net.UUID, Reserved: true}
		_, err := s.Put(ctx, bucket, addr, rec, store.Create())
		if err != nil {
			if _, ok := store.IsConflict(err); ok {
				continue // already seeded
			}
			return fmt.Errorf("ipalloc: seeding %s at %s: %w", net.UUID, addr, err)
		}
	}
	return nil
}

// Attempt is the explicit, loop-bounded state of one in-flight IP
// allocation (Design Note "Callback chains -> explicit state", spec.md
// §9, replacing the opts.ipProvisionQueue/opts.noMoreGapIPs pattern).
type Attempt struct {
	store   store.Store
	net     napi.Network
	maxGap  int
	maxRetries int
	retries int
	logger  log.Logger

	requested *address.Address
	queue     []address.Address
	current   *Candidate
}

// NewAttempt starts an allocation attempt against net. If requested is
// non-nil the allocator bypasses gap/freed selection entirely and always
// proposes that address (spec.md §4.3.3 edge case). logger traces each
// store round-trip and retry at debug level; a nil logger is replaced
// with a no-op one.
func NewAttempt(s store.Store, net napi.Network, requested *address.Address, maxGap, maxRetries int, logger log.Logger) *Attempt {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Attempt{store: s, net: net, requested: requested, maxGap: maxGap, maxRetries: maxRetries, logger: logger}
}

// Candidate returns the address to propose next. Repeated calls without
// an intervening ConsumeRetry return the same candidate (spec.md §4.3.3:
// a conflict outside the IP bucket re-proposes the head of the queue
// without consuming a retry).
func (a *Attempt) Candidate(ctx context.Context) (*Candidate, error) {
	if a.current != nil {
		return a.current, nil
	}
	cand, err := a.computeNext(ctx)
	if err != nil {
		return nil, err
	}
	a.current = cand
	return cand, nil
}

// ConsumeRetry discards the current candidate (so the next Candidate call
// computes a fresh one) and consumes one retry. It returns false once
// DefaultRetries/maxRetries draws have been made, at which point the
// caller must fail with ErrSubnetFull (spec.md §4.3.3).
func (a *Attempt) ConsumeRetry() bool {
	a.current = nil
	if a.retries >= a.maxRetries {
		a.logger.Log("level", "debug", "op", "ipalloc.retry", "network", a.net.UUID, "msg", "retries exhausted", "max_retries", a.maxRetries)
		return false
	}
	a.retries++
	a.logger.Log("level", "debug", "op", "ipalloc.retry", "network", a.net.UUID, "attempt", a.retries, "max_retries", a.maxRetries)
	return true
}

// Attempts reports how many retries have been consumed so far.
func (a *Attempt) Attempts() int { return a.retries }

func (a *Attempt) computeNext(ctx context.Context) (*Candidate, error) {
	if a.requested != nil {
		return specificCandidate(ctx, a.store, a.net, *a.requested)
	}

	if len(a.queue) > 0 {
		head := a.queue[0]
		a.queue = a.queue[1:]
		return &Candidate{
			Record:       napi.IPRecord{Address: head.String(), NetworkUUID: a.net.UUID},
			Precondition: store.Create(),
		}, nil
	}

	provStart, err := address.Parse(a.net.ProvisionStart)
	if err != nil {
		return nil, err
	}
	provEnd, err := address.Parse(a.net.ProvisionEnd)
	if err != nil {
		return nil, err
	}
	lo, err := address.Minus(provStart, 1)
	if err != nil {
		return nil, err
	}
	hi, err := address.Plus(provEnd, 1)
	if err != nil {
		return nil, err
	}

	a.logger.Log("level", "debug", "op", "ipalloc.gap_scan", "network", a.net.UUID, "max_gap", a.maxGap)
	gap, err := a.store.IPGapScan(ctx, BucketName(a.net.UUID), lo, hi, a.maxGap)
	if err != nil {
		return nil, fmt.Errorf("ipalloc: gap scan: %w", err)
	}
	if gap != nil {
		addrs := make([]address.Address, 0, gap.Length)
		cur := gap.Start
		for i := 0; i < gap.Length; i++ {
			addrs = append(addrs, cur)
			next, err := address.Plus(cur, 1)
			if err != nil {
				break
			}
			cur = next
		}
		a.queue = addrs[1:]
		return &Candidate{
			Record:       napi.IPRecord{Address: addrs[0].String(), NetworkUUID: a.net.UUID},
			Precondition: store.Create(),
		}, nil
	}

	a.logger.Log("level", "debug", "op", "ipalloc.gap_scan", "network", a.net.UUID, "msg", "no gap found, falling back to freed list")
	return freedCandidate(ctx, a.store, a.net)
}

func specificCandidate(ctx context.Context, s store.Store, net napi.Network, addr address.Address) (*Candidate, error) {
	bucket := BucketName(net.UUID)
	rec, err := s.Get(ctx, bucket, addr.String())
	if store.IsNotFound(err) {
		return &Candidate{
			Record:       napi.IPRecord{Address: addr.String(), NetworkUUID: net.UUID},
			Precondition: store.Create(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	ip, ok := rec.Value.(napi.IPRecord)
	if !ok {
		return nil, fmt.Errorf("ipalloc: %s: unexpected record type", addr)
	}
	if ip.BelongsToUUID != "" {
		return nil, ErrIPInUse
	}
	return &Candidate{Record: ip, Precondition: store.Match(rec.ETag)}, nil
}

func freedCandidate(ctx context.Context, s store.Store, net napi.Network) (*Candidate, error) {
	bucket := BucketName(net.UUID)
	recs, err := s.Find(ctx, bucket, func(r *store.Record) bool {
		ip, ok := r.Value.(napi.IPRecord)
		return ok && ip.Free()
	}, store.FindOptions{
		Sort: func(a, b *store.Record) bool { return a.MTime.Before(b.MTime) },
	})
	if err != nil {
		return nil, fmt.Errorf("ipalloc: scanning freed addresses: %w", err)
	}
	if len(recs) == 0 {
		return nil, ErrSubnetFull
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].MTime.Before(recs[j].MTime) })
	chosen := recs[0]
	ip := chosen.Value.(napi.IPRecord)
	return &Candidate{Record: ip, Precondition: store.Match(chosen.ETag)}, nil
}
