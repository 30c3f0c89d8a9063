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

package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"napi.io/internal/address"
)

// Memory is an in-process Store implementation. It is the reference
// implementation used by every engine package's tests, and is a
// reasonable stand-in for local development; spec.md §1 treats the real
// backing database as an external collaborator, so production
// deployments are expected to supply a different Store implementation
// wired to it.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]map[string]*Record
	seq     uint64
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{buckets: map[string]map[string]*Record{}}
}

func (m *Memory) nextETag() string {
	m.seq++
	return strconv.FormatUint(m.seq, 36)
}

func (m *Memory) bucket(name string) map[string]*Record {
	b, ok := m.buckets[name]
	if !ok {
		b = map[string]*Record{}
		m.buckets[name] = b
	}
	return b
}

func (m *Memory) Get(ctx context.Context, bucket, key string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.buckets[bucket][key]
	if !ok {
		return nil, &NotFoundError{Bucket: bucket, Key: key}
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) Put(ctx context.Context, bucket, key string, value any, pre Precondition) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(bucket)
	if err := checkPrecondition(b[key], pre); err != nil {
		return nil, &ConflictError{Bucket: bucket, Key: key}
	}

	rec := &Record{Bucket: bucket, Key: key, Value: value, ETag: m.nextETag(), MTime: now()}
	b[key] = rec
	cp := *rec
	return &cp, nil
}

// Batch checks every op's precondition against the current state, under
// the store lock, before committing any op, so that a precondition failure
// never leaves a partial write visible (spec.md §5 "Partial batches are
// never issued").
func (m *Memory) Batch(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate every precondition against current state before mutating
	// anything.
	for _, op := range ops {
		existing := m.buckets[op.Bucket][op.Key]
		if op.Delete {
			if existing == nil {
				return &ConflictError{Bucket: op.Bucket, Key: op.Key}
			}
		}
		if err := checkPrecondition(existing, op.Precondition); err != nil {
			return &ConflictError{Bucket: op.Bucket, Key: op.Key}
		}
	}

	// All preconditions hold; commit every op.
	for _, op := range ops {
		b := m.bucket(op.Bucket)
		if op.Delete {
			delete(b, op.Key)
			continue
		}
		b[op.Key] = &Record{Bucket: op.Bucket, Key: op.Key, Value: op.Value, ETag: m.nextETag(), MTime: now()}
	}
	return nil
}

func (m *Memory) Find(ctx context.Context, bucket string, filter func(*Record) bool, opts FindOptions) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Record
	for _, rec := range m.buckets[bucket] {
		if filter == nil || filter(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}

	sortRecords(out, opts.Sort)

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// IPGapScan finds the first gap in (lo, hi), i.e. the lowest address a
// such that lo < a < hi and a has no record but there is a record at
// some address < a contiguous up to a (spec.md §4.3.2). Concretely: scan
// present keys in (lo, hi) order and find the first place where the next
// present address isn't the immediate successor of the current one.
func (m *Memory) IPGapScan(ctx context.Context, bucket string, lo, hi address.Address, maxGap int) (*Gap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	present := make([]address.Address, 0, len(m.buckets[bucket]))
	for key := range m.buckets[bucket] {
		a, err := address.Parse(key)
		if err != nil {
			continue
		}
		if address.Compare(a, lo) >= 0 && address.Compare(a, hi) <= 0 {
			present = append(present, a)
		}
	}
	sortAddresses(present)

	for i := 0; i < len(present)-1; i++ {
		cur, next := present[i], present[i+1]
		candidate, err := address.Plus(cur, 1)
		if err != nil {
			continue
		}
		if address.Compare(candidate, next) >= 0 {
			continue // no gap between adjacent/overlapping entries
		}
		gapLen := gapLength(cur, next, maxGap)
		if gapLen > 0 {
			return &Gap{Start: candidate, Length: gapLen}, nil
		}
	}
	return nil, nil
}

// gapLength returns min(distance(cur,next)-1, maxGap).
func gapLength(cur, next address.Address, maxGap int) int {
	n := 0
	a := cur
	for n < maxGap {
		nn, err := address.Plus(a, 1)
		if err != nil {
			break
		}
		if address.Compare(nn, next) >= 0 {
			break
		}
		a = nn
		n++
	}
	return n
}

func sortAddresses(addrs []address.Address) {
	for i := 1; i < len(addrs); i++ {
		for j := i; j > 0 && address.Compare(addrs[j-1], addrs[j]) > 0; j-- {
			addrs[j-1], addrs[j] = addrs[j], addrs[j-1]
		}
	}
}

func checkPrecondition(existing *Record, pre Precondition) error {
	switch pre.Kind {
	case CreateOnly:
		if existing != nil {
			return fmt.Errorf("already exists")
		}
	case MatchETag:
		if existing == nil || existing.ETag != pre.ETag {
			return fmt.Errorf("etag mismatch")
		}
	case Unconditional:
		// always OK
	}
	return nil
}

// now is overridable in tests that need deterministic mtimes.
var now = func() time.Time { return time.Now().UTC() }
