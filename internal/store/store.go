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

// Package store defines the versioned key/value adapter that every engine
// package (C3-C7) reads and writes through (spec.md §4.2). The adapter
// itself - and the real database behind it - is out of scope for this
// repository (spec.md §1): this package is the contract, plus an
// in-memory implementation good enough to exercise and test the engines
// against.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"napi.io/internal/address"
)

// PreconditionKind selects one of the three write preconditions spec.md
// §4.2 names.
type PreconditionKind int

const (
	// CreateOnly succeeds only if the key does not already exist.
	CreateOnly PreconditionKind = iota
	// MatchETag succeeds only if the key's current etag equals ETag.
	MatchETag
	// Unconditional always succeeds (subject to no other constraint).
	Unconditional
)

// Precondition is the guard a Put or batched Op is evaluated against.
type Precondition struct {
	Kind PreconditionKind
	ETag string
}

// Create returns the create-only precondition.
func Create() Precondition { return Precondition{Kind: CreateOnly} }

// Match returns a precondition that requires the stored etag to equal etag.
func Match(etag string) Precondition { return Precondition{Kind: MatchETag, ETag: etag} }

// Any returns the unconditional precondition.
func Any() Precondition { return Precondition{Kind: Unconditional} }

// Record is one versioned value in a bucket.
type Record struct {
	Bucket string
	Key    string
	Value  any
	ETag   string
	MTime  time.Time
}

// Op is one write in a Batch: either a Put (Delete=false) or a Delete
// (Value is ignored).
type Op struct {
	Bucket       string
	Key          string
	Value        any
	Delete       bool
	Precondition Precondition
}

// FindOptions controls the result window returned by Find.
type FindOptions struct {
	// Sort, if non-nil, orders the candidate set before Limit/Offset are
	// applied.
	Sort func(a, b *Record) bool
	// Limit caps the number of records returned. Zero means unbounded.
	Limit int
	// Offset skips the first Offset records of the sorted, filtered set.
	Offset int
}

// Gap is the result of IPGapScan: the first unused address in a range and
// how many consecutive addresses starting there are free, up to maxGap.
type Gap struct {
	Start  address.Address
	Length int
}

// NotFoundError is returned by Get when the key does not exist.
type NotFoundError struct {
	Bucket, Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %s/%s: not found", e.Bucket, e.Key)
}

// ConflictError is returned by Put or Batch when a precondition fails. It
// names the first bucket whose precondition was violated, per spec.md §4.2.
type ConflictError struct {
	Bucket, Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: %s/%s: conflict", e.Bucket, e.Key)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is (or wraps) a ConflictError, and if so
// in which bucket.
func IsConflict(err error) (bucket string, ok bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Bucket, true
	}
	return "", false
}

// Store is the versioned bucket abstraction of spec.md §4.2. Every method
// may block on I/O; callers pass a context so a caller-side cancellation
// can interrupt a blocked call without issuing a partial write (spec.md
// §5 "Cancellation").
type Store interface {
	// Get fetches one record. Returns a *NotFoundError if key is absent.
	Get(ctx context.Context, bucket, key string) (*Record, error)

	// Put writes one record under the given precondition. Returns a
	// *ConflictError if the precondition fails.
	Put(ctx context.Context, bucket, key string, value any, pre Precondition) (*Record, error)

	// Batch applies every op atomically: either all land, or none do. On
	// failure it returns a *ConflictError naming the first bucket/key whose
	// precondition was violated.
	Batch(ctx context.Context, ops []Op) error

	// Find returns records from bucket matching filter (nil matches
	// everything), ordered and windowed per opts.
	Find(ctx context.Context, bucket string, filter func(*Record) bool, opts FindOptions) ([]*Record, error)

	// IPGapScan implements the window-function gap scan of spec.md §4.3.2:
	// the first address a in the open interval (lo, hi) such that a is
	// absent from bucket but a-1 is present (or a == lo+1, since lo is
	// itself expected to be present as a sentinel), bounded by maxGap. It
	// returns (nil, nil) if no such gap exists in the range.
	IPGapScan(ctx context.Context, bucket string, lo, hi address.Address, maxGap int) (*Gap, error)
}

// sortRecords is a small helper shared by Store implementations' Find.
func sortRecords(recs []*Record, less func(a, b *Record) bool) {
	if less == nil {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool { return less(recs[i], recs[j]) })
}
