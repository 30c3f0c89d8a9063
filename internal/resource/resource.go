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

// Package resource is the thin store-backed CRUD manager shared by every
// plain record resource the request façade exposes directly - Network,
// NicTag, NetworkPool, Aggregation, VLAN, VPC (spec.md §6). These
// resources carry no allocation logic of their own (that's C3-C7); this
// package exists only to apply the store's optimistic-concurrency
// preconditions uniformly instead of repeating them once per resource
// type, the way the teacher's internal/pool/allocator.go repeats its
// assign/unassign compound-update shape across call sites.
package resource

import (
	"context"

	"github.com/google/uuid"

	"napi.io/internal/store"
)

// Manager is a generic store-backed CRUD surface for one bucket. T is the
// record's Go type. Callers with a different key scheme (e.g.
// Aggregation's "<cn_uuid>-<name>") pass their own key to Create; an empty
// key gets a fresh UUID.
type Manager[T any] struct {
	store  store.Store
	bucket string
}

// New returns a Manager over bucket.
func New[T any](s store.Store, bucket string) *Manager[T] {
	return &Manager[T]{store: s, bucket: bucket}
}

// Create writes value under key with the create-only precondition. If
// key is empty, a fresh UUID is generated and returned.
func (m *Manager[T]) Create(ctx context.Context, key string, value T) (string, *store.Record, error) {
	if key == "" {
		key = uuid.New().String()
	}
	rec, err := m.store.Put(ctx, m.bucket, key, value, store.Create())
	if err != nil {
		return "", nil, err
	}
	return key, rec, nil
}

// Get fetches one record by key.
func (m *Manager[T]) Get(ctx context.Context, key string) (*store.Record, error) {
	return m.store.Get(ctx, m.bucket, key)
}

// Update writes value under key, requiring the stored record's etag to
// equal etag (spec.md §6 "mutating requests honour If-Match").
func (m *Manager[T]) Update(ctx context.Context, key string, value T, etag string) (*store.Record, error) {
	return m.store.Put(ctx, m.bucket, key, value, store.Match(etag))
}

// Delete removes key, requiring the stored record's etag to equal etag.
// An empty etag deletes unconditionally.
func (m *Manager[T]) Delete(ctx context.Context, key, etag string) error {
	pre := store.Any()
	if etag != "" {
		pre = store.Match(etag)
	}
	return m.store.Batch(ctx, []store.Op{{Bucket: m.bucket, Key: key, Delete: true, Precondition: pre}})
}

// List returns every record in the bucket matching filter, windowed by
// opts.
func (m *Manager[T]) List(ctx context.Context, filter func(*store.Record) bool, opts store.FindOptions) ([]*store.Record, error) {
	return m.store.Find(ctx, m.bucket, filter, opts)
}
