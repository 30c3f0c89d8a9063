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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"napi.io/internal/address"
)

func mustAddr(t *testing.T, s string) address.Address {
	a, err := address.Parse(s)
	require.NoError(t, err)
	return a
}

func TestPutGetCreateOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rec, err := m.Put(ctx, "nics", "1", "a", Create())
	require.NoError(t, err)
	etag1 := rec.ETag

	_, err = m.Put(ctx, "nics", "1", "b", Create())
	bucket, ok := IsConflict(err)
	assert.True(t, ok)
	assert.Equal(t, "nics", bucket)

	got, err := m.Get(ctx, "nics", "1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Value)
	assert.Equal(t, etag1, got.ETag)
}

func TestETagsDiffer(t *testing.T) {
	// two successive mutating writes that succeed return strictly
	// different etags (spec.md §8 ETag contract).
	ctx := context.Background()
	m := NewMemory()

	r1, err := m.Put(ctx, "nics", "1", "a", Create())
	require.NoError(t, err)
	r2, err := m.Put(ctx, "nics", "1", "b", Match(r1.ETag))
	require.NoError(t, err)
	assert.NotEqual(t, r1.ETag, r2.ETag)

	// mismatched If-Match fails and does not mutate
	_, err = m.Put(ctx, "nics", "1", "c", Match(r1.ETag))
	_, ok := IsConflict(err)
	assert.True(t, ok)

	got, err := m.Get(ctx, "nics", "1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Value)
}

func TestGetNotFound(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "nics", "1")
	assert.True(t, IsNotFound(err))
}

func TestBatchAtomicity(t *testing.T) {
	// if one op's precondition fails, no op in the batch lands (spec.md §8
	// "batch atomicity").
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Put(ctx, "nics", "1", "existing", Create())
	require.NoError(t, err)

	err = m.Batch(ctx, []Op{
		{Bucket: "ips", Key: "10.0.0.1", Value: "ip", Precondition: Create()},
		{Bucket: "nics", Key: "1", Value: "overwrite", Precondition: Create()}, // fails: already exists
	})
	bucket, ok := IsConflict(err)
	assert.True(t, ok)
	assert.Equal(t, "nics", bucket)

	_, err = m.Get(ctx, "ips", "10.0.0.1")
	assert.True(t, IsNotFound(err), "the ips write must not have landed")
}

func TestFindSortLimitOffset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, k := range []string{"c", "a", "b"} {
		_, err := m.Put(ctx, "x", k, k, Create())
		require.NoError(t, err)
	}

	recs, err := m.Find(ctx, "x", nil, FindOptions{
		Sort: func(a, b *Record) bool { return a.Key < b.Key },
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{recs[0].Key, recs[1].Key, recs[2].Key})

	recs, err = m.Find(ctx, "x", nil, FindOptions{
		Sort:   func(a, b *Record) bool { return a.Key < b.Key },
		Offset: 1,
		Limit:  1,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].Key)
}

func TestIPGapScan(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	lo := mustAddr(t, "10.0.2.4")
	hi := mustAddr(t, "10.0.2.251")

	// sentinel seeding leaves lo and hi present, and provisioning fills
	// 10.0.2.5 and 10.0.2.6
	for _, a := range []string{"10.0.2.4", "10.0.2.5", "10.0.2.6", "10.0.2.251"} {
		_, err := m.Put(ctx, "ips", a, a, Create())
		require.NoError(t, err)
	}

	gap, err := m.IPGapScan(ctx, "ips", lo, hi, 100)
	require.NoError(t, err)
	require.NotNil(t, gap)
	assert.Equal(t, "10.0.2.7", gap.Start.String())
	assert.True(t, gap.Length > 0)
}

func TestIPGapScanNoGap(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	lo := mustAddr(t, "10.0.2.4")
	hi := mustAddr(t, "10.0.2.6")
	for _, a := range []string{"10.0.2.4", "10.0.2.5", "10.0.2.6"} {
		_, err := m.Put(ctx, "ips", a, a, Create())
		require.NoError(t, err)
	}

	gap, err := m.IPGapScan(ctx, "ips", lo, hi, 100)
	require.NoError(t, err)
	assert.Nil(t, gap)
}
