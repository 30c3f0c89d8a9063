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
	"testing"

	"github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"napi.io/internal/ipalloc"
	"napi.io/internal/macalloc"
	"napi.io/internal/napi"
	"napi.io/internal/store"
)

const testOUI = 0x90b8d0

func newTestNetwork(t *testing.T, s store.Store) napi.Network {
	t.Helper()
	net := napi.Network{
		UUID:           "net1",
		NICTag:         "t",
		VLANID:         46,
		Family:         napi.IPv4,
		Subnet:         "10.0.2.0/24",
		ProvisionStart: "10.0.2.5",
		ProvisionEnd:   "10.0.2.250",
	}
	ctx := context.Background()
	_, err := s.Put(ctx, NetworkBucket, net.UUID, net, store.Create())
	require.NoError(t, err)
	require.NoError(t, ipalloc.Seed(ctx, s, net))
	return net
}

func TestCreateSequentialIPs(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	newTestNetwork(t, s)
	e := NewEngine(s, testOUI, ipalloc.DefaultRetries, ipalloc.DefaultMaxGap, macalloc.DefaultRetries, log.NewNopLogger())

	var ips []string
	for i := 0; i < 3; i++ {
		n, _, err := e.Create(ctx, CreateInput{
			OwnerUUID:     "owner",
			BelongsToType: napi.BelongsToServer,
			BelongsToUUID: "server-1",
			NetworkUUID:   "net1",
		})
		require.NoError(t, err)
		ips = append(ips, n.IP)
	}
	assert.Equal(t, []string{"10.0.2.5", "10.0.2.6", "10.0.2.7"}, ips)
}

func TestCreateDuplicateMACRejected(t *testing.T) {
	// spec.md §8 scenario 4.
	ctx := context.Background()
	s := store.NewMemory()
	e := NewEngine(s, testOUI, ipalloc.DefaultRetries, ipalloc.DefaultMaxGap, macalloc.DefaultRetries, log.NewNopLogger())

	mac := uint64(0x90b8d0173717)
	_, _, err := e.Create(ctx, CreateInput{
		OwnerUUID: "owner", BelongsToType: napi.BelongsToServer, BelongsToUUID: "s1", MAC: &mac,
	})
	require.NoError(t, err)

	_, _, err = e.Create(ctx, CreateInput{
		OwnerUUID: "owner", BelongsToType: napi.BelongsToServer, BelongsToUUID: "s2", MAC: &mac,
	})
	require.Error(t, err)
	var dup *MACInUseError
	require.ErrorAs(t, err, &dup)
}

func TestCreateIPRequestedWithoutNetworkFails(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	e := NewEngine(s, testOUI, ipalloc.DefaultRetries, ipalloc.DefaultMaxGap, macalloc.DefaultRetries, log.NewNopLogger())

	ip := "10.0.2.5"
	_, _, err := e.Create(ctx, CreateInput{
		OwnerUUID: "owner", BelongsToType: napi.BelongsToServer, BelongsToUUID: "s1", IP: &ip,
	})
	require.Error(t, err)
	var unresolved *NetworkUnresolvedError
	require.ErrorAs(t, err, &unresolved)
}

func TestUpdatePrimaryDemotesSiblings(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	e := NewEngine(s, testOUI, ipalloc.DefaultRetries, ipalloc.DefaultMaxGap, macalloc.DefaultRetries, log.NewNopLogger())

	mac1, mac2 := uint64(1), uint64(2)
	_, _, err := e.Create(ctx, CreateInput{OwnerUUID: "o", BelongsToType: napi.BelongsToServer, BelongsToUUID: "srv", MAC: &mac1, Primary: true})
	require.NoError(t, err)
	_, _, err = e.Create(ctx, CreateInput{OwnerUUID: "o", BelongsToType: napi.BelongsToServer, BelongsToUUID: "srv", MAC: &mac2})
	require.NoError(t, err)

	yes := true
	updated, _, err := e.Update(ctx, mac2, UpdateInput{Primary: &yes})
	require.NoError(t, err)
	assert.True(t, updated.Primary)

	sibling, _, err := e.Get(ctx, mac1)
	require.NoError(t, err)
	assert.False(t, sibling.Primary, "the old primary must be demoted in the same batch")
}

func TestUpdateNetworkChangeFreesOldIP(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	newTestNetwork(t, s)
	e := NewEngine(s, testOUI, ipalloc.DefaultRetries, ipalloc.DefaultMaxGap, macalloc.DefaultRetries, log.NewNopLogger())

	created, _, err := e.Create(ctx, CreateInput{
		OwnerUUID: "o", BelongsToType: napi.BelongsToServer, BelongsToUUID: "srv", NetworkUUID: "net1",
	})
	require.NoError(t, err)
	oldIP := created.IP

	empty := ""
	updated, net, err := e.Update(ctx, created.MAC, UpdateInput{NetworkUUID: &empty})
	require.NoError(t, err)
	assert.Equal(t, "", updated.NetworkUUID)
	assert.Nil(t, net)

	rec, err := s.Get(ctx, ipalloc.BucketName("net1"), oldIP)
	require.NoError(t, err)
	ip := rec.Value.(napi.IPRecord)
	assert.True(t, ip.Free(), "the old address must be freed once the NIC moves off it")
}

func TestDeleteUnassignVsTombstone(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	newTestNetwork(t, s)
	e := NewEngine(s, testOUI, ipalloc.DefaultRetries, ipalloc.DefaultMaxGap, macalloc.DefaultRetries, log.NewNopLogger())

	created, _, err := e.Create(ctx, CreateInput{
		OwnerUUID: "o", BelongsToType: napi.BelongsToServer, BelongsToUUID: "srv", NetworkUUID: "net1",
	})
	require.NoError(t, err)

	require.NoError(t, e.Delete(ctx, created.MAC, Unassign))

	rec, err := s.Get(ctx, ipalloc.BucketName("net1"), created.IP)
	require.NoError(t, err)
	ip := rec.Value.(napi.IPRecord)
	assert.True(t, ip.Reserved, "Unassign keeps the address reserved")
	assert.False(t, ip.Free())

	_, _, err = e.Get(ctx, created.MAC)
	require.Error(t, err)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDeleteTombstoneFreesAddress(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	newTestNetwork(t, s)
	e := NewEngine(s, testOUI, ipalloc.DefaultRetries, ipalloc.DefaultMaxGap, macalloc.DefaultRetries, log.NewNopLogger())

	created, _, err := e.Create(ctx, CreateInput{
		OwnerUUID: "o", BelongsToType: napi.BelongsToServer, BelongsToUUID: "srv", NetworkUUID: "net1",
	})
	require.NoError(t, err)

	require.NoError(t, e.Delete(ctx, created.MAC, Tombstone))

	rec, err := s.Get(ctx, ipalloc.BucketName("net1"), created.IP)
	require.NoError(t, err)
	ip := rec.Value.(napi.IPRecord)
	assert.True(t, ip.Free(), "Tombstone frees the address for reuse")
}

// alwaysConflictStore wraps a real store but reports every Batch as a
// conflict in a fixed bucket, so a retry loop's exhaustion path can be
// exercised deterministically instead of depending on real MAC
// collisions (astronomically unlikely to land in a test run).
type alwaysConflictStore struct {
	store.Store
	bucket string
}

func (s *alwaysConflictStore) Batch(ctx context.Context, ops []store.Op) error {
	return &store.ConflictError{Bucket: s.bucket, Key: ops[0].Key}
}

func TestCreateMACRetriesExhaustedReturnsErrExhausted(t *testing.T) {
	// spec.md §4.4/§8: after >= MAC_RETRIES collisions, Create must give up
	// with macalloc.ErrExhausted (mapped to InternalError at the API
	// boundary), not ipalloc.ErrSubnetFull.
	ctx := context.Background()
	s := &alwaysConflictStore{Store: store.NewMemory(), bucket: NICBucket}
	e := NewEngine(s, testOUI, ipalloc.DefaultRetries, ipalloc.DefaultMaxGap, 3, log.NewNopLogger())

	_, _, err := e.Create(ctx, CreateInput{
		OwnerUUID: "o", BelongsToType: napi.BelongsToServer, BelongsToUUID: "srv",
	})
	require.ErrorIs(t, err, macalloc.ErrExhausted)
}

func TestUpdatePrimaryDemotionLeavesOtherFieldsUnchanged(t *testing.T) {
	// Exercises the demoted sibling record end-to-end with a deep
	// structural diff rather than field-by-field assertions.
	ctx := context.Background()
	s := store.NewMemory()
	e := NewEngine(s, testOUI, ipalloc.DefaultRetries, ipalloc.DefaultMaxGap, macalloc.DefaultRetries, log.NewNopLogger())

	mac1, mac2 := uint64(1), uint64(2)
	before, _, err := e.Create(ctx, CreateInput{
		OwnerUUID: "o", BelongsToType: napi.BelongsToServer, BelongsToUUID: "srv",
		MAC: &mac1, Primary: true, Model: "virtio",
	})
	require.NoError(t, err)
	_, _, err = e.Create(ctx, CreateInput{OwnerUUID: "o", BelongsToType: napi.BelongsToServer, BelongsToUUID: "srv", MAC: &mac2})
	require.NoError(t, err)

	yes := true
	_, _, err = e.Update(ctx, mac2, UpdateInput{Primary: &yes})
	require.NoError(t, err)

	after, _, err := e.Get(ctx, mac1)
	require.NoError(t, err)

	want := *before
	want.Primary = false
	// The demotion is a write of its own, so the store issues a new etag.
	assert.NotEqual(t, before.ETag, after.ETag)
	want.ETag = after.ETag
	if diff := cmp.Diff(want, *after); diff != "" {
		t.Fatalf("demoted sibling diverged beyond Primary (-want +got):\n%s", diff)
	}
}
