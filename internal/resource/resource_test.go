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

package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"napi.io/internal/napi"
	"napi.io/internal/store"
)

func TestCreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	mgr := New[napi.NicTag](s, "nic_tags")

	key, rec, err := mgr.Create(ctx, "", napi.NicTag{Name: "external", MTU: 1500})
	require.NoError(t, err)
	require.NotEmpty(t, key)

	got, err := mgr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, rec.ETag, got.ETag)

	tag := got.Value.(napi.NicTag)
	tag.MTU = 9000
	updated, err := mgr.Update(ctx, key, tag, got.ETag)
	require.NoError(t, err)
	assert.NotEqual(t, got.ETag, updated.ETag)

	err = mgr.Delete(ctx, key, updated.ETag)
	require.NoError(t, err)

	_, err = mgr.Get(ctx, key)
	assert.True(t, store.IsNotFound(err))
}

func TestUpdateRejectsStaleETag(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	mgr := New[napi.NicTag](s, "nic_tags")

	key, rec, err := mgr.Create(ctx, "", napi.NicTag{Name: "external", MTU: 1500})
	require.NoError(t, err)

	_, err = mgr.Update(ctx, key, napi.NicTag{Name: "external", MTU: 9000}, "stale-"+rec.ETag)
	require.Error(t, err)
	_, isConflict := store.IsConflict(err)
	assert.True(t, isConflict)
}

func TestListFindsCreatedRecords(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	mgr := New[napi.NicTag](s, "nic_tags")

	_, _, err := mgr.Create(ctx, "", napi.NicTag{Name: "external", MTU: 1500})
	require.NoError(t, err)
	_, _, err = mgr.Create(ctx, "", napi.NicTag{Name: "internal", MTU: 1500})
	require.NoError(t, err)

	recs, err := mgr.List(ctx, nil, store.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
