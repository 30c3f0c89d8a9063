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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"napi.io/internal/config"
	"napi.io/internal/napi"
	"napi.io/internal/nic"
	"napi.io/internal/resource"
	"napi.io/internal/store"
)

func testRouter(t *testing.T) (http.Handler, *Deps) {
	t.Helper()
	s := store.NewMemory()
	d := &Deps{
		Store:    s,
		NICs:     nic.NewEngine(s, 0x90b8d0, 10, 4096, 10, log.NewNopLogger()),
		Networks: resource.New[napi.Network](s, "networks"),
		NicTags:  resource.New[napi.NicTag](s, "nic_tags"),
		Pools:    resource.New[napi.NetworkPool](s, "network_pools"),
		Aggs:     resource.New[napi.Aggregation](s, "aggregations"),
		VLANs:    resource.New[napi.VLAN](s, "vlans"),
		VPCs:     resource.New[napi.VPC](s, "vpc"),
		Config:   config.Config{ListenAddress: ":80"},
		Logger:   log.NewNopLogger(),
	}
	return NewRouter(d), d
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, etag string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if etag != "" {
		req.Header.Set("If-Match", etag)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNetworkCreateGetUpdateDeleteRoundTrip(t *testing.T) {
	router, _ := testRouter(t)

	create := doJSON(t, router, http.MethodPost, "/networks", map[string]any{
		"name":            "external",
		"nic_tag":         "external",
		"vlan_id":         0,
		"subnet":          "10.0.0.0/24",
		"provision_start": "10.0.0.10",
		"provision_end":   "10.0.0.200",
	}, "")
	require.Equal(t, http.StatusOK, create.Code)
	var created napi.Network
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &created))
	require.NotEmpty(t, created.UUID)
	etag := create.Result().Header.Get("ETag")
	require.NotEmpty(t, etag)

	get := doJSON(t, router, http.MethodGet, "/networks/"+created.UUID, nil, "")
	require.Equal(t, http.StatusOK, get.Code)
	var fetched napi.Network
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &fetched))
	assert.Equal(t, created.UUID, fetched.UUID)

	update := doJSON(t, router, http.MethodPut, "/networks/"+created.UUID,
		map[string]any{"gateway": "10.0.0.1"}, etag)
	require.Equal(t, http.StatusOK, update.Code)
	var updated napi.Network
	require.NoError(t, json.Unmarshal(update.Body.Bytes(), &updated))
	assert.Equal(t, "10.0.0.1", updated.Gateway)

	stale := doJSON(t, router, http.MethodPut, "/networks/"+created.UUID,
		map[string]any{"gateway": "10.0.0.2"}, etag)
	assert.Equal(t, http.StatusPreconditionFailed, stale.Code)

	del := doJSON(t, router, http.MethodDelete, "/networks/"+created.UUID, nil, update.Result().Header.Get("ETag"))
	assert.Equal(t, http.StatusNoContent, del.Code)

	missing := doJSON(t, router, http.MethodGet, "/networks/"+created.UUID, nil, "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestNetworkCreateValidationFailure(t *testing.T) {
	router, _ := testRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/networks", map[string]any{
		"name": "external",
	}, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	var body apiError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "InvalidParameters", body.Code)
	assert.NotEmpty(t, body.Errors)
}

func TestNICProvisionAndGetAssignsIPAndMAC(t *testing.T) {
	router, _ := testRouter(t)

	netResp := doJSON(t, router, http.MethodPost, "/networks", map[string]any{
		"name":            "external",
		"nic_tag":         "external",
		"vlan_id":         0,
		"subnet":          "10.0.0.0/24",
		"provision_start": "10.0.0.10",
		"provision_end":   "10.0.0.200",
	}, "")
	require.Equal(t, http.StatusOK, netResp.Code)
	var net napi.Network
	require.NoError(t, json.Unmarshal(netResp.Body.Bytes(), &net))

	provision := doJSON(t, router, http.MethodPost, "/networks/"+net.UUID+"/nics", map[string]any{
		"owner_uuid":      "11111111-1111-1111-1111-111111111111",
		"belongs_to_type": "server",
		"belongs_to_uuid": "22222222-2222-2222-2222-222222222222",
	}, "")
	require.Equal(t, http.StatusOK, provision.Code)

	var provisioned nicWire
	require.NoError(t, json.Unmarshal(provision.Body.Bytes(), &provisioned))
	assert.NotEmpty(t, provisioned.Mac)
	assert.Equal(t, net.UUID, provisioned.NetworkUUID)
	assert.NotEmpty(t, provisioned.IP)

	get := doJSON(t, router, http.MethodGet, "/nics/"+provisioned.Mac, nil, "")
	require.Equal(t, http.StatusOK, get.Code)
	var fetched nicWire
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &fetched))
	assert.Equal(t, provisioned.Mac, fetched.Mac)
}

func TestNICCreateDuplicateMACConflict(t *testing.T) {
	router, _ := testRouter(t)

	body := map[string]any{
		"mac":             "90:b8:d0:00:00:01",
		"owner_uuid":      "11111111-1111-1111-1111-111111111111",
		"belongs_to_type": "server",
		"belongs_to_uuid": "22222222-2222-2222-2222-222222222222",
	}
	first := doJSON(t, router, http.MethodPost, "/nics", body, "")
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, router, http.MethodPost, "/nics", body, "")
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	var apiErr apiError
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &apiErr))
	assert.Equal(t, "DuplicateParameter", apiErr.Code)
}

func TestNicTagCRUDThroughGenericHandlers(t *testing.T) {
	router, _ := testRouter(t)

	create := doJSON(t, router, http.MethodPost, "/nic_tags", map[string]any{
		"name": "external",
		"mtu":  1500,
	}, "")
	require.Equal(t, http.StatusOK, create.Code)
	var tag napi.NicTag
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &tag))
	require.NotEmpty(t, tag.UUID)

	list := doJSON(t, router, http.MethodGet, "/nic_tags", nil, "")
	require.Equal(t, http.StatusOK, list.Code)
	var tags []napi.NicTag
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &tags))
	assert.Len(t, tags, 1)
	assert.Equal(t, tag.UUID, tags[0].UUID)
}

// alwaysConflictStore wraps a real store but reports every Batch as a
// conflict in a fixed bucket, letting the MAC-retry-exhaustion path be
// exercised end to end without depending on an actual MAC collision.
type alwaysConflictStore struct {
	store.Store
	bucket string
}

func (s *alwaysConflictStore) Batch(ctx context.Context, ops []store.Op) error {
	return &store.ConflictError{Bucket: s.bucket, Key: ops[0].Key}
}

func TestNICCreateMACRetriesExhaustedIsInternalError(t *testing.T) {
	// spec.md §4.4/§8: exhausting MAC_RETRIES must surface as
	// InternalError, not SubnetFull (that code is IP-space-only).
	s := &alwaysConflictStore{Store: store.NewMemory(), bucket: nic.NICBucket}
	d := &Deps{
		Store:    s,
		NICs:     nic.NewEngine(s, 0x90b8d0, 10, 4096, 2, log.NewNopLogger()),
		Networks: resource.New[napi.Network](s, "networks"),
		NicTags:  resource.New[napi.NicTag](s, "nic_tags"),
		Pools:    resource.New[napi.NetworkPool](s, "network_pools"),
		Aggs:     resource.New[napi.Aggregation](s, "aggregations"),
		VLANs:    resource.New[napi.VLAN](s, "vlans"),
		VPCs:     resource.New[napi.VPC](s, "vpc"),
		Logger:   log.NewNopLogger(),
	}
	router := NewRouter(d)

	resp := doJSON(t, router, http.MethodPost, "/nics", map[string]any{
		"owner_uuid":      "11111111-1111-1111-1111-111111111111",
		"belongs_to_type": "server",
		"belongs_to_uuid": "22222222-2222-2222-2222-222222222222",
	}, "")
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	var apiErr apiError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &apiErr))
	assert.Equal(t, "InternalError", apiErr.Code)
}

func TestPingReportsStoreHealthy(t *testing.T) {
	router, _ := testRouter(t)

	resp := doJSON(t, router, http.MethodGet, "/ping", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, true, body["healthy"])
}
