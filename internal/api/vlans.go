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
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"napi.io/internal/napi"
)

// handleVLANCreate and handleAggregationCreate are bespoke because
// neither resource's key is a generated UUID: a VLAN's key is its
// owner-scoped vlan_id, and an Aggregation's key is "<cn_uuid>-<name>"
// (napi.Aggregation's ID field), so genericCreate's generate-a-UUID
// path doesn't apply to either.

func (d *Deps) handleVLANCreate(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	var v napi.VLAN
	if err := decodeBody(r, &v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	v.OwnerUUID = owner

	key := strconv.Itoa(v.VLANID)
	_, rec, err := d.VLANs.Create(r.Context(), key, v)
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, rec.ETag)
	writeJSON(w, http.StatusOK, rec.Value)
}

func (d *Deps) handleAggregationCreate(w http.ResponseWriter, r *http.Request) {
	var v napi.Aggregation
	if err := decodeBody(r, &v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	if v.BelongsToUUID == "" || v.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: "belongs_to_uuid and name are required"})
		return
	}

	key := v.BelongsToUUID + "-" + v.Name
	v.ID = key
	_, rec, err := d.Aggs.Create(r.Context(), key, v)
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, rec.ETag)
	writeJSON(w, http.StatusOK, rec.Value)
}
