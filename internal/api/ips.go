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

	"github.com/gorilla/mux"

	"napi.io/internal/ipalloc"
	"napi.io/internal/napi"
	"napi.io/internal/store"
	"napi.io/internal/validate"
)

func (d *Deps) handleIPList(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	opts, err := pageOpts(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	recs, err := d.Store.Find(r.Context(), ipalloc.BucketName(uuid), nil, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]napi.IPRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Value.(napi.IPRecord))
	}
	writeJSON(w, http.StatusOK, out)
}

func (d *Deps) handleIPGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rec, err := d.Store.Get(r.Context(), ipalloc.BucketName(vars["uuid"]), vars["addr"])
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, rec.ETag)
	writeJSON(w, http.StatusOK, rec.Value)
}

func (d *Deps) handleIPUpdate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bucket := ipalloc.BucketName(vars["uuid"])

	rec, err := d.Store.Get(r.Context(), bucket, vars["addr"])
	if err != nil {
		writeError(w, err)
		return
	}
	ip := rec.Value.(napi.IPRecord)

	patch, err := decodeParams(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	if errs := validate.Run(validate.IPUpdate, patch); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}
	if v, ok := patch["reserved"].(bool); ok {
		ip.Reserved = v
	}
	if v, ok := patch["belongs_to_type"].(string); ok {
		ip.BelongsToType = v
	}
	if v, ok := patch["belongs_to_uuid"].(string); ok {
		ip.BelongsToUUID = v
	}
	if v, ok := patch["owner_uuid"].(string); ok {
		ip.OwnerUUID = v
	}

	pre := store.Any()
	if etag := ifMatch(r); etag != "" {
		pre = store.Match(etag)
	}
	updated, err := d.Store.Put(r.Context(), bucket, vars["addr"], ip, pre)
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, updated.ETag)
	writeJSON(w, http.StatusOK, updated.Value)
}

func (d *Deps) handleSearchIPs(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("ip")
	if errs := validate.Run(validate.SearchIPs, validate.Params{"ip": addr}); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	netRecs, err := d.Networks.List(r.Context(), nil, store.FindOptions{})
	if err != nil {
		writeError(w, err)
		return
	}

	var found []napi.IPRecord
	for _, netRec := range netRecs {
		net := netRec.Value.(napi.Network)
		rec, err := d.Store.Get(r.Context(), ipalloc.BucketName(net.UUID), addr)
		if err != nil {
			continue
		}
		found = append(found, rec.Value.(napi.IPRecord))
	}
	writeJSON(w, http.StatusOK, found)
}
