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
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"napi.io/internal/resource"
	"napi.io/internal/store"
)

// genericList, genericCreate, genericGet, genericUpdate and
// genericDelete back the plain record resources that carry no
// allocation logic of their own - NicTag, NetworkPool, Aggregation,
// VLAN, VPC (spec.md §6). Network and NIC get their own handlers because
// their create/update paths call into the engine packages instead of
// writing straight through to the store.

func genericList[T any](mgr *resource.Manager[T], _ T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := pageOpts(r)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
			return
		}
		recs, err := mgr.List(r.Context(), nil, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]T, 0, len(recs))
		for _, rec := range recs {
			out = append(out, rec.Value.(T))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// genericCreate generates the resource's key up front and calls setKey so
// the stored value carries its own key field, the same way
// handleNetworkCreate does for napi.Network's UUID - a client that GETs
// the resource back afterward needs the key present on the body, not
// just recoverable from the URL it happened to fetch.
func genericCreate[T any](mgr *resource.Manager[T], zero func() T, setKey func(*T, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := zero()
		if err := decodeBody(r, &v); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
			return
		}
		key := uuid.New().String()
		setKey(&v, key)
		_, rec, err := mgr.Create(r.Context(), key, v)
		if err != nil {
			writeError(w, err)
			return
		}
		setETag(w, rec.ETag)
		writeJSON(w, http.StatusOK, rec.Value)
	}
}

func genericGet[T any](mgr *resource.Manager[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		rec, err := mgr.Get(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		setETag(w, rec.ETag)
		writeJSON(w, http.StatusOK, rec.Value)
	}
}

func genericUpdate[T any](mgr *resource.Manager[T], zero func() T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		v := zero()
		if err := decodeBody(r, &v); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
			return
		}
		rec, err := mgr.Update(r.Context(), key, v, ifMatch(r))
		if err != nil {
			writeError(w, err)
			return
		}
		setETag(w, rec.ETag)
		writeJSON(w, http.StatusOK, rec.Value)
	}
}

func genericDelete[T any](mgr *resource.Manager[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		if err := mgr.Delete(r.Context(), key, ifMatch(r)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func pageOpts(r *http.Request) (store.FindOptions, error) {
	q := r.URL.Query()
	opts := store.FindOptions{}
	if v := q.Get("limit"); v != "" {
		n, err := atoiStrict(v)
		if err != nil {
			return opts, err
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := atoiStrict(v)
		if err != nil {
			return opts, err
		}
		opts.Offset = n
	}
	return opts, nil
}

func atoiStrict(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("api: %q is not an integer", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
