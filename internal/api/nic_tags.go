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

	"napi.io/internal/napi"
	"napi.io/internal/store"
)

// handleNicTagDelete is bespoke, not genericDelete, because a NicTag
// delete has a referential-integrity check genericDelete doesn't know
// about: a tag still named by a Network's nic_tag field blocks the
// delete (spec.md §7 "Deletions report the blocking dependents by
// listing them in errors[].usedBy").
func (d *Deps) handleNicTagDelete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	tag, err := d.NicTags.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	name := tag.Value.(napi.NicTag).Name

	referencing, err := d.Networks.List(r.Context(), func(rec *store.Record) bool {
		n, ok := rec.Value.(napi.Network)
		return ok && n.NICTag == name
	}, store.FindOptions{})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(referencing) > 0 {
		usedBy := make([]string, 0, len(referencing))
		for _, rec := range referencing {
			usedBy = append(usedBy, rec.Value.(napi.Network).UUID)
		}
		writeInUse(w, "nic_tag: cannot delete, still referenced by networks", usedBy)
		return
	}

	if err := d.NicTags.Delete(r.Context(), key, ifMatch(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
