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

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"napi.io/internal/ipalloc"
	"napi.io/internal/napi"
	"napi.io/internal/store"
	"napi.io/internal/validate"
)

func (d *Deps) handleNetworkList(w http.ResponseWriter, r *http.Request) {
	opts, err := pageOpts(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	recs, err := d.Networks.List(r.Context(), nil, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]napi.Network, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Value.(napi.Network))
	}
	writeJSON(w, http.StatusOK, out)
}

func (d *Deps) handleNetworkCreate(w http.ResponseWriter, r *http.Request) {
	params, err := decodeParams(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	if errs := validate.Run(validate.NetworkCreate, params); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	net := networkFromParams(params)
	net.UUID = uuid.New().String()
	_, rec, err := d.Networks.Create(r.Context(), net.UUID, net)
	if err != nil {
		writeError(w, err)
		return
	}
	net = rec.Value.(napi.Network)

	if err := ipalloc.Seed(r.Context(), d.Store, net); err != nil {
		writeError(w, err)
		return
	}

	setETag(w, rec.ETag)
	writeJSON(w, http.StatusOK, net)
}

func (d *Deps) handleNetworkGet(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	rec, err := d.Networks.Get(r.Context(), uuid)
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, rec.ETag)
	writeJSON(w, http.StatusOK, rec.Value)
}

func (d *Deps) handleNetworkUpdate(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	existing, err := d.Networks.Get(r.Context(), uuid)
	if err != nil {
		writeError(w, err)
		return
	}
	net := existing.Value.(napi.Network)

	var patch map[string]any
	if err := decodeBody(r, &patch); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	applyNetworkPatch(&net, patch)

	rec, err := d.Networks.Update(r.Context(), uuid, net, ifMatch(r))
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, rec.ETag)
	writeJSON(w, http.StatusOK, rec.Value)
}

func (d *Deps) handleNetworkDelete(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]

	owned, err := d.Store.Find(r.Context(), ipalloc.BucketName(uuid), func(rec *store.Record) bool {
		ip, ok := rec.Value.(napi.IPRecord)
		return ok && ip.BelongsToUUID != ""
	}, store.FindOptions{})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(owned) > 0 {
		usedBy := make([]string, 0, len(owned))
		for _, rec := range owned {
			usedBy = append(usedBy, rec.Value.(napi.IPRecord).Address)
		}
		writeInUse(w, "network: cannot delete, addresses are still in use", usedBy)
		return
	}

	if err := d.Networks.Delete(r.Context(), uuid, ifMatch(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func networkFromParams(p validate.Params) napi.Network {
	n := napi.Network{
		Name:           strVal(p, "name"),
		NICTag:         strVal(p, "nic_tag"),
		VLANID:         intVal(p, "vlan_id"),
		Subnet:         strVal(p, "subnet"),
		ProvisionStart: strVal(p, "provision_start"),
		ProvisionEnd:   strVal(p, "provision_end"),
		Gateway:        strVal(p, "gateway"),
		MTU:            intVal(p, "mtu"),
		Fabric:         boolVal(p, "fabric"),
		VPCUUID:        strVal(p, "vpc_uuid"),
		Family:         napi.IPv4,
	}
	if n.MTU == 0 {
		n.MTU = 1500
	}
	return n
}

func applyNetworkPatch(n *napi.Network, p map[string]any) {
	if v, ok := p["name"].(string); ok {
		n.Name = v
	}
	if v, ok := p["gateway"].(string); ok {
		n.Gateway = v
	}
	if v, ok := p["mtu"].(float64); ok {
		n.MTU = int(v)
	}
	if v, ok := p["owner_uuids"].([]any); ok {
		owners := make([]string, 0, len(v))
		for _, o := range v {
			if s, ok := o.(string); ok {
				owners = append(owners, s)
			}
		}
		n.OwnerUUIDs = owners
	}
}

func strVal(p validate.Params, key string) string {
	s, _ := p[key].(string)
	return s
}

func intVal(p validate.Params, key string) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func boolVal(p validate.Params, key string) bool {
	b, _ := p[key].(bool)
	return b
}
