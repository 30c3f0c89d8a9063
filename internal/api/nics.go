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

	"napi.io/internal/address"
	"napi.io/internal/napi"
	"napi.io/internal/nic"
	"napi.io/internal/validate"
)

// nicWire is the wire shape of a NIC. napi.NIC stores its MAC as a
// 48-bit integer and deliberately doesn't serialize it (spec.md §4.4:
// "serialization to colon-separated form is done at the API
// boundary"); nicWire's own Mac field shadows the embedded, unexported-
// from-JSON napi.NIC.MAC field so responses carry "mac" in colon form
// and requests accept it the same way.
type nicWire struct {
	napi.NIC
	Mac string `json:"mac,omitempty"`
}

func wireNIC(n napi.NIC) nicWire {
	return nicWire{NIC: n, Mac: address.FormatMAC(n.MAC)}
}

func (d *Deps) handleNICList(w http.ResponseWriter, r *http.Request) {
	opts, err := pageOpts(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	q := r.URL.Query()
	belongsTo := q.Get("belongs_to_uuid")
	owner := q.Get("owner_uuid")
	nics, err := d.NICs.List(r.Context(), func(n napi.NIC) bool {
		if belongsTo != "" && n.BelongsToUUID != belongsTo {
			return false
		}
		if owner != "" && n.OwnerUUID != owner {
			return false
		}
		return true
	}, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]nicWire, 0, len(nics))
	for _, n := range nics {
		out = append(out, wireNIC(n))
	}
	writeJSON(w, http.StatusOK, out)
}

func (d *Deps) handleNICCreate(w http.ResponseWriter, r *http.Request) {
	params, err := decodeParams(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	if errs := validate.Run(validate.NICCreate, params); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	in, err := createInputFromParams(params)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}

	n, _, err := d.NICs.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, n.ETag)
	writeJSON(w, http.StatusOK, wireNIC(*n))
}

func (d *Deps) handleNICProvision(w http.ResponseWriter, r *http.Request) {
	networkUUID := mux.Vars(r)["uuid"]

	var body struct {
		OwnerUUID     string             `json:"owner_uuid"`
		BelongsToType napi.BelongsToType `json:"belongs_to_type"`
		BelongsToUUID string             `json:"belongs_to_uuid"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	if body.OwnerUUID == "" || body.BelongsToUUID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: "owner_uuid and belongs_to_uuid are required"})
		return
	}

	n, _, err := d.NICs.Provision(r.Context(), networkUUID, body.OwnerUUID, body.BelongsToType, body.BelongsToUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, n.ETag)
	writeJSON(w, http.StatusOK, wireNIC(*n))
}

func (d *Deps) handleNICGet(w http.ResponseWriter, r *http.Request) {
	mac, err := address.ParseMAC(mux.Vars(r)["mac"])
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	n, _, err := d.NICs.Get(r.Context(), mac)
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, n.ETag)
	writeJSON(w, http.StatusOK, wireNIC(*n))
}

func (d *Deps) handleNICUpdate(w http.ResponseWriter, r *http.Request) {
	mac, err := address.ParseMAC(mux.Vars(r)["mac"])
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	params, err := decodeParams(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	if errs := validate.Run(validate.NICUpdate, params); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	in := updateInputFromParams(params)
	n, _, err := d.NICs.Update(r.Context(), mac, in)
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, n.ETag)
	writeJSON(w, http.StatusOK, wireNIC(*n))
}

func (d *Deps) handleNICDelete(w http.ResponseWriter, r *http.Request) {
	mac, err := address.ParseMAC(mux.Vars(r)["mac"])
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()})
		return
	}
	mode := nic.Unassign
	if r.URL.Query().Get("mode") == "tombstone" {
		mode = nic.Tombstone
	}
	if err := d.NICs.Delete(r.Context(), mac, mode); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func createInputFromParams(p validate.Params) (nic.CreateInput, error) {
	in := nic.CreateInput{
		OwnerUUID:       strVal(p, "owner_uuid"),
		BelongsToType:   napi.BelongsToType(strVal(p, "belongs_to_type")),
		BelongsToUUID:   strVal(p, "belongs_to_uuid"),
		CNUUID:          strVal(p, "cn_uuid"),
		NetworkUUID:     strVal(p, "network_uuid"),
		NICTag:          strVal(p, "nic_tag"),
		Primary:         boolVal(p, "primary"),
		State:           napi.NICState(strVal(p, "state")),
		NICTagsProvided: strSliceVal(p, "nic_tags_provided"),

		AllowDHCPSpoofing:      boolVal(p, "allow_dhcp_spoofing"),
		AllowIPSpoofing:        boolVal(p, "allow_ip_spoofing"),
		AllowMACSpoofing:       boolVal(p, "allow_mac_spoofing"),
		AllowRestrictedTraffic: boolVal(p, "allow_restricted_traffic"),
		AllowUnfilteredPromisc: boolVal(p, "allow_unfiltered_promisc"),
		Underlay:               boolVal(p, "underlay"),
		Model:                  strVal(p, "model"),
	}
	if in.State == "" {
		in.State = napi.NICProvisioning
	}

	if s, ok := p["mac"].(string); ok && s != "" {
		mac, err := address.ParseMAC(s)
		if err != nil {
			return in, err
		}
		in.MAC = &mac
	}
	if s, ok := p["ip"].(string); ok && s != "" {
		in.IP = &s
	}
	if v, ok := p["vlan_id"].(float64); ok {
		id := int(v)
		in.VLANID = &id
	}
	return in, nil
}

func updateInputFromParams(p validate.Params) nic.UpdateInput {
	var in nic.UpdateInput
	if s, ok := p["belongs_to_type"].(string); ok {
		t := napi.BelongsToType(s)
		in.BelongsToType = &t
	}
	if s, ok := p["belongs_to_uuid"].(string); ok {
		in.BelongsToUUID = &s
	}
	if s, ok := p["cn_uuid"].(string); ok {
		in.CNUUID = &s
	}
	if b, ok := p["primary"].(bool); ok {
		in.Primary = &b
	}
	if s, ok := p["state"].(string); ok {
		st := napi.NICState(s)
		in.State = &st
	}
	if s, ok := p["nic_tag"].(string); ok {
		in.NICTag = &s
	}
	if v := strSliceVal(p, "nic_tags_provided"); v != nil {
		in.NICTagsProvided = &v
	}
	if s, ok := p["network_uuid"].(string); ok {
		in.NetworkUUID = &s
	}
	if s, ok := p["ip"].(string); ok {
		in.IP = &s
	}
	if b, ok := p["allow_dhcp_spoofing"].(bool); ok {
		in.AllowDHCPSpoofing = &b
	}
	if b, ok := p["allow_ip_spoofing"].(bool); ok {
		in.AllowIPSpoofing = &b
	}
	if b, ok := p["allow_mac_spoofing"].(bool); ok {
		in.AllowMACSpoofing = &b
	}
	if b, ok := p["allow_restricted_traffic"].(bool); ok {
		in.AllowRestrictedTraffic = &b
	}
	if b, ok := p["allow_unfiltered_promisc"].(bool); ok {
		in.AllowUnfilteredPromisc = &b
	}
	if b, ok := p["underlay"].(bool); ok {
		in.Underlay = &b
	}
	if s, ok := p["model"].(string); ok {
		in.Model = &s
	}
	return in
}

func strSliceVal(p validate.Params, key string) []string {
	v, ok := p[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, e := range v {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
