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

package validate

import (
	apierrors "k8s.io/apimachinery/pkg/util/validation/field"

	"napi.io/internal/address"
)

// NetworkCreate is the schema for POST /networks (spec.md §6).
var NetworkCreate = Schema{
	Name:   "NetworkCreate",
	Strict: true,
	Fields: []Field{
		{Name: "name", Required: true, Rules: []Rule{Name}},
		{Name: "nic_tag", Required: true, Rules: []Rule{TagName}},
		{Name: "vlan_id", Required: true, Rules: []Rule{VLANID}},
		{Name: "subnet", Required: true, Rules: []Rule{cidrRule}},
		{Name: "provision_start", Required: true, Rules: []Rule{IP}},
		{Name: "provision_end", Required: true, Rules: []Rule{IP}},
		{Name: "gateway", Rules: []Rule{IP}},
		{Name: "mtu", Rules: []Rule{IntRange(1500, 9000)}},
		{Name: "vnet_id", Rules: []Rule{VxLANID}},
		{Name: "fabric", Rules: []Rule{boolRule}},
		{Name: "vpc_uuid", Rules: []Rule{UUID}},
	},
	After: func(p Params) apierrors.ErrorList {
		var errs apierrors.ErrorList
		start, sOK := p["provision_start"].(string)
		end, eOK := p["provision_end"].(string)
		subnet, cOK := p["subnet"].(string)
		if !sOK || !eOK || !cOK {
			return errs
		}
		for _, pair := range []struct {
			name string
			val  string
		}{{"provision_start", start}, {"provision_end", end}} {
			a, err := address.Parse(pair.val)
			if err != nil {
				continue
			}
			ok, err := address.Contains(subnet, a)
			if err != nil || !ok {
				errs = append(errs, apierrors.Invalid(apierrors.NewPath(pair.name), pair.val, "must lie inside subnet"))
			}
		}
		return errs
	},
}

// NICCreate is the schema for POST /nics and POST
// /networks/:uuid/nics (spec.md §6).
var NICCreate = Schema{
	Name:   "NICCreate",
	Strict: true,
	Fields: []Field{
		{Name: "mac", Rules: []Rule{MAC}},
		{Name: "owner_uuid", Required: true, Rules: []Rule{UUID}},
		{Name: "belongs_to_type", Required: true, Rules: []Rule{Enum("server", "zone", "other")}},
		{Name: "belongs_to_uuid", Required: true, Rules: []Rule{UUID}},
		{Name: "cn_uuid", Rules: []Rule{UUID}},
		{Name: "network_uuid", Rules: []Rule{UUID}},
		{Name: "nic_tag", Rules: []Rule{TagName}},
		{Name: "vlan_id", Rules: []Rule{VLANID}},
		{Name: "ip", Rules: []Rule{IP}},
		{Name: "primary", Rules: []Rule{boolRule}},
		{Name: "state", Rules: []Rule{Enum("provisioning", "running", "stopped")}},
		{Name: "model", Rules: []Rule{Name}},
		{Name: "nic_tags_provided"},
		{Name: "allow_dhcp_spoofing", Rules: []Rule{boolRule}},
		{Name: "allow_ip_spoofing", Rules: []Rule{boolRule}},
		{Name: "allow_mac_spoofing", Rules: []Rule{boolRule}},
		{Name: "allow_restricted_traffic", Rules: []Rule{boolRule}},
		{Name: "allow_unfiltered_promisc", Rules: []Rule{boolRule}},
		{Name: "underlay", Rules: []Rule{boolRule}},
	},
	After: func(p Params) apierrors.ErrorList {
		var errs apierrors.ErrorList
		if _, hasIP := p["ip"]; !hasIP {
			return errs
		}
		_, hasUUID := p["network_uuid"]
		_, hasTag := p["nic_tag"]
		if !hasUUID && !hasTag {
			errs = append(errs, apierrors.Required(apierrors.NewPath("network_uuid"),
				"ip requires network_uuid or nic_tag+vlan_id to resolve a network"))
		}
		return errs
	},
}

// NICUpdate is the schema for PUT /nics/:mac. mac never appears here: a
// MAC change is a silent no-op by construction (DESIGN.md Open Question
// (b)), not a validated field.
var NICUpdate = Schema{
	Name:   "NICUpdate",
	Strict: true,
	Fields: []Field{
		{Name: "owner_uuid", Rules: []Rule{UUID}},
		{Name: "belongs_to_type", Rules: []Rule{Enum("server", "zone", "other")}},
		{Name: "belongs_to_uuid", Rules: []Rule{UUID}},
		{Name: "network_uuid", Rules: []Rule{UUID}},
		{Name: "ip", Rules: []Rule{IP}},
		{Name: "primary", Rules: []Rule{boolRule}},
		{Name: "state", Rules: []Rule{Enum("provisioning", "running", "stopped")}},
		{Name: "cn_uuid", Rules: []Rule{UUID}},
		{Name: "nic_tag", Rules: []Rule{TagName}},
		{Name: "nic_tags_provided"},
		{Name: "allow_dhcp_spoofing", Rules: []Rule{boolRule}},
		{Name: "allow_ip_spoofing", Rules: []Rule{boolRule}},
		{Name: "allow_mac_spoofing", Rules: []Rule{boolRule}},
		{Name: "allow_restricted_traffic", Rules: []Rule{boolRule}},
		{Name: "allow_unfiltered_promisc", Rules: []Rule{boolRule}},
		{Name: "underlay", Rules: []Rule{boolRule}},
		{Name: "model", Rules: []Rule{Name}},
	},
}

// IPUpdate is the schema for PUT /networks/:uuid/ips/:addr.
var IPUpdate = Schema{
	Name:   "IPUpdate",
	Strict: true,
	Fields: []Field{
		{Name: "reserved", Rules: []Rule{boolRule}},
		{Name: "belongs_to_type", Rules: []Rule{Enum("server", "zone", "other")}},
		{Name: "belongs_to_uuid", Rules: []Rule{UUID}},
		{Name: "owner_uuid", Rules: []Rule{UUID}},
	},
}

// SearchIPs is the schema for GET /search/ips.
var SearchIPs = Schema{
	Name:   "SearchIPs",
	Strict: true,
	Fields: []Field{
		{Name: "ip", Required: true, Rules: []Rule{IP}},
	},
}

// ListPage is the paging schema (spec.md §4.8 "offset >= 0, limit
// 1..1000"). The list handlers in internal/api read offset and limit
// through their own pageOpts helper and do not run this schema.
var ListPage = Schema{
	Name: "ListPage",
	Fields: []Field{
		{Name: "offset", Rules: []Rule{Offset}},
		{Name: "limit", Rules: []Rule{Limit}},
	},
}

func cidrRule(path *apierrors.Path, v any) *apierrors.Error {
	s, err := asString(path, v)
	if err != nil {
		return err
	}
	if _, _, perr := address.Range(s); perr != nil {
		return apierrors.Invalid(path, v, perr.Error())
	}
	return nil
}

func boolRule(path *apierrors.Path, v any) *apierrors.Error {
	if _, ok := v.(bool); !ok {
		return apierrors.Invalid(path, v, "must be a boolean")
	}
	return nil
}
