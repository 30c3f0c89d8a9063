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

// Package api is the thin HTTP/JSON request façade over the engine
// packages (spec.md §4.9/§6, component C9). A handler dispatches to the
// one engine that owns the operation and maps the result or error onto
// the status codes and ETag/If-Match conventions spec.md §6 names. The
// network create, IP update, NIC create/update and IP search handlers
// validate their raw parameters (C8) first; the other handlers (among
// them the generic CRUD, VLAN/aggregation create, network update and NIC
// provision handlers) do not run C8. No allocation or invariant logic lives in this package.
package api

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/gorilla/mux"

	"napi.io/internal/config"
	"napi.io/internal/napi"
	"napi.io/internal/nic"
	"napi.io/internal/resource"
	"napi.io/internal/store"
)

// Deps is everything the router's handlers need, all constructed and configured by
// cmd/napid before the router is built (spec.md §9 Design Note: no
// package-level globals, everything injected).
type Deps struct {
	Store       store.Store
	NICs        *nic.Engine
	Networks    *resource.Manager[napi.Network]
	NicTags     *resource.Manager[napi.NicTag]
	Pools       *resource.Manager[napi.NetworkPool]
	Aggs        *resource.Manager[napi.Aggregation]
	VLANs       *resource.Manager[napi.VLAN]
	VPCs        *resource.Manager[napi.VPC]
	AdminUUID   string
	Config      config.Config
	Logger      log.Logger
}

// NewRouter builds the complete route table of spec.md §6.
func NewRouter(d *Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(d.Logger))

	r.HandleFunc("/ping", d.handlePing).Methods(http.MethodGet)

	r.HandleFunc("/networks", d.handleNetworkList).Methods(http.MethodGet)
	r.HandleFunc("/networks", d.handleNetworkCreate).Methods(http.MethodPost)
	r.HandleFunc("/networks/{uuid}", d.handleNetworkGet).Methods(http.MethodGet)
	r.HandleFunc("/networks/{uuid}", d.handleNetworkUpdate).Methods(http.MethodPut)
	r.HandleFunc("/networks/{uuid}", d.handleNetworkDelete).Methods(http.MethodDelete)

	r.HandleFunc("/networks/{uuid}/ips", d.handleIPList).Methods(http.MethodGet)
	r.HandleFunc("/networks/{uuid}/ips/{addr}", d.handleIPGet).Methods(http.MethodGet)
	r.HandleFunc("/networks/{uuid}/ips/{addr}", d.handleIPUpdate).Methods(http.MethodPut)

	r.HandleFunc("/networks/{uuid}/nics", d.handleNICProvision).Methods(http.MethodPost)

	r.HandleFunc("/nics", d.handleNICList).Methods(http.MethodGet)
	r.HandleFunc("/nics", d.handleNICCreate).Methods(http.MethodPost)
	r.HandleFunc("/nics/{mac}", d.handleNICGet).Methods(http.MethodGet)
	r.HandleFunc("/nics/{mac}", d.handleNICUpdate).Methods(http.MethodPut)
	r.HandleFunc("/nics/{mac}", d.handleNICDelete).Methods(http.MethodDelete)

	r.HandleFunc("/nic_tags", genericList(d.NicTags, napi.NicTag{})).Methods(http.MethodGet)
	r.HandleFunc("/nic_tags", genericCreate(d.NicTags, func() napi.NicTag { return napi.NicTag{} },
		func(v *napi.NicTag, key string) { v.UUID = key })).Methods(http.MethodPost)
	r.HandleFunc("/nic_tags/{key}", genericGet(d.NicTags)).Methods(http.MethodGet)
	r.HandleFunc("/nic_tags/{key}", genericUpdate(d.NicTags, func() napi.NicTag { return napi.NicTag{} })).Methods(http.MethodPut)
	r.HandleFunc("/nic_tags/{key}", d.handleNicTagDelete).Methods(http.MethodDelete)

	r.HandleFunc("/network_pools", genericList(d.Pools, napi.NetworkPool{})).Methods(http.MethodGet)
	r.HandleFunc("/network_pools", genericCreate(d.Pools, func() napi.NetworkPool { return napi.NetworkPool{} },
		func(v *napi.NetworkPool, key string) { v.UUID = key })).Methods(http.MethodPost)
	r.HandleFunc("/network_pools/{key}", genericGet(d.Pools)).Methods(http.MethodGet)
	r.HandleFunc("/network_pools/{key}", genericUpdate(d.Pools, func() napi.NetworkPool { return napi.NetworkPool{} })).Methods(http.MethodPut)
	r.HandleFunc("/network_pools/{key}", genericDelete(d.Pools)).Methods(http.MethodDelete)

	r.HandleFunc("/aggregations", genericList(d.Aggs, napi.Aggregation{})).Methods(http.MethodGet)
	r.HandleFunc("/aggregations", d.handleAggregationCreate).Methods(http.MethodPost)
	r.HandleFunc("/aggregations/{key}", genericGet(d.Aggs)).Methods(http.MethodGet)
	r.HandleFunc("/aggregations/{key}", genericUpdate(d.Aggs, func() napi.Aggregation { return napi.Aggregation{} })).Methods(http.MethodPut)
	r.HandleFunc("/aggregations/{key}", genericDelete(d.Aggs)).Methods(http.MethodDelete)

	r.HandleFunc("/fabrics/{owner}/vlans", genericList(d.VLANs, napi.VLAN{})).Methods(http.MethodGet)
	r.HandleFunc("/fabrics/{owner}/vlans", d.handleVLANCreate).Methods(http.MethodPost)
	r.HandleFunc("/fabrics/{owner}/vlans/{key}", genericGet(d.VLANs)).Methods(http.MethodGet)
	r.HandleFunc("/fabrics/{owner}/vlans/{key}", genericUpdate(d.VLANs, func() napi.VLAN { return napi.VLAN{} })).Methods(http.MethodPut)
	r.HandleFunc("/fabrics/{owner}/vlans/{key}", genericDelete(d.VLANs)).Methods(http.MethodDelete)

	r.HandleFunc("/fabrics/{owner}/vlans/{vid}/networks", d.handleNetworkList).Methods(http.MethodGet)
	r.HandleFunc("/fabrics/{owner}/vlans/{vid}/networks/{uuid}", d.handleNetworkGet).Methods(http.MethodGet)

	r.HandleFunc("/vpc", genericList(d.VPCs, napi.VPC{})).Methods(http.MethodGet)
	r.HandleFunc("/vpc", genericCreate(d.VPCs, func() napi.VPC { return napi.VPC{} },
		func(v *napi.VPC, key string) { v.VPCUUID = key })).Methods(http.MethodPost)
	r.HandleFunc("/vpc/{key}", genericGet(d.VPCs)).Methods(http.MethodGet)
	r.HandleFunc("/vpc/{key}", genericUpdate(d.VPCs, func() napi.VPC { return napi.VPC{} })).Methods(http.MethodPut)
	r.HandleFunc("/vpc/{key}", genericDelete(d.VPCs)).Methods(http.MethodDelete)
	r.HandleFunc("/vpc/{key}/networks", d.handleNetworkList).Methods(http.MethodGet)
	r.HandleFunc("/vpc/{key}/networks/{uuid}", d.handleNetworkGet).Methods(http.MethodGet)

	r.HandleFunc("/search/ips", d.handleSearchIPs).Methods(http.MethodGet)

	return r
}

func loggingMiddleware(logger log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Log("method", r.Method, "path", r.URL.Path, "msg", "request")
			next.ServeHTTP(w, r)
		})
	}
}

func (d *Deps) handlePing(w http.ResponseWriter, r *http.Request) {
	healthy := true
	status := "online"
	if err := r.Context().Err(); err != nil {
		healthy = false
		status = "offline"
	}
	if _, err := d.Store.Find(r.Context(), "ping", nil, store.FindOptions{Limit: 1}); err != nil {
		healthy = false
		status = "offline"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"healthy": healthy,
		"services": map[string]string{
			"store": status,
		},
		"config": d.Config,
	})
}
