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

package main

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"napi.io/internal/api"
	"napi.io/internal/config"
	"napi.io/internal/ipalloc"
	"napi.io/internal/logging"
	"napi.io/internal/napi"
	"napi.io/internal/nic"
	"napi.io/internal/resource"
	"napi.io/internal/store"
)

func main() {
	logger := logging.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Log("op", "startup", "error", err, "msg", "failed to load configuration")
		os.Exit(1)
	}

	// internal/store.Memory is the service's only persistence backend
	// (spec.md §4.2); NAPI_STORE_ENDPOINT is carried through configuration
	// for a future networked adapter but isn't dialed here.
	s := store.NewMemory()

	engine := nic.NewEngine(s, cfg.OUI, cfg.IPProvisionRetry, ipalloc.DefaultMaxGap, cfg.MACRetries, logger)

	deps := &api.Deps{
		Store:     s,
		NICs:      engine,
		Networks:  resource.New[napi.Network](s, "networks"),
		NicTags:   resource.New[napi.NicTag](s, "nic_tags"),
		Pools:     resource.New[napi.NetworkPool](s, "network_pools"),
		Aggs:      resource.New[napi.Aggregation](s, "aggregations"),
		VLANs:     resource.New[napi.VLAN](s, "vlans"),
		VPCs:      resource.New[napi.VPC](s, "vpc"),
		AdminUUID: cfg.AdminUUID,
		Config:    cfg,
		Logger:    logger,
	}

	router := api.NewRouter(deps)

	go func() {
		logger.Log("op", "startup", "addr", cfg.MetricsAddress, "msg", "serving metrics")
		if err := http.ListenAndServe(cfg.MetricsAddress, promhttp.Handler()); err != nil {
			logger.Log("op", "metrics", "error", err, "msg", "metrics server exited")
		}
	}()

	logger.Log("op", "startup", "addr", cfg.ListenAddress, "msg", "serving napi")
	if err := http.ListenAndServe(cfg.ListenAddress, router); err != nil {
		logger.Log("op", "startup", "error", err, "msg", "server exited")
		os.Exit(1)
	}
}
