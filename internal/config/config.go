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

// Package config loads the service's runtime configuration from the
// environment. Every value Load returns is injected explicitly into the
// engine constructors that need it (internal/nic, internal/ipalloc,
// internal/macalloc, cmd/napid) rather than read from a package-level
// global at call time (spec.md §9 Design Note "Global mutable admin
// UUID" -> configuration value injected into every engine call).
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	envListenAddress    = "NAPI_LISTEN_ADDRESS"
	envStoreEndpoint    = "NAPI_STORE_ENDPOINT"
	envOUI              = "NAPI_MAC_OUI"
	envIPProvisionRetry = "NAPI_IP_PROVISION_RETRIES"
	envMACRetries       = "NAPI_MAC_RETRIES"
	envAdminUUID        = "NAPI_ADMIN_UUID"
	envMetricsAddress   = "NAPI_METRICS_ADDRESS"
)

// Config is every runtime-tunable value the service needs, loaded once
// at startup and passed down explicitly from there.
type Config struct {
	ListenAddress    string
	MetricsAddress   string
	StoreEndpoint    string
	OUI              uint64
	IPProvisionRetry int
	MACRetries       int
	AdminUUID        string
}

// Load reads configuration from the environment, applying the defaults
// below to anything unset.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault(envListenAddress, ":80")
	v.SetDefault(envMetricsAddress, ":9090")
	v.SetDefault(envStoreEndpoint, "")
	v.SetDefault(envOUI, uint64(0x90b8d0))
	v.SetDefault(envIPProvisionRetry, 10)
	v.SetDefault(envMACRetries, 10)
	v.SetDefault(envAdminUUID, "")
	v.AutomaticEnv()

	cfg := Config{
		ListenAddress:    v.GetString(envListenAddress),
		MetricsAddress:   v.GetString(envMetricsAddress),
		StoreEndpoint:    v.GetString(envStoreEndpoint),
		OUI:              v.GetUint64(envOUI),
		IPProvisionRetry: v.GetInt(envIPProvisionRetry),
		MACRetries:       v.GetInt(envMACRetries),
		AdminUUID:        v.GetString(envAdminUUID),
	}

	if cfg.StoreEndpoint == "" {
		return Config{}, fmt.Errorf("config: %s is required", envStoreEndpoint)
	}
	if cfg.OUI == 0 || cfg.OUI > 0xffffff {
		return Config{}, fmt.Errorf("config: %s must be a 24-bit OUI", envOUI)
	}
	return cfg, nil
}
