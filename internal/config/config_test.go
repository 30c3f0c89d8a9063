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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresStoreEndpoint(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv(envStoreEndpoint, "http://store.internal:2379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":80", cfg.ListenAddress)
	assert.Equal(t, ":9090", cfg.MetricsAddress)
	assert.Equal(t, 10, cfg.IPProvisionRetry)
	assert.Equal(t, 10, cfg.MACRetries)
	assert.Equal(t, uint64(0x90b8d0), cfg.OUI)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv(envStoreEndpoint, "http://store.internal:2379")
	t.Setenv(envListenAddress, ":8080")
	t.Setenv(envIPProvisionRetry, "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddress)
	assert.Equal(t, 5, cfg.IPProvisionRetry)
}

func TestLoadRejectsOUIOutOfRange(t *testing.T) {
	t.Setenv(envStoreEndpoint, "http://store.internal:2379")
	t.Setenv(envOUI, "4294967296") // > 24 bits

	_, err := Load()
	require.Error(t, err)
}
