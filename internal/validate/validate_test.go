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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "k8s.io/apimachinery/pkg/util/validation/field"
)

func TestNetworkCreateValid(t *testing.T) {
	errs := Run(NetworkCreate, Params{
		"name":            "prod-1",
		"nic_tag":         "external",
		"vlan_id":         0,
		"subnet":          "10.0.0.0/24",
		"provision_start": "10.0.0.5",
		"provision_end":   "10.0.0.250",
	})
	assert.Empty(t, errs)
}

func TestNetworkCreateMissingRequired(t *testing.T) {
	errs := Run(NetworkCreate, Params{"name": "prod-1"})
	require.NotEmpty(t, errs)
	var fields []string
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "nic_tag")
	assert.Contains(t, fields, "subnet")
	// results are sorted by field name
	for i := 1; i < len(errs); i++ {
		assert.LessOrEqual(t, errs[i-1].Field, errs[i].Field)
	}
}

func TestNetworkCreateStrictRejectsUnknownParam(t *testing.T) {
	errs := Run(NetworkCreate, Params{
		"name":            "prod-1",
		"nic_tag":         "external",
		"vlan_id":         0,
		"subnet":          "10.0.0.0/24",
		"provision_start": "10.0.0.5",
		"provision_end":   "10.0.0.250",
		"bogus_param":     "x",
	})
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e.Field == "bogus_param" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNetworkCreateProvisionRangeOutsideSubnet(t *testing.T) {
	errs := Run(NetworkCreate, Params{
		"name":            "prod-1",
		"nic_tag":         "external",
		"vlan_id":         0,
		"subnet":          "10.0.0.0/24",
		"provision_start": "192.168.0.5",
		"provision_end":   "10.0.0.250",
	})
	require.NotEmpty(t, errs)
	assert.Equal(t, "provision_start", errs[0].Field)
}

func TestVLANIDRejectsOne(t *testing.T) {
	errs := Run(NetworkCreate, Params{
		"name":            "x",
		"nic_tag":         "external",
		"vlan_id":         1,
		"subnet":          "10.0.0.0/24",
		"provision_start": "10.0.0.5",
		"provision_end":   "10.0.0.250",
	})
	require.NotEmpty(t, errs)
	assert.Equal(t, "vlan_id", errs[0].Field)
}

func TestNICCreateIPWithoutNetworkFails(t *testing.T) {
	errs := Run(NICCreate, Params{
		"owner_uuid":      "550e8400-e29b-41d4-a716-446655440000",
		"belongs_to_type": "server",
		"belongs_to_uuid": "550e8400-e29b-41d4-a716-446655440001",
		"ip":              "10.0.0.5",
	})
	require.NotEmpty(t, errs)
	assert.Equal(t, "network_uuid", errs[0].Field)
}

func TestNICCreateValidWithExplicitMAC(t *testing.T) {
	errs := Run(NICCreate, Params{
		"mac":             "90:b8:d0:17:37:17",
		"owner_uuid":      "550e8400-e29b-41d4-a716-446655440000",
		"belongs_to_type": "server",
		"belongs_to_uuid": "550e8400-e29b-41d4-a716-446655440001",
	})
	assert.Empty(t, errs)
}

func TestEnumRejectsUnknownValue(t *testing.T) {
	errs := Run(NICCreate, Params{
		"owner_uuid":      "550e8400-e29b-41d4-a716-446655440000",
		"belongs_to_type": "vm",
		"belongs_to_uuid": "550e8400-e29b-41d4-a716-446655440001",
	})
	require.NotEmpty(t, errs)
	assert.Equal(t, "belongs_to_type", errs[0].Field)
}

func TestUUIDRule(t *testing.T) {
	path := apierrors.NewPath("uuid")
	assert.Nil(t, UUID(path, "550e8400-e29b-41d4-a716-446655440000"))
	assert.NotNil(t, UUID(path, "not-a-uuid"))
}

func TestListPagePaging(t *testing.T) {
	assert.Empty(t, Run(ListPage, Params{"offset": 0, "limit": 1000}))
	assert.NotEmpty(t, Run(ListPage, Params{"limit": 1001}))
	assert.NotEmpty(t, Run(ListPage, Params{"offset": -1}))
}
