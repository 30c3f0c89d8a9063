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

package subnetalloc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"napi.io/internal/address"
	"napi.io/internal/napi"
)

func drainAll(ch <-chan Subnet) []string {
	var out []string
	for s := range ch {
		out = append(out, s.String())
	}
	return out
}

// spec.md §8 scenario 5.
func TestNoExistingSubnetsStartsAtPlanStart(t *testing.T) {
	ctx := context.Background()
	in := make(chan Subnet)
	close(in)

	pairs := SubnetPairStream(ctx, in)
	candidates := AvailableSubnetStream(ctx, pairs, napi.IPv4, 24)

	got := drainAll(candidates)
	require.Len(t, got, 16)
	assert.Equal(t, "10.0.0.0/24", got[0])
	assert.Equal(t, "10.0.15.0/24", got[15])
}

func TestGapBetweenTwoExistingSubnets(t *testing.T) {
	ctx := context.Background()
	in := make(chan Subnet, 2)
	in <- Subnet{Base: mustParse("10.0.0.0"), PrefixLen: 24}
	in <- Subnet{Base: mustParse("10.0.5.0"), PrefixLen: 24}
	close(in)

	pairs := SubnetPairStream(ctx, in)
	candidates := AvailableSubnetStream(ctx, pairs, napi.IPv4, 24)

	got := drainAll(candidates)
	require.NotEmpty(t, got)
	assert.Equal(t, "10.0.1.0/24", got[0])
	// The four gap candidates come first; candidates above 10.0.5.0/24
	// follow once the input closes.
	assert.Equal(t, "10.0.4.0/24", got[3])
}

func TestAdjacentSubnetsYieldNoGapCandidate(t *testing.T) {
	ctx := context.Background()
	in := make(chan Subnet, 2)
	in <- Subnet{Base: mustParse("10.0.0.0"), PrefixLen: 24}
	in <- Subnet{Base: mustParse("10.0.1.0"), PrefixLen: 24}
	close(in)

	pairs := SubnetPairStream(ctx, in)
	candidates := AvailableSubnetStream(ctx, pairs, napi.IPv4, 24)

	got := drainAll(candidates)
	for _, c := range got {
		assert.NotEqual(t, "10.0.0.255/24", c)
	}
}

// spec.md §8 "Subnet plan contiguity".
func TestPlanContiguity(t *testing.T) {
	plan := ipv4Plan

	next, ok := planNext(plan, mustParse("10.255.255.255"), 1)
	require.True(t, ok)
	assert.Equal(t, "172.16.0.0", next.String())

	prev, ok := planPrev(plan, mustParse("172.16.0.0"), 1)
	require.True(t, ok)
	assert.Equal(t, "10.255.255.255", prev.String())

	prev, ok = planPrev(plan, mustParse("192.168.0.0"), 1)
	require.True(t, ok)
	assert.Equal(t, "172.31.255.255", prev.String())

	_, ok = nextSubnet(plan, napi.IPv4, Subnet{Base: mustParse("192.168.255.0"), PrefixLen: 24})
	assert.False(t, ok, "incrementSubnet at the plan's upper edge must fail")
}

func TestSubnetPairStreamSingleton(t *testing.T) {
	ctx := context.Background()
	in := make(chan Subnet, 1)
	in <- Subnet{Base: mustParse("10.0.0.0"), PrefixLen: 24}
	close(in)

	pairs := SubnetPairStream(ctx, in)
	p, ok := <-pairs
	require.True(t, ok)
	require.NotNil(t, p.First)
	assert.Nil(t, p.Second)
	assert.Equal(t, "10.0.0.0/24", p.First.String())

	_, ok = <-pairs
	assert.False(t, ok, "stream must close after the trailing singleton")
}

func TestAddressParseRoundTrip(t *testing.T) {
	a, err := address.Parse("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", a.String())
}

func TestCoalesceFreeSpaceMergesAdjacentCandidates(t *testing.T) {
	candidates := []Subnet{
		{Base: mustParse("10.0.0.0"), PrefixLen: 25},
		{Base: mustParse("10.0.0.128"), PrefixLen: 25},
		{Base: mustParse("10.0.2.0"), PrefixLen: 24},
	}
	merged, err := CoalesceFreeSpace(candidates)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"10.0.0.0/24", "10.0.2.0/24"}, merged)
}

func TestCoalesceFreeSpaceEmpty(t *testing.T) {
	merged, err := CoalesceFreeSpace(nil)
	require.NoError(t, err)
	assert.Empty(t, merged)
}

func TestDividesEvenlyAcrossPrivatePlan(t *testing.T) {
	assert.True(t, DividesEvenly(napi.IPv4, 24))
	assert.True(t, DividesEvenly(napi.IPv4, 16))
	// 172.16.0.0/12 spans 2^20 addresses, not evenly divisible by a /9 block.
	assert.False(t, DividesEvenly(napi.IPv4, 9))
	assert.True(t, DividesEvenly(napi.IPv6, 64))
}
