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

// Package metrics exposes the Prometheus gauges and counters every
// engine package updates as it allocates and frees addresses.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "napi"

var (
	networkLabels = []string{"network"}

	NetworkCapacity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "size",
		Help:      "Number of addresses in the network's provision range",
	}, networkLabels)

	NetworkAddressesInUse = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "addresses_in_use",
		Help:      "Number of addresses currently owned within the network",
	}, networkLabels)

	AllocationRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "allocation_rejected_total",
		Help:      "Number of IP or MAC allocation attempts rejected (exhaustion or conflict)",
	}, []string{"network", "reason"})

	poolLabels = []string{"pool"}

	PoolNetworkCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "networks",
		Help:      "Number of networks in the pool",
	}, poolLabels)

	StoreConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "conflicts_total",
		Help:      "Number of optimistic-concurrency conflicts observed per bucket",
	}, []string{"bucket"})
)

func init() {
	prometheus.MustRegister(NetworkCapacity)
	prometheus.MustRegister(NetworkAddressesInUse)
	prometheus.MustRegister(AllocationRejected)
	prometheus.MustRegister(PoolNetworkCount)
	prometheus.MustRegister(StoreConflictsTotal)
}
