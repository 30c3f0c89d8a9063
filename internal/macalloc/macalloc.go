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

// Package macalloc generates MAC addresses inside a configured OUI space
// and retries on collision (spec.md §4.4, component C4). It never talks
// to the store itself: the NIC engine (C5) composes the candidate into
// its batch and drives the retry loop, because only the engine knows
// whether a batch Conflict landed on the NIC bucket or somewhere else
// (spec.md §4.3.3's distinction applies equally to MAC retries).
package macalloc

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/go-kit/log"
)

// DefaultRetries is a fallback MAC retry budget (the engine tests use it).
// The service takes its budget from internal/config's MACRetries, which
// defaults to 10.
const DefaultRetries = 50

// ouiMask keeps the low 24 bits of a generated MAC random; the OUI
// occupies the high 24 bits.
const ouiMask = 1<<24 - 1

// Attempt is the explicit state an in-flight MAC allocation threads
// through the NIC engine's retry loop (Design Note "Callback chains ->
// explicit state" in spec.md §9: no opts-object mutation, no nested
// callbacks).
type Attempt struct {
	oui         uint64
	retries     int
	maxRetries  int
	logger      log.Logger
}

// NewAttempt starts a MAC allocation attempt. oui is the configured
// organizationally-unique-identifier prefix, shifted into the high 24
// bits of the 48-bit MAC space. maxRetries is the retry budget (the
// configured MAC_RETRIES in the service).
// logger is used for debug-level tracing of each draw and retry; a nil
// logger is replaced with a no-op one.
func NewAttempt(oui uint64, maxRetries int, logger log.Logger) *Attempt {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Attempt{oui: (oui & ouiMask) << 24, maxRetries: maxRetries, logger: logger}
}

// Candidate draws a new random MAC in the configured OUI space.
func (a *Attempt) Candidate() (uint64, error) {
	low, err := rand24()
	if err != nil {
		return 0, err
	}
	mac := a.oui | low
	a.logger.Log("level", "debug", "op", "macalloc.candidate", "mac", mac, "attempt", a.retries)
	return mac, nil
}

// Retry reports whether another draw is allowed, consuming one retry. It
// returns false once maxRetries retries have already been consumed, at which
// point the caller must fail with an internal error ("no more free MAC
// addresses", spec.md §4.4).
func (a *Attempt) Retry() bool {
	if a.retries >= a.maxRetries {
		a.logger.Log("level", "debug", "op", "macalloc.retry", "msg", "retries exhausted", "max_retries", a.maxRetries)
		return false
	}
	a.retries++
	a.logger.Log("level", "debug", "op", "macalloc.retry", "attempt", a.retries, "max_retries", a.maxRetries)
	return true
}

// Attempts reports how many retries Retry has consumed so far (for
// logging).
func (a *Attempt) Attempts() int { return a.retries }

func rand24() (uint64, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[1:]); err != nil {
		return 0, fmt.Errorf("macalloc: reading random bytes: %w", err)
	}
	return uint64(binary.BigEndian.Uint32(buf[:])) & ouiMask, nil
}

// ErrExhausted is returned by the NIC engine (not by this package) once
// Retry reports false; it is defined here so callers in different
// packages can share one sentinel for "no more free MAC addresses".
var ErrExhausted = fmt.Errorf("macalloc: no more free MAC addresses")
