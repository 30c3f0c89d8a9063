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

package macalloc

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateIsInOUISpace(t *testing.T) {
	a := NewAttempt(0x90b8d0, DefaultRetries, log.NewNopLogger())
	for i := 0; i < 10; i++ {
		mac, err := a.Candidate()
		require.NoError(t, err)
		assert.Equal(t, uint64(0x90b8d0), mac>>24, "OUI prefix must be preserved")
		assert.True(t, mac <= 0xffffffffffff, "MAC must fit in 48 bits")
	}
}

func TestRetryBudget(t *testing.T) {
	a := NewAttempt(0x90b8d0, 3, log.NewNopLogger())
	for i := 0; i < 3; i++ {
		assert.True(t, a.Retry(), "retry %d should be allowed", i)
	}
	assert.False(t, a.Retry(), "budget should be exhausted")
	assert.Equal(t, 3, a.Attempts())
}

func TestZeroRetryBudget(t *testing.T) {
	a := NewAttempt(0, 0, log.NewNopLogger())
	assert.False(t, a.Retry())
}
