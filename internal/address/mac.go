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

package address

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// macPattern accepts exactly 12 hex digits, either bare or grouped in
// pairs by a single separator character used consistently throughout
// (spec.md §4.1: "12 hex digits with optional : or - separators,
// rejecting anything else").
var macPattern = regexp.MustCompile(`^(?:[0-9A-Fa-f]{12}|(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}|(?:[0-9A-Fa-f]{2}-){5}[0-9A-Fa-f]{2})$`)

// ParseMAC parses s into its 48-bit integer form. The engine stores and
// compares MACs as integers everywhere internal; string serialization is
// an API-boundary concern only (spec.md §4.4).
func ParseMAC(s string) (uint64, error) {
	if !macPattern.MatchString(s) {
		return 0, fmt.Errorf("address: invalid MAC %q", s)
	}
	hex := strings.NewReplacer(":", "", "-", "").Replace(s)
	mac, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("address: invalid MAC %q: %w", s, err)
	}
	return mac, nil
}

// FormatMAC renders mac in canonical colon-separated form, e.g.
// "90:b8:d0:17:37:17".
func FormatMAC(mac uint64) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		(mac>>40)&0xff, (mac>>32)&0xff, (mac>>24)&0xff,
		(mac>>16)&0xff, (mac>>8)&0xff, mac&0xff)
}
