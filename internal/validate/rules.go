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
	"fmt"
	"regexp"

	apierrors "k8s.io/apimachinery/pkg/util/validation/field"

	"napi.io/internal/address"
)

// uuidPattern is the canonical 8-4-4-4-12 hex form (spec.md §4.8 "UUID
// regex").
var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// interfaceNamePattern matches spec.md §4.8's interface name rule
// verbatim: "[A-Za-z0-9_]{0,31}[0-9]+".
var interfaceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{0,31}[0-9]+$`)

// tagNamePattern is spec.md §3/§4.8's NicTag name charset: letters,
// digits, and underscore only.
var tagNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func asString(path *apierrors.Path, v any) (string, *apierrors.Error) {
	s, ok := v.(string)
	if !ok {
		return "", apierrors.Invalid(path, v, "must be a string")
	}
	return s, nil
}

func asInt(path *apierrors.Path, v any) (int, *apierrors.Error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, apierrors.Invalid(path, v, "must be an integer")
	}
}

// UUID requires v to be a canonical UUID string.
func UUID(path *apierrors.Path, v any) *apierrors.Error {
	s, err := asString(path, v)
	if err != nil {
		return err
	}
	if !uuidPattern.MatchString(s) {
		return apierrors.Invalid(path, v, "must be a UUID")
	}
	return nil
}

// MAC requires v to parse as a MAC address (spec.md §4.1).
func MAC(path *apierrors.Path, v any) *apierrors.Error {
	s, err := asString(path, v)
	if err != nil {
		return err
	}
	if _, perr := address.ParseMAC(s); perr != nil {
		return apierrors.Invalid(path, v, perr.Error())
	}
	return nil
}

// IP requires v to parse as an IPv4 or IPv6 address (spec.md §4.1).
func IP(path *apierrors.Path, v any) *apierrors.Error {
	s, err := asString(path, v)
	if err != nil {
		return err
	}
	if _, perr := address.Parse(s); perr != nil {
		return apierrors.Invalid(path, v, perr.Error())
	}
	return nil
}

// IntRange requires v to be an integer in [min, max].
func IntRange(min, max int) Rule {
	return func(path *apierrors.Path, v any) *apierrors.Error {
		n, err := asInt(path, v)
		if err != nil {
			return err
		}
		if n < min || n > max {
			return apierrors.Invalid(path, v, fmt.Sprintf("must be in [%d, %d]", min, max))
		}
		return nil
	}
}

// VLANID is VLAN 0..4094 except 1 (spec.md §4.8).
func VLANID(path *apierrors.Path, v any) *apierrors.Error {
	n, err := asInt(path, v)
	if err != nil {
		return err
	}
	if n < 0 || n > 4094 || n == 1 {
		return apierrors.Invalid(path, v, "must be in [0, 4094] and not 1")
	}
	return nil
}

// VxLANID is VxLAN 0..2^24-1 (spec.md §4.8).
func VxLANID(path *apierrors.Path, v any) *apierrors.Error {
	return IntRange(0, 1<<24-1)(path, v)
}

// Offset requires a non-negative integer (spec.md §4.8 "offset >= 0").
func Offset(path *apierrors.Path, v any) *apierrors.Error {
	n, err := asInt(path, v)
	if err != nil {
		return err
	}
	if n < 0 {
		return apierrors.Invalid(path, v, "must be >= 0")
	}
	return nil
}

// Limit is the paging limit, 1..1000 (spec.md §4.8).
func Limit(path *apierrors.Path, v any) *apierrors.Error {
	return IntRange(1, 1000)(path, v)
}

// NonEmptyString requires a string with at least one character and at
// most maxLen.
func NonEmptyString(maxLen int) Rule {
	return func(path *apierrors.Path, v any) *apierrors.Error {
		s, err := asString(path, v)
		if err != nil {
			return err
		}
		if len(s) == 0 {
			return apierrors.Required(path, "")
		}
		if len(s) > maxLen {
			return apierrors.Invalid(path, v, fmt.Sprintf("must be at most %d characters", maxLen))
		}
		return nil
	}
}

// TagName is a NicTag name: 1-31 characters, restricted to
// [A-Za-z0-9_] (spec.md §3/§4.8 "<= 64 or <= 31 for tag names").
func TagName(path *apierrors.Path, v any) *apierrors.Error {
	if err := NonEmptyString(31)(path, v); err != nil {
		return err
	}
	s, _ := v.(string)
	if !tagNamePattern.MatchString(s) {
		return apierrors.Invalid(path, v, "must match [A-Za-z0-9_]+")
	}
	return nil
}

// Name is a generic resource name of at most 64 characters.
var Name = NonEmptyString(64)

// InterfaceName requires v to match spec.md §4.8's interface name rule.
func InterfaceName(path *apierrors.Path, v any) *apierrors.Error {
	s, err := asString(path, v)
	if err != nil {
		return err
	}
	if !interfaceNamePattern.MatchString(s) {
		return apierrors.Invalid(path, v, "must match [A-Za-z0-9_]{0,31}[0-9]+")
	}
	return nil
}

// Enum requires v to be one of values.
func Enum(values ...string) Rule {
	set := make(map[string]bool, len(values))
	for _, val := range values {
		set[val] = true
	}
	return func(path *apierrors.Path, v any) *apierrors.Error {
		s, err := asString(path, v)
		if err != nil {
			return err
		}
		if !set[s] {
			return apierrors.NotSupported(path, v, values)
		}
		return nil
	}
}
