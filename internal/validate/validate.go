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

// Package validate is the declarative parameter validator (spec.md §4.8,
// component C8). The network create, IP update, NIC create/update and IP
// search handlers run their raw parameters through it before they reach
// an engine; the other handlers (among them the generic CRUD,
// VLAN/aggregation create, network update and NIC provision handlers) do
// not. A Schema is a static,
// per-resource description of required/optional parameters and the rules
// each one must satisfy; Run accumulates every failure into one
// field.ErrorList instead of stopping at the first bad field, and strict
// mode rejects parameters the schema never named at all (spec.md §9
// Design Note "Dynamic validation schemas" -> per-resource typed schema
// values with a shared driver).
package validate

import (
	"sort"

	apierrors "k8s.io/apimachinery/pkg/util/validation/field"
)

// Params is the raw, untyped parameter bag a request carries in. Missing
// keys and present-but-nil both mean "not supplied".
type Params map[string]any

// Rule checks a single field's value, given it was supplied. It returns
// nil if the value is acceptable.
type Rule func(path *apierrors.Path, value any) *apierrors.Error

// Field describes one parameter a Schema accepts.
type Field struct {
	Name     string
	Required bool
	Rules    []Rule
}

// AfterFunc runs once every per-field rule has passed, for cross-field
// checks a single Rule can't express (spec.md §4.8 "a configurable
// 'after' step", e.g. "the IP must lie inside its network's subnet").
type AfterFunc func(p Params) apierrors.ErrorList

// Schema is the complete, static description of one resource operation's
// parameters.
type Schema struct {
	Name   string
	Fields []Field
	Strict bool
	After  AfterFunc
}

// Run validates p against s, returning every failure at once, sorted by
// field name for test and client stability (spec.md §4.8, §7 "Validation
// collects every field failure and returns them in one response sorted by
// field name").
func Run(s Schema, p Params) apierrors.ErrorList {
	var errs apierrors.ErrorList
	known := make(map[string]bool, len(s.Fields))

	for _, f := range s.Fields {
		known[f.Name] = true
		path := apierrors.NewPath(f.Name)
		v, present := p[f.Name]
		if !present || v == nil {
			if f.Required {
				errs = append(errs, apierrors.Required(path, ""))
			}
			continue
		}
		for _, rule := range f.Rules {
			if err := rule(path, v); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if s.Strict {
		for name := range p {
			if !known[name] {
				errs = append(errs, apierrors.NotSupported(apierrors.NewPath(name), p[name], []string(nil)))
			}
		}
	}

	if len(errs) == 0 && s.After != nil {
		errs = append(errs, s.After(p)...)
	}

	sort.Slice(errs, func(i, j int) bool {
		return errs[i].Field < errs[j].Field
	})
	return errs
}
