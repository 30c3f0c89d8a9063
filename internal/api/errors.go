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

package api

import (
	"errors"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/util/validation/field"

	"napi.io/internal/ipalloc"
	"napi.io/internal/nic"
	"napi.io/internal/poolintersect"
	"napi.io/internal/store"
)

// apiError is the JSON body every non-2xx response carries (spec.md §6
// "Status codes", §7 "Deletions report the blocking dependents by
// listing them in errors[].usedBy").
type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Errors  []fieldFail `json:"errors,omitempty"`
}

type fieldFail struct {
	Field  string `json:"field"`
	Code   string `json:"code"`
	Detail string `json:"message,omitempty"`
	UsedBy string `json:"usedBy,omitempty"`
}

// statusFor maps an engine error to the HTTP status code and response
// body spec.md §6 names. Validation failures are handled separately by
// writeValidationError, since apierrors.ErrorList isn't itself an error.
func statusFor(err error) (int, apiError) {
	if store.IsNotFound(err) {
		return http.StatusNotFound, apiError{Code: "ResourceNotFound", Message: err.Error()}
	}
	if _, ok := store.IsConflict(err); ok {
		return http.StatusPreconditionFailed, apiError{Code: "PreconditionFailed", Message: err.Error()}
	}

	var macInUse *nic.MACInUseError
	if errors.As(err, &macInUse) {
		return http.StatusUnprocessableEntity, apiError{Code: "DuplicateParameter", Message: err.Error()}
	}
	var notFound *nic.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound, apiError{Code: "ResourceNotFound", Message: err.Error()}
	}
	var netNotFound *nic.NetworkNotFoundError
	if errors.As(err, &netNotFound) {
		return http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()}
	}
	var netAmbiguous *nic.NetworkAmbiguousError
	if errors.As(err, &netAmbiguous) {
		return http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()}
	}
	var netUnresolved *nic.NetworkUnresolvedError
	if errors.As(err, &netUnresolved) {
		return http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()}
	}

	if errors.Is(err, ipalloc.ErrSubnetFull) {
		return http.StatusInsufficientStorage, apiError{Code: "SubnetFull", Message: err.Error()}
	}
	if errors.Is(err, ipalloc.ErrIPInUse) {
		return http.StatusUnprocessableEntity, apiError{Code: "InUse", Message: err.Error()}
	}
	// macalloc.ErrExhausted falls through to the default InternalError
	// branch below: spec.md §4.4/§8 treats exhausting MAC_RETRIES as an
	// internal error, not a 507 SubnetFull (that code is IP-space-only).

	var poolFails *poolintersect.PoolFailsConstraintsError
	if errors.As(err, &poolFails) {
		return http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()}
	}
	var poolAmbiguous *poolintersect.PoolNICTagsAmbiguousError
	if errors.As(err, &poolAmbiguous) {
		return http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()}
	}
	var noIntersection *poolintersect.NoPoolIntersectionError
	if errors.As(err, &noIntersection) {
		return http.StatusUnprocessableEntity, apiError{Code: "InvalidParameters", Message: err.Error()}
	}

	return http.StatusInternalServerError, apiError{Code: "InternalError", Message: err.Error()}
}

func validationErrorBody(errs apierrors.ErrorList) apiError {
	body := apiError{Code: "InvalidParameters", Message: "validation failed"}
	for _, e := range errs {
		body.Errors = append(body.Errors, fieldFail{Field: e.Field, Code: string(e.Type), Detail: e.ErrorBody()})
	}
	return body
}

// writeValidationError writes the 422 response for a non-empty
// validation result (spec.md §7 "Validation collects every field failure
// and returns them in one response sorted by field name").
func writeValidationError(w http.ResponseWriter, errs apierrors.ErrorList) {
	writeJSON(w, http.StatusUnprocessableEntity, validationErrorBody(errs))
}

// writeInUse writes the 422 response for a delete blocked by a live
// dependent, naming every blocker in errors[].usedBy (spec.md §7
// "Deletions report the blocking dependents by listing them in
// errors[].usedBy").
func writeInUse(w http.ResponseWriter, message string, usedBy []string) {
	body := apiError{Code: "InUse", Message: message}
	for _, u := range usedBy {
		body.Errors = append(body.Errors, fieldFail{Code: "InUse", UsedBy: u})
	}
	writeJSON(w, http.StatusUnprocessableEntity, body)
}
