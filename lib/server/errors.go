// Teleport
// Copyright (C) 2025 Gravitational, Inc.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gravitational/trace"

	"github.com/gravitational/scim"
	"github.com/gravitational/scim/lib/patch"
	"github.com/gravitational/scim/lib/schema"
)

// ErrorResponse is the SCIM error envelope of RFC 7644 Section 3.12.
type ErrorResponse struct {
	Schemas  []string `json:"schemas"`
	Status   string   `json:"status"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail"`
}

// MapError folds an internal error into the SCIM error envelope: HTTP-style
// status plus the scimType keyword the protocol defines for it.
func MapError(err error) ErrorResponse {
	status, scimType := classify(err)
	return ErrorResponse{
		Schemas:  []string{scim.ErrorSchema},
		Status:   strconv.Itoa(status),
		ScimType: scimType,
		Detail:   trace.UserMessage(err),
	}
}

func classify(err error) (int, string) {
	var patchErr *patch.Error
	if errors.As(err, &patchErr) {
		return http.StatusBadRequest, string(patchErr.Kind)
	}

	var validationErr *schema.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.ScimType()
	}

	switch {
	case trace.IsNotFound(err):
		return http.StatusNotFound, ""
	case trace.IsCompareFailed(err):
		// Version precondition failures carry no scimType; the 412 status
		// is the signal.
		return http.StatusPreconditionFailed, ""
	case trace.IsAlreadyExists(err):
		return http.StatusConflict, "uniqueness"
	case trace.IsAccessDenied(err):
		return http.StatusForbidden, ""
	case trace.IsLimitExceeded(err):
		return http.StatusRequestEntityTooLarge, "tooMany"
	case trace.IsNotImplemented(err):
		// The only unimplemented surface is the filter grammar beyond
		// attribute equality.
		return http.StatusBadRequest, "invalidFilter"
	case trace.IsBadParameter(err):
		return http.StatusBadRequest, "invalidValue"
	}
	return http.StatusInternalServerError, ""
}
