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

package patch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a PATCH application failure, mirroring the SCIM
// error types of RFC 7644 Section 3.12.
type ErrorKind string

const (
	// KindInvalidPath marks an unparseable or unresolvable path expression.
	KindInvalidPath ErrorKind = "invalidPath"
	// KindMutability marks an operation that targets a read-only or
	// immutable attribute.
	KindMutability ErrorKind = "mutability"
	// KindInvalidValue marks an operation whose value (or its effect on
	// the resource) violates the schema.
	KindInvalidValue ErrorKind = "invalidValue"
	// KindInvalidSyntax marks a malformed PATCH envelope.
	KindInvalidSyntax ErrorKind = "invalidSyntax"
	// KindNoTarget marks a remove whose filter matched nothing.
	KindNoTarget ErrorKind = "noTarget"
)

// Error is a structured PATCH failure. Kind doubles as the SCIM error type
// surfaced to clients.
type Error struct {
	Kind   ErrorKind
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func patchError(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the PATCH error kind from err, or "" if err is not a
// PATCH error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsPatchError reports whether err (or anything it wraps) is a structured
// PATCH failure.
func IsPatchError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
