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

package schema

import (
	"errors"
	"fmt"
)

// ValidationKind identifies the specific invariant a resource payload
// violated. Kinds are stable identifiers; the human-readable detail may
// change freely.
type ValidationKind string

const (
	KindMissingSchemas            ValidationKind = "MissingSchemas"
	KindEmptySchemas              ValidationKind = "EmptySchemas"
	KindInvalidSchemaURI          ValidationKind = "InvalidSchemaUri"
	KindUnknownSchemaURI          ValidationKind = "UnknownSchemaUri"
	KindDuplicateSchemaURI        ValidationKind = "DuplicateSchemaUri"
	KindMissingID                 ValidationKind = "MissingId"
	KindEmptyID                   ValidationKind = "EmptyId"
	KindInvalidIDFormat           ValidationKind = "InvalidIdFormat"
	KindClientProvidedID          ValidationKind = "ClientProvidedId"
	KindInvalidMetaStructure      ValidationKind = "InvalidMetaStructure"
	KindMissingResourceType       ValidationKind = "MissingResourceType"
	KindInvalidResourceType       ValidationKind = "InvalidResourceType"
	KindInvalidCreatedDateTime    ValidationKind = "InvalidCreatedDateTime"
	KindInvalidDataType           ValidationKind = "InvalidDataType"
	KindMissingRequiredAttribute  ValidationKind = "MissingRequiredAttribute"
	KindInvalidBooleanValue       ValidationKind = "InvalidBooleanValue"
	KindInvalidDateTimeFormat     ValidationKind = "InvalidDateTimeFormat"
	KindInvalidReferenceURI       ValidationKind = "InvalidReferenceUri"
	KindUnknownAttribute          ValidationKind = "UnknownAttributeForSchema"
	KindMultiplePrimaryValues     ValidationKind = "MultiplePrimaryValues"
	KindInvalidSubAttributeType   ValidationKind = "InvalidSubAttributeType"
	KindUnknownSubAttribute       ValidationKind = "UnknownSubAttribute"
	KindMalformedComplexStructure ValidationKind = "MalformedComplexStructure"
	KindSingleValueForMultiValued ValidationKind = "SingleValueForMultiValued"
	KindArrayForSingleValued      ValidationKind = "ArrayForSingleValued"
	KindInvalidCanonicalValue     ValidationKind = "InvalidCanonicalValue"
)

// structuralKinds are violations of the message framing rather than of an
// attribute value; they map to the "invalidSyntax" SCIM error type, while
// everything else maps to "invalidValue".
var structuralKinds = map[ValidationKind]bool{
	KindMissingSchemas:            true,
	KindEmptySchemas:              true,
	KindInvalidMetaStructure:      true,
	KindMalformedComplexStructure: true,
}

// ValidationError is a schema-driven rejection of an inbound resource
// payload.
type ValidationError struct {
	// Kind identifies the violated invariant.
	Kind ValidationKind
	// Detail is a human-readable description of the violation.
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// ScimType returns the RFC 7644 Section 3.12 error type for the violation.
func (e *ValidationError) ScimType() string {
	if structuralKinds[e.Kind] {
		return "invalidSyntax"
	}
	return "invalidValue"
}

func validationError(kind ValidationKind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err (or anything it wraps) is a schema
// validation rejection.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationKindOf extracts the validation kind from err, or "" if err is
// not a validation error.
func ValidationKindOf(err error) ValidationKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}
