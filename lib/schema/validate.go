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
	"encoding/base64"
	"encoding/json"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/gravitational/trace"
)

// OpContext distinguishes create-time from update-time validation. Updates
// may carry server-managed attributes (id, meta timestamps) that a create
// must not.
type OpContext int

const (
	// OpCreate validates a payload submitted to create a new resource.
	OpCreate OpContext = iota
	// OpUpdate validates a payload submitted to replace an existing
	// resource.
	OpUpdate
)

// ReservedID is the resource id reserved by RFC 7644 for bulk operation
// references; it can never identify a real resource.
const ReservedID = "bulkId"

// commonAttributes are the top-level attributes shared by every resource,
// handled outside the per-schema attribute walk.
var commonAttributes = map[string]bool{
	"schemas":    true,
	"id":         true,
	"externalid": true,
	"meta":       true,
}

// ValidateResource checks an inbound resource payload against the schemas
// it declares. The checks run in a fixed order and stop at the first
// violation:
//
//  1. the schemas attribute (present, non-empty, parseable, known, unique)
//  2. core identity (id shape, no client-provided id on create)
//  3. meta structure
//  4. per-schema attribute checks (required, type, cardinality, canonical
//     values, sub-attributes)
//  5. the no-unknown-attributes rule
//
// The at-most-one-primary constraint is enforced as part of step 4.
func (r *Registry) ValidateResource(resourceType string, attrs map[string]any, op OpContext) error {
	base, ok := r.BaseSchemaFor(resourceType)
	if !ok {
		return trace.NotImplemented("unsupported resource type %q", resourceType)
	}

	declared, err := r.validateSchemasAttribute(base, attrs)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := validateIdentity(attrs, op); err != nil {
		return trace.Wrap(err)
	}
	if err := validateMeta(resourceType, attrs, op); err != nil {
		return trace.Wrap(err)
	}
	if err := r.validateAttributes(base, declared, attrs); err != nil {
		return trace.Wrap(err)
	}
	return nil
}

// validateSchemasAttribute runs step 1 and returns the declared schema URIs.
func (r *Registry) validateSchemasAttribute(base Schema, attrs map[string]any) ([]string, error) {
	raw, present := attrs["schemas"]
	if !present {
		return nil, validationError(KindMissingSchemas, "resource is missing the schemas attribute")
	}

	var uris []string
	switch list := raw.(type) {
	case []string:
		uris = list
	case []any:
		for _, item := range list {
			uri, ok := item.(string)
			if !ok {
				return nil, validationError(KindInvalidSchemaURI, "schemas entries must be strings, found %T", item)
			}
			uris = append(uris, uri)
		}
	default:
		return nil, validationError(KindInvalidSchemaURI, "schemas must be an array of URIs, found %T", raw)
	}

	if len(uris) == 0 {
		return nil, validationError(KindEmptySchemas, "schemas attribute must not be empty")
	}

	seen := make(map[string]bool, len(uris))
	for _, uri := range uris {
		if !IsSchemaURN(uri) {
			return nil, validationError(KindInvalidSchemaURI, "schema URI %q is not a valid URN", uri)
		}
		if _, known := r.Get(uri); !known {
			return nil, validationError(KindUnknownSchemaURI, "schema URI %q is not registered", uri)
		}
		if seen[uri] {
			return nil, validationError(KindDuplicateSchemaURI, "schema URI %q is declared more than once", uri)
		}
		seen[uri] = true
	}

	if uris[0] != base.ID {
		return nil, validationError(KindInvalidResourceType, "base schema %q does not match resource type schema %q", uris[0], base.ID)
	}
	return uris, nil
}

// validateIdentity runs step 2.
func validateIdentity(attrs map[string]any, op OpContext) error {
	raw, present := attrs["id"]
	if op == OpCreate {
		if present {
			return validationError(KindClientProvidedID, "id is server-assigned and must not be supplied on create")
		}
	} else if present {
		id, ok := raw.(string)
		if !ok {
			return validationError(KindInvalidIDFormat, "id must be a string, found %T", raw)
		}
		if id == "" {
			return validationError(KindEmptyID, "id must not be empty")
		}
		if id == ReservedID {
			return validationError(KindInvalidIDFormat, "id %q is reserved", ReservedID)
		}
	}

	if raw, present := attrs["externalId"]; present {
		if _, ok := raw.(string); !ok {
			return validationError(KindInvalidDataType, "externalId must be a string, found %T", raw)
		}
	}
	return nil
}

// validateMeta runs step 3.
func validateMeta(resourceType string, attrs map[string]any, op OpContext) error {
	raw, present := attrs["meta"]
	if !present {
		return nil
	}
	meta, ok := raw.(map[string]any)
	if !ok {
		return validationError(KindInvalidMetaStructure, "meta must be an object, found %T", raw)
	}

	if op == OpCreate {
		for _, readOnly := range []string{"created", "lastModified", "version", "location"} {
			if _, found := meta[readOnly]; found {
				return validationError(KindInvalidMetaStructure, "meta.%s is server-managed and must not be supplied on create", readOnly)
			}
		}
	}

	if raw, found := meta["resourceType"]; found {
		rt, ok := raw.(string)
		if !ok {
			return validationError(KindInvalidMetaStructure, "meta.resourceType must be a string, found %T", raw)
		}
		if rt != resourceType {
			return validationError(KindInvalidResourceType, "meta.resourceType %q does not match resource type %q", rt, resourceType)
		}
	}
	if err := checkMetaDateTime(meta, "created", KindInvalidCreatedDateTime); err != nil {
		return trace.Wrap(err)
	}
	if err := checkMetaDateTime(meta, "lastModified", KindInvalidDateTimeFormat); err != nil {
		return trace.Wrap(err)
	}
	if raw, found := meta["location"]; found {
		location, ok := raw.(string)
		if !ok {
			return validationError(KindInvalidMetaStructure, "meta.location must be a string, found %T", raw)
		}
		parsed, err := url.Parse(location)
		if err != nil || !parsed.IsAbs() {
			return validationError(KindInvalidMetaStructure, "meta.location %q is not an absolute URI", location)
		}
	}
	return nil
}

func checkMetaDateTime(meta map[string]any, field string, kind ValidationKind) error {
	raw, found := meta[field]
	if !found {
		return nil
	}
	value, ok := raw.(string)
	if !ok {
		return validationError(kind, "meta.%s must be an RFC 3339 string, found %T", field, raw)
	}
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return validationError(kind, "meta.%s %q is not a valid RFC 3339 datetime", field, value)
	}
	return nil
}

// validateAttributes runs steps 4 and 5 over every declared schema.
func (r *Registry) validateAttributes(base Schema, declared []string, attrs map[string]any) error {
	for _, uri := range declared {
		s, _ := r.Get(uri)

		namespace := attrs
		if uri != base.ID {
			raw, present := attrs[uri]
			if !present {
				namespace = map[string]any{}
			} else {
				ns, ok := raw.(map[string]any)
				if !ok {
					return validationError(KindMalformedComplexStructure, "extension %q must be an object, found %T", uri, raw)
				}
				namespace = ns
			}
		}

		for _, attr := range s.Attributes {
			value, present := lookupAttribute(namespace, attr.Name)
			if !present {
				if attr.Required {
					return validationError(KindMissingRequiredAttribute, "missing required attribute %q of schema %q", attr.Name, uri)
				}
				continue
			}
			if err := checkValue(attr, value, false); err != nil {
				return trace.Wrap(err)
			}
		}

		// The no-unknown-attributes rule, scoped to the namespace the
		// schema owns.
		if uri == base.ID {
			declaredExtensions := make(map[string]bool, len(declared))
			for _, d := range declared[1:] {
				declaredExtensions[d] = true
			}
			for key := range attrs {
				if commonAttributes[strings.ToLower(key)] || declaredExtensions[key] {
					continue
				}
				if _, ok := base.Attribute(key); !ok {
					return validationError(KindUnknownAttribute, "attribute %q is not declared by schema %q", key, base.ID)
				}
			}
		} else {
			for key := range namespace {
				if _, ok := s.Attribute(key); !ok {
					return validationError(KindUnknownAttribute, "attribute %q is not declared by extension %q", key, uri)
				}
			}
		}
	}
	return nil
}

func lookupAttribute(namespace map[string]any, name string) (any, bool) {
	for key, value := range namespace {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

// checkValue enforces cardinality, then dispatches to the per-type check.
func checkValue(attr Attribute, value any, sub bool) error {
	if attr.MultiValued {
		list, ok := value.([]any)
		if !ok {
			return validationError(KindSingleValueForMultiValued, "attribute %q is multi-valued and requires an array, found %T", attr.Name, value)
		}
		primaries := 0
		for _, element := range list {
			if err := checkSingleValue(attr, element, sub); err != nil {
				return trace.Wrap(err)
			}
			if attr.HasPrimarySubAttribute() {
				if m, ok := element.(map[string]any); ok {
					if primary, ok := m["primary"].(bool); ok && primary {
						primaries++
					}
				}
			}
		}
		if primaries > 1 {
			return validationError(KindMultiplePrimaryValues, "attribute %q has %d elements marked primary, at most one is allowed", attr.Name, primaries)
		}
		return nil
	}

	if _, isArray := value.([]any); isArray {
		return validationError(KindArrayForSingleValued, "attribute %q is single-valued and must not be an array", attr.Name)
	}
	return trace.Wrap(checkSingleValue(attr, value, sub))
}

// checkSingleValue type-checks one element against the attribute
// definition.
func checkSingleValue(attr Attribute, value any, sub bool) error {
	if value == nil {
		return nil
	}

	typeMismatch := func(format string, args ...any) error {
		kind := KindInvalidDataType
		if sub {
			kind = KindInvalidSubAttributeType
		}
		return validationError(kind, format, args...)
	}

	switch attr.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return typeMismatch("attribute %q must be a string, found %T", attr.Name, value)
		}
		if !attr.IsCanonical(s) {
			return validationError(KindInvalidCanonicalValue, "attribute %q value %q is not one of its canonical values %v", attr.Name, s, attr.CanonicalValues)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return validationError(KindInvalidBooleanValue, "attribute %q must be a boolean, found %T", attr.Name, value)
		}
	case TypeDecimal:
		if !isNumber(value) {
			return typeMismatch("attribute %q must be a decimal number, found %T", attr.Name, value)
		}
	case TypeInteger:
		if !isInteger(value) {
			return typeMismatch("attribute %q must be an integer, found %T", attr.Name, value)
		}
	case TypeDateTime:
		s, ok := value.(string)
		if !ok {
			return validationError(KindInvalidDateTimeFormat, "attribute %q must be an RFC 3339 string, found %T", attr.Name, value)
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return validationError(KindInvalidDateTimeFormat, "attribute %q value %q is not a valid RFC 3339 datetime", attr.Name, s)
		}
	case TypeBinary:
		s, ok := value.(string)
		if !ok {
			return typeMismatch("attribute %q must be a base64 string, found %T", attr.Name, value)
		}
		if _, err := base64.StdEncoding.DecodeString(s); err != nil {
			return typeMismatch("attribute %q is not valid base64", attr.Name)
		}
	case TypeReference:
		s, ok := value.(string)
		if !ok {
			return validationError(KindInvalidReferenceURI, "attribute %q must be a URI string, found %T", attr.Name, value)
		}
		if s == "" {
			return validationError(KindInvalidReferenceURI, "attribute %q must not be empty", attr.Name)
		}
		if _, err := url.Parse(s); err != nil {
			return validationError(KindInvalidReferenceURI, "attribute %q value %q is not a valid URI", attr.Name, s)
		}
	case TypeComplex:
		m, ok := value.(map[string]any)
		if !ok {
			return validationError(KindMalformedComplexStructure, "attribute %q must be an object, found %T", attr.Name, value)
		}
		for key, subValue := range m {
			subAttr, ok := attr.SubAttribute(key)
			if !ok {
				return validationError(KindUnknownSubAttribute, "attribute %q has no sub-attribute %q", attr.Name, key)
			}
			if err := checkValue(subAttr, subValue, true); err != nil {
				return trace.Wrap(err)
			}
		}
	default:
		return typeMismatch("attribute %q has unknown data type %q", attr.Name, attr.Type)
	}
	return nil
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float64, float32, int, int32, int64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	default:
		return false
	}
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return v == math.Trunc(v)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	default:
		return false
	}
}
