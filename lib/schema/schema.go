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

// Package schema models SCIM schema definitions (RFC 7643 Section 7) and
// implements the schema-driven validation engine that gates every inbound
// resource payload.
package schema

import (
	"strings"
)

// Type is the data type of a SCIM attribute.
type Type string

const (
	TypeString    Type = "string"
	TypeBoolean   Type = "boolean"
	TypeDecimal   Type = "decimal"
	TypeInteger   Type = "integer"
	TypeDateTime  Type = "dateTime"
	TypeBinary    Type = "binary"
	TypeReference Type = "reference"
	TypeComplex   Type = "complex"
)

// Mutability describes the write semantics of an attribute.
type Mutability string

const (
	MutabilityReadOnly  Mutability = "readOnly"
	MutabilityReadWrite Mutability = "readWrite"
	MutabilityImmutable Mutability = "immutable"
	MutabilityWriteOnly Mutability = "writeOnly"
)

// Returned describes when an attribute appears in responses.
type Returned string

const (
	ReturnedAlways  Returned = "always"
	ReturnedNever   Returned = "never"
	ReturnedDefault Returned = "default"
	ReturnedRequest Returned = "request"
)

// Uniqueness describes the scope of an attribute's uniqueness constraint.
type Uniqueness string

const (
	UniquenessNone   Uniqueness = "none"
	UniquenessServer Uniqueness = "server"
	UniquenessGlobal Uniqueness = "global"
)

// Attribute describes a single SCIM attribute. The JSON representation is
// the one served from the /Schemas discovery endpoint.
type Attribute struct {
	Name            string      `json:"name"`
	Type            Type        `json:"type"`
	SubAttributes   []Attribute `json:"subAttributes,omitempty"`
	MultiValued     bool        `json:"multiValued"`
	Description     string      `json:"description,omitempty"`
	Required        bool        `json:"required"`
	CaseExact       bool        `json:"caseExact"`
	Mutability      Mutability  `json:"mutability"`
	Returned        Returned    `json:"returned"`
	Uniqueness      Uniqueness  `json:"uniqueness"`
	ReferenceTypes  []string    `json:"referenceTypes,omitempty"`
	CanonicalValues []string    `json:"canonicalValues,omitempty"`
}

// SubAttribute looks up a sub-attribute by name. SCIM attribute names are
// case-insensitive.
func (a Attribute) SubAttribute(name string) (Attribute, bool) {
	for _, sub := range a.SubAttributes {
		if strings.EqualFold(sub.Name, name) {
			return sub, true
		}
	}
	return Attribute{}, false
}

// HasPrimarySubAttribute reports whether the attribute's elements carry a
// "primary" boolean, which triggers the at-most-one-primary constraint.
func (a Attribute) HasPrimarySubAttribute() bool {
	_, ok := a.SubAttribute("primary")
	return a.Type == TypeComplex && ok
}

// IsCanonical reports whether value satisfies the attribute's canonical
// value list. An empty list allows anything.
func (a Attribute) IsCanonical(value string) bool {
	if len(a.CanonicalValues) == 0 {
		return true
	}
	for _, canonical := range a.CanonicalValues {
		if a.CaseExact && canonical == value {
			return true
		}
		if !a.CaseExact && strings.EqualFold(canonical, value) {
			return true
		}
	}
	return false
}

// Schema is a named, ordered collection of attribute definitions identified
// by a URN.
type Schema struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// Attribute looks up a top-level attribute by name, case-insensitively.
func (s Schema) Attribute(name string) (Attribute, bool) {
	for _, attr := range s.Attributes {
		if strings.EqualFold(attr.Name, name) {
			return attr, true
		}
	}
	return Attribute{}, false
}
