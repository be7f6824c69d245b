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

package types

import (
	"encoding/json"
	"strings"

	"github.com/gravitational/trace"

	"github.com/gravitational/scim"
	"github.com/gravitational/scim/lib/schema"
)

// ResourceID is a server-assigned opaque resource identifier. It is never
// empty and never the reserved bulk-operation placeholder.
type ResourceID struct {
	id string
}

// NewResourceID validates and wraps a resource id.
func NewResourceID(id string) (ResourceID, error) {
	if id == "" {
		return ResourceID{}, trace.BadParameter("resource ID must not be empty")
	}
	if id == schema.ReservedID {
		return ResourceID{}, trace.BadParameter("resource ID %q is reserved", schema.ReservedID)
	}
	return ResourceID{id: id}, nil
}

// String returns the opaque id value.
func (r ResourceID) String() string { return r.id }

// IsZero reports whether the id is unset.
func (r ResourceID) IsZero() bool { return r.id == "" }

// MarshalJSON encodes the id as a bare JSON string.
func (r ResourceID) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.id)
}

// UnmarshalJSON decodes and validates the id.
func (r *ResourceID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return trace.Wrap(err)
	}
	id, err := NewResourceID(s)
	if err != nil {
		return trace.Wrap(err)
	}
	*r = id
	return nil
}

// UserName is a non-empty SCIM user name.
type UserName struct {
	name string
}

// NewUserName validates and wraps a user name.
func NewUserName(name string) (UserName, error) {
	if name == "" {
		return UserName{}, trace.BadParameter("userName must not be empty")
	}
	return UserName{name: name}, nil
}

// String returns the user name value.
func (u UserName) String() string { return u.name }

// IsZero reports whether the user name is unset.
func (u UserName) IsZero() bool { return u.name == "" }

// MarshalJSON encodes the user name as a bare JSON string.
func (u UserName) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.name)
}

// UnmarshalJSON decodes and validates the user name.
func (u *UserName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return trace.Wrap(err)
	}
	name, err := NewUserName(s)
	if err != nil {
		return trace.Wrap(err)
	}
	*u = name
	return nil
}

// EmailAddress is a mailbox in the relaxed RFC 5321 shape: a non-empty
// local part and a non-empty domain joined by a single "@".
type EmailAddress struct {
	address string
}

// NewEmailAddress validates and wraps a mailbox address.
func NewEmailAddress(address string) (EmailAddress, error) {
	local, domain, found := strings.Cut(address, "@")
	if !found || local == "" || domain == "" {
		return EmailAddress{}, trace.BadParameter("%q is not a valid mailbox address", address)
	}
	if strings.ContainsAny(address, " \t\r\n") || strings.Contains(domain, "@") {
		return EmailAddress{}, trace.BadParameter("%q is not a valid mailbox address", address)
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return EmailAddress{}, trace.BadParameter("%q has an invalid domain", address)
	}
	return EmailAddress{address: address}, nil
}

// String returns the mailbox address.
func (e EmailAddress) String() string { return e.address }

// IsZero reports whether the address is unset.
func (e EmailAddress) IsZero() bool { return e.address == "" }

// MarshalJSON encodes the address as a bare JSON string.
func (e EmailAddress) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.address)
}

// UnmarshalJSON decodes and validates the address.
func (e *EmailAddress) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return trace.Wrap(err)
	}
	address, err := NewEmailAddress(s)
	if err != nil {
		return trace.Wrap(err)
	}
	*e = address
	return nil
}

// SchemaURI is a URN-shaped schema identifier.
type SchemaURI struct {
	uri string
}

// NewSchemaURI validates and wraps a schema URN.
func NewSchemaURI(uri string) (SchemaURI, error) {
	if !schema.IsSchemaURN(uri) {
		return SchemaURI{}, trace.BadParameter("%q is not a URN-shaped schema URI", uri)
	}
	return SchemaURI{uri: uri}, nil
}

// String returns the URN value.
func (s SchemaURI) String() string { return s.uri }

// IsZero reports whether the URI is unset.
func (s SchemaURI) IsZero() bool { return s.uri == "" }

// MarshalJSON encodes the URI as a bare JSON string.
func (s SchemaURI) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.uri)
}

// UnmarshalJSON decodes and validates the URI.
func (s *SchemaURI) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return trace.Wrap(err)
	}
	uri, err := NewSchemaURI(raw)
	if err != nil {
		return trace.Wrap(err)
	}
	*s = uri
	return nil
}

// Name is the broken-out components of a user's real name, as per RFC 7643
// Section 4.1.1. All sub-fields are optional, but an instantiated Name must
// carry at least one non-empty component.
type Name struct {
	Formatted       string `json:"formatted,omitempty" mapstructure:"formatted,omitempty"`
	FamilyName      string `json:"familyName,omitempty" mapstructure:"familyName,omitempty"`
	GivenName       string `json:"givenName,omitempty" mapstructure:"givenName,omitempty"`
	MiddleName      string `json:"middleName,omitempty" mapstructure:"middleName,omitempty"`
	HonorificPrefix string `json:"honorificPrefix,omitempty" mapstructure:"honorificPrefix,omitempty"`
	HonorificSuffix string `json:"honorificSuffix,omitempty" mapstructure:"honorificSuffix,omitempty"`
}

// Check validates the at-least-one-component invariant.
func (n *Name) Check() error {
	if n.Formatted == "" && n.FamilyName == "" && n.GivenName == "" &&
		n.MiddleName == "" && n.HonorificPrefix == "" && n.HonorificSuffix == "" {
		return trace.BadParameter("name must have at least one non-empty component")
	}
	return nil
}

// Email is one element of a user's emails attribute.
type Email struct {
	Value   EmailAddress `json:"value"`
	Display string       `json:"display,omitempty"`
	Type    string       `json:"type,omitempty"`
	Primary bool         `json:"primary,omitempty"`
}

// IsPrimary implements the primary-flag protocol for MultiValued.
func (e Email) IsPrimary() bool { return e.Primary }

// WithPrimary returns a copy of the email with the primary flag rewritten.
func (e Email) WithPrimary(primary bool) Email {
	e.Primary = primary
	return e
}

// PhoneNumber is one element of a user's phoneNumbers attribute.
type PhoneNumber struct {
	Value   string `json:"value"`
	Display string `json:"display,omitempty"`
	Type    string `json:"type,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

// Check validates the phone number invariants.
func (p *PhoneNumber) Check() error {
	if p.Value == "" {
		return trace.BadParameter("phone number value must not be empty")
	}
	return nil
}

// IsPrimary implements the primary-flag protocol for MultiValued.
func (p PhoneNumber) IsPrimary() bool { return p.Primary }

// WithPrimary returns a copy of the phone number with the primary flag
// rewritten.
func (p PhoneNumber) WithPrimary(primary bool) PhoneNumber {
	p.Primary = primary
	return p
}

// Address is one element of a user's addresses attribute.
type Address struct {
	Formatted     string `json:"formatted,omitempty"`
	StreetAddress string `json:"streetAddress,omitempty"`
	Locality      string `json:"locality,omitempty"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	Country       string `json:"country,omitempty"`
	Type          string `json:"type,omitempty"`
	Primary       bool   `json:"primary,omitempty"`
}

// IsPrimary implements the primary-flag protocol for MultiValued.
func (a Address) IsPrimary() bool { return a.Primary }

// WithPrimary returns a copy of the address with the primary flag
// rewritten.
func (a Address) WithPrimary(primary bool) Address {
	a.Primary = primary
	return a
}

// GroupMember is one element of a group's members attribute.
type GroupMember struct {
	// Value is the id of the member resource.
	Value ResourceID `json:"value"`
	// Ref is the absolute URL of the member resource.
	Ref string `json:"$ref,omitempty"`
	// Type is the member's resource type, "User" or "Group".
	Type string `json:"type,omitempty"`
	// Display is a human-readable name for the member.
	Display string `json:"display,omitempty"`
}

// NewGroupMember validates and builds a group member reference.
func NewGroupMember(value ResourceID, memberType, ref, display string) (GroupMember, error) {
	if value.IsZero() {
		return GroupMember{}, trace.BadParameter("group member value must not be empty")
	}
	switch memberType {
	case "", scim.ResourceTypeUser, scim.ResourceTypeGroup:
	default:
		return GroupMember{}, trace.BadParameter("group member type %q must be %q or %q", memberType, scim.ResourceTypeUser, scim.ResourceTypeGroup)
	}
	return GroupMember{Value: value, Type: memberType, Ref: ref, Display: display}, nil
}
