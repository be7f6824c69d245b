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

// Package types models SCIM resources as validated value objects layered
// over the raw attribute-set wire format. The attribute set remains the
// source of truth for serialization, so resources round-trip losslessly;
// the typed views are parsed and validated at construction.
package types

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gravitational/trace"

	"github.com/gravitational/scim/lib/schema"
)

// Resource is a typed SCIM resource: a validated header, typed views over
// the well-known attributes, and a catch-all attribute set holding
// everything the schemas define but the views do not model.
type Resource struct {
	resourceType string
	schemas      []SchemaURI
	id           ResourceID
	externalID   string
	meta         *Metadata

	userName     *UserName
	name         *Name
	displayName  *string
	active       *bool
	emails       *MultiValued[Email]
	phoneNumbers *MultiValued[PhoneNumber]
	addresses    *MultiValued[Address]
	members      []GroupMember

	// attributes holds every non-header attribute in wire form, including
	// the ones projected into typed views and any extension payloads.
	attributes AttributeSet
}

// FromAttributeSet validates an inbound attribute set against the schema
// registry and projects it into a typed Resource. The attribute set is
// cloned; the caller keeps ownership of its copy.
func FromAttributeSet(registry *schema.Registry, resourceType string, attrs AttributeSet, op schema.OpContext) (*Resource, error) {
	if registry == nil {
		return nil, trace.BadParameter("missing schema registry")
	}
	if err := registry.ValidateResource(resourceType, attrs, op); err != nil {
		return nil, trace.Wrap(err)
	}

	header, err := decodeResourceHeader(attrs.Clone())
	if err != nil {
		return nil, trace.Wrap(err, "decoding resource header")
	}

	r := &Resource{
		resourceType: resourceType,
		externalID:   header.ExternalID,
		meta:         header.Meta,
		attributes:   header.Attributes,
	}
	if r.attributes == nil {
		r.attributes = AttributeSet{}
	}

	for _, uri := range header.Schemas {
		parsed, err := NewSchemaURI(uri)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		r.schemas = append(r.schemas, parsed)
	}

	if header.ID != "" {
		id, err := NewResourceID(header.ID)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		r.id = id
	}

	if err := r.projectTypedViews(); err != nil {
		return nil, trace.Wrap(err)
	}
	return r, nil
}

// UnmarshalResource parses a JSON document and validates it into a Resource.
func UnmarshalResource(registry *schema.Registry, resourceType string, data []byte, op schema.OpContext) (*Resource, error) {
	attrs, err := UnmarshalAttributeSet(bytes.NewReader(data))
	if err != nil {
		return nil, trace.Wrap(err, "parsing SCIM resource")
	}
	r, err := FromAttributeSet(registry, resourceType, attrs, op)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return r, nil
}

// projectTypedViews parses the well-known attributes into value objects.
// Schema validation has already run, so shape errors here indicate a value
// object constraint (e.g. mailbox format) rather than a type mismatch.
func (r *Resource) projectTypedViews() error {
	if raw, ok := r.attributes["userName"].(string); ok {
		userName, err := NewUserName(raw)
		if err != nil {
			return trace.Wrap(err)
		}
		r.userName = &userName
	}

	if raw, ok := r.attributes["name"].(map[string]any); ok {
		name, err := parseName(raw)
		if err != nil {
			return trace.Wrap(err)
		}
		r.name = name
	}

	if raw, ok := r.attributes["displayName"].(string); ok {
		r.displayName = &raw
	}
	if raw, ok := r.attributes["active"].(bool); ok {
		r.active = &raw
	}

	if raw, ok := r.attributes["emails"].([]any); ok {
		emails, err := parseEmails(raw)
		if err != nil {
			return trace.Wrap(err)
		}
		r.emails = emails
	}
	if raw, ok := r.attributes["phoneNumbers"].([]any); ok {
		numbers, err := parsePhoneNumbers(raw)
		if err != nil {
			return trace.Wrap(err)
		}
		r.phoneNumbers = numbers
	}
	if raw, ok := r.attributes["addresses"].([]any); ok {
		addresses, err := parseAddresses(raw)
		if err != nil {
			return trace.Wrap(err)
		}
		r.addresses = addresses
	}
	if raw, ok := r.attributes["members"].([]any); ok {
		members, err := parseMembers(raw)
		if err != nil {
			return trace.Wrap(err)
		}
		r.members = members
	}
	return nil
}

func parseName(raw map[string]any) (*Name, error) {
	name := Name{
		Formatted:       stringField(raw, "formatted"),
		FamilyName:      stringField(raw, "familyName"),
		GivenName:       stringField(raw, "givenName"),
		MiddleName:      stringField(raw, "middleName"),
		HonorificPrefix: stringField(raw, "honorificPrefix"),
		HonorificSuffix: stringField(raw, "honorificSuffix"),
	}
	if err := name.Check(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &name, nil
}

func parseEmails(raw []any) (*MultiValued[Email], error) {
	items := make([]Email, 0, len(raw))
	for _, element := range raw {
		m, ok := element.(map[string]any)
		if !ok {
			return nil, trace.BadParameter("email entries must be objects, found %T", element)
		}
		address, err := NewEmailAddress(stringField(m, "value"))
		if err != nil {
			return nil, trace.Wrap(err)
		}
		items = append(items, Email{
			Value:   address,
			Display: stringField(m, "display"),
			Type:    stringField(m, "type"),
			Primary: boolField(m, "primary"),
		})
	}
	list, err := NewMultiValued(items)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &list, nil
}

func parsePhoneNumbers(raw []any) (*MultiValued[PhoneNumber], error) {
	items := make([]PhoneNumber, 0, len(raw))
	for _, element := range raw {
		m, ok := element.(map[string]any)
		if !ok {
			return nil, trace.BadParameter("phone number entries must be objects, found %T", element)
		}
		number := PhoneNumber{
			Value:   stringField(m, "value"),
			Display: stringField(m, "display"),
			Type:    stringField(m, "type"),
			Primary: boolField(m, "primary"),
		}
		if err := number.Check(); err != nil {
			return nil, trace.Wrap(err)
		}
		items = append(items, number)
	}
	list, err := NewMultiValued(items)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &list, nil
}

func parseAddresses(raw []any) (*MultiValued[Address], error) {
	items := make([]Address, 0, len(raw))
	for _, element := range raw {
		m, ok := element.(map[string]any)
		if !ok {
			return nil, trace.BadParameter("address entries must be objects, found %T", element)
		}
		items = append(items, Address{
			Formatted:     stringField(m, "formatted"),
			StreetAddress: stringField(m, "streetAddress"),
			Locality:      stringField(m, "locality"),
			Region:        stringField(m, "region"),
			PostalCode:    stringField(m, "postalCode"),
			Country:       stringField(m, "country"),
			Type:          stringField(m, "type"),
			Primary:       boolField(m, "primary"),
		})
	}
	list, err := NewMultiValued(items)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &list, nil
}

func parseMembers(raw []any) ([]GroupMember, error) {
	members := make([]GroupMember, 0, len(raw))
	for _, element := range raw {
		m, ok := element.(map[string]any)
		if !ok {
			return nil, trace.BadParameter("member entries must be objects, found %T", element)
		}
		value, err := NewResourceID(stringField(m, "value"))
		if err != nil {
			return nil, trace.Wrap(err)
		}
		member, err := NewGroupMember(value, stringField(m, "type"), stringField(m, "$ref"), stringField(m, "display"))
		if err != nil {
			return nil, trace.Wrap(err)
		}
		members = append(members, member)
	}
	return members, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// ResourceType returns the resource type discriminator.
func (r *Resource) ResourceType() string { return r.resourceType }

// Schemas returns the declared schema URIs in order. The first entry is
// the base schema.
func (r *Resource) Schemas() []SchemaURI { return r.schemas }

// ID returns the server-assigned resource id, if assigned.
func (r *Resource) ID() (ResourceID, bool) {
	return r.id, !r.id.IsZero()
}

// ExternalID returns the client-controlled correlation key, if set.
func (r *Resource) ExternalID() (string, bool) {
	return r.externalID, r.externalID != ""
}

// Meta returns the server-maintained resource metadata, or nil.
func (r *Resource) Meta() *Metadata { return r.meta }

// UserName returns the typed userName view, if present.
func (r *Resource) UserName() (UserName, bool) {
	if r.userName == nil {
		return UserName{}, false
	}
	return *r.userName, true
}

// Name returns the typed name view, if present.
func (r *Resource) Name() (*Name, bool) {
	return r.name, r.name != nil
}

// DisplayName returns the display name, if present.
func (r *Resource) DisplayName() (string, bool) {
	if r.displayName == nil {
		return "", false
	}
	return *r.displayName, true
}

// Active returns the active flag, if present.
func (r *Resource) Active() (bool, bool) {
	if r.active == nil {
		return false, false
	}
	return *r.active, true
}

// Emails returns the typed emails view, if present.
func (r *Resource) Emails() (*MultiValued[Email], bool) {
	return r.emails, r.emails != nil
}

// PhoneNumbers returns the typed phoneNumbers view, if present.
func (r *Resource) PhoneNumbers() (*MultiValued[PhoneNumber], bool) {
	return r.phoneNumbers, r.phoneNumbers != nil
}

// Addresses returns the typed addresses view, if present.
func (r *Resource) Addresses() (*MultiValued[Address], bool) {
	return r.addresses, r.addresses != nil
}

// Members returns the group membership view. Nil for non-group resources.
func (r *Resource) Members() []GroupMember { return r.members }

// Attribute returns the raw wire value of a schema-defined attribute,
// case-insensitively.
func (r *Resource) Attribute(name string) (any, bool) {
	if value, ok := r.attributes[name]; ok {
		return value, true
	}
	for key, value := range r.attributes {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

// Extension returns the payload of the given extension schema, if present.
func (r *Resource) Extension(uri string) (map[string]any, bool) {
	payload, ok := r.attributes[uri].(map[string]any)
	return payload, ok
}

// SetID assigns the server-generated resource id. Provider use only.
func (r *Resource) SetID(id ResourceID) {
	r.id = id
}

// SetMeta replaces the server-maintained metadata. Provider use only.
func (r *Resource) SetMeta(meta Metadata) {
	r.meta = &meta
}

// ToAttributeSet flattens the resource back into its wire form: the header
// fields merged over the attribute map.
func (r *Resource) ToAttributeSet() AttributeSet {
	out := r.attributes.Clone()
	// Scrub anything that would collide with the resource header.
	for _, reserved := range reservedAttributeNames {
		delete(out, reserved)
	}

	uris := make([]any, 0, len(r.schemas))
	for _, uri := range r.schemas {
		uris = append(uris, uri.String())
	}
	out[AttributeSchemas] = uris
	if !r.id.IsZero() {
		out[AttributeID] = r.id.String()
	}
	if r.externalID != "" {
		out[AttributeExternalID] = r.externalID
	}
	if meta := metadataToWire(r.meta); meta != nil {
		out[AttributeMeta] = meta
	}
	return out
}

// MarshalJSON flattens and formats the resource as a JSON object.
func (r *Resource) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(map[string]any(r.ToAttributeSet()))
	if err != nil {
		return nil, trace.Wrap(err, "marshaling SCIM resource")
	}
	return data, nil
}

// CanonicalJSON serializes the resource for version computation: object
// keys sorted lexicographically, with meta.version and meta.lastModified
// elided so the version is a fixed point of the content.
func (r *Resource) CanonicalJSON() ([]byte, error) {
	out := r.ToAttributeSet()
	if meta, ok := out[AttributeMeta].(map[string]any); ok {
		delete(meta, "version")
		delete(meta, "lastModified")
	}
	data, err := json.Marshal(map[string]any(out))
	if err != nil {
		return nil, trace.Wrap(err, "serializing SCIM resource for versioning")
	}
	return data, nil
}

// Clone returns a deep copy of the resource.
func (r *Resource) Clone() *Resource {
	out := *r
	out.attributes = r.attributes.Clone()
	if r.meta != nil {
		meta := *r.meta
		out.meta = &meta
	}
	out.schemas = append([]SchemaURI(nil), r.schemas...)
	out.members = append([]GroupMember(nil), r.members...)
	return &out
}
