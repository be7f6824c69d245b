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
	"sort"

	scimschema "github.com/elimity-com/scim/schema"
	"github.com/gravitational/trace"

	"github.com/gravitational/scim"
	"github.com/gravitational/scim/lib/schema"
)

// UserSpec is the explicit configuration record for building a User
// resource. All validation runs in Build; the zero value of each field
// means "absent".
type UserSpec struct {
	UserName     string
	ExternalID   string
	DisplayName  string
	Active       *bool
	Name         *Name
	Emails       []Email
	PhoneNumbers []PhoneNumber
	Addresses    []Address
	// Extensions maps extension schema URNs to their payloads. Every URN
	// must be registered.
	Extensions map[string]map[string]any
}

// Build runs every value object validation and assembles a User resource,
// or returns an aggregate of all collected errors.
func (s UserSpec) Build(registry *schema.Registry) (*Resource, error) {
	var errs []error

	if _, err := NewUserName(s.UserName); err != nil {
		errs = append(errs, err)
	}
	if s.Name != nil {
		if err := s.Name.Check(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(s.Emails) > 0 {
		if _, err := NewMultiValued(s.Emails); err != nil {
			errs = append(errs, err)
		}
	}
	if len(s.PhoneNumbers) > 0 {
		if _, err := NewMultiValued(s.PhoneNumbers); err != nil {
			errs = append(errs, err)
		}
		for _, number := range s.PhoneNumbers {
			if err := number.Check(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(s.Addresses) > 0 {
		if _, err := NewMultiValued(s.Addresses); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, trace.NewAggregate(errs...)
	}

	attrs := AttributeSet{
		"userName": s.UserName,
	}
	if s.ExternalID != "" {
		attrs[AttributeExternalID] = s.ExternalID
	}
	if s.DisplayName != "" {
		attrs["displayName"] = s.DisplayName
	}
	if s.Active != nil {
		attrs["active"] = *s.Active
	}
	if s.Name != nil {
		attrs["name"] = toWireObject(s.Name)
	}
	if len(s.Emails) > 0 {
		attrs["emails"] = toWireList(s.Emails)
	}
	if len(s.PhoneNumbers) > 0 {
		attrs["phoneNumbers"] = toWireList(s.PhoneNumbers)
	}
	if len(s.Addresses) > 0 {
		attrs["addresses"] = toWireList(s.Addresses)
	}

	schemas := []any{scimschema.UserSchema}
	for _, uri := range sortedKeys(s.Extensions) {
		schemas = append(schemas, uri)
		attrs[uri] = cloneValue(s.Extensions[uri]).(map[string]any)
	}
	attrs[AttributeSchemas] = schemas

	r, err := FromAttributeSet(registry, scim.ResourceTypeUser, attrs, schema.OpCreate)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return r, nil
}

// GroupSpec is the explicit configuration record for building a Group
// resource.
type GroupSpec struct {
	DisplayName string
	ExternalID  string
	Members     []GroupMember
}

// Build runs every value object validation and assembles a Group resource,
// or returns an aggregate of all collected errors.
func (s GroupSpec) Build(registry *schema.Registry) (*Resource, error) {
	var errs []error
	if s.DisplayName == "" {
		errs = append(errs, trace.BadParameter("displayName must not be empty"))
	}
	for _, member := range s.Members {
		if member.Value.IsZero() {
			errs = append(errs, trace.BadParameter("group member value must not be empty"))
		}
	}
	if len(errs) > 0 {
		return nil, trace.NewAggregate(errs...)
	}

	attrs := AttributeSet{
		AttributeSchemas: []any{scimschema.GroupSchema},
		"displayName":    s.DisplayName,
	}
	if s.ExternalID != "" {
		attrs[AttributeExternalID] = s.ExternalID
	}
	if len(s.Members) > 0 {
		attrs["members"] = toWireList(s.Members)
	}

	r, err := FromAttributeSet(registry, scim.ResourceTypeGroup, attrs, schema.OpCreate)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return r, nil
}

// toWireObject round-trips a typed value through JSON into the generic
// attribute representation the validators understand.
func toWireObject(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func toWireList[T any](items []T) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, any(toWireObject(item)))
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
