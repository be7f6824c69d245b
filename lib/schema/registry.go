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
	"strings"

	"github.com/gravitational/trace"

	"github.com/gravitational/scim"
)

// Registry holds every schema the server knows about, plus the mapping from
// resource type names to their base schemas. A Registry is immutable after
// construction and safe for concurrent use.
type Registry struct {
	schemas map[string]Schema
	ordered []string
	// resourceTypes maps a resource type name ("User", "Group", custom) to
	// the URI of its base schema.
	resourceTypes map[string]string
}

// RegistryOption customizes a Registry at construction time.
type RegistryOption func(*Registry) error

// WithSchema adds an extension or custom schema to the registry.
func WithSchema(s Schema) RegistryOption {
	return func(r *Registry) error {
		return trace.Wrap(r.add(s))
	}
}

// WithResourceType binds a resource type name to its base schema. The
// schema must be registered as well, either built-in or via WithSchema.
func WithResourceType(name, baseSchemaURI string) RegistryOption {
	return func(r *Registry) error {
		if name == "" {
			return trace.BadParameter("missing resource type name")
		}
		r.resourceTypes[name] = baseSchemaURI
		return nil
	}
}

// NewRegistry builds a registry pre-loaded with the core User and Group
// schemas, the enterprise User extension, and the standard User/Group
// resource type bindings.
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		schemas:       make(map[string]Schema),
		resourceTypes: make(map[string]string),
	}
	for _, s := range []Schema{CoreUserSchema(), CoreGroupSchema(), EnterpriseUserExtension()} {
		if err := r.add(s); err != nil {
			return nil, trace.Wrap(err)
		}
	}
	r.resourceTypes[scim.ResourceTypeUser] = CoreUserSchema().ID
	r.resourceTypes[scim.ResourceTypeGroup] = CoreGroupSchema().ID

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, trace.Wrap(err)
		}
	}

	for name, uri := range r.resourceTypes {
		if _, ok := r.schemas[uri]; !ok {
			return nil, trace.BadParameter("resource type %q is bound to unregistered schema %q", name, uri)
		}
	}
	return r, nil
}

func (r *Registry) add(s Schema) error {
	if s.ID == "" {
		return trace.BadParameter("schema is missing an ID")
	}
	if !IsSchemaURN(s.ID) {
		return trace.BadParameter("schema ID %q is not a valid URN", s.ID)
	}
	if _, exists := r.schemas[s.ID]; exists {
		return trace.AlreadyExists("schema %q is already registered", s.ID)
	}
	r.schemas[s.ID] = s
	r.ordered = append(r.ordered, s.ID)
	return nil
}

// Get looks up a schema by URI.
func (r *Registry) Get(uri string) (Schema, bool) {
	s, ok := r.schemas[uri]
	return s, ok
}

// UserSchema returns the core User schema. Always present.
func (r *Registry) UserSchema() Schema {
	return r.schemas[CoreUserSchema().ID]
}

// GroupSchema returns the core Group schema. Always present.
func (r *Registry) GroupSchema() Schema {
	return r.schemas[CoreGroupSchema().ID]
}

// BaseSchemaFor resolves the base schema of the given resource type.
func (r *Registry) BaseSchemaFor(resourceType string) (Schema, bool) {
	uri, ok := r.resourceTypes[resourceType]
	if !ok {
		return Schema{}, false
	}
	s, ok := r.schemas[uri]
	return s, ok
}

// Schemas returns every registered schema in registration order, for the
// /Schemas discovery representation.
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.ordered))
	for _, uri := range r.ordered {
		out = append(out, r.schemas[uri])
	}
	return out
}

// IsSchemaURN reports whether s is a URN-shaped string: "urn:" followed by
// a non-empty namespace identifier and a non-empty namespace-specific part.
func IsSchemaURN(s string) bool {
	const prefix = "urn:"
	if !strings.HasPrefix(strings.ToLower(s), prefix) {
		return false
	}
	rest := s[len(prefix):]
	nid, nss, found := strings.Cut(rest, ":")
	return found && nid != "" && nss != ""
}
