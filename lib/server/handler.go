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
	"context"

	"github.com/gravitational/trace"

	"github.com/gravitational/scim/lib/schema"
	"github.com/gravitational/scim/lib/types"
)

// Operation identifies one of the dispatchable resource operations.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationList   Operation = "list"
	OperationSearch Operation = "search"
	OperationPatch  Operation = "patch"
)

// AllOperations enumerates every dispatchable operation.
var AllOperations = []Operation{
	OperationCreate,
	OperationRead,
	OperationUpdate,
	OperationDelete,
	OperationList,
	OperationSearch,
	OperationPatch,
}

// AttributeGetter extracts a derived value from a resource.
type AttributeGetter func(*types.Resource) (any, bool)

// CustomMethod is a named, handler-provided computation over a resource.
type CustomMethod func(context.Context, *types.Resource) (any, error)

// ResourceHandler bundles the per-resource-type wiring a server dispatches
// through. Handlers are stateless; all fields are optional except the base
// schema reference.
type ResourceHandler struct {
	// SchemaURI is the URN of the resource type's base schema.
	SchemaURI string
	// SchemaExtensions lists the URNs of extension schemas the resource
	// type accepts, surfaced through /ResourceTypes discovery.
	SchemaExtensions []string
	// AttributeGetters maps attribute paths to extraction functions for
	// derived or renamed attributes.
	AttributeGetters map[string]AttributeGetter
	// CustomMethods maps method names to handler-provided computations.
	CustomMethods map[string]CustomMethod
	// ColumnMappings maps attribute names to storage column names, for
	// providers backed by relational stores.
	ColumnMappings map[string]string
}

// Check validates the handler against the schema registry.
func (h *ResourceHandler) Check(registry *schema.Registry) error {
	if h.SchemaURI == "" {
		return trace.BadParameter("resource handler is missing a base schema URI")
	}
	if _, ok := registry.Get(h.SchemaURI); !ok {
		return trace.BadParameter("resource handler references unregistered schema %q", h.SchemaURI)
	}
	for _, uri := range h.SchemaExtensions {
		if _, ok := registry.Get(uri); !ok {
			return trace.BadParameter("resource handler references unregistered extension schema %q", uri)
		}
	}
	return nil
}

// Getter looks up an attribute getter by path.
func (h *ResourceHandler) Getter(path string) (AttributeGetter, bool) {
	getter, ok := h.AttributeGetters[path]
	return getter, ok
}

// Method looks up a custom method by name.
func (h *ResourceHandler) Method(name string) (CustomMethod, bool) {
	method, ok := h.CustomMethods[name]
	return method, ok
}

// Column resolves an attribute's storage column, defaulting to the
// attribute name itself.
func (h *ResourceHandler) Column(attribute string) string {
	if column, ok := h.ColumnMappings[attribute]; ok {
		return column
	}
	return attribute
}
