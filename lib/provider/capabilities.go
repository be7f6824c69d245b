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

package provider

import "context"

// BulkCapabilities describes a provider's bulk operation support.
type BulkCapabilities struct {
	Supported      bool
	MaxOperations  int
	MaxPayloadSize int
}

// PaginationCapabilities describes a provider's pagination support.
type PaginationCapabilities struct {
	Supported       bool
	DefaultPageSize int
	MaxPageSize     int
}

// Capabilities is what a provider can do beyond the mandatory contract. The
// server synthesizes the ServiceProviderConfig discovery document from it.
type Capabilities struct {
	Bulk             BulkCapabilities
	Pagination       PaginationCapabilities
	ETag             bool
	Patch            bool
	ChangePassword   bool
	Sort             bool
	FilterMaxResults int
}

// Introspector is implemented by providers that can report their
// capabilities. Providers without it are assumed to have the defaults.
type Introspector interface {
	Capabilities(ctx context.Context) (*Capabilities, error)
}

// DefaultCapabilities are the capabilities assumed for providers that do
// not implement Introspector: versioning and PATCH are part of the
// mandatory contract, everything optional is off.
func DefaultCapabilities() *Capabilities {
	return &Capabilities{
		ETag:  true,
		Patch: true,
		Pagination: PaginationCapabilities{
			Supported:       true,
			DefaultPageSize: 100,
			MaxPageSize:     1000,
		},
		FilterMaxResults: 200,
	}
}

// DiscoverCapabilities resolves a provider's capabilities, falling back to
// the defaults when the provider does not introspect.
func DiscoverCapabilities(ctx context.Context, p Provider) (*Capabilities, error) {
	if introspector, ok := p.(Introspector); ok {
		return introspector.Capabilities(ctx)
	}
	return DefaultCapabilities(), nil
}
