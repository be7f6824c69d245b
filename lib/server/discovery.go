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
	"sort"

	"github.com/gravitational/trace"

	"github.com/gravitational/scim"
	"github.com/gravitational/scim/lib/provider"
	"github.com/gravitational/scim/lib/schema"
)

// FeatureSupported is the {"supported": bool} leaf of the
// ServiceProviderConfig document.
type FeatureSupported struct {
	Supported bool `json:"supported"`
}

// BulkConfig describes bulk operation support in ServiceProviderConfig.
type BulkConfig struct {
	Supported      bool `json:"supported"`
	MaxOperations  int  `json:"maxOperations"`
	MaxPayloadSize int  `json:"maxPayloadSize"`
}

// FilterConfig describes filter support in ServiceProviderConfig.
type FilterConfig struct {
	Supported  bool `json:"supported"`
	MaxResults int  `json:"maxResults"`
}

// AuthenticationScheme describes one authentication mechanism in
// ServiceProviderConfig. The core carries none; transports append theirs.
type AuthenticationScheme struct {
	Type             string `json:"type"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	SpecURI          string `json:"specUri,omitempty"`
	DocumentationURI string `json:"documentationUri,omitempty"`
	Primary          bool   `json:"primary,omitempty"`
}

// ServiceProviderConfig is the RFC 7644 Section 5 discovery document.
type ServiceProviderConfig struct {
	Schemas               []string               `json:"schemas"`
	DocumentationURI      string                 `json:"documentationUri,omitempty"`
	Patch                 FeatureSupported       `json:"patch"`
	Bulk                  BulkConfig             `json:"bulk"`
	Filter                FilterConfig           `json:"filter"`
	ChangePassword        FeatureSupported       `json:"changePassword"`
	Sort                  FeatureSupported       `json:"sort"`
	ETag                  FeatureSupported       `json:"etag"`
	AuthenticationSchemes []AuthenticationScheme `json:"authenticationSchemes"`
}

// SchemaExtensionDocument is one entry of a resource type's
// schemaExtensions list.
type SchemaExtensionDocument struct {
	Schema   string `json:"schema"`
	Required bool   `json:"required"`
}

// ResourceTypeDocument is the RFC 7644 Section 4 /ResourceTypes discovery
// representation of one registered resource type.
type ResourceTypeDocument struct {
	Schemas          []string                  `json:"schemas"`
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	Endpoint         string                    `json:"endpoint"`
	Schema           string                    `json:"schema"`
	SchemaExtensions []SchemaExtensionDocument `json:"schemaExtensions"`
}

// DiscoverCapabilities reports the server's static capabilities: what the
// core itself guarantees, independent of the provider behind it.
func (s *Server) DiscoverCapabilities() *provider.Capabilities {
	return provider.DefaultCapabilities()
}

// DiscoverCapabilitiesWithIntrospection merges the provider's advertised
// capabilities into the static ones.
func (s *Server) DiscoverCapabilitiesWithIntrospection(ctx context.Context) (*provider.Capabilities, error) {
	caps, err := provider.DiscoverCapabilities(ctx, s.cfg.Provider)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return caps, nil
}

// ServiceProviderConfig synthesizes the RFC 7644 Section 5 document from
// the provider's capabilities.
func (s *Server) ServiceProviderConfig(ctx context.Context) (*ServiceProviderConfig, error) {
	caps, err := s.DiscoverCapabilitiesWithIntrospection(ctx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &ServiceProviderConfig{
		Schemas: []string{scim.ServiceProviderConfigSchema},
		Patch:   FeatureSupported{Supported: caps.Patch},
		Bulk: BulkConfig{
			Supported:      caps.Bulk.Supported,
			MaxOperations:  caps.Bulk.MaxOperations,
			MaxPayloadSize: caps.Bulk.MaxPayloadSize,
		},
		Filter: FilterConfig{
			Supported:  true,
			MaxResults: caps.FilterMaxResults,
		},
		ChangePassword:        FeatureSupported{Supported: caps.ChangePassword},
		Sort:                  FeatureSupported{Supported: caps.Sort},
		ETag:                  FeatureSupported{Supported: caps.ETag},
		AuthenticationSchemes: []AuthenticationScheme{},
	}, nil
}

// SchemaDocuments returns every registered schema for /Schemas discovery.
func (s *Server) SchemaDocuments() []schema.Schema {
	return s.cfg.Registry.Schemas()
}

// ResourceTypes returns the /ResourceTypes discovery documents for every
// registered resource type, ordered by name.
func (s *Server) ResourceTypes() []ResourceTypeDocument {
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ResourceTypeDocument, 0, len(names))
	for _, name := range names {
		reg := s.types[name]
		extensions := make([]SchemaExtensionDocument, 0, len(reg.handler.SchemaExtensions))
		for _, uri := range reg.handler.SchemaExtensions {
			extensions = append(extensions, SchemaExtensionDocument{Schema: uri})
		}
		out = append(out, ResourceTypeDocument{
			Schemas:          []string{scim.ResourceTypeSchema},
			ID:               name,
			Name:             name,
			Endpoint:         "/" + name + "s",
			Schema:           reg.handler.SchemaURI,
			SchemaExtensions: extensions,
		})
	}
	return out
}
