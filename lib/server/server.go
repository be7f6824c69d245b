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

// Package server is the SCIM composition root: it dispatches operations to
// a storage provider, gates them on per-resource-type registrations, builds
// reference URLs, and synthesizes the RFC 7644 discovery documents.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gravitational/trace"

	"github.com/gravitational/scim"
	"github.com/gravitational/scim/lib/patch"
	"github.com/gravitational/scim/lib/provider"
	"github.com/gravitational/scim/lib/schema"
	"github.com/gravitational/scim/lib/tenant"
	"github.com/gravitational/scim/lib/types"
	"github.com/gravitational/scim/lib/version"
)

// TenantStrategy selects how tenant identity shapes the URLs the server
// writes into $ref and meta.location fields.
type TenantStrategy string

const (
	// TenantStrategySingle serves one implicit tenant under the base URL.
	TenantStrategySingle TenantStrategy = "single-tenant"
	// TenantStrategySubdomain prefixes the base host with the tenant id.
	TenantStrategySubdomain TenantStrategy = "subdomain"
	// TenantStrategyPathBased inserts the tenant id into the URL path.
	TenantStrategyPathBased TenantStrategy = "path-based"
)

// Config holds the SCIM server configuration.
type Config struct {
	// Provider is the storage backend. Required.
	Provider provider.Provider
	// Registry validates resources and feeds /Schemas discovery. Required.
	Registry *schema.Registry
	// BaseURL is the absolute URL the service is reachable under, without a
	// trailing slash. Required.
	BaseURL string
	// TenantStrategy controls reference URL construction. Defaults to
	// single-tenant.
	TenantStrategy TenantStrategy
	// Logger emits server diagnostics.
	Logger *slog.Logger

	baseURL *url.URL
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Provider == nil {
		return trace.BadParameter("server Config missing Provider")
	}
	if c.Registry == nil {
		return trace.BadParameter("server Config missing Registry")
	}
	if c.BaseURL == "" {
		return trace.BadParameter("server Config missing BaseURL")
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return trace.BadParameter("invalid BaseURL %q: %v", c.BaseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return trace.BadParameter("BaseURL %q must be absolute", c.BaseURL)
	}
	c.baseURL = parsed

	switch c.TenantStrategy {
	case "":
		c.TenantStrategy = TenantStrategySingle
	case TenantStrategySingle, TenantStrategySubdomain, TenantStrategyPathBased:
	default:
		return trace.BadParameter("unknown tenant strategy %q", c.TenantStrategy)
	}
	if c.Logger == nil {
		c.Logger = slog.With(scim.ComponentKey, scim.ComponentServer)
	}
	return nil
}

type registration struct {
	handler *ResourceHandler
	allowed map[Operation]bool
}

// Server dispatches SCIM operations against registered resource types.
// Register every resource type before serving requests; registration is not
// synchronized against concurrent dispatch.
type Server struct {
	cfg   Config
	types map[string]*registration
}

// New builds a Server from its configuration.
func New(cfg Config) (*Server, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Server{
		cfg:   cfg,
		types: make(map[string]*registration),
	}, nil
}

// RegisterResourceType makes a resource type dispatchable. An empty allowed
// set enables every operation.
func (s *Server) RegisterResourceType(name string, handler *ResourceHandler, allowed ...Operation) error {
	if name == "" {
		return trace.BadParameter("missing resource type name")
	}
	if handler == nil {
		return trace.BadParameter("missing resource handler for %q", name)
	}
	if _, exists := s.types[name]; exists {
		return trace.AlreadyExists("resource type %q is already registered", name)
	}
	if err := handler.Check(s.cfg.Registry); err != nil {
		return trace.Wrap(err)
	}
	base, ok := s.cfg.Registry.BaseSchemaFor(name)
	if !ok {
		return trace.BadParameter("resource type %q has no base schema in the registry", name)
	}
	if base.ID != handler.SchemaURI {
		return trace.BadParameter("resource type %q is bound to schema %q, but the handler references %q", name, base.ID, handler.SchemaURI)
	}

	ops := make(map[Operation]bool, len(allowed))
	if len(allowed) == 0 {
		allowed = AllOperations
	}
	for _, op := range allowed {
		ops[op] = true
	}
	s.types[name] = &registration{handler: handler, allowed: ops}

	s.cfg.Logger.Info("Registered SCIM resource type",
		"resource_type", name,
		"schema", handler.SchemaURI,
	)
	return nil
}

// registration resolves a resource type and checks that the operation is
// enabled for it.
func (s *Server) registration(resourceType string, op Operation) (*registration, error) {
	reg, ok := s.types[resourceType]
	if !ok {
		return nil, trace.BadParameter("resource type %q is not registered", resourceType)
	}
	if !reg.allowed[op] {
		return nil, trace.BadParameter("operation %q is not enabled for resource type %q", op, resourceType)
	}
	return reg, nil
}

// checkTenant enforces the tenant strategy: multi-tenant URL schemes cannot
// build references without a tenant.
func (s *Server) checkTenant(reqCtx *tenant.Context) error {
	if s.cfg.TenantStrategy == TenantStrategySingle {
		return nil
	}
	if reqCtx == nil || reqCtx.Tenant == nil {
		return trace.BadParameter("tenant strategy %q requires a tenant context", s.cfg.TenantStrategy)
	}
	return nil
}

// ResourceURL builds the canonical URL of a resource under the configured
// tenant strategy.
func (s *Server) ResourceURL(reqCtx *tenant.Context, resourceType, id string) (string, error) {
	endpoint := resourceType + "s"
	switch s.cfg.TenantStrategy {
	case TenantStrategySingle:
		return fmt.Sprintf("%s/v2/%s/%s", s.cfg.BaseURL, endpoint, id), nil
	case TenantStrategySubdomain:
		if reqCtx == nil || reqCtx.Tenant == nil {
			return "", trace.BadParameter("tenant strategy %q requires a tenant context", s.cfg.TenantStrategy)
		}
		return fmt.Sprintf("%s://%s.%s/v2/%s/%s", s.cfg.baseURL.Scheme, reqCtx.Tenant.TenantID, s.cfg.baseURL.Host, endpoint, id), nil
	case TenantStrategyPathBased:
		if reqCtx == nil || reqCtx.Tenant == nil {
			return "", trace.BadParameter("tenant strategy %q requires a tenant context", s.cfg.TenantStrategy)
		}
		return fmt.Sprintf("%s/%s/v2/%s/%s", s.cfg.BaseURL, reqCtx.Tenant.TenantID, endpoint, id), nil
	}
	return "", trace.BadParameter("unknown tenant strategy %q", s.cfg.TenantStrategy)
}

// annotate decorates a provider-returned resource with the reference URLs
// only the server can know: meta.location and the $ref of each member.
// The stored state and its version are not affected.
func (s *Server) annotate(vr *provider.VersionedResource, reqCtx *tenant.Context, resourceType string) (*provider.VersionedResource, error) {
	res := vr.Resource
	id, ok := res.ID()
	if !ok {
		return vr, nil
	}
	location, err := s.ResourceURL(reqCtx, resourceType, id.String())
	if err != nil {
		return nil, trace.Wrap(err)
	}

	attrs := res.ToAttributeSet()
	if meta, ok := attrs[types.AttributeMeta].(map[string]any); ok {
		meta["location"] = location
	}
	if members, ok := attrs["members"].([]any); ok {
		for _, element := range members {
			member, ok := element.(map[string]any)
			if !ok {
				continue
			}
			value, _ := member["value"].(string)
			if value == "" {
				continue
			}
			memberType, _ := member["type"].(string)
			if memberType == "" {
				memberType = scim.ResourceTypeUser
			}
			ref, err := s.ResourceURL(reqCtx, memberType, value)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			member["$ref"] = ref
		}
	}
	if enterprise, ok := attrs[scim.EnterpriseUserSchema].(map[string]any); ok {
		if manager, ok := enterprise["manager"].(map[string]any); ok {
			if value, _ := manager["value"].(string); value != "" {
				ref, err := s.ResourceURL(reqCtx, scim.ResourceTypeUser, value)
				if err != nil {
					return nil, trace.Wrap(err)
				}
				manager["$ref"] = ref
			}
		}
	}

	annotated, err := types.FromAttributeSet(s.cfg.Registry, resourceType, attrs, schema.OpUpdate)
	if err != nil {
		return nil, trace.Wrap(err, "annotating resource references")
	}
	return &provider.VersionedResource{Resource: annotated, Version: vr.Version}, nil
}

// CreateResource validates, stores and annotates a new resource.
func (s *Server) CreateResource(ctx context.Context, resourceType string, attrs types.AttributeSet, reqCtx *tenant.Context) (*provider.VersionedResource, error) {
	if _, err := s.registration(resourceType, OperationCreate); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.checkTenant(reqCtx); err != nil {
		return nil, trace.Wrap(err)
	}
	created, err := s.cfg.Provider.CreateResource(ctx, resourceType, attrs, reqCtx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	annotated, err := s.annotate(created, reqCtx, resourceType)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	id, _ := annotated.Resource.ID()
	s.cfg.Logger.InfoContext(ctx, "Created SCIM resource",
		"resource_type", resourceType,
		"resource_id", id.String(),
	)
	return annotated, nil
}

// GetResource fetches and annotates a resource.
func (s *Server) GetResource(ctx context.Context, resourceType, id string, reqCtx *tenant.Context) (*provider.VersionedResource, error) {
	if _, err := s.registration(resourceType, OperationRead); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.checkTenant(reqCtx); err != nil {
		return nil, trace.Wrap(err)
	}
	vr, err := s.cfg.Provider.GetResource(ctx, resourceType, id, reqCtx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	annotated, err := s.annotate(vr, reqCtx, resourceType)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return annotated, nil
}

// UpdateResource replaces a resource, optionally guarded by an expected
// version.
func (s *Server) UpdateResource(ctx context.Context, resourceType, id string, attrs types.AttributeSet, expected *version.Raw, reqCtx *tenant.Context) (*provider.VersionedResource, error) {
	if _, err := s.registration(resourceType, OperationUpdate); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.checkTenant(reqCtx); err != nil {
		return nil, trace.Wrap(err)
	}
	updated, err := s.cfg.Provider.UpdateResource(ctx, resourceType, id, attrs, expected, reqCtx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	annotated, err := s.annotate(updated, reqCtx, resourceType)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return annotated, nil
}

// PatchResource applies a PATCH document, optionally guarded by an expected
// version.
func (s *Server) PatchResource(ctx context.Context, resourceType, id string, req *patch.Request, expected *version.Raw, reqCtx *tenant.Context) (*provider.VersionedResource, error) {
	if _, err := s.registration(resourceType, OperationPatch); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.checkTenant(reqCtx); err != nil {
		return nil, trace.Wrap(err)
	}
	patched, err := s.cfg.Provider.PatchResource(ctx, resourceType, id, req, expected, reqCtx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	annotated, err := s.annotate(patched, reqCtx, resourceType)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return annotated, nil
}

// DeleteResource removes a resource, optionally guarded by an expected
// version.
func (s *Server) DeleteResource(ctx context.Context, resourceType, id string, expected *version.Raw, reqCtx *tenant.Context) error {
	if _, err := s.registration(resourceType, OperationDelete); err != nil {
		return trace.Wrap(err)
	}
	if err := s.checkTenant(reqCtx); err != nil {
		return trace.Wrap(err)
	}
	if err := s.cfg.Provider.DeleteResource(ctx, resourceType, id, expected, reqCtx); err != nil {
		return trace.Wrap(err)
	}
	s.cfg.Logger.InfoContext(ctx, "Deleted SCIM resource",
		"resource_type", resourceType,
		"resource_id", id,
	)
	return nil
}

// ListResources enumerates resources and annotates every result.
func (s *Server) ListResources(ctx context.Context, resourceType string, query *provider.ListQuery, reqCtx *tenant.Context) (*provider.Page, error) {
	if _, err := s.registration(resourceType, OperationList); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.checkTenant(reqCtx); err != nil {
		return nil, trace.Wrap(err)
	}
	page, err := s.cfg.Provider.ListResources(ctx, resourceType, query, reqCtx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	for i, vr := range page.Resources {
		annotated, err := s.annotate(vr, reqCtx, resourceType)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		page.Resources[i] = annotated
	}
	return page, nil
}

// FindResourcesByAttribute searches by attribute equality.
func (s *Server) FindResourcesByAttribute(ctx context.Context, resourceType, attrName, value string, reqCtx *tenant.Context) ([]*provider.VersionedResource, error) {
	if _, err := s.registration(resourceType, OperationSearch); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.checkTenant(reqCtx); err != nil {
		return nil, trace.Wrap(err)
	}
	found, err := s.cfg.Provider.FindResourcesByAttribute(ctx, resourceType, attrName, value, reqCtx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	for i, vr := range found {
		annotated, err := s.annotate(vr, reqCtx, resourceType)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		found[i] = annotated
	}
	return found, nil
}

// ConditionalUpdate replaces a resource only when the expected version
// matches, reporting the outcome in-band.
func (s *Server) ConditionalUpdate(ctx context.Context, resourceType, id string, attrs types.AttributeSet, expected version.Raw, reqCtx *tenant.Context) (*provider.ConditionalResult[*provider.VersionedResource], error) {
	if _, err := s.registration(resourceType, OperationUpdate); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.checkTenant(reqCtx); err != nil {
		return nil, trace.Wrap(err)
	}
	result, err := s.cfg.Provider.ConditionalUpdate(ctx, resourceType, id, attrs, expected, reqCtx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if result.Status == provider.ConditionalSuccess {
		annotated, err := s.annotate(result.Value, reqCtx, resourceType)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		result.Value = annotated
	}
	return result, nil
}

// ConditionalDelete removes a resource only when the expected version
// matches, reporting the outcome in-band.
func (s *Server) ConditionalDelete(ctx context.Context, resourceType, id string, expected version.Raw, reqCtx *tenant.Context) (*provider.ConditionalResult[struct{}], error) {
	if _, err := s.registration(resourceType, OperationDelete); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.checkTenant(reqCtx); err != nil {
		return nil, trace.Wrap(err)
	}
	result, err := s.cfg.Provider.ConditionalDelete(ctx, resourceType, id, expected, reqCtx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return result, nil
}

// ResourceAttribute extracts an attribute from a stored resource, going
// through the handler's getter when one is registered for the path.
func (s *Server) ResourceAttribute(ctx context.Context, resourceType, id, path string, reqCtx *tenant.Context) (any, error) {
	reg, err := s.registration(resourceType, OperationRead)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	vr, err := s.GetResource(ctx, resourceType, id, reqCtx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if getter, ok := reg.handler.Getter(path); ok {
		value, found := getter(vr.Resource)
		if !found {
			return nil, trace.NotFound("resource %q has no value for %q", id, path)
		}
		return value, nil
	}
	value, found := vr.Resource.Attribute(path)
	if !found {
		return nil, trace.NotFound("resource %q has no value for %q", id, path)
	}
	return value, nil
}

// InvokeMethod runs a handler-provided custom method against a stored
// resource.
func (s *Server) InvokeMethod(ctx context.Context, resourceType, id, method string, reqCtx *tenant.Context) (any, error) {
	reg, err := s.registration(resourceType, OperationRead)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	fn, ok := reg.handler.Method(method)
	if !ok {
		return nil, trace.BadParameter("resource type %q has no method %q", resourceType, method)
	}
	vr, err := s.GetResource(ctx, resourceType, id, reqCtx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	result, err := fn(ctx, vr.Resource)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return result, nil
}

// MarshalListResponse wraps a page of resources in the SCIM ListResponse
// message envelope.
func MarshalListResponse(page *provider.Page) types.ListResponse {
	out := types.ListResponse{
		Schemas:      []string{scim.ListResponseSchema},
		TotalResults: page.TotalResults,
		StartIndex:   page.StartIndex,
		ItemsPerPage: len(page.Resources),
	}
	for _, vr := range page.Resources {
		out.Resources = append(out.Resources, vr.Resource.ToAttributeSet())
	}
	return out
}
