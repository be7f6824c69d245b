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

// Package memory is the reference storage provider: a mutex-guarded map
// store with per-tenant partitions. All mutations run under one lock, so
// conditional operations are linearizable per resource key.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/scim"
	"github.com/gravitational/scim/lib/patch"
	"github.com/gravitational/scim/lib/provider"
	"github.com/gravitational/scim/lib/schema"
	"github.com/gravitational/scim/lib/tenant"
	"github.com/gravitational/scim/lib/types"
	"github.com/gravitational/scim/lib/version"
)

// Config holds the memory provider configuration.
type Config struct {
	// Registry validates every stored resource. Required.
	Registry *schema.Registry
	// Clock supplies meta timestamps. Defaults to the wall clock.
	Clock clockwork.Clock
	// Logger emits provider diagnostics.
	Logger *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Registry == nil {
		return trace.BadParameter("memory provider Config missing Registry")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = slog.With(scim.ComponentKey, scim.ComponentProvider)
	}
	return nil
}

// Provider is an in-memory implementation of the storage contract. Safe for
// concurrent use.
type Provider struct {
	cfg Config

	mu      sync.RWMutex
	tenants map[string]*tenantData
}

type tenantData struct {
	// resources maps resource type to id to stored state.
	resources map[string]map[string]*stored
	// userNames indexes lowercased userName to resource id, enforcing the
	// case-insensitive server uniqueness of userName within a tenant.
	userNames map[string]string
}

type stored struct {
	resource *types.Resource
	version  version.Raw
}

// New builds a memory provider.
func New(cfg Config) (*Provider, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Provider{
		cfg:     cfg,
		tenants: make(map[string]*tenantData),
	}, nil
}

// effective resolves a possibly-nil request context to the single-tenant
// default.
func effective(reqCtx *tenant.Context) *tenant.Context {
	if reqCtx == nil {
		return &tenant.Context{}
	}
	return reqCtx
}

func (p *Provider) tenantLocked(key string) *tenantData {
	td, ok := p.tenants[key]
	if !ok {
		td = &tenantData{
			resources: make(map[string]map[string]*stored),
			userNames: make(map[string]string),
		}
		p.tenants[key] = td
	}
	return td
}

func (td *tenantData) lookup(resourceType, id string) (*stored, bool) {
	byID, ok := td.resources[resourceType]
	if !ok {
		return nil, false
	}
	s, ok := byID[id]
	return s, ok
}

func (td *tenantData) put(resourceType, id string, s *stored) {
	byID, ok := td.resources[resourceType]
	if !ok {
		byID = make(map[string]*stored)
		td.resources[resourceType] = byID
	}
	byID[id] = s
}

func contentVersion(res *types.Resource) (version.Raw, error) {
	canonical, err := res.CanonicalJSON()
	if err != nil {
		return version.Raw{}, trace.Wrap(err)
	}
	return version.FromContent(canonical), nil
}

func userNameKey(res *types.Resource) string {
	if userName, ok := res.UserName(); ok {
		return strings.ToLower(userName.String())
	}
	return ""
}

func checkLimit(perms tenant.Permissions, resourceType string, current int) error {
	var limit *int
	switch resourceType {
	case scim.ResourceTypeUser:
		limit = perms.MaxUsers
	case scim.ResourceTypeGroup:
		limit = perms.MaxGroups
	}
	if limit != nil && current >= *limit {
		return trace.LimitExceeded("tenant limit of %d %s resources reached", *limit, resourceType)
	}
	return nil
}

// CreateResource implements provider.Provider.
func (p *Provider) CreateResource(ctx context.Context, resourceType string, attrs types.AttributeSet, reqCtx *tenant.Context) (*provider.VersionedResource, error) {
	reqCtx = effective(reqCtx)
	perms := reqCtx.Permissions()
	if !perms.CanCreate {
		return nil, trace.AccessDenied("tenant is not allowed to create resources")
	}

	res, err := types.FromAttributeSet(p.cfg.Registry, resourceType, attrs, schema.OpCreate)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	td := p.tenantLocked(reqCtx.StorageTenant())
	if err := checkLimit(perms, resourceType, len(td.resources[resourceType])); err != nil {
		return nil, trace.Wrap(err)
	}
	if key := userNameKey(res); key != "" {
		if takenBy, taken := td.userNames[key]; taken {
			return nil, trace.AlreadyExists("userName %q is already taken by resource %v", key, takenBy)
		}
	}

	id, err := types.NewResourceID(uuid.NewString())
	if err != nil {
		return nil, trace.Wrap(err)
	}
	res.SetID(id)

	now := p.cfg.Clock.Now().UTC()
	res.SetMeta(types.Metadata{
		ResourceType: resourceType,
		Created:      &now,
		LastModified: &now,
	})
	ver, err := contentVersion(res)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	meta := *res.Meta()
	meta.Version = ver.String()
	res.SetMeta(meta)

	td.put(resourceType, id.String(), &stored{resource: res.Clone(), version: ver})
	if key := userNameKey(res); key != "" {
		td.userNames[key] = id.String()
	}

	p.cfg.Logger.DebugContext(ctx, "Created resource",
		"resource_type", resourceType,
		"resource_id", id.String(),
		"tenant", reqCtx.StorageTenant(),
	)
	return &provider.VersionedResource{Resource: res, Version: ver}, nil
}

// GetResource implements provider.Provider.
func (p *Provider) GetResource(ctx context.Context, resourceType, id string, reqCtx *tenant.Context) (*provider.VersionedResource, error) {
	reqCtx = effective(reqCtx)
	if !reqCtx.Permissions().CanRead {
		return nil, trace.AccessDenied("tenant is not allowed to read resources")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	td, ok := p.tenants[reqCtx.StorageTenant()]
	if !ok {
		return nil, trace.NotFound("%s %q not found", resourceType, id)
	}
	s, ok := td.lookup(resourceType, id)
	if !ok {
		return nil, trace.NotFound("%s %q not found", resourceType, id)
	}
	return &provider.VersionedResource{Resource: s.resource.Clone(), Version: s.version}, nil
}

// UpdateResource implements provider.Provider.
func (p *Provider) UpdateResource(ctx context.Context, resourceType, id string, attrs types.AttributeSet, expected *version.Raw, reqCtx *tenant.Context) (*provider.VersionedResource, error) {
	reqCtx = effective(reqCtx)
	if !reqCtx.Permissions().CanUpdate {
		return nil, trace.AccessDenied("tenant is not allowed to update resources")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	td := p.tenantLocked(reqCtx.StorageTenant())
	cur, ok := td.lookup(resourceType, id)
	if !ok {
		return nil, trace.NotFound("%s %q not found", resourceType, id)
	}
	if expected != nil && !expected.Equal(cur.version) {
		return nil, version.NewConflict(*expected, cur.version).Error()
	}
	updated, err := p.replaceLocked(td, cur, resourceType, id, attrs)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &provider.VersionedResource{Resource: updated.resource.Clone(), Version: updated.version}, nil
}

// replaceLocked validates a replacement payload against the stored state
// and swaps it in, preserving creation metadata. Callers hold the write
// lock and have already settled version preconditions.
func (p *Provider) replaceLocked(td *tenantData, cur *stored, resourceType, id string, attrs types.AttributeSet) (*stored, error) {
	res, err := types.FromAttributeSet(p.cfg.Registry, resourceType, attrs, schema.OpUpdate)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if rid, ok := res.ID(); ok && rid.String() != id {
		return nil, trace.BadParameter("resource id is immutable: payload says %q, stored resource is %q", rid.String(), id)
	}
	return p.storeLocked(td, cur, resourceType, id, res)
}

// storeLocked persists a fully-built replacement resource: it re-checks the
// userName uniqueness index, recomputes the content version and refreshes
// metadata. Content-identical replacements are absorbed without bumping
// lastModified.
func (p *Provider) storeLocked(td *tenantData, cur *stored, resourceType, id string, res *types.Resource) (*stored, error) {
	oldKey := userNameKey(cur.resource)
	newKey := userNameKey(res)
	if newKey != "" && newKey != oldKey {
		if takenBy, taken := td.userNames[newKey]; taken && takenBy != id {
			return nil, trace.AlreadyExists("userName %q is already taken by resource %v", newKey, takenBy)
		}
	}

	rid, err := types.NewResourceID(id)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	res.SetID(rid)

	now := p.cfg.Clock.Now().UTC()
	meta := types.Metadata{
		ResourceType: resourceType,
		Created:      cur.resource.Meta().Created,
		LastModified: &now,
	}
	res.SetMeta(meta)

	ver, err := contentVersion(res)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if ver.Equal(cur.version) {
		return cur, nil
	}
	meta.Version = ver.String()
	res.SetMeta(meta)

	next := &stored{resource: res.Clone(), version: ver}
	td.put(resourceType, id, next)
	if oldKey != newKey {
		if oldKey != "" {
			delete(td.userNames, oldKey)
		}
		if newKey != "" {
			td.userNames[newKey] = id
		}
	}
	return next, nil
}

// PatchResource implements provider.Provider.
func (p *Provider) PatchResource(ctx context.Context, resourceType, id string, req *patch.Request, expected *version.Raw, reqCtx *tenant.Context) (*provider.VersionedResource, error) {
	reqCtx = effective(reqCtx)
	if !reqCtx.Permissions().CanUpdate {
		return nil, trace.AccessDenied("tenant is not allowed to update resources")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	td := p.tenantLocked(reqCtx.StorageTenant())
	cur, ok := td.lookup(resourceType, id)
	if !ok {
		return nil, trace.NotFound("%s %q not found", resourceType, id)
	}
	if expected != nil && !expected.Equal(cur.version) {
		return nil, version.NewConflict(*expected, cur.version).Error()
	}

	patched, changed, err := patch.Apply(p.cfg.Registry, cur.resource, req)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !changed {
		return &provider.VersionedResource{Resource: cur.resource.Clone(), Version: cur.version}, nil
	}
	next, err := p.storeLocked(td, cur, resourceType, id, patched)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &provider.VersionedResource{Resource: next.resource.Clone(), Version: next.version}, nil
}

// DeleteResource implements provider.Provider.
func (p *Provider) DeleteResource(ctx context.Context, resourceType, id string, expected *version.Raw, reqCtx *tenant.Context) error {
	reqCtx = effective(reqCtx)
	if !reqCtx.Permissions().CanDelete {
		return trace.AccessDenied("tenant is not allowed to delete resources")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	td := p.tenantLocked(reqCtx.StorageTenant())
	cur, ok := td.lookup(resourceType, id)
	if !ok {
		return trace.NotFound("%s %q not found", resourceType, id)
	}
	if expected != nil && !expected.Equal(cur.version) {
		return version.NewConflict(*expected, cur.version).Error()
	}
	p.deleteLocked(td, cur, resourceType, id)
	return nil
}

func (p *Provider) deleteLocked(td *tenantData, cur *stored, resourceType, id string) {
	delete(td.resources[resourceType], id)
	if key := userNameKey(cur.resource); key != "" && td.userNames[key] == id {
		delete(td.userNames, key)
	}
}

// ListResources implements provider.Provider.
func (p *Provider) ListResources(ctx context.Context, resourceType string, query *provider.ListQuery, reqCtx *tenant.Context) (*provider.Page, error) {
	reqCtx = effective(reqCtx)
	if !reqCtx.Permissions().CanList {
		return nil, trace.AccessDenied("tenant is not allowed to list resources")
	}
	if query == nil {
		query = &provider.ListQuery{}
	}
	query.Normalize()

	equality, err := query.ParseEqualityFilter()
	if err != nil {
		return nil, trace.Wrap(err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	page := &provider.Page{StartIndex: query.StartIndex}
	td, ok := p.tenants[reqCtx.StorageTenant()]
	if !ok {
		return page, nil
	}

	var matched []*stored
	for _, s := range td.resources[resourceType] {
		if equality != nil && !matchesEquality(s.resource, equality) {
			continue
		}
		matched = append(matched, s)
	}
	sortStored(matched, query)

	page.TotalResults = len(matched)
	if query.Count < 0 {
		return page, nil
	}
	start := query.StartIndex - 1
	if start >= len(matched) {
		return page, nil
	}
	matched = matched[start:]
	if query.Count > 0 && len(matched) > query.Count {
		matched = matched[:query.Count]
	}
	for _, s := range matched {
		page.Resources = append(page.Resources, &provider.VersionedResource{
			Resource: s.resource.Clone(),
			Version:  s.version,
		})
	}
	return page, nil
}

func sortStored(items []*stored, query *provider.ListQuery) {
	key := func(s *stored) string {
		if query.SortBy == "" {
			if id, ok := s.resource.ID(); ok {
				return id.String()
			}
			return ""
		}
		return attributeString(s.resource, query.SortBy)
	}
	ascending := query.SortBy == "" || query.SortAscending
	sort.SliceStable(items, func(i, j int) bool {
		a, b := key(items[i]), key(items[j])
		if ascending {
			return a < b
		}
		return a > b
	})
}

// FindResourcesByAttribute implements provider.Provider.
func (p *Provider) FindResourcesByAttribute(ctx context.Context, resourceType, attrName, value string, reqCtx *tenant.Context) ([]*provider.VersionedResource, error) {
	reqCtx = effective(reqCtx)
	if !reqCtx.Permissions().CanRead {
		return nil, trace.AccessDenied("tenant is not allowed to read resources")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	td, ok := p.tenants[reqCtx.StorageTenant()]
	if !ok {
		return nil, nil
	}

	equality := &provider.EqualityFilter{Attribute: attrName, Value: value}
	if attr, sub, found := strings.Cut(attrName, "."); found {
		equality = &provider.EqualityFilter{Attribute: attr, SubAttribute: sub, Value: value}
	}

	var out []*provider.VersionedResource
	for _, s := range td.resources[resourceType] {
		if matchesEquality(s.resource, equality) {
			out = append(out, &provider.VersionedResource{
				Resource: s.resource.Clone(),
				Version:  s.version,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i].Resource.ID()
		b, _ := out[j].Resource.ID()
		return a.String() < b.String()
	})
	return out, nil
}

// ResourceExists implements provider.Provider.
func (p *Provider) ResourceExists(ctx context.Context, resourceType, id string, reqCtx *tenant.Context) (bool, error) {
	reqCtx = effective(reqCtx)
	if !reqCtx.Permissions().CanRead {
		return false, trace.AccessDenied("tenant is not allowed to read resources")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	td, ok := p.tenants[reqCtx.StorageTenant()]
	if !ok {
		return false, nil
	}
	_, ok = td.lookup(resourceType, id)
	return ok, nil
}

// ConditionalUpdate implements provider.Provider.
func (p *Provider) ConditionalUpdate(ctx context.Context, resourceType, id string, attrs types.AttributeSet, expected version.Raw, reqCtx *tenant.Context) (*provider.ConditionalResult[*provider.VersionedResource], error) {
	reqCtx = effective(reqCtx)
	if !reqCtx.Permissions().CanUpdate {
		return nil, trace.AccessDenied("tenant is not allowed to update resources")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	td := p.tenantLocked(reqCtx.StorageTenant())
	cur, ok := td.lookup(resourceType, id)
	if !ok {
		return provider.Missing[*provider.VersionedResource](), nil
	}
	if !expected.Equal(cur.version) {
		return provider.Mismatched[*provider.VersionedResource](version.NewConflict(expected, cur.version)), nil
	}
	next, err := p.replaceLocked(td, cur, resourceType, id, attrs)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return provider.Succeeded(&provider.VersionedResource{
		Resource: next.resource.Clone(),
		Version:  next.version,
	}), nil
}

// ConditionalDelete implements provider.Provider.
func (p *Provider) ConditionalDelete(ctx context.Context, resourceType, id string, expected version.Raw, reqCtx *tenant.Context) (*provider.ConditionalResult[struct{}], error) {
	reqCtx = effective(reqCtx)
	if !reqCtx.Permissions().CanDelete {
		return nil, trace.AccessDenied("tenant is not allowed to delete resources")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	td := p.tenantLocked(reqCtx.StorageTenant())
	cur, ok := td.lookup(resourceType, id)
	if !ok {
		return provider.Missing[struct{}](), nil
	}
	if !expected.Equal(cur.version) {
		return provider.Mismatched[struct{}](version.NewConflict(expected, cur.version)), nil
	}
	p.deleteLocked(td, cur, resourceType, id)
	return provider.Succeeded(struct{}{}), nil
}

// Capabilities implements provider.Introspector.
func (p *Provider) Capabilities(ctx context.Context) (*provider.Capabilities, error) {
	caps := provider.DefaultCapabilities()
	caps.Sort = true
	return caps, nil
}

// Stats is a point-in-time census of the store, for diagnostics and tests.
type Stats struct {
	// Tenants is the number of storage partitions holding data.
	Tenants int
	// Resources counts stored resources per resource type across all
	// tenants.
	Resources map[string]int
}

// Stats reports the current store census.
func (p *Provider) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{Resources: make(map[string]int)}
	for _, td := range p.tenants {
		stats.Tenants++
		for resourceType, byID := range td.resources {
			stats.Resources[resourceType] += len(byID)
		}
	}
	return stats
}

// matchesEquality tests a resource against an attribute equality filter.
// Strings compare case-insensitively; multi-valued attributes match if any
// element matches.
func matchesEquality(res *types.Resource, f *provider.EqualityFilter) bool {
	switch strings.ToLower(f.Attribute) {
	case "id":
		id, ok := res.ID()
		return ok && strings.EqualFold(id.String(), f.Value)
	case "externalid":
		externalID, ok := res.ExternalID()
		return ok && strings.EqualFold(externalID, f.Value)
	}

	raw, ok := res.Attribute(f.Attribute)
	if !ok {
		return false
	}
	sub := f.SubAttribute
	if elements, isList := raw.([]any); isList {
		if sub == "" {
			sub = "value"
		}
		for _, element := range elements {
			m, ok := element.(map[string]any)
			if !ok {
				continue
			}
			if valueMatches(m[sub], f.Value) {
				return true
			}
		}
		return false
	}
	if m, isObject := raw.(map[string]any); isObject && sub != "" {
		return valueMatches(m[sub], f.Value)
	}
	return valueMatches(raw, f.Value)
}

func valueMatches(raw any, value string) bool {
	switch v := raw.(type) {
	case string:
		return strings.EqualFold(v, value)
	case nil:
		return false
	default:
		return fmt.Sprintf("%v", v) == value
	}
}

func attributeString(res *types.Resource, name string) string {
	attr, sub, found := strings.Cut(name, ".")
	raw, ok := res.Attribute(attr)
	if !ok {
		return ""
	}
	if found {
		if m, isObject := raw.(map[string]any); isObject {
			raw = m[sub]
		}
	}
	if s, isString := raw.(string); isString {
		return s
	}
	return fmt.Sprintf("%v", raw)
}
