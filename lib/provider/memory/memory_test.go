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

package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/gravitational/scim"
	"github.com/gravitational/scim/lib/patch"
	"github.com/gravitational/scim/lib/provider"
	"github.com/gravitational/scim/lib/schema"
	"github.com/gravitational/scim/lib/tenant"
	"github.com/gravitational/scim/lib/types"
	"github.com/gravitational/scim/lib/version"
)

func newProvider(t *testing.T) (*Provider, *schema.Registry) {
	t.Helper()
	registry, err := schema.NewRegistry()
	require.NoError(t, err)
	p, err := New(Config{
		Registry: registry,
		Clock:    clockwork.NewFakeClock(),
	})
	require.NoError(t, err)
	return p, registry
}

func userAttrs(userName string) types.AttributeSet {
	return types.AttributeSet{
		"schemas":  []any{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": userName,
	}
}

func tenantCtx(t *testing.T, tenantID string) *tenant.Context {
	t.Helper()
	ctx, err := tenant.NewTenantContext("req-"+tenantID, tenant.TenantContext{
		TenantID:    tenantID,
		ClientID:    "client-1",
		Permissions: tenant.AllPermissions(),
	})
	require.NoError(t, err)
	return ctx
}

func TestConfigCheckAndSetDefaults(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	require.True(t, trace.IsBadParameter(err))
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	created, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), nil)
	require.NoError(t, err)

	id, ok := created.Resource.ID()
	require.True(t, ok)
	require.False(t, created.Version.IsZero())
	require.NotNil(t, created.Resource.Meta())
	require.NotNil(t, created.Resource.Meta().Created)
	require.Equal(t, created.Version.String(), created.Resource.Meta().Version)

	fetched, err := p.GetResource(ctx, scim.ResourceTypeUser, id.String(), nil)
	require.NoError(t, err)
	require.True(t, fetched.Version.Equal(created.Version))

	userName, ok := fetched.Resource.UserName()
	require.True(t, ok)
	require.Equal(t, "alice", userName.String())

	_, err = p.GetResource(ctx, scim.ResourceTypeUser, "missing", nil)
	require.Error(t, err)
	require.True(t, trace.IsNotFound(err))
}

func TestUserNameUniqueness(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	first, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), nil)
	require.NoError(t, err)
	firstID, _ := first.Resource.ID()

	// Same userName with different casing is a duplicate.
	_, err = p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("ALICE"), nil)
	require.Error(t, err)
	require.True(t, trace.IsAlreadyExists(err))

	second, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("bob"), nil)
	require.NoError(t, err)
	secondID, _ := second.Resource.ID()

	// Updating bob to alice's userName collides.
	_, err = p.UpdateResource(ctx, scim.ResourceTypeUser, secondID.String(), userAttrs("Alice"), nil, nil)
	require.Error(t, err)
	require.True(t, trace.IsAlreadyExists(err))

	// Updating a resource while keeping its own userName is fine.
	attrs := userAttrs("alice")
	attrs["displayName"] = "Alice Smith"
	_, err = p.UpdateResource(ctx, scim.ResourceTypeUser, firstID.String(), attrs, nil, nil)
	require.NoError(t, err)

	// Deleting alice frees the userName for reuse.
	require.NoError(t, p.DeleteResource(ctx, scim.ResourceTypeUser, firstID.String(), nil, nil))
	_, err = p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), nil)
	require.NoError(t, err)
}

func TestUpdateVersioning(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	created, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), nil)
	require.NoError(t, err)
	id, _ := created.Resource.ID()

	// A content change produces a new version.
	attrs := userAttrs("alice")
	attrs["displayName"] = "Alice"
	updated, err := p.UpdateResource(ctx, scim.ResourceTypeUser, id.String(), attrs, nil, nil)
	require.NoError(t, err)
	require.False(t, updated.Version.Equal(created.Version))

	// Replaying the identical content keeps the version stable.
	replayed, err := p.UpdateResource(ctx, scim.ResourceTypeUser, id.String(), attrs, nil, nil)
	require.NoError(t, err)
	require.True(t, replayed.Version.Equal(updated.Version))

	// A stale expected version is rejected.
	stale := created.Version
	_, err = p.UpdateResource(ctx, scim.ResourceTypeUser, id.String(), userAttrs("alice"), &stale, nil)
	require.Error(t, err)
	require.True(t, trace.IsCompareFailed(err))

	// The id in the payload must match the stored resource.
	attrs = userAttrs("alice")
	attrs["id"] = "someone-else"
	_, err = p.UpdateResource(ctx, scim.ResourceTypeUser, id.String(), attrs, nil, nil)
	require.Error(t, err)
	require.True(t, trace.IsBadParameter(err))
}

func TestConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	created, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), nil)
	require.NoError(t, err)
	id, _ := created.Resource.ID()

	attrs := userAttrs("alice")
	attrs["displayName"] = "Alice"
	result, err := p.ConditionalUpdate(ctx, scim.ResourceTypeUser, id.String(), attrs, created.Version, nil)
	require.NoError(t, err)
	require.Equal(t, provider.ConditionalSuccess, result.Status)
	require.NotNil(t, result.Value)

	// The first version is now stale.
	stale, err := p.ConditionalUpdate(ctx, scim.ResourceTypeUser, id.String(), attrs, created.Version, nil)
	require.NoError(t, err)
	require.Equal(t, provider.ConditionalMismatch, stale.Status)
	require.NotNil(t, stale.Conflict)
	require.True(t, stale.Conflict.Current.Equal(result.Value.Version))

	missing, err := p.ConditionalUpdate(ctx, scim.ResourceTypeUser, "no-such-id", attrs, created.Version, nil)
	require.NoError(t, err)
	require.Equal(t, provider.ConditionalNotFound, missing.Status)
}

func TestConditionalDelete(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	created, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), nil)
	require.NoError(t, err)
	id, _ := created.Resource.ID()

	mismatched, err := p.ConditionalDelete(ctx, scim.ResourceTypeUser, id.String(), version.FromHash("stale"), nil)
	require.NoError(t, err)
	require.Equal(t, provider.ConditionalMismatch, mismatched.Status)
	require.NotNil(t, mismatched.Conflict)

	deleted, err := p.ConditionalDelete(ctx, scim.ResourceTypeUser, id.String(), created.Version, nil)
	require.NoError(t, err)
	require.Equal(t, provider.ConditionalSuccess, deleted.Status)

	// The resource is gone now.
	again, err := p.ConditionalDelete(ctx, scim.ResourceTypeUser, id.String(), created.Version, nil)
	require.NoError(t, err)
	require.Equal(t, provider.ConditionalNotFound, again.Status)
}

func TestConcurrentConditionalUpdates(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	created, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), nil)
	require.NoError(t, err)
	id, _ := created.Resource.ID()

	// Many writers race on the same expected version; linearizability
	// demands exactly one winner.
	const writers = 16
	results := make([]*provider.ConditionalResult[*provider.VersionedResource], writers)
	var group errgroup.Group
	for i := 0; i < writers; i++ {
		i := i
		group.Go(func() error {
			attrs := userAttrs("alice")
			attrs["displayName"] = fmt.Sprintf("Writer %d", i)
			result, err := p.ConditionalUpdate(ctx, scim.ResourceTypeUser, id.String(), attrs, created.Version, nil)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	require.NoError(t, group.Wait())

	winners := 0
	for _, result := range results {
		switch result.Status {
		case provider.ConditionalSuccess:
			winners++
		case provider.ConditionalMismatch:
			require.NotNil(t, result.Conflict)
		default:
			t.Fatalf("unexpected status %v", result.Status)
		}
	}
	require.Equal(t, 1, winners)
}

func TestPatchResource(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	created, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), nil)
	require.NoError(t, err)
	id, _ := created.Resource.ID()

	req := &patch.Request{
		Schemas: []string{scim.PatchOpSchema},
		Operations: []patch.Operation{
			{Op: "add", Path: "displayName", Value: "Alice"},
		},
	}
	patched, err := p.PatchResource(ctx, scim.ResourceTypeUser, id.String(), req, nil, nil)
	require.NoError(t, err)
	require.False(t, patched.Version.Equal(created.Version))
	displayName, ok := patched.Resource.DisplayName()
	require.True(t, ok)
	require.Equal(t, "Alice", displayName)

	// Applying the same patch again changes nothing and keeps the version.
	replayed, err := p.PatchResource(ctx, scim.ResourceTypeUser, id.String(), req, nil, nil)
	require.NoError(t, err)
	require.True(t, replayed.Version.Equal(patched.Version))

	// Patch with a stale precondition fails without applying.
	stale := created.Version
	req.Operations[0].Value = "Changed"
	_, err = p.PatchResource(ctx, scim.ResourceTypeUser, id.String(), req, &stale, nil)
	require.Error(t, err)
	require.True(t, trace.IsCompareFailed(err))
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	acme := tenantCtx(t, "acme")
	globex := tenantCtx(t, "globex")

	created, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), acme)
	require.NoError(t, err)
	id, _ := created.Resource.ID()

	// The same userName is free in another tenant.
	_, err = p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), globex)
	require.NoError(t, err)

	// Another tenant cannot see, update or delete acme's resource.
	_, err = p.GetResource(ctx, scim.ResourceTypeUser, id.String(), globex)
	require.True(t, trace.IsNotFound(err))
	_, err = p.UpdateResource(ctx, scim.ResourceTypeUser, id.String(), userAttrs("alice"), nil, globex)
	require.True(t, trace.IsNotFound(err))
	err = p.DeleteResource(ctx, scim.ResourceTypeUser, id.String(), nil, globex)
	require.True(t, trace.IsNotFound(err))

	// The default bucket is disjoint from both tenants.
	page, err := p.ListResources(ctx, scim.ResourceTypeUser, nil, nil)
	require.NoError(t, err)
	require.Zero(t, page.TotalResults)
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	readOnly, err := tenant.NewTenantContext("req-1", tenant.TenantContext{
		TenantID:    "acme",
		ClientID:    "client-1",
		Permissions: tenant.Permissions{CanRead: true, CanList: true},
	})
	require.NoError(t, err)

	_, err = p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), readOnly)
	require.Error(t, err)
	require.True(t, trace.IsAccessDenied(err))

	_, err = p.UpdateResource(ctx, scim.ResourceTypeUser, "x", userAttrs("alice"), nil, readOnly)
	require.True(t, trace.IsAccessDenied(err))
	err = p.DeleteResource(ctx, scim.ResourceTypeUser, "x", nil, readOnly)
	require.True(t, trace.IsAccessDenied(err))

	_, err = p.ListResources(ctx, scim.ResourceTypeUser, nil, readOnly)
	require.NoError(t, err)
}

func TestResourceLimits(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	maxUsers := 1
	limited, err := tenant.NewTenantContext("req-1", tenant.TenantContext{
		TenantID: "acme",
		ClientID: "client-1",
		Permissions: tenant.Permissions{
			CanCreate: true, CanRead: true, CanUpdate: true, CanDelete: true, CanList: true,
			MaxUsers: &maxUsers,
		},
	})
	require.NoError(t, err)

	_, err = p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), limited)
	require.NoError(t, err)

	_, err = p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("bob"), limited)
	require.Error(t, err)
	require.True(t, trace.IsLimitExceeded(err))
}

func TestListResources(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	for _, userName := range []string{"carol", "alice", "bob"} {
		attrs := userAttrs(userName)
		attrs["displayName"] = userName
		_, err := p.CreateResource(ctx, scim.ResourceTypeUser, attrs, nil)
		require.NoError(t, err)
	}

	// Unfiltered list returns everything.
	page, err := p.ListResources(ctx, scim.ResourceTypeUser, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalResults)
	require.Len(t, page.Resources, 3)

	// Equality filter.
	page, err = p.ListResources(ctx, scim.ResourceTypeUser, &provider.ListQuery{
		Filter: `userName eq "ALICE"`,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalResults)
	userName, _ := page.Resources[0].Resource.UserName()
	require.Equal(t, "alice", userName.String())

	// Sorting by attribute.
	page, err = p.ListResources(ctx, scim.ResourceTypeUser, &provider.ListQuery{
		SortBy:        "userName",
		SortAscending: true,
	}, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(page.Resources))
	for _, r := range page.Resources {
		u, _ := r.Resource.UserName()
		names = append(names, u.String())
	}
	require.Equal(t, []string{"alice", "bob", "carol"}, names)

	// Pagination.
	page, err = p.ListResources(ctx, scim.ResourceTypeUser, &provider.ListQuery{
		SortBy:        "userName",
		SortAscending: true,
		StartIndex:    2,
		Count:         1,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalResults)
	require.Len(t, page.Resources, 1)
	userName, _ = page.Resources[0].Resource.UserName()
	require.Equal(t, "bob", userName.String())

	// Negative count returns the total only.
	page, err = p.ListResources(ctx, scim.ResourceTypeUser, &provider.ListQuery{Count: -1}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalResults)
	require.Empty(t, page.Resources)

	// Unsupported filters are reported as such.
	_, err = p.ListResources(ctx, scim.ResourceTypeUser, &provider.ListQuery{
		Filter: `userName co "li"`,
	}, nil)
	require.Error(t, err)
	require.True(t, trace.IsNotImplemented(err))
}

func TestFindResourcesByAttribute(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	attrs := userAttrs("alice")
	attrs["emails"] = []any{
		map[string]any{"value": "alice@example.com", "type": "work", "primary": true},
	}
	created, err := p.CreateResource(ctx, scim.ResourceTypeUser, attrs, nil)
	require.NoError(t, err)
	_, err = p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("bob"), nil)
	require.NoError(t, err)

	found, err := p.FindResourcesByAttribute(ctx, scim.ResourceTypeUser, "userName", "Alice", nil)
	require.NoError(t, err)
	require.Len(t, found, 1)

	// Multi-valued attributes match on their value sub-attribute.
	found, err = p.FindResourcesByAttribute(ctx, scim.ResourceTypeUser, "emails.value", "alice@example.com", nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	foundID, _ := found[0].Resource.ID()
	createdID, _ := created.Resource.ID()
	require.Equal(t, createdID, foundID)

	found, err = p.FindResourcesByAttribute(ctx, scim.ResourceTypeUser, "userName", "nobody", nil)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestResourceExists(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	created, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), nil)
	require.NoError(t, err)
	id, _ := created.Resource.ID()

	exists, err := p.ResourceExists(ctx, scim.ResourceTypeUser, id.String(), nil)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = p.ResourceExists(ctx, scim.ResourceTypeUser, "missing", nil)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)

	_, err := p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("alice"), nil)
	require.NoError(t, err)
	_, err = p.CreateResource(ctx, scim.ResourceTypeUser, userAttrs("bob"), tenantCtx(t, "acme"))
	require.NoError(t, err)

	stats := p.Stats()
	require.Equal(t, 2, stats.Tenants)
	require.Equal(t, 2, stats.Resources[scim.ResourceTypeUser])
}

func TestCapabilities(t *testing.T) {
	p, _ := newProvider(t)

	caps, err := provider.DiscoverCapabilities(context.Background(), p)
	require.NoError(t, err)
	require.True(t, caps.ETag)
	require.True(t, caps.Patch)
	require.True(t, caps.Sort)
	require.False(t, caps.Bulk.Supported)
}
