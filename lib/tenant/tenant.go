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

// Package tenant defines the per-request identity that accompanies every
// SCIM operation: a request id plus an optional tenant context carrying the
// caller's permissions and isolation requirements.
package tenant

import (
	"github.com/gravitational/trace"
)

// DefaultTenant is the storage partition used for requests issued without a
// tenant context. The name is reserved: user-supplied tenant contexts may
// not claim it, which keeps the single-tenant bucket disjoint from every
// real tenant.
const DefaultTenant = "default"

// IsolationLevel expresses how strongly a tenant expects to be partitioned
// from its neighbors. It is advisory for providers; the standard provider
// treats every level as strict key partitioning.
type IsolationLevel string

const (
	// IsolationStrict requires hard partitioning of all resources.
	IsolationStrict IsolationLevel = "strict"
	// IsolationStandard allows providers to share infrastructure while
	// keeping resources partitioned.
	IsolationStandard IsolationLevel = "standard"
	// IsolationShared allows providers to co-locate tenant data.
	IsolationShared IsolationLevel = "shared"
)

// Permissions enumerates what a tenant's client is allowed to do, plus
// optional caps on resource counts.
type Permissions struct {
	CanCreate bool
	CanRead   bool
	CanUpdate bool
	CanDelete bool
	CanList   bool

	// MaxUsers caps the number of User resources in the tenant. Nil means
	// unlimited.
	MaxUsers *int
	// MaxGroups caps the number of Group resources in the tenant. Nil means
	// unlimited.
	MaxGroups *int
}

// AllPermissions grants every operation with no caps.
func AllPermissions() Permissions {
	return Permissions{
		CanCreate: true,
		CanRead:   true,
		CanUpdate: true,
		CanDelete: true,
		CanList:   true,
	}
}

// TenantContext identifies the tenant a request executes under.
type TenantContext struct {
	// TenantID is the tenant's partition key.
	TenantID string
	// ClientID identifies the client acting on behalf of the tenant.
	ClientID string
	// Permissions is the client's grant within the tenant.
	Permissions Permissions
	// Isolation is the tenant's requested isolation level.
	Isolation IsolationLevel
}

// Check validates the tenant context invariants.
func (t *TenantContext) Check() error {
	if t.TenantID == "" {
		return trace.BadParameter("missing tenant ID")
	}
	if t.TenantID == DefaultTenant {
		return trace.BadParameter("tenant ID %q is reserved for single-tenant requests", DefaultTenant)
	}
	if t.ClientID == "" {
		return trace.BadParameter("missing client ID")
	}
	switch t.Isolation {
	case IsolationStrict, IsolationStandard, IsolationShared:
	case "":
		t.Isolation = IsolationStrict
	default:
		return trace.BadParameter("unknown isolation level %q", t.Isolation)
	}
	return nil
}

// Context is the per-request identity passed to every core operation. It is
// request-scoped and must not be shared across requests.
type Context struct {
	// RequestID correlates log records and errors with the originating
	// request.
	RequestID string
	// Tenant is the tenant the request executes under. Nil means
	// single-tenant mode, which implicitly grants all permissions.
	Tenant *TenantContext
}

// NewContext builds a single-tenant request context.
func NewContext(requestID string) (*Context, error) {
	ctx := &Context{RequestID: requestID}
	if err := ctx.Check(); err != nil {
		return nil, trace.Wrap(err)
	}
	return ctx, nil
}

// NewTenantContext builds a request context bound to a tenant.
func NewTenantContext(requestID string, tc TenantContext) (*Context, error) {
	ctx := &Context{RequestID: requestID, Tenant: &tc}
	if err := ctx.Check(); err != nil {
		return nil, trace.Wrap(err)
	}
	return ctx, nil
}

// Check validates the request context invariants.
func (c *Context) Check() error {
	if c.RequestID == "" {
		return trace.BadParameter("missing request ID")
	}
	if c.Tenant != nil {
		if err := c.Tenant.Check(); err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}

// StorageTenant resolves the storage partition key for the request: the
// tenant's id, or the reserved default bucket for single-tenant requests.
func (c *Context) StorageTenant() string {
	if c.Tenant == nil {
		return DefaultTenant
	}
	return c.Tenant.TenantID
}

// Permissions resolves the effective permission set for the request.
// Single-tenant requests are unrestricted.
func (c *Context) Permissions() Permissions {
	if c.Tenant == nil {
		return AllPermissions()
	}
	return c.Tenant.Permissions
}
