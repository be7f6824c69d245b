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

// Package provider defines the storage contract a SCIM server drives.
// Implementations own persistence, id generation, version computation and
// tenant isolation; the server layer owns HTTP semantics.
package provider

import (
	"context"

	"github.com/gravitational/trace"

	"github.com/gravitational/scim/lib/patch"
	"github.com/gravitational/scim/lib/tenant"
	"github.com/gravitational/scim/lib/types"
	"github.com/gravitational/scim/lib/version"
)

// VersionedResource pairs a resource with the opaque version of its stored
// state.
type VersionedResource struct {
	Resource *types.Resource
	Version  version.Raw
}

// NewVersionedResource computes the content version of a resource and pairs
// the two. The version is derived from the canonical serialization, so it
// is insensitive to meta.version and meta.lastModified churn.
func NewVersionedResource(res *types.Resource) (*VersionedResource, error) {
	if res == nil {
		return nil, trace.BadParameter("missing resource")
	}
	canonical, err := res.CanonicalJSON()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &VersionedResource{
		Resource: res,
		Version:  version.FromContent(canonical),
	}, nil
}

// ConditionalStatus is the outcome discriminator of a conditional operation.
type ConditionalStatus int

const (
	// ConditionalSuccess means the expected version matched and the
	// operation applied.
	ConditionalSuccess ConditionalStatus = iota
	// ConditionalMismatch means the stored version differed from the
	// expected one; nothing was modified.
	ConditionalMismatch
	// ConditionalNotFound means the resource does not exist.
	ConditionalNotFound
)

// ConditionalResult is the three-way outcome of a conditional update or
// delete: success carries the value, mismatch carries the version conflict,
// not-found carries neither. Exactly one branch is populated.
type ConditionalResult[T any] struct {
	Status   ConditionalStatus
	Value    T
	Conflict *version.Conflict
}

// Succeeded builds a successful conditional result.
func Succeeded[T any](value T) *ConditionalResult[T] {
	return &ConditionalResult[T]{Status: ConditionalSuccess, Value: value}
}

// Mismatched builds a version-mismatch conditional result.
func Mismatched[T any](conflict *version.Conflict) *ConditionalResult[T] {
	return &ConditionalResult[T]{Status: ConditionalMismatch, Conflict: conflict}
}

// Missing builds a not-found conditional result.
func Missing[T any]() *ConditionalResult[T] {
	return &ConditionalResult[T]{Status: ConditionalNotFound}
}

// Provider is the pluggable storage backend behind a SCIM server. All
// methods scope their effects to the tenant carried by the request context;
// a nil tenant context addresses the default tenant.
//
// Read methods signal missing resources with a trace.NotFound error; the
// conditional methods report absence in-band through their result so that
// callers can distinguish the three outcomes without error inspection.
type Provider interface {
	// CreateResource validates uniqueness and limits, assigns an id and
	// metadata, and stores a new resource.
	CreateResource(ctx context.Context, resourceType string, attrs types.AttributeSet, reqCtx *tenant.Context) (*VersionedResource, error)

	// GetResource fetches a resource by id.
	GetResource(ctx context.Context, resourceType, id string, reqCtx *tenant.Context) (*VersionedResource, error)

	// UpdateResource replaces a resource wholesale. A non-nil expected
	// version makes the replace conditional.
	UpdateResource(ctx context.Context, resourceType, id string, attrs types.AttributeSet, expected *version.Raw, reqCtx *tenant.Context) (*VersionedResource, error)

	// PatchResource applies a PATCH request to the stored resource. A
	// non-nil expected version makes the patch conditional.
	PatchResource(ctx context.Context, resourceType, id string, req *patch.Request, expected *version.Raw, reqCtx *tenant.Context) (*VersionedResource, error)

	// DeleteResource removes a resource. A non-nil expected version makes
	// the delete conditional.
	DeleteResource(ctx context.Context, resourceType, id string, expected *version.Raw, reqCtx *tenant.Context) error

	// ListResources enumerates resources of a type, optionally filtered
	// and paginated. Results are ordered deterministically by id.
	ListResources(ctx context.Context, resourceType string, query *ListQuery, reqCtx *tenant.Context) (*Page, error)

	// FindResourcesByAttribute finds resources whose attribute equals the
	// given value, matching case-insensitively for strings.
	FindResourcesByAttribute(ctx context.Context, resourceType, attrName, value string, reqCtx *tenant.Context) ([]*VersionedResource, error)

	// ResourceExists reports whether a resource id is taken.
	ResourceExists(ctx context.Context, resourceType, id string, reqCtx *tenant.Context) (bool, error)

	// ConditionalUpdate replaces a resource only if the stored version
	// matches the expected one, reporting the outcome in-band.
	ConditionalUpdate(ctx context.Context, resourceType, id string, attrs types.AttributeSet, expected version.Raw, reqCtx *tenant.Context) (*ConditionalResult[*VersionedResource], error)

	// ConditionalDelete removes a resource only if the stored version
	// matches the expected one, reporting the outcome in-band.
	ConditionalDelete(ctx context.Context, resourceType, id string, expected version.Raw, reqCtx *tenant.Context) (*ConditionalResult[struct{}], error)
}

// Page is one page of list results along with the total across all pages.
type Page struct {
	Resources    []*VersionedResource
	TotalResults int
	StartIndex   int
}
