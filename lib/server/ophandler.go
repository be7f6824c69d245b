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

	"github.com/gravitational/scim/lib/patch"
	"github.com/gravitational/scim/lib/provider"
	"github.com/gravitational/scim/lib/tenant"
	"github.com/gravitational/scim/lib/types"
	"github.com/gravitational/scim/lib/version"
)

// Request is the uniform operation request shape. Transports translate
// their protocol (HTTP, MCP, CLI) into this record and back.
type Request struct {
	// Operation selects the operation to run.
	Operation Operation
	// ResourceType names the target resource type.
	ResourceType string
	// ResourceID targets a specific resource for read/update/delete/patch.
	ResourceID string
	// Data is the resource payload for create and update.
	Data types.AttributeSet
	// Patch is the operation list for patch.
	Patch *patch.Request
	// Attribute and Value parameterize search.
	Attribute string
	Value     string
	// Query parameterizes list.
	Query *provider.ListQuery
	// ExpectedVersion, when set, turns update/delete/patch into conditional
	// operations.
	ExpectedVersion *version.Raw
	// Context is the request identity; nil means single-tenant.
	Context *tenant.Context
}

// ResponseMetadata carries the operation's side-band facts.
type ResponseMetadata struct {
	// ResourceID is the id of the affected resource, when there is one.
	ResourceID string `json:"resourceId,omitempty"`
	// Version is the raw (non-ETag) version of the affected resource.
	// Transports reformat it into an ETag header themselves.
	Version string `json:"version,omitempty"`
	// IsVersionConflict flags that the operation failed its version
	// precondition.
	IsVersionConflict bool `json:"isVersionConflict,omitempty"`
}

// Response is the uniform operation response shape.
type Response struct {
	Success  bool             `json:"success"`
	Data     any              `json:"data,omitempty"`
	Error    *ErrorResponse   `json:"error,omitempty"`
	Metadata ResponseMetadata `json:"metadata"`
}

// OperationHandler translates uniform requests into server calls.
type OperationHandler struct {
	server *Server
}

// NewOperationHandler builds an operation handler over a server.
func NewOperationHandler(s *Server) (*OperationHandler, error) {
	if s == nil {
		return nil, trace.BadParameter("missing server")
	}
	return &OperationHandler{server: s}, nil
}

// Handle dispatches one uniform request and folds the outcome, success or
// failure, into the uniform response shape.
func (h *OperationHandler) Handle(ctx context.Context, req Request) Response {
	switch req.Operation {
	case OperationCreate:
		vr, err := h.server.CreateResource(ctx, req.ResourceType, req.Data, req.Context)
		return h.resourceResponse(vr, err)

	case OperationRead:
		vr, err := h.server.GetResource(ctx, req.ResourceType, req.ResourceID, req.Context)
		return h.resourceResponse(vr, err)

	case OperationUpdate:
		vr, err := h.server.UpdateResource(ctx, req.ResourceType, req.ResourceID, req.Data, req.ExpectedVersion, req.Context)
		return h.resourceResponse(vr, err)

	case OperationPatch:
		vr, err := h.server.PatchResource(ctx, req.ResourceType, req.ResourceID, req.Patch, req.ExpectedVersion, req.Context)
		return h.resourceResponse(vr, err)

	case OperationDelete:
		err := h.server.DeleteResource(ctx, req.ResourceType, req.ResourceID, req.ExpectedVersion, req.Context)
		if err != nil {
			return failure(err)
		}
		return Response{
			Success:  true,
			Metadata: ResponseMetadata{ResourceID: req.ResourceID},
		}

	case OperationList:
		page, err := h.server.ListResources(ctx, req.ResourceType, req.Query, req.Context)
		if err != nil {
			return failure(err)
		}
		return Response{Success: true, Data: MarshalListResponse(page)}

	case OperationSearch:
		found, err := h.server.FindResourcesByAttribute(ctx, req.ResourceType, req.Attribute, req.Value, req.Context)
		if err != nil {
			return failure(err)
		}
		page := &provider.Page{Resources: found, TotalResults: len(found), StartIndex: 1}
		return Response{Success: true, Data: MarshalListResponse(page)}
	}
	return failure(trace.BadParameter("unknown operation %q", req.Operation))
}

func (h *OperationHandler) resourceResponse(vr *provider.VersionedResource, err error) Response {
	if err != nil {
		return failure(err)
	}
	metadata := ResponseMetadata{Version: vr.Version.String()}
	if id, ok := vr.Resource.ID(); ok {
		metadata.ResourceID = id.String()
	}
	return Response{
		Success:  true,
		Data:     vr.Resource.ToAttributeSet(),
		Metadata: metadata,
	}
}

func failure(err error) Response {
	envelope := MapError(err)
	return Response{
		Success: false,
		Error:   &envelope,
		Metadata: ResponseMetadata{
			IsVersionConflict: trace.IsCompareFailed(err),
		},
	}
}
