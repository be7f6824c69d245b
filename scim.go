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

// Package scim holds constants shared by every layer of the SCIM resource
// server core.
package scim

const (
	// ContentType is the MIME type for SCIM resources
	ContentType = "application/scim+json"

	// ComponentKey is the structured logging key used to tag log records
	// with the component that emitted them.
	ComponentKey = "component"

	// ComponentServer tags log records emitted by the SCIM server layer.
	ComponentServer = "scim:server"

	// ComponentProvider tags log records emitted by resource providers.
	ComponentProvider = "scim:provider"
)

const (
	// ResourceTypeUser indicates that an SCIM resource is a user, as per RFC 7643
	ResourceTypeUser = "User"

	// ResourceTypeGroup indicates that an SCIM resource is a group, as per RFC 7643
	ResourceTypeGroup = "Group"
)

const (
	// ListResponseSchema is the SCIM schema name for list response envelopes,
	// as per RFC 7644 Section 3.4.2
	ListResponseSchema = "urn:ietf:params:scim:api:messages:2.0:ListResponse"

	// PatchOpSchema is the SCIM schema name for the PatchOp object
	// as per RFC-7644 Section 3.5.2
	PatchOpSchema = "urn:ietf:params:scim:api:messages:2.0:PatchOp"

	// ErrorSchema is the SCIM schema name for error responses, as per
	// RFC 7644 Section 3.12
	ErrorSchema = "urn:ietf:params:scim:api:messages:2.0:Error"

	// ServiceProviderConfigSchema identifies the service provider
	// configuration resource, as per RFC 7644 Section 5
	ServiceProviderConfigSchema = "urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"

	// ResourceTypeSchema identifies resource type discovery documents, as
	// per RFC 7644 Section 4
	ResourceTypeSchema = "urn:ietf:params:scim:schemas:core:2.0:ResourceType"

	// SchemaSchema identifies schema discovery documents, as per RFC 7644
	// Section 4
	SchemaSchema = "urn:ietf:params:scim:schemas:core:2.0:Schema"

	// EnterpriseUserSchema is the URN of the standard enterprise User
	// extension, as per RFC 7643 Section 4.3
	EnterpriseUserSchema = "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User"
)
