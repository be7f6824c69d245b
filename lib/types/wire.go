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

package types

import (
	"encoding/json"
	"io"
	"reflect"
	"time"

	"github.com/gravitational/trace"
	"github.com/mitchellh/mapstructure"
)

const (
	// AttributeID is the SCIM attribute name for the ID field
	AttributeID = "id"
	// AttributeExternalID is the SCIM attribute name for the ExternalID field
	AttributeExternalID = "externalId"
	// AttributeSchemas is the SCIM attribute name for the Schemas field
	AttributeSchemas = "schemas"
	// AttributeMeta is the SCIM attribute name for the Meta field
	AttributeMeta = "meta"
)

// reservedAttributeNames are the top-level fields that belong to the
// resource header rather than to its schema-defined attributes.
var reservedAttributeNames = [...]string{
	AttributeID,
	AttributeExternalID,
	AttributeSchemas,
	AttributeMeta,
}

// Metadata encodes the JSON wire format of the SCIM resource metadata.
type Metadata struct {
	ResourceType string     `json:"resourceType" mapstructure:"resourceType,omitempty"`
	Created      *time.Time `json:"created,omitempty" mapstructure:"created,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty" mapstructure:"lastModified,omitempty"`
	Location     string     `json:"location,omitempty" mapstructure:"location,omitempty"`
	Version      string     `json:"version,omitempty" mapstructure:"version,omitempty"`
}

// AttributeSet is an arbitrary mapping of names to structured values. Used
// as the intermediary format for parsing and formatting SCIM resources.
type AttributeSet map[string]any

// Clone returns a deep copy of the attribute set. Nested objects and
// arrays are copied; scalar values are shared.
func (a AttributeSet) Clone() AttributeSet {
	return AttributeSet(cloneValue(map[string]any(a)).(map[string]any))
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// resourceHeader is the fixed part of the SCIM resource wire format: some
// metadata with a trailing collection of arbitrarily structured attributes.
type resourceHeader struct {
	Schemas    []string  `json:"schemas" mapstructure:"schemas,omitempty"`
	ID         string    `json:"id,omitempty" mapstructure:"id,omitempty"`
	ExternalID string    `json:"externalId,omitempty" mapstructure:"externalId,omitempty"`
	Meta       *Metadata `json:"meta,omitempty" mapstructure:"meta,omitempty"`

	Attributes AttributeSet `json:"-" mapstructure:",remain,omitempty"`
}

// stringToDateTimeHook parses an RFC3339 timestamp string into Go time.Time.
// For use with mapstructure.Decode()
func stringToDateTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	if to != reflect.TypeOf(&time.Time{}) {
		return data, nil
	}

	s, ok := data.(string)
	if !ok {
		return nil, trace.BadParameter("expected string, got %T", data)
	}
	value, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &value, nil
}

// decodeResourceHeader converts a flat attribute set into a resource
// header, collecting every top-level field that is not part of the header
// into the trailing attribute set.
func decodeResourceHeader(attrs AttributeSet) (*resourceHeader, error) {
	var header resourceHeader
	mapDecoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &header,
		DecodeHook: stringToDateTimeHook,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	if err := mapDecoder.Decode(map[string]any(attrs)); err != nil {
		return nil, trace.Wrap(err)
	}

	return &header, nil
}

// UnmarshalAttributeSet parses a JSON stream into a flat attribute set. We
// go through this intermediate form so that we can collect all of the
// top-level JSON fields that are not specifically part of the resource
// metadata and keep them as the resource's actual properties.
func UnmarshalAttributeSet(data io.Reader) (AttributeSet, error) {
	decoder := json.NewDecoder(data)

	var attrs AttributeSet
	if err := decoder.Decode(&attrs); err != nil {
		return nil, trace.Wrap(err)
	}
	return attrs, nil
}

// metadataToWire formats resource metadata as a nested attribute map with
// RFC 3339 timestamps, ready for JSON serialization or canonical hashing.
func metadataToWire(meta *Metadata) map[string]any {
	if meta == nil {
		return nil
	}
	wire := map[string]any{
		"resourceType": meta.ResourceType,
	}
	if meta.Created != nil {
		wire["created"] = meta.Created.UTC().Format(time.RFC3339Nano)
	}
	if meta.LastModified != nil {
		wire["lastModified"] = meta.LastModified.UTC().Format(time.RFC3339Nano)
	}
	if meta.Location != "" {
		wire["location"] = meta.Location
	}
	if meta.Version != "" {
		wire["version"] = meta.Version
	}
	return wire
}

// ListResponse is the JSON wire format of a SCIM list response.
type ListResponse struct {
	Schemas      []string       `json:"schemas"`
	TotalResults int            `json:"totalResults"`
	StartIndex   int            `json:"startIndex"`
	ItemsPerPage int            `json:"itemsPerPage"`
	Resources    []AttributeSet `json:"Resources"`
}
