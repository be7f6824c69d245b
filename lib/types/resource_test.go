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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/scim"
	"github.com/gravitational/scim/lib/schema"
)

const userJSON = `
{
	"schemas": [
	  "urn:ietf:params:scim:schemas:core:2.0:User",
	  "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User"
	],
	"id": "vito",
	"externalId": "00ub1q9yfsRSfO91a5d7",
	"meta": {
	  "resourceType": "User",
	  "created": "2024-01-07T22:57:09Z",
	  "lastModified": "2024-01-07T22:57:09Z",
	  "location": "https://scim.example.com/v2/Users/vito",
	  "version": "2a30170a"
	},
	"userName": "vito@corleone-foundation.org",
	"displayName": "Vito Corleone",
	"active": true,
	"title": "Don",
	"locale": "en-US",
	"name": {
	  "givenName": "Vito",
	  "familyName": "Corleone"
	},
	"emails": [
	  {
		"primary": true,
		"value": "vito@corleone-foundation.org",
		"type": "work"
	  }
	],
	"phoneNumbers": [
	  {
		"primary": true,
		"value": "555 98765432",
		"type": "work"
	  }
	],
	"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User": {
	  "employeeNumber": "1",
	  "costCenter": "Vito",
	  "organization": "The Corleone Family",
	  "department": "family"
	}
  }
`

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	registry, err := schema.NewRegistry()
	require.NoError(t, err)
	return registry
}

func TestUnmarshalResource(t *testing.T) {
	registry := newRegistry(t)

	res, err := UnmarshalResource(registry, scim.ResourceTypeUser, []byte(userJSON), schema.OpUpdate)
	require.NoError(t, err)

	id, ok := res.ID()
	require.True(t, ok)
	require.Equal(t, "vito", id.String())

	externalID, ok := res.ExternalID()
	require.True(t, ok)
	require.Equal(t, "00ub1q9yfsRSfO91a5d7", externalID)

	userName, ok := res.UserName()
	require.True(t, ok)
	require.Equal(t, "vito@corleone-foundation.org", userName.String())

	displayName, ok := res.DisplayName()
	require.True(t, ok)
	require.Equal(t, "Vito Corleone", displayName)

	active, ok := res.Active()
	require.True(t, ok)
	require.True(t, active)

	name, ok := res.Name()
	require.True(t, ok)
	require.Equal(t, "Vito", name.GivenName)
	require.Equal(t, "Corleone", name.FamilyName)

	emails, ok := res.Emails()
	require.True(t, ok)
	require.Equal(t, 1, emails.Len())
	primary, ok := emails.Primary()
	require.True(t, ok)
	require.Equal(t, "vito@corleone-foundation.org", primary.Value.String())

	title, ok := res.Attribute("title")
	require.True(t, ok)
	require.Equal(t, "Don", title)

	require.NotNil(t, res.Meta())
	require.Equal(t, "User", res.Meta().ResourceType)
	require.Equal(t, "2a30170a", res.Meta().Version)

	enterprise, ok := res.Extension(scim.EnterpriseUserSchema)
	require.True(t, ok)
	require.Equal(t, "family", enterprise["department"])
}

func TestResourceRoundTrip(t *testing.T) {
	registry := newRegistry(t)

	res, err := UnmarshalResource(registry, scim.ResourceTypeUser, []byte(userJSON), schema.OpUpdate)
	require.NoError(t, err)

	body, err := json.Marshal(res)
	require.NoError(t, err)

	// Parsing the serialized form again must produce the same wire
	// attribute set.
	reparsed, err := UnmarshalResource(registry, scim.ResourceTypeUser, body, schema.OpUpdate)
	require.NoError(t, err)

	var original, cycled map[string]any
	require.NoError(t, json.Unmarshal([]byte(userJSON), &original))
	require.NoError(t, json.Unmarshal(body, &cycled))
	require.Empty(t, cmp.Diff(original, cycled))

	require.Empty(t, cmp.Diff(
		map[string]any(res.ToAttributeSet()),
		map[string]any(reparsed.ToAttributeSet()),
	))
}

func TestCanonicalJSONExcludesVolatileMeta(t *testing.T) {
	registry := newRegistry(t)

	res, err := UnmarshalResource(registry, scim.ResourceTypeUser, []byte(userJSON), schema.OpUpdate)
	require.NoError(t, err)

	canonical, err := res.CanonicalJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(canonical, &decoded))
	meta, ok := decoded["meta"].(map[string]any)
	require.True(t, ok)
	require.NotContains(t, meta, "version")
	require.NotContains(t, meta, "lastModified")
	require.Contains(t, meta, "created")

	// Canonicalization must not mutate the resource itself.
	require.Equal(t, "2a30170a", res.Meta().Version)

	// Changing volatile meta fields must not change the canonical form.
	modified := res.Clone()
	meta2 := *modified.Meta()
	meta2.Version = "different"
	modified.SetMeta(meta2)
	canonical2, err := modified.CanonicalJSON()
	require.NoError(t, err)
	require.Equal(t, canonical, canonical2)
}

func TestFromAttributeSetRejectsInvalidValues(t *testing.T) {
	registry := newRegistry(t)

	// Schema-valid but value-object-invalid: mailbox without a domain.
	badEmail := `{
		"schemas": ["urn:ietf:params:scim:schemas:core:2.0:User"],
		"userName": "alice",
		"emails": [{"value": "not-a-mailbox"}]
	}`
	_, err := UnmarshalResource(registry, scim.ResourceTypeUser, []byte(badEmail), schema.OpCreate)
	require.Error(t, err)
}

func TestGroupResource(t *testing.T) {
	registry := newRegistry(t)

	groupJSON := `{
		"schemas": ["urn:ietf:params:scim:schemas:core:2.0:Group"],
		"displayName": "Engineering",
		"members": [
			{"value": "u1", "$ref": "https://scim.example.com/v2/Users/u1", "type": "User", "display": "Alice"}
		]
	}`
	res, err := UnmarshalResource(registry, scim.ResourceTypeGroup, []byte(groupJSON), schema.OpCreate)
	require.NoError(t, err)

	members := res.Members()
	require.Len(t, members, 1)
	require.Equal(t, "u1", members[0].Value.String())
	require.Equal(t, "User", members[0].Type)
	require.Equal(t, "Alice", members[0].Display)
}

func TestUserSpecBuild(t *testing.T) {
	registry := newRegistry(t)

	active := true
	email, err := NewEmailAddress("alice@example.com")
	require.NoError(t, err)

	res, err := UserSpec{
		UserName:    "alice",
		DisplayName: "Alice",
		Active:      &active,
		Name:        &Name{GivenName: "Alice", FamilyName: "Smith"},
		Emails:      []Email{{Value: email, Type: "work", Primary: true}},
		Extensions: map[string]map[string]any{
			scim.EnterpriseUserSchema: {"department": "engineering"},
		},
	}.Build(registry)
	require.NoError(t, err)

	userName, ok := res.UserName()
	require.True(t, ok)
	require.Equal(t, "alice", userName.String())

	uris := res.Schemas()
	require.Len(t, uris, 2)
	require.Equal(t, "urn:ietf:params:scim:schemas:core:2.0:User", uris[0].String())

	enterprise, ok := res.Extension(scim.EnterpriseUserSchema)
	require.True(t, ok)
	require.Equal(t, "engineering", enterprise["department"])
}

func TestUserSpecBuildAggregatesErrors(t *testing.T) {
	registry := newRegistry(t)

	_, err := UserSpec{
		UserName: "",
		Name:     &Name{},
		Emails: []Email{
			{Primary: true},
			{Primary: true},
		},
	}.Build(registry)
	require.Error(t, err)
	// All three violations surface, not just the first.
	require.Contains(t, err.Error(), "userName")
	require.Contains(t, err.Error(), "name")
	require.Contains(t, err.Error(), "primary")
}

func TestGroupSpecBuild(t *testing.T) {
	registry := newRegistry(t)

	memberID, err := NewResourceID("u1")
	require.NoError(t, err)
	member, err := NewGroupMember(memberID, "User", "https://scim.example.com/v2/Users/u1", "Alice")
	require.NoError(t, err)

	res, err := GroupSpec{
		DisplayName: "Engineering",
		Members:     []GroupMember{member},
	}.Build(registry)
	require.NoError(t, err)

	displayName, ok := res.DisplayName()
	require.True(t, ok)
	require.Equal(t, "Engineering", displayName)
	require.Len(t, res.Members(), 1)

	_, err = GroupSpec{}.Build(registry)
	require.Error(t, err)
}
