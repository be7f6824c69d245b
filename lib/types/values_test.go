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

	"github.com/stretchr/testify/require"
)

func TestResourceID(t *testing.T) {
	id, err := NewResourceID("u1")
	require.NoError(t, err)
	require.Equal(t, "u1", id.String())

	_, err = NewResourceID("")
	require.Error(t, err)

	_, err = NewResourceID("bulkId")
	require.Error(t, err)

	// JSON round trip.
	data, err := json.Marshal(id)
	require.NoError(t, err)
	var decoded ResourceID
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, id, decoded)

	require.Error(t, json.Unmarshal([]byte(`"bulkId"`), &decoded))
}

func TestEmailAddress(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{address: "alice@example.com", valid: true},
		{address: "a.b+c@sub.example.org", valid: true},
		{address: "alice", valid: false},
		{address: "@example.com", valid: false},
		{address: "alice@", valid: false},
		{address: "alice@.example.com", valid: false},
		{address: "alice smith@example.com", valid: false},
		{address: "", valid: false},
	}
	for _, test := range tests {
		t.Run(test.address, func(t *testing.T) {
			_, err := NewEmailAddress(test.address)
			if test.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestSchemaURI(t *testing.T) {
	uri, err := NewSchemaURI("urn:ietf:params:scim:schemas:core:2.0:User")
	require.NoError(t, err)
	require.Equal(t, "urn:ietf:params:scim:schemas:core:2.0:User", uri.String())

	_, err = NewSchemaURI("https://example.com/schema")
	require.Error(t, err)
}

func TestNameInvariant(t *testing.T) {
	require.Error(t, (&Name{}).Check())
	require.NoError(t, (&Name{GivenName: "Alice"}).Check())
	require.NoError(t, (&Name{HonorificSuffix: "III"}).Check())
}

func TestGroupMember(t *testing.T) {
	id, err := NewResourceID("u1")
	require.NoError(t, err)

	member, err := NewGroupMember(id, "User", "https://example.com/v2/Users/u1", "Alice")
	require.NoError(t, err)
	require.Equal(t, "User", member.Type)

	_, err = NewGroupMember(ResourceID{}, "User", "", "")
	require.Error(t, err)

	_, err = NewGroupMember(id, "Robot", "", "")
	require.Error(t, err)
}

func TestMultiValued(t *testing.T) {
	_, err := NewMultiValued[Email](nil)
	require.Error(t, err, "empty sequences are rejected")

	one := Email{Value: mustEmail(t, "a@example.com"), Type: "work", Primary: true}
	two := Email{Value: mustEmail(t, "b@example.com"), Type: "home"}

	list, err := NewMultiValued([]Email{one, two})
	require.NoError(t, err)
	require.Equal(t, 2, list.Len())

	index, ok := list.PrimaryIndex()
	require.True(t, ok)
	require.Equal(t, 0, index)

	_, err = NewMultiValued([]Email{one, two.WithPrimary(true)})
	require.Error(t, err, "two primaries are rejected")

	// Move the primary flag to the second element.
	moved, err := list.WithPrimary(1)
	require.NoError(t, err)
	index, ok = moved.PrimaryIndex()
	require.True(t, ok)
	require.Equal(t, 1, index)
	// Original is unchanged.
	index, _ = list.PrimaryIndex()
	require.Equal(t, 0, index)

	_, err = list.WithPrimary(7)
	require.Error(t, err)

	work := list.Filter(func(e Email) bool { return e.Type == "work" })
	require.Len(t, work, 1)

	home, ok := list.Find(func(e Email) bool { return e.Type == "home" })
	require.True(t, ok)
	require.Equal(t, "b@example.com", home.Value.String())
}

func mustEmail(t *testing.T, address string) EmailAddress {
	t.Helper()
	email, err := NewEmailAddress(address)
	require.NoError(t, err)
	return email
}
