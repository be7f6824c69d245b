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

package provider

import (
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/scim/lib/schema"
	"github.com/gravitational/scim/lib/types"
	"github.com/gravitational/scim/lib/version"
)

func TestNewVersionedResource(t *testing.T) {
	registry, err := schema.NewRegistry()
	require.NoError(t, err)

	res, err := types.UserSpec{UserName: "alice"}.Build(registry)
	require.NoError(t, err)

	versioned, err := NewVersionedResource(res)
	require.NoError(t, err)
	require.False(t, versioned.Version.IsZero())

	// The version tracks canonical content, not metadata churn.
	again, err := NewVersionedResource(res.Clone())
	require.NoError(t, err)
	require.True(t, versioned.Version.Equal(again.Version))

	_, err = NewVersionedResource(nil)
	require.Error(t, err)
}

func TestConditionalResult(t *testing.T) {
	ok := Succeeded("value")
	require.Equal(t, ConditionalSuccess, ok.Status)
	require.Equal(t, "value", ok.Value)
	require.Nil(t, ok.Conflict)

	conflict := version.NewConflict(version.FromHash("aaa"), version.FromHash("bbb"))
	failed := Mismatched[string](conflict)
	require.Equal(t, ConditionalMismatch, failed.Status)
	require.NotNil(t, failed.Conflict)

	gone := Missing[string]()
	require.Equal(t, ConditionalNotFound, gone.Status)
}

func TestParseEqualityFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   string
		expected *EqualityFilter
		check    func(require.TestingT, error, ...any)
	}{
		{
			name:     "empty filter",
			filter:   "",
			expected: nil,
		},
		{
			name:     "attribute equality",
			filter:   `userName eq "alice"`,
			expected: &EqualityFilter{Attribute: "userName", Value: "alice"},
		},
		{
			name:     "sub-attribute equality",
			filter:   `emails.value eq "a@example.com"`,
			expected: &EqualityFilter{Attribute: "emails", SubAttribute: "value", Value: "a@example.com"},
		},
		{
			name:   "unsupported operator",
			filter: `userName co "ali"`,
			check: func(t require.TestingT, err error, args ...any) {
				require.True(t, trace.IsNotImplemented(err), args...)
			},
		},
		{
			name:   "unsupported logical filter",
			filter: `userName eq "a" and active eq true`,
			check: func(t require.TestingT, err error, args ...any) {
				require.True(t, trace.IsNotImplemented(err), args...)
			},
		},
		{
			name:   "malformed filter",
			filter: `userName eq`,
			check: func(t require.TestingT, err error, args ...any) {
				require.True(t, trace.IsBadParameter(err), args...)
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			query := &ListQuery{Filter: test.filter}
			parsed, err := query.ParseEqualityFilter()
			if test.check != nil {
				require.Error(t, err)
				test.check(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expected, parsed)
		})
	}
}

func TestListQueryNormalize(t *testing.T) {
	query := &ListQuery{StartIndex: -3}
	query.Normalize()
	require.Equal(t, 1, query.StartIndex)

	query = &ListQuery{StartIndex: 5}
	query.Normalize()
	require.Equal(t, 5, query.StartIndex)
}
