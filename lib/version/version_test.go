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

package version

import (
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func TestFromContentDeterminism(t *testing.T) {
	a := FromContent([]byte(`{"userName":"alice"}`))
	b := FromContent([]byte(`{"userName":"alice"}`))
	c := FromContent([]byte(`{"userName":"bob"}`))

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.NotEmpty(t, a.String())
	require.False(t, a.IsZero())
}

func TestParseHTTP(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		assertErr require.ErrorAssertionFunc
	}{
		{
			name:      "weak etag",
			input:     `W/"abc123"`,
			want:      "abc123",
			assertErr: require.NoError,
		},
		{
			name:      "strong etag",
			input:     `"abc123"`,
			want:      "abc123",
			assertErr: require.NoError,
		},
		{
			name:  "bare value",
			input: `abc123`,
			assertErr: func(t require.TestingT, err error, args ...any) {
				require.True(t, trace.IsBadParameter(err), "expected bad parameter, got %v", err)
			},
		},
		{
			name:  "empty opaque",
			input: `W/""`,
			assertErr: func(t require.TestingT, err error, args ...any) {
				require.True(t, trace.IsBadParameter(err), "expected bad parameter, got %v", err)
			},
		},
		{
			name:  "unterminated quote",
			input: `W/"abc123`,
			assertErr: func(t require.TestingT, err error, args ...any) {
				require.True(t, trace.IsBadParameter(err), "expected bad parameter, got %v", err)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			parsed, err := ParseHTTP(test.input)
			test.assertErr(t, err)
			if err == nil {
				require.Equal(t, test.want, parsed.Raw().String())
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	raw := FromHash("abc123")

	// Raw -> HTTP -> string -> HTTP -> Raw must be the identity.
	rendered := raw.HTTP().String()
	require.Equal(t, `W/"abc123"`, rendered)

	reparsed, err := ParseHTTP(rendered)
	require.NoError(t, err)
	require.True(t, raw.Equal(reparsed.Raw()))
	require.True(t, raw.HTTP().Equal(reparsed))
}

func TestConflict(t *testing.T) {
	conflict := NewConflict(FromHash("old"), FromHash("new"))
	require.True(t, conflict.Expected.Equal(FromHash("old")))
	require.True(t, conflict.Current.Equal(FromHash("new")))
	require.True(t, trace.IsCompareFailed(conflict.Error()))
}
