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

package tenant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextCheck(t *testing.T) {
	tests := []struct {
		name      string
		ctx       Context
		assertErr require.ErrorAssertionFunc
	}{
		{
			name:      "single tenant",
			ctx:       Context{RequestID: "req-1"},
			assertErr: require.NoError,
		},
		{
			name:      "missing request id",
			ctx:       Context{},
			assertErr: require.Error,
		},
		{
			name: "valid tenant",
			ctx: Context{
				RequestID: "req-1",
				Tenant:    &TenantContext{TenantID: "acme", ClientID: "okta"},
			},
			assertErr: require.NoError,
		},
		{
			name: "missing tenant id",
			ctx: Context{
				RequestID: "req-1",
				Tenant:    &TenantContext{ClientID: "okta"},
			},
			assertErr: require.Error,
		},
		{
			name: "missing client id",
			ctx: Context{
				RequestID: "req-1",
				Tenant:    &TenantContext{TenantID: "acme"},
			},
			assertErr: require.Error,
		},
		{
			name: "reserved tenant name",
			ctx: Context{
				RequestID: "req-1",
				Tenant:    &TenantContext{TenantID: DefaultTenant, ClientID: "okta"},
			},
			assertErr: require.Error,
		},
		{
			name: "unknown isolation level",
			ctx: Context{
				RequestID: "req-1",
				Tenant: &TenantContext{
					TenantID:  "acme",
					ClientID:  "okta",
					Isolation: IsolationLevel("bogus"),
				},
			},
			assertErr: require.Error,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.assertErr(t, test.ctx.Check())
		})
	}
}

func TestIsolationDefaultsToStrict(t *testing.T) {
	ctx, err := NewTenantContext("req-1", TenantContext{TenantID: "acme", ClientID: "okta"})
	require.NoError(t, err)
	require.Equal(t, IsolationStrict, ctx.Tenant.Isolation)
}

func TestStorageTenant(t *testing.T) {
	single, err := NewContext("req-1")
	require.NoError(t, err)
	require.Equal(t, DefaultTenant, single.StorageTenant())

	tenanted, err := NewTenantContext("req-2", TenantContext{TenantID: "acme", ClientID: "okta"})
	require.NoError(t, err)
	require.Equal(t, "acme", tenanted.StorageTenant())
}

func TestPermissions(t *testing.T) {
	single, err := NewContext("req-1")
	require.NoError(t, err)
	require.True(t, single.Permissions().CanCreate)
	require.True(t, single.Permissions().CanDelete)
	require.Nil(t, single.Permissions().MaxUsers)

	max := 3
	tenanted, err := NewTenantContext("req-2", TenantContext{
		TenantID: "acme",
		ClientID: "okta",
		Permissions: Permissions{
			CanRead:  true,
			MaxUsers: &max,
		},
	})
	require.NoError(t, err)
	require.False(t, tenanted.Permissions().CanCreate)
	require.True(t, tenanted.Permissions().CanRead)
	require.Equal(t, 3, *tenanted.Permissions().MaxUsers)
}
