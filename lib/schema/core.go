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

package schema

import (
	scimschema "github.com/elimity-com/scim/schema"

	"github.com/gravitational/scim"
)

// simpleString builds a single-valued, optional, readWrite string attribute.
func simpleString(name string) Attribute {
	return Attribute{
		Name:       name,
		Type:       TypeString,
		Mutability: MutabilityReadWrite,
		Returned:   ReturnedDefault,
		Uniqueness: UniquenessNone,
	}
}

// typedValueList builds the standard multi-valued complex attribute shape
// (value/display/type/primary) shared by emails, phoneNumbers, ims and
// photos.
func typedValueList(name string, canonicalTypes ...string) Attribute {
	return Attribute{
		Name:        name,
		Type:        TypeComplex,
		MultiValued: true,
		Mutability:  MutabilityReadWrite,
		Returned:    ReturnedDefault,
		SubAttributes: []Attribute{
			simpleString("value"),
			simpleString("display"),
			{
				Name:            "type",
				Type:            TypeString,
				Mutability:      MutabilityReadWrite,
				Returned:        ReturnedDefault,
				CanonicalValues: canonicalTypes,
			},
			{
				Name:       "primary",
				Type:       TypeBoolean,
				Mutability: MutabilityReadWrite,
				Returned:   ReturnedDefault,
			},
		},
	}
}

// CoreUserSchema returns the RFC 7643 Section 4.1 User schema.
func CoreUserSchema() Schema {
	return Schema{
		ID:          scimschema.UserSchema,
		Name:        "User",
		Description: "User Account",
		Attributes: []Attribute{
			{
				Name:       "userName",
				Type:       TypeString,
				Required:   true,
				Mutability: MutabilityReadWrite,
				Returned:   ReturnedDefault,
				Uniqueness: UniquenessServer,
			},
			{
				Name:       "name",
				Type:       TypeComplex,
				Mutability: MutabilityReadWrite,
				Returned:   ReturnedDefault,
				SubAttributes: []Attribute{
					simpleString("formatted"),
					simpleString("familyName"),
					simpleString("givenName"),
					simpleString("middleName"),
					simpleString("honorificPrefix"),
					simpleString("honorificSuffix"),
				},
			},
			simpleString("displayName"),
			simpleString("nickName"),
			{
				Name:           "profileUrl",
				Type:           TypeReference,
				Mutability:     MutabilityReadWrite,
				Returned:       ReturnedDefault,
				ReferenceTypes: []string{"external"},
			},
			simpleString("title"),
			simpleString("userType"),
			simpleString("preferredLanguage"),
			simpleString("locale"),
			simpleString("timezone"),
			{
				Name:       "active",
				Type:       TypeBoolean,
				Mutability: MutabilityReadWrite,
				Returned:   ReturnedDefault,
			},
			{
				Name:       "password",
				Type:       TypeString,
				Mutability: MutabilityWriteOnly,
				Returned:   ReturnedNever,
			},
			typedValueList("emails", "work", "home", "other"),
			typedValueList("phoneNumbers", "work", "home", "mobile", "fax", "pager", "other"),
			typedValueList("ims", "aim", "gtalk", "icq", "xmpp", "msn", "skype", "qq", "yahoo"),
			typedValueList("photos", "photo", "thumbnail"),
			{
				Name:        "addresses",
				Type:        TypeComplex,
				MultiValued: true,
				Mutability:  MutabilityReadWrite,
				Returned:    ReturnedDefault,
				SubAttributes: []Attribute{
					simpleString("formatted"),
					simpleString("streetAddress"),
					simpleString("locality"),
					simpleString("region"),
					simpleString("postalCode"),
					simpleString("country"),
					{
						Name:            "type",
						Type:            TypeString,
						Mutability:      MutabilityReadWrite,
						Returned:        ReturnedDefault,
						CanonicalValues: []string{"work", "home", "other"},
					},
					{
						Name:       "primary",
						Type:       TypeBoolean,
						Mutability: MutabilityReadWrite,
						Returned:   ReturnedDefault,
					},
				},
			},
			{
				Name:        "groups",
				Type:        TypeComplex,
				MultiValued: true,
				Mutability:  MutabilityReadOnly,
				Returned:    ReturnedDefault,
				SubAttributes: []Attribute{
					simpleString("value"),
					{
						Name:           "$ref",
						Type:           TypeReference,
						Mutability:     MutabilityReadOnly,
						Returned:       ReturnedDefault,
						ReferenceTypes: []string{"User", "Group"},
					},
					simpleString("display"),
					{
						Name:            "type",
						Type:            TypeString,
						Mutability:      MutabilityReadOnly,
						Returned:        ReturnedDefault,
						CanonicalValues: []string{"direct", "indirect"},
					},
				},
			},
			typedValueList("entitlements"),
			typedValueList("roles"),
			{
				Name:        "x509Certificates",
				Type:        TypeComplex,
				MultiValued: true,
				Mutability:  MutabilityReadWrite,
				Returned:    ReturnedDefault,
				SubAttributes: []Attribute{
					{
						Name:       "value",
						Type:       TypeBinary,
						Mutability: MutabilityReadWrite,
						Returned:   ReturnedDefault,
					},
					simpleString("display"),
					{
						Name:       "primary",
						Type:       TypeBoolean,
						Mutability: MutabilityReadWrite,
						Returned:   ReturnedDefault,
					},
				},
			},
		},
	}
}

// CoreGroupSchema returns the RFC 7643 Section 4.2 Group schema.
func CoreGroupSchema() Schema {
	return Schema{
		ID:          scimschema.GroupSchema,
		Name:        "Group",
		Description: "Group",
		Attributes: []Attribute{
			{
				Name:       "displayName",
				Type:       TypeString,
				Required:   true,
				Mutability: MutabilityReadWrite,
				Returned:   ReturnedDefault,
				Uniqueness: UniquenessNone,
			},
			{
				Name:        "members",
				Type:        TypeComplex,
				MultiValued: true,
				Mutability:  MutabilityReadWrite,
				Returned:    ReturnedDefault,
				SubAttributes: []Attribute{
					simpleString("value"),
					{
						Name:           "$ref",
						Type:           TypeReference,
						Mutability:     MutabilityReadWrite,
						Returned:       ReturnedDefault,
						ReferenceTypes: []string{"User", "Group"},
					},
					{
						Name:            "type",
						Type:            TypeString,
						Mutability:      MutabilityReadWrite,
						Returned:        ReturnedDefault,
						CanonicalValues: []string{"User", "Group"},
					},
					simpleString("display"),
				},
			},
		},
	}
}

// EnterpriseUserExtension returns the RFC 7643 Section 4.3 enterprise User
// extension schema.
func EnterpriseUserExtension() Schema {
	return Schema{
		ID:          scim.EnterpriseUserSchema,
		Name:        "EnterpriseUser",
		Description: "Enterprise User",
		Attributes: []Attribute{
			simpleString("employeeNumber"),
			simpleString("costCenter"),
			simpleString("organization"),
			simpleString("division"),
			simpleString("department"),
			{
				Name:       "manager",
				Type:       TypeComplex,
				Mutability: MutabilityReadWrite,
				Returned:   ReturnedDefault,
				SubAttributes: []Attribute{
					simpleString("value"),
					{
						Name:           "$ref",
						Type:           TypeReference,
						Mutability:     MutabilityReadWrite,
						Returned:       ReturnedDefault,
						ReferenceTypes: []string{"User"},
					},
					simpleString("displayName"),
				},
			},
		},
	}
}
