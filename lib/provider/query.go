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
	"fmt"

	"github.com/gravitational/trace"
	filter "github.com/scim2/filter-parser/v2"
)

// ListQuery carries the filtering, sorting and pagination parameters of a
// list operation. The zero value lists everything.
type ListQuery struct {
	// Filter is a SCIM filter expression. Providers are only required to
	// support single attribute equality ("userName eq \"alice\"").
	Filter string
	// StartIndex is the 1-based index of the first result. Values below 1
	// are normalized to 1.
	StartIndex int
	// Count caps the number of resources per page. Zero means no cap;
	// negative values return no resources, only the total.
	Count int
	// SortBy names the attribute to order by. Empty means id order.
	SortBy string
	// SortAscending picks the sort direction when SortBy is set.
	SortAscending bool
}

// EqualityFilter is the parsed form of the one filter shape every provider
// must support: a case-insensitive equality test on a single attribute.
type EqualityFilter struct {
	Attribute    string
	SubAttribute string
	Value        string
}

// ParseEqualityFilter parses the query's filter expression and reduces it
// to an attribute equality test. It returns nil when no filter is set, and
// a trace.NotImplemented error for well-formed filters that use operators
// beyond the required subset.
func (q *ListQuery) ParseEqualityFilter() (*EqualityFilter, error) {
	if q == nil || q.Filter == "" {
		return nil, nil
	}
	expr, err := filter.ParseFilter([]byte(q.Filter))
	if err != nil {
		return nil, trace.BadParameter("invalid filter %q: %v", q.Filter, err)
	}
	attrExpr, ok := expr.(*filter.AttributeExpression)
	if !ok {
		return nil, trace.NotImplemented("unsupported filter %q: only attribute equality is supported", q.Filter)
	}
	if attrExpr.Operator != filter.EQ {
		return nil, trace.NotImplemented("unsupported filter operator %q: only eq is supported", attrExpr.Operator)
	}
	return &EqualityFilter{
		Attribute:    attrExpr.AttributePath.AttributeName,
		SubAttribute: attrExpr.AttributePath.SubAttributeName(),
		Value:        compareValueString(attrExpr.CompareValue),
	}, nil
}

func compareValueString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Normalize clamps the pagination parameters to their SCIM defaults.
func (q *ListQuery) Normalize() {
	if q.StartIndex < 1 {
		q.StartIndex = 1
	}
}
