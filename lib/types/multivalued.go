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
	"github.com/gravitational/trace"
)

// primaried is implemented by multi-valued element types that carry a
// primary flag.
type primaried interface {
	IsPrimary() bool
}

// primarySetter is implemented by element types whose primary flag can be
// rewritten, enabling MultiValued.WithPrimary.
type primarySetter[T any] interface {
	WithPrimary(bool) T
}

// MultiValued is a non-empty ordered sequence of multi-valued attribute
// elements with the at-most-one-primary invariant enforced at construction.
type MultiValued[T any] struct {
	items []T
}

// NewMultiValued validates and wraps a sequence of elements. The sequence
// must be non-empty and may mark at most one element primary.
func NewMultiValued[T any](items []T) (MultiValued[T], error) {
	if len(items) == 0 {
		return MultiValued[T]{}, trace.BadParameter("multi-valued attribute must not be empty")
	}
	primaries := 0
	for _, item := range items {
		if p, ok := any(item).(primaried); ok && p.IsPrimary() {
			primaries++
		}
	}
	if primaries > 1 {
		return MultiValued[T]{}, trace.BadParameter("multi-valued attribute has %d primary elements, at most one is allowed", primaries)
	}
	return MultiValued[T]{items: items}, nil
}

// Items returns the elements in order. The returned slice must not be
// mutated.
func (m MultiValued[T]) Items() []T { return m.items }

// Len returns the number of elements.
func (m MultiValued[T]) Len() int { return len(m.items) }

// PrimaryIndex returns the index of the primary element, if any.
func (m MultiValued[T]) PrimaryIndex() (int, bool) {
	for i, item := range m.items {
		if p, ok := any(item).(primaried); ok && p.IsPrimary() {
			return i, true
		}
	}
	return 0, false
}

// Primary returns the primary element, if any.
func (m MultiValued[T]) Primary() (T, bool) {
	if i, ok := m.PrimaryIndex(); ok {
		return m.items[i], true
	}
	var zero T
	return zero, false
}

// WithPrimary returns a copy of the sequence with exactly the element at
// index marked primary. The element type must support primary selection.
func (m MultiValued[T]) WithPrimary(index int) (MultiValued[T], error) {
	if index < 0 || index >= len(m.items) {
		return MultiValued[T]{}, trace.BadParameter("primary index %d out of range [0, %d)", index, len(m.items))
	}
	items := make([]T, len(m.items))
	for i, item := range m.items {
		setter, ok := any(item).(primarySetter[T])
		if !ok {
			return MultiValued[T]{}, trace.BadParameter("element type %T does not support primary selection", item)
		}
		items[i] = setter.WithPrimary(i == index)
	}
	return MultiValued[T]{items: items}, nil
}

// Find returns the first element matching the predicate.
func (m MultiValued[T]) Find(match func(T) bool) (T, bool) {
	for _, item := range m.items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Filter returns every element matching the predicate, in order.
func (m MultiValued[T]) Filter(match func(T) bool) []T {
	var out []T
	for _, item := range m.items {
		if match(item) {
			out = append(out, item)
		}
	}
	return out
}
