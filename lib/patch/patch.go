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

// Package patch implements the SCIM PATCH operation semantics of RFC 7644
// Section 3.5.2: add, remove and replace operations addressed by path
// expressions, applied atomically against a resource's attribute set.
package patch

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/gravitational/trace"
	filter "github.com/scim2/filter-parser/v2"

	"github.com/gravitational/scim"
	"github.com/gravitational/scim/lib/schema"
	"github.com/gravitational/scim/lib/types"
)

const (
	// OperationAdd adds or merges a value at the target location.
	OperationAdd = "add"
	// OperationRemove removes the value at the target location.
	OperationRemove = "remove"
	// OperationReplace replaces the value at the target location.
	OperationReplace = "replace"
)

// Operation is a single PATCH operation as it appears on the wire.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Request is the JSON wire format of a SCIM PATCH request.
type Request struct {
	Schemas    []string    `json:"schemas"`
	Operations []Operation `json:"Operations"`
}

// UnmarshalRequest parses and checks a PATCH request body.
func UnmarshalRequest(data []byte) (*Request, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	var req Request
	if err := decoder.Decode(&req); err != nil {
		return nil, patchError(KindInvalidSyntax, "parsing PATCH request: %v", err)
	}
	if err := req.Check(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &req, nil
}

// Check validates the PATCH envelope. An empty operation list is legal and
// applies as a no-op.
func (r *Request) Check() error {
	declared := false
	for _, uri := range r.Schemas {
		if strings.EqualFold(uri, scim.PatchOpSchema) {
			declared = true
		}
	}
	if !declared {
		return patchError(KindInvalidSyntax, "PATCH request must declare the %s schema", scim.PatchOpSchema)
	}
	for i, op := range r.Operations {
		switch strings.ToLower(op.Op) {
		case OperationAdd, OperationRemove, OperationReplace:
		default:
			return patchError(KindInvalidSyntax, "operation %d has unknown op %q", i+1, op.Op)
		}
	}
	return nil
}

// Apply runs every operation of the request against a copy of the resource
// and revalidates the result. On success it returns the patched resource
// and whether anything actually changed; on any failure the original
// resource is untouched and no partial application leaks out.
func Apply(registry *schema.Registry, res *types.Resource, req *Request) (*types.Resource, bool, error) {
	if registry == nil {
		return nil, false, trace.BadParameter("missing schema registry")
	}
	if res == nil {
		return nil, false, trace.BadParameter("missing resource")
	}
	if err := req.Check(); err != nil {
		return nil, false, trace.Wrap(err)
	}

	base, ok := registry.BaseSchemaFor(res.ResourceType())
	if !ok {
		return nil, false, trace.NotFound("unknown resource type %q", res.ResourceType())
	}
	a := &applier{registry: registry, base: base}

	attrs := res.ToAttributeSet()
	before := attrs.Clone()

	for i, op := range req.Operations {
		if err := a.applyOperation(attrs, op); err != nil {
			return nil, false, trace.Wrap(err, "applying operation %d", i+1)
		}
	}

	if reflect.DeepEqual(map[string]any(before), map[string]any(attrs)) {
		return res, false, nil
	}

	patched, err := types.FromAttributeSet(registry, res.ResourceType(), attrs, schema.OpUpdate)
	if err != nil {
		return nil, false, trace.Wrap(err)
	}
	return patched, true, nil
}

type applier struct {
	registry *schema.Registry
	base     schema.Schema
}

func (a *applier) applyOperation(attrs types.AttributeSet, op Operation) error {
	kind := strings.ToLower(op.Op)

	if op.Path == "" {
		if kind == OperationRemove {
			return patchError(KindInvalidPath, "remove requires a path")
		}
		obj, ok := op.Value.(map[string]any)
		if !ok {
			return patchError(KindInvalidValue, "a %s without a path requires an object value, got %T", kind, op.Value)
		}
		// Each key of the value object is itself a path expression.
		for _, key := range sortedKeys(obj) {
			path, err := filter.ParsePath([]byte(key))
			if err != nil {
				return patchError(KindInvalidPath, "invalid attribute path %q: %v", key, err)
			}
			if err := a.applyPath(attrs, path, kind, obj[key]); err != nil {
				return trace.Wrap(err)
			}
		}
		return nil
	}

	path, err := filter.ParsePath([]byte(op.Path))
	if err != nil {
		return patchError(KindInvalidPath, "invalid path %q: %v", op.Path, err)
	}
	return a.applyPath(attrs, path, kind, op.Value)
}

func (a *applier) applyPath(attrs types.AttributeSet, path filter.Path, kind string, value any) error {
	attrName := path.AttributePath.AttributeName
	if attrName == "" {
		return patchError(KindInvalidPath, "path is missing an attribute name")
	}

	// The sub-attribute comes either from "attr.sub" or from
	// "attr[filter].sub"; the grammar does not allow both at once.
	sub := path.AttributePath.SubAttributeName()
	if sub == "" {
		sub = path.SubAttributeName()
	}

	container := map[string]any(attrs)
	var def schema.Attribute
	var haveDef bool

	if uri := path.AttributePath.URI(); uri != "" {
		extension, ok := a.registry.Get(uri)
		if !ok {
			return patchError(KindInvalidPath, "unknown extension schema %q", uri)
		}
		def, haveDef = extension.Attribute(attrName)
		if !haveDef {
			return patchError(KindInvalidPath, "attribute %q is not defined by %s", attrName, uri)
		}
		namespace, ok := attrs[uri].(map[string]any)
		if !ok {
			if kind == OperationRemove {
				return nil
			}
			namespace = map[string]any{}
			attrs[uri] = namespace
			a.declareSchema(attrs, uri)
		}
		container = namespace
	} else {
		if err := guardCommonAttribute(attrName, sub); err != nil {
			return trace.Wrap(err)
		}
		if strings.EqualFold(attrName, types.AttributeExternalID) {
			def, haveDef = schema.Attribute{Name: types.AttributeExternalID, Type: schema.TypeString, Mutability: schema.MutabilityReadWrite}, true
		} else {
			def, haveDef = a.base.Attribute(attrName)
			if !haveDef {
				return patchError(KindInvalidPath, "attribute %q is not defined for resource type %s", attrName, a.base.Name)
			}
		}
	}

	if err := checkMutability(def, kind, container); err != nil {
		return trace.Wrap(err)
	}
	if sub != "" {
		if def.Type != schema.TypeComplex {
			return patchError(KindInvalidPath, "attribute %q has no sub-attributes", def.Name)
		}
		if _, ok := def.SubAttribute(sub); !ok {
			return patchError(KindInvalidPath, "attribute %q has no sub-attribute %q", def.Name, sub)
		}
	}

	key := resolveKey(container, attrName, def.Name)

	if path.ValueExpression != nil {
		return a.applyFiltered(container, key, def, path.ValueExpression, sub, kind, value)
	}
	if sub != "" {
		return a.applySubAttribute(container, key, def, sub, kind, value)
	}
	return a.applyWhole(container, key, def, kind, value)
}

// applyWhole handles "attr" paths without filters or sub-attributes.
func (a *applier) applyWhole(container map[string]any, key string, def schema.Attribute, kind string, value any) error {
	switch kind {
	case OperationRemove:
		if def.Required {
			return patchError(KindInvalidValue, "cannot remove required attribute %q", def.Name)
		}
		delete(container, key)
		return nil

	case OperationAdd:
		if def.MultiValued {
			existing, _ := container[key].([]any)
			switch v := cloneValue(value).(type) {
			case []any:
				container[key] = append(existing, v...)
			default:
				container[key] = append(existing, v)
			}
			return nil
		}
		if def.Type == schema.TypeComplex {
			// Adding a complex value merges its sub-attributes into the
			// existing value rather than replacing it.
			if existing, ok := container[key].(map[string]any); ok {
				incoming, ok := value.(map[string]any)
				if !ok {
					return patchError(KindInvalidValue, "attribute %q requires an object value, got %T", def.Name, value)
				}
				for k, v := range incoming {
					existing[resolveKey(existing, k, k)] = cloneValue(v)
				}
				return nil
			}
		}
		container[key] = cloneValue(value)
		return nil

	case OperationReplace:
		container[key] = cloneValue(value)
		return nil
	}
	return patchError(KindInvalidSyntax, "unknown op %q", kind)
}

// applySubAttribute handles "attr.sub" paths. For multi-valued attributes
// the operation applies to every element.
func (a *applier) applySubAttribute(container map[string]any, key string, def schema.Attribute, sub, kind string, value any) error {
	if def.MultiValued {
		elements, ok := container[key].([]any)
		if !ok {
			if kind == OperationRemove {
				return nil
			}
			return patchError(KindNoTarget, "attribute %q has no values", def.Name)
		}
		for _, element := range elements {
			m, ok := element.(map[string]any)
			if !ok {
				return patchError(KindInvalidValue, "attribute %q holds non-object elements", def.Name)
			}
			applySubOp(m, sub, kind, value)
		}
		return nil
	}

	target, ok := container[key].(map[string]any)
	if !ok {
		if kind == OperationRemove {
			return nil
		}
		target = map[string]any{}
		container[key] = target
	}
	applySubOp(target, sub, kind, value)
	return nil
}

// applyFiltered handles "attr[filter]" and "attr[filter].sub" paths.
func (a *applier) applyFiltered(container map[string]any, key string, def schema.Attribute, expr filter.Expression, sub, kind string, value any) error {
	if !def.MultiValued {
		return patchError(KindInvalidPath, "attribute %q is not multi-valued and cannot be filtered", def.Name)
	}
	elements, ok := container[key].([]any)
	if !ok {
		return patchError(KindNoTarget, "attribute %q has no values matching the filter", def.Name)
	}

	var matched []int
	for i, element := range elements {
		m, ok := element.(map[string]any)
		if !ok {
			return patchError(KindInvalidValue, "attribute %q holds non-object elements", def.Name)
		}
		hit, err := evalFilter(expr, m)
		if err != nil {
			return trace.Wrap(err)
		}
		if hit {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		return patchError(KindNoTarget, "no values of %q match the filter", def.Name)
	}

	if sub != "" {
		for _, i := range matched {
			applySubOp(elements[i].(map[string]any), sub, kind, value)
		}
		return nil
	}

	switch kind {
	case OperationRemove:
		skip := make(map[int]bool, len(matched))
		for _, i := range matched {
			skip[i] = true
		}
		kept := make([]any, 0, len(elements)-len(matched))
		for i, element := range elements {
			if !skip[i] {
				kept = append(kept, element)
			}
		}
		if len(kept) == 0 {
			delete(container, key)
		} else {
			container[key] = kept
		}
		return nil

	case OperationReplace:
		for _, i := range matched {
			elements[i] = cloneValue(value)
		}
		return nil

	case OperationAdd:
		incoming, ok := value.(map[string]any)
		if !ok {
			return patchError(KindInvalidValue, "adding to filtered values of %q requires an object value, got %T", def.Name, value)
		}
		for _, i := range matched {
			element := elements[i].(map[string]any)
			for k, v := range incoming {
				element[resolveKey(element, k, k)] = cloneValue(v)
			}
		}
		return nil
	}
	return patchError(KindInvalidSyntax, "unknown op %q", kind)
}

func applySubOp(target map[string]any, sub, kind string, value any) {
	key := resolveKey(target, sub, sub)
	if kind == OperationRemove {
		delete(target, key)
		return
	}
	target[key] = cloneValue(value)
}

// evalFilter evaluates a value filter expression against one element of a
// multi-valued attribute. Only the operators PATCH paths actually need are
// supported: eq, ne, pr and the and/or/not combinators.
func evalFilter(expr filter.Expression, element map[string]any) (bool, error) {
	switch e := expr.(type) {
	case *filter.AttributeExpression:
		name := e.AttributePath.AttributeName
		raw, present := lookupValue(element, name)
		switch e.Operator {
		case filter.PR:
			return present && raw != nil, nil
		case filter.EQ:
			return present && compareValues(raw, e.CompareValue), nil
		case filter.NE:
			return !present || !compareValues(raw, e.CompareValue), nil
		default:
			return false, patchError(KindInvalidPath, "unsupported filter operator %q", e.Operator)
		}

	case *filter.LogicalExpression:
		left, err := evalFilter(e.Left, element)
		if err != nil {
			return false, trace.Wrap(err)
		}
		if e.Operator == filter.AND && !left {
			return false, nil
		}
		if e.Operator == filter.OR && left {
			return true, nil
		}
		right, err := evalFilter(e.Right, element)
		if err != nil {
			return false, trace.Wrap(err)
		}
		return right, nil

	case *filter.NotExpression:
		inner, err := evalFilter(e.Expression, element)
		if err != nil {
			return false, trace.Wrap(err)
		}
		return !inner, nil

	default:
		return false, patchError(KindInvalidPath, "unsupported filter expression %T", expr)
	}
}

func lookupValue(element map[string]any, name string) (any, bool) {
	if v, ok := element[name]; ok {
		return v, true
	}
	for k, v := range element {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// compareValues implements SCIM equality: strings compare case-insensitively
// unless the schema says otherwise, numbers compare by value.
func compareValues(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.EqualFold(as, bs)
	}
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an == bn
	}
	return reflect.DeepEqual(a, b)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// guardCommonAttribute rejects operations on the server-controlled parts of
// the resource header.
func guardCommonAttribute(attrName, sub string) error {
	switch {
	case strings.EqualFold(attrName, types.AttributeID):
		return patchError(KindMutability, "the id attribute is read-only")
	case strings.EqualFold(attrName, types.AttributeSchemas):
		return patchError(KindMutability, "the schemas attribute cannot be patched directly")
	case strings.EqualFold(attrName, types.AttributeMeta):
		if sub == "" {
			return patchError(KindMutability, "the meta attribute is read-only")
		}
		return patchError(KindMutability, "meta.%s is read-only", sub)
	}
	return nil
}

func checkMutability(def schema.Attribute, kind string, container map[string]any) error {
	switch def.Mutability {
	case schema.MutabilityReadOnly:
		return patchError(KindMutability, "attribute %q is read-only", def.Name)
	case schema.MutabilityImmutable:
		if _, present := lookupValue(container, def.Name); present || kind == OperationRemove {
			return patchError(KindMutability, "attribute %q is immutable", def.Name)
		}
	}
	return nil
}

// resolveKey finds the existing spelling of an attribute in a wire object,
// falling back to the schema's canonical spelling for new keys.
func resolveKey(container map[string]any, name, canonical string) string {
	if _, ok := container[name]; ok {
		return name
	}
	for key := range container {
		if strings.EqualFold(key, name) {
			return key
		}
	}
	if canonical != "" {
		return canonical
	}
	return name
}

// declareSchema appends an extension URI to the declared schemas list if it
// is not present yet.
func (a *applier) declareSchema(attrs types.AttributeSet, uri string) {
	declared, _ := attrs[types.AttributeSchemas].([]any)
	for _, existing := range declared {
		if s, ok := existing.(string); ok && strings.EqualFold(s, uri) {
			return
		}
	}
	attrs[types.AttributeSchemas] = append(declared, uri)
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

// sortedKeys gives pathless value objects a deterministic application order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
