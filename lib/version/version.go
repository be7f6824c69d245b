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

// Package version implements the opaque resource versions used for SCIM
// optimistic concurrency control.
//
// A version exists in two wire formats: the bare opaque value stored in
// `meta.version` ([Raw]) and the weak-ETag rendering used in HTTP headers
// ([HTTP]). The two types share the same opaque payload and convert
// losslessly; keeping them nominally distinct stops a raw string from being
// written into an ETag header (or vice versa) without an explicit
// conversion.
package version

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gravitational/trace"
)

// Raw is a bare opaque version value, e.g. "abc123". This is the format
// stored in a resource's meta.version attribute and surfaced in operation
// metadata.
type Raw struct {
	opaque string
}

// HTTP is the weak-ETag rendering of a version, e.g. `W/"abc123"`, as per
// RFC 7644 Section 3.14 and RFC 9110 Section 8.8.3.
type HTTP struct {
	opaque string
}

// hashLen is the number of leading SHA-256 bytes folded into a
// content-derived version. 64 bits keeps collisions negligible for
// optimistic concurrency, where a mismatch is recoverable.
const hashLen = 8

// FromContent derives a version from the canonical serialized content of a
// resource. Equal content always yields equal versions.
func FromContent(content []byte) Raw {
	sum := sha256.Sum256(content)
	return Raw{opaque: base64.RawURLEncoding.EncodeToString(sum[:hashLen])}
}

// FromHash adopts a provider-supplied opaque value (for example a database
// row version) as a version without further interpretation.
func FromHash(hash string) Raw {
	return Raw{opaque: hash}
}

// ParseHTTP parses the ETag rendering of a version. Both the weak form
// `W/"abc123"` and the strong form `"abc123"` are accepted; anything else
// fails with a bad parameter error.
func ParseHTTP(s string) (HTTP, error) {
	trimmed := strings.TrimPrefix(s, "W/")
	if len(trimmed) < 2 || !strings.HasPrefix(trimmed, `"`) || !strings.HasSuffix(trimmed, `"`) {
		return HTTP{}, trace.BadParameter("invalid ETag format: %q", s)
	}
	opaque := trimmed[1 : len(trimmed)-1]
	if opaque == "" {
		return HTTP{}, trace.BadParameter("invalid ETag format: %q (empty opaque value)", s)
	}
	return HTTP{opaque: opaque}, nil
}

// HTTP converts a raw version to its weak-ETag form. The opaque payload is
// carried through unchanged.
func (r Raw) HTTP() HTTP {
	return HTTP{opaque: r.opaque}
}

// String returns the bare opaque value.
func (r Raw) String() string {
	return r.opaque
}

// IsZero reports whether the version is unset.
func (r Raw) IsZero() bool {
	return r.opaque == ""
}

// Equal reports whether two raw versions carry the same opaque value.
func (r Raw) Equal(other Raw) bool {
	return r.opaque == other.opaque
}

// Raw converts an HTTP version back to its bare form. The opaque payload is
// carried through unchanged.
func (h HTTP) Raw() Raw {
	return Raw{opaque: h.opaque}
}

// String renders the version as a weak ETag.
func (h HTTP) String() string {
	return fmt.Sprintf("W/%q", h.opaque)
}

// IsZero reports whether the version is unset.
func (h HTTP) IsZero() bool {
	return h.opaque == ""
}

// Equal reports whether two HTTP versions carry the same opaque value.
func (h HTTP) Equal(other HTTP) bool {
	return h.opaque == other.opaque
}

// Conflict describes a failed version precondition on a conditional
// operation.
type Conflict struct {
	// Expected is the version the caller supplied.
	Expected Raw
	// Current is the version the resource held when the precondition was
	// evaluated.
	Current Raw
	// Message is a human-readable description of the conflict.
	Message string
}

// NewConflict builds a Conflict for the given expected/current pair.
func NewConflict(expected, current Raw) *Conflict {
	return &Conflict{
		Expected: expected,
		Current:  current,
		Message:  fmt.Sprintf("version mismatch: expected %q, current %q", expected, current),
	}
}

// Error renders the conflict as a comparison-failed error so it can travel
// through error returns when a structured result is not available.
func (c *Conflict) Error() error {
	return trace.CompareFailed("%s", c.Message)
}
