package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/pkg/utils"
)

// Record is a schema-agnostic source record as yielded by a source plugin.
type Record map[string]interface{}

// Key is an ordered identifier tuple. Composite keys have more than one element.
type Key []string

// String joins the key parts for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Hash is a stable digest of the tuple, used as the storage lookup column.
func (k Key) Hash() string {
	b, _ := json.Marshal([]string(k))
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Equal reports element-wise equality.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// KeyOf builds a Key from arbitrary scalar values.
func KeyOf(values ...interface{}) Key {
	k := make(Key, len(values))
	for i, v := range values {
		k[i] = utils.ToString(v)
	}
	return k
}

// Row is one unit of work: the source properties of a record and the
// destination properties computed from them.
type Row struct {
	source      Record
	destination map[string]interface{}
	order       []string
	idFields    []string
	frozen      bool
}

// NewRow creates a row. Every id field must be present and non-empty.
func NewRow(values Record, idFields []string) (*Row, error) {
	for _, f := range idFields {
		v, ok := values[f]
		if !ok || utils.IsEmpty(v) {
			return nil, errors.Newf("source id %q has no value", f)
		}
	}
	src := make(Record, len(values))
	for k, v := range values {
		src[k] = v
	}
	return &Row{
		source:      src,
		destination: make(map[string]interface{}),
		idFields:    idFields,
	}, nil
}

// Source returns a source property.
func (r *Row) Source(name string) (interface{}, bool) {
	v, ok := r.source[name]
	return v, ok
}

// SourceValues returns a copy of all source properties.
func (r *Row) SourceValues() Record {
	out := make(Record, len(r.source))
	for k, v := range r.source {
		out[k] = v
	}
	return out
}

// SetSource changes a source property. Not allowed once the row is frozen.
func (r *Row) SetSource(name string, value interface{}) error {
	if r.frozen {
		return errors.Newf("row is frozen: cannot set source property %q", name)
	}
	r.source[name] = value
	return nil
}

// Freeze makes the source properties read only.
func (r *Row) Freeze() { r.frozen = true }

// Frozen reports whether Freeze was called.
func (r *Row) Frozen() bool { return r.frozen }

// Get reads a property by name. A leading "@" addresses a destination
// property computed earlier in the same row.
func (r *Row) Get(name string) interface{} {
	if strings.HasPrefix(name, "@") {
		return r.destination[name[1:]]
	}
	return r.source[name]
}

// Destination returns a destination property.
func (r *Row) Destination(name string) (interface{}, bool) {
	v, ok := r.destination[name]
	return v, ok
}

// SetDestination stores a computed destination property.
func (r *Row) SetDestination(name string, value interface{}) {
	if _, ok := r.destination[name]; !ok {
		r.order = append(r.order, name)
	}
	r.destination[name] = value
}

// DestinationValues returns a copy of the destination properties.
func (r *Row) DestinationValues() map[string]interface{} {
	out := make(map[string]interface{}, len(r.destination))
	for k, v := range r.destination {
		out[k] = v
	}
	return out
}

// DestinationFields lists destination property names in the order they were set.
func (r *Row) DestinationFields() []string {
	return append([]string(nil), r.order...)
}

// SourceIDs returns the identifier tuple of the row.
func (r *Row) SourceIDs() Key {
	k := make(Key, len(r.idFields))
	for i, f := range r.idFields {
		k[i] = utils.ToString(r.source[f])
	}
	return k
}

// Hash digests the source properties so upstream changes can be detected.
func (r *Row) Hash() string {
	b, err := json.Marshal(r.source)
	if err != nil {
		b = []byte(fmt.Sprintf("%v", r.source))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ParseKeyList reads an --idlist value: keys separated by commas, parts of a
// composite key separated by colons, e.g. "1:en,2:fr".
func ParseKeyList(s string) []Key {
	var keys []Key
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		keys = append(keys, Key(parts))
	}
	return keys
}
