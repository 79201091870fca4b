package schema

import "fmt"

// Kind selects the conversion applied to a raw field.
type Kind int

const (
	// Plain copies the raw value unchanged.
	Plain Kind = iota
	// Wei scales an 18-decimals fixed-point value; null stays null.
	Wei
	// Gwei scales a 9-decimals fixed-point value; null stays null.
	Gwei
	// Number converts an integer-as-string value without scaling; null stays null.
	Number
	// Int converts a required integer value.
	Int
	// OptionalInt converts an integer value; null stays null.
	OptionalInt
	// Timestamp expands a required seconds value into "timestamp" (ms) and "date".
	Timestamp
	// Hash keeps the transaction hash of a "<txHash>-<logIndex>" id.
	Hash
	// ShortCode decodes a hex identifier and keeps the encoded form under <out>Bytes.
	ShortCode
)

// Field maps one raw field into the normalized record.
type Field struct {
	Name string
	Out  string
	Kind Kind
}

// Output returns the normalized field name.
func (f Field) Output() string {
	if f.Out != "" {
		return f.Out
	}
	return f.Name
}

// FilterKind selects how a filter value is written as a query literal.
type FilterKind int

const (
	FilterString FilterKind = iota
	FilterNumber
)

// Filter binds a caller parameter to a predicate key.
type Filter struct {
	Param   string
	Key     string
	Kind    FilterKind
	Default interface{}
}

// Constraint is a predicate that always applies, unless UnlessSet names a
// parameter the caller provided.
type Constraint struct {
	Key       string
	Value     interface{}
	UnlessSet string
}

// Entity describes one queryable entity of the index.
type Entity struct {
	Key            string
	Name           string
	Endpoint       string
	OrderBy        string
	OrderDirection string
	Filters        []Filter
	Constraints    []Constraint
	Fields         []Field
	DefaultMax     int
	Aggregate      bool
}

// Properties returns the raw field names requested from the index.
func (e Entity) Properties() []string {
	seen := make(map[string]struct{}, len(e.Fields))
	props := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		if _, ok := seen[field.Name]; ok {
			continue
		}
		seen[field.Name] = struct{}{}
		props = append(props, field.Name)
	}
	return props
}

// Filter returns the filter bound to a caller parameter.
func (e Entity) Filter(param string) (Filter, bool) {
	for _, f := range e.Filters {
		if f.Param == param {
			return f, true
		}
	}
	return Filter{}, false
}

// Lookup returns the entity registered under key.
func Lookup(key string) (Entity, error) {
	entity, ok := registry[key]
	if !ok {
		return Entity{}, fmt.Errorf("unknown entity: %s", key)
	}
	return entity, nil
}

// Keys lists registered entity keys in declaration order.
func Keys() []string {
	keys := make([]string, 0, len(all))
	for _, e := range all {
		keys = append(keys, e.Key)
	}
	return keys
}
