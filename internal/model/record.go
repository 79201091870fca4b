package model

// RawRecord is one entity instance as returned by the index, keyed by field name.
type RawRecord map[string]interface{}

// Record is a normalized record keyed by output field name.
type Record map[string]interface{}

// Envelope wraps a normalized record with the metadata used by sinks.
type Envelope struct {
	Entity    string `json:"entity"`
	Key       string `json:"key"`
	Block     int64  `json:"block,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Record    Record `json:"record"`
}

// ID returns the raw "id" field when it is a string.
func (r RawRecord) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Int64 returns an integer field of the record, if set.
func (r Record) Int64(key string) (int64, bool) {
	v, ok := r[key].(int64)
	return v, ok
}
