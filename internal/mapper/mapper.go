package mapper

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/oikos-cash/oikos-data-bsc/internal/model"
	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
	"github.com/oikos-cash/oikos-data-bsc/internal/units"
)

// ErrShape reports a raw record that lacks a required field or holds a value
// of the wrong type.
var ErrShape = errors.New("unexpected record shape")

// Map normalizes a raw record according to the entity schema.
func Map(entity schema.Entity, raw model.RawRecord) (model.Record, error) {
	out := make(model.Record, len(entity.Fields)+1)
	for _, field := range entity.Fields {
		if err := mapField(out, field, raw[field.Name]); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrShape, entity.Key, field.Name, err)
		}
	}
	return out, nil
}

// MapAll normalizes raw records element-wise, preserving order.
func MapAll(entity schema.Entity, raws []model.RawRecord) ([]model.Record, error) {
	out := make([]model.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := Map(entity, raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func mapField(out model.Record, field schema.Field, value interface{}) error {
	name := field.Output()

	switch field.Kind {
	case schema.Plain:
		out[name] = value
	case schema.Wei, schema.Gwei, schema.Number:
		scaled, err := units.ScaleDown(value, decimals(field.Kind))
		if err != nil {
			return err
		}
		if scaled == nil {
			out[name] = nil
		} else {
			out[name] = *scaled
		}
	case schema.Int:
		if value == nil {
			return fmt.Errorf("missing value")
		}
		n, err := units.ParseInt(value)
		if err != nil {
			return err
		}
		out[name] = n
	case schema.OptionalInt:
		if value == nil {
			out[name] = nil
			return nil
		}
		n, err := units.ParseInt(value)
		if err != nil {
			return err
		}
		out[name] = n
	case schema.Timestamp:
		if value == nil {
			return fmt.Errorf("missing value")
		}
		seconds, err := units.ParseInt(value)
		if err != nil {
			return err
		}
		out[name] = units.Millis(seconds)
		out["date"] = units.Date(seconds)
	case schema.Hash:
		id, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string id, got %T", value)
		}
		out[name] = units.SplitHash(id)
	case schema.ShortCode:
		if value == nil {
			out[name] = nil
			out[name+"Bytes"] = nil
			return nil
		}
		encoded, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected hex string, got %T", value)
		}
		out[name] = units.DecodeShortCode(encoded)
		out[name+"Bytes"] = encoded
	default:
		return fmt.Errorf("unsupported field kind %d", field.Kind)
	}
	return nil
}

func decimals(kind schema.Kind) uint8 {
	switch kind {
	case schema.Wei:
		return units.WeiDecimals
	case schema.Gwei:
		return units.GweiDecimals
	default:
		return 0
	}
}

// Decode copies a normalized record into a struct using its json tags.
func Decode(rec model.Record, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(map[string]interface{}(rec)); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// Envelope wraps a normalized record for sinks. The raw id keys the record
// when present, the entity key otherwise.
func Envelope(entity schema.Entity, raw model.RawRecord, rec model.Record) model.Envelope {
	key := raw.ID()
	if key == "" {
		key = entity.Key
	}
	env := model.Envelope{Entity: entity.Key, Key: key, Record: rec}
	if block, ok := rec.Int64("block"); ok {
		env.Block = block
	}
	if ts, ok := rec.Int64("timestamp"); ok {
		env.Timestamp = ts
	}
	return env
}
