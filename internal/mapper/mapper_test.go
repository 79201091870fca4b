package mapper

import (
	"errors"
	"testing"
	"time"

	"github.com/oikos-cash/oikos-data-bsc/internal/model"
	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
)

func sampleRaw(entity schema.Entity) model.RawRecord {
	raw := make(model.RawRecord, len(entity.Fields))
	for _, f := range entity.Fields {
		switch f.Kind {
		case schema.Plain:
			raw[f.Name] = "0x1111111111111111111111111111111111111111"
		case schema.Wei:
			raw[f.Name] = "1000000000000000000"
		case schema.Gwei:
			raw[f.Name] = "1000000000"
		case schema.Number:
			raw[f.Name] = "5"
		case schema.Int, schema.OptionalInt:
			raw[f.Name] = "7"
		case schema.Timestamp:
			raw[f.Name] = "1000"
		case schema.Hash:
			raw[f.Name] = "0xabc123-5"
		case schema.ShortCode:
			raw[f.Name] = "0x4f4b5300"
		}
	}
	return raw
}

func TestMapNullFixedPointStaysNull(t *testing.T) {
	for _, key := range schema.Keys() {
		entity, _ := schema.Lookup(key)
		for _, f := range entity.Fields {
			if f.Kind != schema.Wei && f.Kind != schema.Gwei && f.Kind != schema.Number {
				continue
			}
			raw := sampleRaw(entity)
			raw[f.Name] = nil

			rec, err := Map(entity, raw)
			if err != nil {
				t.Fatalf("%s: map: %v", key, err)
			}
			value, ok := rec[f.Output()]
			if !ok {
				t.Fatalf("%s: %s missing from output", key, f.Output())
			}
			if value != nil {
				t.Fatalf("%s: null %s mapped to %v", key, f.Name, value)
			}

			delete(raw, f.Name)
			rec, err = Map(entity, raw)
			if err != nil {
				t.Fatalf("%s: map absent: %v", key, err)
			}
			if rec[f.Output()] != nil {
				t.Fatalf("%s: absent %s mapped to %v", key, f.Name, rec[f.Output()])
			}
		}
	}
}

func TestMapSynthExchange(t *testing.T) {
	raw := model.RawRecord{
		"id":              "0xaaa-0",
		"from":            "0x1111111111111111111111111111111111111111",
		"gasPrice":        "2000000000",
		"fromAmount":      "5000000000000000000",
		"fromAmountInUSD": "10000000000000000000",
		"fromCurrencyKey": "0x4f4b5300",
		"toCurrencyKey":   "0x73555344",
		"toAddress":       "0x2222222222222222222222222222222222222222",
		"toAmount":        "2500000000000000000",
		"toAmountInUSD":   nil,
		"feesInUSD":       "30000000000000000",
		"block":           "123",
		"timestamp":       "1000",
	}

	rec, err := Map(schema.SynthExchanges, raw)
	if err != nil {
		t.Fatalf("map: %v", err)
	}

	checks := map[string]interface{}{
		"hash":                 "0xaaa",
		"fromAddress":          "0x1111111111111111111111111111111111111111",
		"gasPrice":             2.0,
		"fromAmount":           5.0,
		"fromAmountInUSD":      10.0,
		"fromCurrencyKey":      "OKS",
		"fromCurrencyKeyBytes": "0x4f4b5300",
		"toCurrencyKey":        "sUSD",
		"toAmount":             2.5,
		"toAmountInUSD":        nil,
		"feesInUSD":            0.03,
		"block":                int64(123),
		"timestamp":            int64(1000000),
	}
	for key, want := range checks {
		if got := rec[key]; got != want {
			t.Fatalf("%s mismatch: %v != %v", key, got, want)
		}
	}
	if _, ok := rec["from"]; ok {
		t.Fatalf("raw from should be renamed to fromAddress")
	}
	if got := rec["date"].(time.Time); !got.Equal(time.UnixMilli(1000000)) {
		t.Fatalf("date mismatch: %s", got)
	}
}

func TestMapKeepsTransferNaming(t *testing.T) {
	rec, err := Map(schema.OksTransfers, sampleRaw(schema.OksTransfers))
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if _, ok := rec["from"]; !ok {
		t.Fatalf("transfers keep the raw from field")
	}
	if _, ok := rec["fromAddress"]; ok {
		t.Fatalf("transfers must not rename from")
	}
}

func TestMapMissingRequiredField(t *testing.T) {
	raw := sampleRaw(schema.RateUpdates)
	delete(raw, "timestamp")

	_, err := Map(schema.RateUpdates, raw)
	if !errors.Is(err, ErrShape) {
		t.Fatalf("expected shape error, got %v", err)
	}

	raw = sampleRaw(schema.RateUpdates)
	delete(raw, "id")
	if _, err := Map(schema.RateUpdates, raw); !errors.Is(err, ErrShape) {
		t.Fatalf("expected shape error for missing id, got %v", err)
	}
}

func TestMapAllPreservesOrder(t *testing.T) {
	a := sampleRaw(schema.RateUpdates)
	a["id"] = "0xa-1"
	b := sampleRaw(schema.RateUpdates)
	b["id"] = "0xb-2"

	recs, err := MapAll(schema.RateUpdates, []model.RawRecord{a, b})
	if err != nil {
		t.Fatalf("map all: %v", err)
	}
	if len(recs) != 2 || recs[0]["hash"] != "0xa" || recs[1]["hash"] != "0xb" {
		t.Fatalf("order mismatch: %+v", recs)
	}
}

func TestDecode(t *testing.T) {
	type rateUpdate struct {
		Hash      string    `json:"hash"`
		Synth     string    `json:"synth"`
		Rate      *float64  `json:"rate"`
		Block     int64     `json:"block"`
		Timestamp int64     `json:"timestamp"`
		Date      time.Time `json:"date"`
	}

	raw := sampleRaw(schema.RateUpdates)
	raw["synth"] = "sBTC"
	rec, err := Map(schema.RateUpdates, raw)
	if err != nil {
		t.Fatalf("map: %v", err)
	}

	var got rateUpdate
	if err := Decode(rec, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Hash != "0xabc123" || got.Synth != "sBTC" || got.Block != 7 || got.Timestamp != 1000000 {
		t.Fatalf("decoded mismatch: %+v", got)
	}
	if got.Rate == nil || *got.Rate != 1 {
		t.Fatalf("rate mismatch: %v", got.Rate)
	}
	if !got.Date.Equal(time.UnixMilli(1000000)) {
		t.Fatalf("date mismatch: %s", got.Date)
	}

	raw["rate"] = nil
	rec, _ = Map(schema.RateUpdates, raw)
	var nullRate rateUpdate
	if err := Decode(rec, &nullRate); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if nullRate.Rate != nil {
		t.Fatalf("null rate should decode to nil, got %v", *nullRate.Rate)
	}
}

func TestEnvelope(t *testing.T) {
	raw := sampleRaw(schema.OksTransfers)
	rec, _ := Map(schema.OksTransfers, raw)
	env := Envelope(schema.OksTransfers, raw, rec)
	if env.Key != "0xabc123-5" || env.Entity != "oksTransfers" || env.Block != 7 || env.Timestamp != 1000000 {
		t.Fatalf("envelope mismatch: %+v", env)
	}

	totals := model.RawRecord{"issuers": "3", "oksHolders": "10"}
	rec, _ = Map(schema.OksTotals, totals)
	if env := Envelope(schema.OksTotals, totals, rec); env.Key != "oksTotals" {
		t.Fatalf("aggregate key mismatch: %s", env.Key)
	}
}
