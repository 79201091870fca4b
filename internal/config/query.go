package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
	"github.com/oikos-cash/oikos-data-bsc/oikos"
)

// Query holds the entity filters given on the command line.
type Query struct {
	Network      string
	Max          int
	MinTimestamp int64
	MaxTimestamp int64
	MinBlock     int64
	MaxBlock     int64
	Address      string
	To           string
	Synth        string
}

// Parameter names tried, in order, for the generic address flags.
var (
	addressParams = []string{"fromAddress", "user", "account", "from"}
	toParams      = []string{"toAddress", "to"}
)

func loadQuery(v *viper.Viper) (Query, error) {
	minTS, err := ParseTimestamp(v.GetString("min-timestamp"))
	if err != nil {
		return Query{}, fmt.Errorf("parse min-timestamp: %w", err)
	}
	maxTS, err := ParseTimestamp(v.GetString("max-timestamp"))
	if err != nil {
		return Query{}, fmt.Errorf("parse max-timestamp: %w", err)
	}
	address, err := ParseAddress(v.GetString("address"))
	if err != nil {
		return Query{}, err
	}
	to, err := ParseAddress(v.GetString("to"))
	if err != nil {
		return Query{}, err
	}

	return Query{
		Network:      v.GetString("network"),
		Max:          v.GetInt("max"),
		MinTimestamp: minTS,
		MaxTimestamp: maxTS,
		MinBlock:     v.GetInt64("min-block"),
		MaxBlock:     v.GetInt64("max-block"),
		Address:      address,
		To:           to,
		Synth:        v.GetString("synth"),
	}, nil
}

// Params maps the query onto the filters of an entity. A filter the entity
// does not support is an error; the network default is skipped silently.
func (q Query) Params(entityKey string) (oikos.Params, error) {
	entity, err := schema.Lookup(entityKey)
	if err != nil {
		return nil, err
	}

	params := oikos.Params{}
	set := func(flag string, value interface{}, zero bool, candidates ...string) error {
		if zero {
			return nil
		}
		for _, param := range candidates {
			if _, ok := entity.Filter(param); ok {
				params[param] = value
				return nil
			}
		}
		return fmt.Errorf("--%s is not supported by %s", flag, entityKey)
	}

	if _, ok := entity.Filter("network"); ok && q.Network != "" {
		params["network"] = q.Network
	}
	steps := []error{
		set("min-timestamp", q.MinTimestamp, q.MinTimestamp == 0, "minTimestamp"),
		set("max-timestamp", q.MaxTimestamp, q.MaxTimestamp == 0, "maxTimestamp"),
		set("min-block", q.MinBlock, q.MinBlock == 0, "minBlock"),
		set("max-block", q.MaxBlock, q.MaxBlock == 0, "maxBlock"),
		set("address", q.Address, q.Address == "", addressParams...),
		set("to", q.To, q.To == "", toParams...),
		set("synth", q.Synth, q.Synth == "", "synth"),
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}
	return params, nil
}

// ParseAddress validates a hex address and returns it lowercased, the form
// the index stores. An empty input is allowed.
func ParseAddress(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}
	if !common.IsHexAddress(input) {
		return "", fmt.Errorf("invalid address: %s", input)
	}
	return strings.ToLower(common.HexToAddress(input).Hex()), nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseInt(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return tm.Unix(), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
