package units

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	gethmath "github.com/ethereum/go-ethereum/common/math"
)

const (
	// WeiDecimals is the fixed-point scale of token amounts and USD values.
	WeiDecimals uint8 = 18
	// GweiDecimals is the fixed-point scale of gas prices.
	GweiDecimals uint8 = 9
)

// ScaleDown divides a fixed-point value by 10^decimals.
// A nil or empty input yields a nil result rather than zero.
func ScaleDown(value interface{}, decimals uint8) (*float64, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case string:
		return scaleString(typed, decimals)
	case json.Number:
		return scaleString(typed.String(), decimals)
	case *big.Int:
		if typed == nil {
			return nil, nil
		}
		return scaleInt(typed, decimals), nil
	case float64:
		out := typed / math.Pow10(int(decimals))
		return &out, nil
	case int64:
		return scaleInt(big.NewInt(typed), decimals), nil
	case int:
		return scaleInt(big.NewInt(int64(typed)), decimals), nil
	case uint64:
		return scaleInt(new(big.Int).SetUint64(typed), decimals), nil
	default:
		return nil, fmt.Errorf("unsupported fixed-point value %T", value)
	}
}

func scaleString(input string, decimals uint8) (*float64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if value, ok := gethmath.ParseBig256(input); ok {
		return scaleInt(value, decimals), nil
	}

	rat, ok := new(big.Rat).SetString(input)
	if !ok {
		return nil, fmt.Errorf("invalid fixed-point value: %q", input)
	}
	rat.Quo(rat, new(big.Rat).SetInt(pow10(decimals)))
	out, _ := rat.Float64()
	return &out, nil
}

func scaleInt(value *big.Int, decimals uint8) *float64 {
	rat := new(big.Rat).SetFrac(value, pow10(decimals))
	out, _ := rat.Float64()
	return &out
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// DecodeShortCode decodes a 0x-prefixed bytes32 identifier into ASCII.
// Zero byte pairs are skipped wherever they appear, a trailing odd nibble is
// dropped and pairs that are not valid hex are ignored.
func DecodeShortCode(encoded string) string {
	hex := strings.TrimPrefix(strings.TrimPrefix(encoded, "0x"), "0X")

	var out strings.Builder
	for n := 0; n+2 <= len(hex); n += 2 {
		pair := hex[n : n+2]
		if pair == "00" {
			continue
		}
		b, err := strconv.ParseUint(pair, 16, 8)
		if err != nil || b == 0 {
			continue
		}
		out.WriteByte(byte(b))
	}
	return out.String()
}

// SplitHash returns the transaction hash portion of a "<txHash>-<logIndex>" id.
func SplitHash(id string) string {
	if idx := strings.IndexByte(id, '-'); idx >= 0 {
		return id[:idx]
	}
	return id
}

// ParseInt converts an integer-like raw value into int64.
func ParseInt(value interface{}) (int64, error) {
	switch typed := value.(type) {
	case string:
		return strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n, nil
		}
		f, err := typed.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case float64:
		return int64(typed), nil
	case int64:
		return typed, nil
	case int:
		return int64(typed), nil
	case uint64:
		return int64(typed), nil
	default:
		return 0, fmt.Errorf("unsupported integer value %T", value)
	}
}

// Millis converts a second-resolution timestamp to milliseconds.
func Millis(seconds int64) int64 {
	return seconds * 1000
}

// Date returns the UTC calendar time of a second-resolution timestamp.
func Date(seconds int64) time.Time {
	return time.UnixMilli(Millis(seconds)).UTC()
}
