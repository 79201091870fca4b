package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oikos-cash/oikos-data-bsc/oikos"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	LogLevel string

	Endpoints   oikos.Endpoints
	PageSize    int
	RateLimit   float64
	HTTPTimeout time.Duration
	Reconnect   bool

	SwallowErrors bool

	RPCURL     string
	Out        string
	PGDSN      string
	CursorFile string
	Streams    []string

	Query Query
}

// Client returns the client configuration.
func (c Config) Client() oikos.Config {
	return oikos.Config{
		Endpoints:     c.Endpoints,
		PageSize:      c.PageSize,
		RateLimit:     c.RateLimit,
		HTTPTimeout:   c.HTTPTimeout,
		Reconnect:     c.Reconnect,
		SwallowErrors: c.SwallowErrors,
	}
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OIKOS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := oikos.DefaultConfig()
	v.SetDefault("log-level", "info")
	v.SetDefault("endpoint-oks", defaults.Endpoints.OKS)
	v.SetDefault("endpoint-depot", defaults.Endpoints.Depot)
	v.SetDefault("endpoint-exchanges", defaults.Endpoints.Exchanges)
	v.SetDefault("endpoint-rates", defaults.Endpoints.Rates)
	v.SetDefault("ws-exchanges", defaults.Endpoints.ExchangesStream)
	v.SetDefault("ws-rates", defaults.Endpoints.RatesStream)
	v.SetDefault("page-size", defaults.PageSize)
	v.SetDefault("rate-limit", 0)
	v.SetDefault("http-timeout", defaults.HTTPTimeout)
	v.SetDefault("reconnect", defaults.Reconnect)
	v.SetDefault("out", "-")
	v.SetDefault("streams", []string{oikos.StreamTrades, oikos.StreamRates})
	v.SetDefault("network", "mainnet")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	query, err := loadQuery(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		LogLevel: v.GetString("log-level"),
		Endpoints: oikos.Endpoints{
			OKS:             v.GetString("endpoint-oks"),
			Depot:           v.GetString("endpoint-depot"),
			Exchanges:       v.GetString("endpoint-exchanges"),
			Rates:           v.GetString("endpoint-rates"),
			ExchangesStream: v.GetString("ws-exchanges"),
			RatesStream:     v.GetString("ws-rates"),
		},
		PageSize:      v.GetInt("page-size"),
		RateLimit:     v.GetFloat64("rate-limit"),
		HTTPTimeout:   v.GetDuration("http-timeout"),
		Reconnect:     v.GetBool("reconnect"),
		SwallowErrors: v.GetBool("swallow-errors"),
		RPCURL:        v.GetString("rpc"),
		Out:           v.GetString("out"),
		PGDSN:         v.GetString("pg-dsn"),
		CursorFile:    v.GetString("cursor-file"),
		Streams:       getStringSlice(v, "streams"),
		Query:         query,
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

// cleanStrings trims items and drops empty and repeated ones.
func cleanStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
