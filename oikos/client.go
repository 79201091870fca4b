// Package oikos queries the Oikos subgraphs and returns normalized records.
//
// Failed queries return an error. Config.SwallowErrors opts into the legacy
// contract of logging the failure and returning a nil result with a nil error.
package oikos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oikos-cash/oikos-data-bsc/internal/graph"
	"github.com/oikos-cash/oikos-data-bsc/internal/mapper"
	"github.com/oikos-cash/oikos-data-bsc/internal/model"
	"github.com/oikos-cash/oikos-data-bsc/internal/query"
	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
	"github.com/oikos-cash/oikos-data-bsc/internal/stream"
)

// ErrEmptyAggregate is returned when a totals query yields no row.
var ErrEmptyAggregate = errors.New("aggregate query returned no rows")

// Envelope is a normalized record with the metadata used by sinks.
type Envelope = model.Envelope

// Params are filter values keyed by parameter name, see Client.Fetch.
type Params = query.Params

// Unlimited requests every record the index holds.
const Unlimited = query.Unlimited

// Endpoints are the subgraph URLs queried by the client.
type Endpoints struct {
	OKS       string
	Depot     string
	Exchanges string
	Rates     string

	ExchangesStream string
	RatesStream     string
}

// DefaultEndpoints returns the hosted subgraph URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		OKS:             "https://api.thegraph.com/subgraphs/name/oikos-cash/oikos",
		Depot:           "https://api.thegraph.com/subgraphs/name/synthetixio-team/synthetix-depot",
		Exchanges:       "https://api.thegraph.com/subgraphs/name/oikos-cash/exchanges",
		Rates:           "https://api.thegraph.com/subgraphs/name/oikos-cash/rates",
		ExchangesStream: "wss://api.thegraph.com/subgraphs/name/oikos-cash/exchanges",
		RatesStream:     "wss://api.thegraph.com/subgraphs/name/oikos-cash/rates",
	}
}

// URL returns the query endpoint for a schema endpoint key.
func (e Endpoints) URL(key string) (string, error) {
	var url string
	switch key {
	case schema.EndpointOKS:
		url = e.OKS
	case schema.EndpointDepot:
		url = e.Depot
	case schema.EndpointExchanges:
		url = e.Exchanges
	case schema.EndpointRates:
		url = e.Rates
	}
	if url == "" {
		return "", fmt.Errorf("no endpoint configured for %q", key)
	}
	return url, nil
}

// StreamURL returns the subscription endpoint for a schema endpoint key.
func (e Endpoints) StreamURL(key string) (string, error) {
	var url string
	switch key {
	case schema.EndpointExchanges:
		url = e.ExchangesStream
	case schema.EndpointRates:
		url = e.RatesStream
	}
	if url == "" {
		return "", fmt.Errorf("no stream endpoint configured for %q", key)
	}
	return url, nil
}

// Config configures a Client.
type Config struct {
	Endpoints Endpoints

	PageSize    int
	RateLimit   float64
	HTTPTimeout time.Duration

	// Reconnect re-opens dropped subscriptions. Events pushed while a
	// subscription is down are not replayed.
	Reconnect bool

	// SwallowErrors logs failed queries and returns a nil result with a nil
	// error instead of returning the error.
	SwallowErrors bool
}

// DefaultConfig returns a Config for the hosted subgraphs.
func DefaultConfig() Config {
	return Config{
		Endpoints:   DefaultEndpoints(),
		PageSize:    graph.MaxPageSize,
		HTTPTimeout: 30 * time.Second,
		Reconnect:   true,
	}
}

// Pager fetches every page of a selection.
type Pager interface {
	Fetch(ctx context.Context, endpoint string, sel query.Selection) ([]model.RawRecord, error)
}

// channel is an open push channel.
type channel interface {
	Close() error
	Done() <-chan struct{}
}

type subscribeFunc func(ctx context.Context, url, document string, handler stream.Handler) channel

// Option customizes a Client.
type Option func(*Client)

// WithPager replaces the HTTP pager.
func WithPager(p Pager) Option {
	return func(c *Client) {
		c.pager = p
	}
}

// WithClock replaces the clock used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

type service struct {
	client *Client
}

// Client queries the Oikos subgraphs.
type Client struct {
	cfg       Config
	pager     Pager
	subscribe subscribeFunc
	now       func() time.Time
	logger    *zap.Logger

	Depot     *DepotService
	Exchanges *ExchangesService
	Synths    *SynthsService
	Rate      *RateService
	Oks       *OksService
}

// NewClient builds a Client. A nil logger disables logging.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
	c.pager = graph.NewPager(graph.Config{
		PageSize:  cfg.PageSize,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.RateLimit,
	}, logger)

	streamCfg := stream.DefaultConfig()
	streamCfg.Reconnect = cfg.Reconnect
	c.subscribe = func(ctx context.Context, url, document string, handler stream.Handler) channel {
		return stream.Subscribe(ctx, url, document, streamCfg, handler, logger)
	}

	for _, opt := range opts {
		opt(c)
	}

	svc := &service{client: c}
	c.Depot = (*DepotService)(svc)
	c.Exchanges = (*ExchangesService)(svc)
	c.Synths = (*SynthsService)(svc)
	c.Rate = (*RateService)(svc)
	c.Oks = (*OksService)(svc)
	return c
}

// Fetch runs any registered entity query and returns sink envelopes in index
// order. See schema keys for the available entities.
func (c *Client) Fetch(ctx context.Context, entityKey string, params Params, max int) ([]Envelope, error) {
	entity, err := schema.Lookup(entityKey)
	if err != nil {
		return nil, err
	}
	raws, err := c.fetchRaw(ctx, entity, params, max)
	if err != nil {
		return nil, c.swallow(entityKey, err)
	}

	out := make([]Envelope, 0, len(raws))
	for i, raw := range raws {
		rec, err := mapper.Map(entity, raw)
		if err != nil {
			return nil, c.swallow(entityKey, fmt.Errorf("record %d: %w", i, err))
		}
		out = append(out, mapper.Envelope(entity, raw, rec))
	}
	return out, nil
}

// Entities lists the entity keys accepted by Fetch.
func Entities() []string {
	return schema.Keys()
}

func (c *Client) fetchRaw(ctx context.Context, entity schema.Entity, params query.Params, max int) ([]model.RawRecord, error) {
	sel, err := query.Build(entity, params, max)
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", entity.Key, err)
	}
	endpoint, err := c.cfg.Endpoints.URL(entity.Endpoint)
	if err != nil {
		return nil, err
	}
	return c.pager.Fetch(ctx, endpoint, sel)
}

// swallow applies the legacy error contract. It returns nil when the error
// has been logged instead.
func (c *Client) swallow(name string, err error) error {
	if err == nil || !c.cfg.SwallowErrors {
		return err
	}
	c.logger.Error("query failed", zap.String("query", name), zap.Error(err))
	return nil
}

// fetchList runs an entity query and decodes every normalized record into T.
func fetchList[T any](ctx context.Context, c *Client, name string, entity schema.Entity, params query.Params, max int) ([]T, error) {
	out, err := list[T](ctx, c, entity, params, max)
	if err != nil {
		return nil, c.swallow(name, err)
	}
	return out, nil
}

func list[T any](ctx context.Context, c *Client, entity schema.Entity, params query.Params, max int) ([]T, error) {
	raws, err := c.fetchRaw(ctx, entity, params, max)
	if err != nil {
		return nil, err
	}
	recs, err := mapper.MapAll(entity, raws)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var item T
		if err := mapper.Decode(rec, &item); err != nil {
			return nil, fmt.Errorf("%s: %w", entity.Key, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// fetchOne runs an aggregate query, which must yield exactly one row.
func fetchOne[T any](ctx context.Context, c *Client, name string, entity schema.Entity) (*T, error) {
	rows, err := list[T](ctx, c, entity, nil, 1)
	if err == nil && len(rows) == 0 {
		err = fmt.Errorf("%s: %w", entity.Key, ErrEmptyAggregate)
	}
	if err != nil {
		return nil, c.swallow(name, err)
	}
	return &rows[0], nil
}

type metaPager interface {
	LatestBlock(ctx context.Context, endpoint string) (int64, error)
}

// IndexedBlock returns the latest block indexed by the subgraph behind a
// schema endpoint key.
func (c *Client) IndexedBlock(ctx context.Context, endpointKey string) (int64, error) {
	endpoint, err := c.cfg.Endpoints.URL(endpointKey)
	if err != nil {
		return 0, err
	}
	meta, ok := c.pager.(metaPager)
	if !ok {
		return 0, fmt.Errorf("pager does not report indexed blocks")
	}
	return meta.LatestBlock(ctx, endpoint)
}

// EndpointKeys lists the subgraph keys accepted by IndexedBlock.
func EndpointKeys() []string {
	return []string{schema.EndpointOKS, schema.EndpointDepot, schema.EndpointExchanges, schema.EndpointRates}
}
