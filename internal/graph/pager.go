package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oikos-cash/oikos-data-bsc/internal/model"
	"github.com/oikos-cash/oikos-data-bsc/internal/query"
)

// MaxPageSize is the largest "first" argument the hosted index accepts.
const MaxPageSize = 1000

// ErrGraphQL wraps errors reported in the "errors" field of a response.
var ErrGraphQL = errors.New("graphql error")

// Config controls pager behavior.
type Config struct {
	PageSize  int
	Timeout   time.Duration
	RateLimit float64
}

// Pager fetches every page of a selection from a GraphQL index.
type Pager struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
	logger     *zap.Logger
}

// NewPager builds a Pager. A zero RateLimit disables request throttling.
func NewPager(cfg Config, logger *zap.Logger) *Pager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = MaxPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Pager{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		pageSize:   cfg.PageSize,
		logger:     logger,
	}
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Fetch pages through the selection until the cap is reached or the index
// returns a short page. Records keep the index order.
func (p *Pager) Fetch(ctx context.Context, endpoint string, sel query.Selection) ([]model.RawRecord, error) {
	var records []model.RawRecord
	skip := 0
	for {
		first := p.pageSize
		if !sel.Unbounded() {
			remaining := sel.Max - len(records)
			if remaining <= 0 {
				break
			}
			if remaining < first {
				first = remaining
			}
		}

		page, err := p.fetchPage(ctx, endpoint, sel, first, skip)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)

		p.logger.Debug("page fetched",
			zap.String("entity", sel.Entity),
			zap.Int("skip", skip),
			zap.Int("records", len(page)),
		)

		if len(page) < first {
			break
		}
		skip += len(page)
	}
	return records, nil
}

func (p *Pager) fetchPage(ctx context.Context, endpoint string, sel query.Selection, first, skip int) ([]model.RawRecord, error) {
	data, err := p.doQuery(ctx, endpoint, sel.Document(first, skip))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", sel.Entity, err)
	}

	var result map[string][]model.RawRecord
	if err := decodeJSON(data, &result); err != nil {
		return nil, fmt.Errorf("decode %s: %w", sel.Entity, err)
	}
	page, ok := result[sel.Entity]
	if !ok {
		return nil, fmt.Errorf("decode %s: entity missing from response", sel.Entity)
	}
	return page, nil
}

// LatestBlock returns the latest block number indexed at endpoint.
func (p *Pager) LatestBlock(ctx context.Context, endpoint string) (int64, error) {
	data, err := p.doQuery(ctx, endpoint, `{ _meta { block { number } } }`)
	if err != nil {
		return 0, fmt.Errorf("fetch latest block: %w", err)
	}

	var result struct {
		Meta struct {
			Block struct {
				Number int64 `json:"number"`
			} `json:"block"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return 0, fmt.Errorf("decode latest block: %w", err)
	}
	return result.Meta.Block.Number, nil
}

// doQuery executes a GraphQL query and returns the raw "data" field.
func (p *Pager) doQuery(ctx context.Context, endpoint, document string) (json.RawMessage, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(graphqlRequest{Query: document})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, gqlResp.Errors[0].Message)
	}
	return gqlResp.Data, nil
}

// decodeJSON keeps numbers as json.Number so large integers survive.
func decodeJSON(data []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}
