package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/oikos-cash/oikos-data-bsc/internal/query"
)

var (
	firstRe = regexp.MustCompile(`first: (\d+)`)
	skipRe  = regexp.MustCompile(`skip: (\d+)`)
)

type pagedServer struct {
	mu       sync.Mutex
	total    int
	requests []string
}

func (s *pagedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req.Query)
	s.mu.Unlock()

	first := 0
	if m := firstRe.FindStringSubmatch(req.Query); m != nil {
		first, _ = strconv.Atoi(m[1])
	}
	skip := 0
	if m := skipRe.FindStringSubmatch(req.Query); m != nil {
		skip, _ = strconv.Atoi(m[1])
	}

	rows := make([]map[string]interface{}, 0)
	for i := skip; i < s.total && i < skip+first; i++ {
		rows = append(rows, map[string]interface{}{
			"id":    fmt.Sprintf("0x%d-0", i),
			"block": i,
		})
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{"rateUpdates": rows},
	})
}

func testSelection(max int) query.Selection {
	return query.Selection{
		Entity:     "rateUpdates",
		OrderBy:    "timestamp",
		Properties: []string{"id", "block"},
		Max:        max,
	}
}

func TestFetchPagesUntilShortPage(t *testing.T) {
	backend := &pagedServer{total: 5}
	server := httptest.NewServer(backend)
	defer server.Close()

	pager := NewPager(Config{PageSize: 2, RateLimit: 1000}, zap.NewNop())
	records, err := pager.Fetch(context.Background(), server.URL, testSelection(query.Unlimited))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(records) != 5 {
		t.Fatalf("records mismatch: %d", len(records))
	}
	for i, rec := range records {
		if rec.ID() != fmt.Sprintf("0x%d-0", i) {
			t.Fatalf("order mismatch at %d: %s", i, rec.ID())
		}
		if _, ok := rec["block"].(json.Number); !ok {
			t.Fatalf("numbers should decode as json.Number, got %T", rec["block"])
		}
	}
	if len(backend.requests) != 3 {
		t.Fatalf("requests mismatch: %d", len(backend.requests))
	}
}

func TestFetchStopsAtCap(t *testing.T) {
	backend := &pagedServer{total: 10}
	server := httptest.NewServer(backend)
	defer server.Close()

	pager := NewPager(Config{PageSize: 2}, nil)
	records, err := pager.Fetch(context.Background(), server.URL, testSelection(3))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records mismatch: %d", len(records))
	}
	if len(backend.requests) != 2 {
		t.Fatalf("requests mismatch: %d", len(backend.requests))
	}
	if m := firstRe.FindStringSubmatch(backend.requests[1]); m == nil || m[1] != "1" {
		t.Fatalf("last page should ask for the remainder: %s", backend.requests[1])
	}
}

func TestFetchGraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"Type Query has no field foo"}]}`))
	}))
	defer server.Close()

	pager := NewPager(Config{}, nil)
	_, err := pager.Fetch(context.Background(), server.URL, testSelection(1))
	if !errors.Is(err, ErrGraphQL) {
		t.Fatalf("expected graphql error, got %v", err)
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	pager := NewPager(Config{}, nil)
	if _, err := pager.Fetch(context.Background(), server.URL, testSelection(1)); err == nil {
		t.Fatalf("expected error for HTTP 503")
	}
}

func TestFetchMissingEntity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"other":[]}}`))
	}))
	defer server.Close()

	pager := NewPager(Config{}, nil)
	if _, err := pager.Fetch(context.Background(), server.URL, testSelection(1)); err == nil {
		t.Fatalf("expected error for missing entity")
	}
}

func TestLatestBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"_meta":{"block":{"number":4242}}}}`))
	}))
	defer server.Close()

	pager := NewPager(Config{}, nil)
	got, err := pager.LatestBlock(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("latest block: %v", err)
	}
	if got != 4242 {
		t.Fatalf("latest block mismatch: %d", got)
	}
}
