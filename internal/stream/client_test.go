package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	Subprotocols: []string{Subprotocol},
	CheckOrigin:  func(r *http.Request) bool { return true },
}

// gqlServer speaks the server side of graphql-ws. After the start message it
// writes frames and then runs after, if set.
type gqlServer struct {
	t      *testing.T
	frames []string
	after  func(conn *websocket.Conn)

	mu       sync.Mutex
	queries  []string
	received []string
	conns    atomic.Int32
}

func (s *gqlServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.t.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()
	s.conns.Add(1)

	if conn.Subprotocol() != Subprotocol {
		s.t.Errorf("subprotocol mismatch: %q", conn.Subprotocol())
	}

	var init message
	if err := conn.ReadJSON(&init); err != nil || init.Type != msgConnectionInit {
		s.t.Errorf("expected connection_init, got %+v (%v)", init, err)
		return
	}
	_ = conn.WriteJSON(message{Type: msgConnectionAck})
	_ = conn.WriteJSON(message{Type: msgKeepAlive})

	var start message
	if err := conn.ReadJSON(&start); err != nil || start.Type != msgStart {
		s.t.Errorf("expected start, got %+v (%v)", start, err)
		return
	}
	var payload startPayload
	_ = json.Unmarshal(start.Payload, &payload)
	s.mu.Lock()
	s.queries = append(s.queries, payload.Query)
	s.mu.Unlock()

	for _, frame := range s.frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
	}
	if s.after != nil {
		s.after(conn)
		return
	}

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, msg.Type)
		s.mu.Unlock()
	}
}

func (s *gqlServer) receivedTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 20 * time.Millisecond
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = time.Second
	return cfg
}

func dataFrame(t *testing.T, entity string, ids ...string) string {
	t.Helper()
	rows := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, map[string]interface{}{"id": id, "rate": "1"})
	}
	payload, err := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{entity: rows},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	frame, err := json.Marshal(message{ID: operationID, Type: msgData, Payload: payload})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return string(frame)
}

func waitDone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("subscription did not stop")
	}
}

func TestSubscribeDeliversDataInOrder(t *testing.T) {
	backend := &gqlServer{t: t, frames: []string{
		dataFrame(t, "rateUpdates", "0x1-0", "0x1-1"),
		`{"type":"ka"}`,
		dataFrame(t, "rateUpdates", "0x2-0"),
		`{"id":"1","type":"complete"}`,
	}}
	server := httptest.NewServer(backend)
	defer server.Close()

	var (
		mu        sync.Mutex
		ids       []string
		completed bool
	)
	handler := Handler{
		Next: func(p Payload) {
			mu.Lock()
			defer mu.Unlock()
			for _, rec := range p.Data["rateUpdates"] {
				ids = append(ids, rec.ID())
			}
		},
		Error: func(err error) { t.Errorf("unexpected error: %v", err) },
		Complete: func() {
			mu.Lock()
			completed = true
			mu.Unlock()
		},
	}

	sub := Subscribe(context.Background(), wsURL(server), "subscription { rateUpdates { id } }", testConfig(), handler, zap.NewNop())
	waitDone(t, sub)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"0x1-0", "0x1-1", "0x2-0"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Fatalf("ids mismatch: got %v want %v", ids, want)
	}
	if !completed {
		t.Fatalf("expected complete callback")
	}
	if sub.State() != Disconnected {
		t.Fatalf("state mismatch: %s", sub.State())
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.queries) != 1 || backend.queries[0] != "subscription { rateUpdates { id } }" {
		t.Fatalf("query mismatch: %+v", backend.queries)
	}
}

func TestSubscribeErrorMessageEndsSubscription(t *testing.T) {
	backend := &gqlServer{t: t, frames: []string{
		`{"id":"1","type":"error","payload":[{"message":"bad field"}]}`,
	}}
	server := httptest.NewServer(backend)
	defer server.Close()

	errs := make(chan error, 4)
	handler := Handler{
		Next:  func(Payload) { t.Errorf("unexpected data") },
		Error: func(err error) { errs <- err },
	}

	sub := Subscribe(context.Background(), wsURL(server), "subscription { x { id } }", testConfig(), handler, zap.NewNop())
	waitDone(t, sub)

	select {
	case err := <-errs:
		var opErr *OperationError
		if !errors.As(err, &opErr) || opErr.Message != "bad field" {
			t.Fatalf("error mismatch: %v", err)
		}
	default:
		t.Fatalf("expected an error callback")
	}
	if got := backend.conns.Load(); got != 1 {
		t.Fatalf("expected no reconnect, got %d connections", got)
	}
}

func TestSubscribePayloadErrorsAreForwarded(t *testing.T) {
	backend := &gqlServer{t: t, frames: []string{
		`{"id":"1","type":"data","payload":{"data":null,"errors":[{"message":"indexing error"}]}}`,
		`{"id":"1","type":"complete"}`,
	}}
	server := httptest.NewServer(backend)
	defer server.Close()

	var got []string
	var mu sync.Mutex
	handler := Handler{
		Next: func(Payload) { t.Errorf("unexpected data") },
		Error: func(err error) {
			mu.Lock()
			got = append(got, err.Error())
			mu.Unlock()
		},
	}

	sub := Subscribe(context.Background(), wsURL(server), "subscription { x { id } }", testConfig(), handler, zap.NewNop())
	waitDone(t, sub)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "indexing error" {
		t.Fatalf("errors mismatch: %v", got)
	}
}

func TestSubscribeReconnectsAfterDrop(t *testing.T) {
	var calls atomic.Int32
	backend := &gqlServer{t: t}
	backend.after = func(conn *websocket.Conn) {
		if calls.Add(1) == 1 {
			// drop the first connection without a close frame
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(dataFrame(t, "synthExchanges", "0xabc-1")))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"1","type":"complete"}`))
		time.Sleep(50 * time.Millisecond)
	}
	server := httptest.NewServer(backend)
	defer server.Close()

	var (
		mu     sync.Mutex
		ids    []string
		states []State
	)
	cfg := testConfig()
	cfg.OnStateChange = func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}
	handler := Handler{
		Next: func(p Payload) {
			mu.Lock()
			defer mu.Unlock()
			for _, rec := range p.Data["synthExchanges"] {
				ids = append(ids, rec.ID())
			}
		},
	}

	sub := Subscribe(context.Background(), wsURL(server), "subscription { synthExchanges { id } }", cfg, handler, zap.NewNop())
	waitDone(t, sub)

	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 1 || ids[0] != "0xabc-1" {
		t.Fatalf("ids mismatch: %v", ids)
	}
	if backend.conns.Load() != 2 {
		t.Fatalf("expected 2 connections, got %d", backend.conns.Load())
	}

	sawReconnecting := false
	for _, s := range states {
		if s == Reconnecting {
			sawReconnecting = true
		}
	}
	if !sawReconnecting {
		t.Fatalf("expected reconnecting state, got %v", states)
	}
	if states[len(states)-1] != Disconnected {
		t.Fatalf("expected final disconnected state, got %v", states)
	}
}

func TestSubscribeWithoutReconnectReportsDrop(t *testing.T) {
	backend := &gqlServer{t: t, after: func(*websocket.Conn) {}}
	server := httptest.NewServer(backend)
	defer server.Close()

	cfg := testConfig()
	cfg.Reconnect = false

	errs := make(chan error, 1)
	sub := Subscribe(context.Background(), wsURL(server), "subscription { x { id } }", cfg, Handler{
		Error: func(err error) { errs <- err },
	}, zap.NewNop())
	waitDone(t, sub)

	select {
	case <-errs:
	default:
		t.Fatalf("expected drop to be reported")
	}
	if backend.conns.Load() != 1 {
		t.Fatalf("expected a single connection, got %d", backend.conns.Load())
	}
}

func TestCloseStopsDeliveryAndSendsStop(t *testing.T) {
	backend := &gqlServer{t: t, frames: []string{dataFrame(t, "rateUpdates", "0x1-0")}}
	server := httptest.NewServer(backend)
	defer server.Close()

	delivered := make(chan struct{}, 1)
	sub := Subscribe(context.Background(), wsURL(server), "subscription { rateUpdates { id } }", testConfig(), Handler{
		Next: func(Payload) { delivered <- struct{}{} },
	}, zap.NewNop())

	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatalf("no data delivered")
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	waitDone(t, sub)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		types := backend.receivedTypes()
		if len(types) >= 2 {
			if types[0] != msgStop || types[1] != msgConnectionTerminate {
				t.Fatalf("teardown mismatch: %v", types)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not receive stop, got %v", backend.receivedTypes())
}

func TestContextCancelStopsSubscription(t *testing.T) {
	backend := &gqlServer{t: t}
	server := httptest.NewServer(backend)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	connected := make(chan struct{})
	var once sync.Once
	cfg := testConfig()
	cfg.OnStateChange = func(s State) {
		if s == Connected {
			once.Do(func() { close(connected) })
		}
	}

	sub := Subscribe(ctx, wsURL(server), "subscription { x { id } }", cfg, Handler{
		Error: func(err error) { t.Errorf("unexpected error: %v", err) },
	}, zap.NewNop())

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatalf("never connected")
	}
	cancel()
	waitDone(t, sub)
}

func TestPayloadMessage(t *testing.T) {
	cases := map[string]string{
		`{"message":"single"}`:    "single",
		`[{"message":"listed"}]`: "listed",
		`"plain"`:                 "plain",
		`42`:                      "42",
	}
	for raw, want := range cases {
		if got := payloadMessage(json.RawMessage(raw)); got != want {
			t.Fatalf("payloadMessage(%s) mismatch: got %q want %q", raw, got, want)
		}
	}
}

// ackThenClose acknowledges the connection, reads start and hangs up.
func ackThenClose(conns *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)

		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.WriteJSON(message{Type: msgConnectionAck})
		_ = conn.ReadJSON(&msg)
	}
}

func TestSubscribeBacksOffBetweenReconnects(t *testing.T) {
	var conns atomic.Int32
	server := httptest.NewServer(ackThenClose(&conns))
	defer server.Close()

	cfg := testConfig()
	cfg.ReconnectDelay = 100 * time.Millisecond
	cfg.MaxReconnectDelay = 200 * time.Millisecond

	sub := Subscribe(context.Background(), wsURL(server), "subscription { x { id } }", cfg, Handler{}, zap.NewNop())
	time.Sleep(500 * time.Millisecond)
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	waitDone(t, sub)

	// dials at about 0, 100, 300 and 500ms
	if got := conns.Load(); got < 2 || got > 6 {
		t.Fatalf("connections mismatch: got %d in 500ms", got)
	}
}

func TestSubscribeConnectionErrorIsTerminal(t *testing.T) {
	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)

		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connection_error","payload":{"message":"unauthorized"}}`))
		for conn.ReadJSON(&msg) == nil {
		}
	}))
	defer server.Close()

	var (
		mu   sync.Mutex
		errs []error
	)
	sub := Subscribe(context.Background(), wsURL(server), "subscription { x { id } }", testConfig(), Handler{
		Next: func(Payload) { t.Errorf("unexpected data") },
		Error: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	}, zap.NewNop())
	waitDone(t, sub)

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 {
		t.Fatalf("expected one error callback, got %v", errs)
	}
	var opErr *OperationError
	if !errors.As(errs[0], &opErr) || opErr.Message != "unauthorized" {
		t.Fatalf("error mismatch: %v", errs[0])
	}
	if got := conns.Load(); got != 1 {
		t.Fatalf("expected a single connection, got %d", got)
	}
}
