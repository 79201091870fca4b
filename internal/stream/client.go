package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the connection state of a subscription.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrClosed is returned for operations on a closed subscription.
var ErrClosed = errors.New("subscription closed")

var errCompleted = errors.New("operation completed")

// OperationError is an "error" or "connection_error" message from the server.
// The subscription ends without reconnecting.
type OperationError struct {
	Message string
}

func (e *OperationError) Error() string {
	return "subscription error: " + e.Message
}

// Config configures subscription behavior.
type Config struct {
	// Reconnect re-dials and restarts the operation after a dropped connection.
	Reconnect bool
	// MaxRetries bounds dial attempts per connection; negative is unlimited.
	MaxRetries        int
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HandshakeTimeout  time.Duration
	// ReadTimeout must exceed the server keep-alive interval.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// OnStateChange is called on every state transition.
	OnStateChange func(State)
}

// DefaultConfig returns the settings used for index subscriptions.
func DefaultConfig() Config {
	return Config{
		Reconnect:         true,
		MaxRetries:        -1,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		HandshakeTimeout:  15 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Handler receives subscription events. Calls are sequential and follow the
// order in which the server pushed them.
type Handler struct {
	Next     func(Payload)
	Error    func(error)
	Complete func()
}

// Subscription is one long-lived operation over its own websocket.
type Subscription struct {
	url     string
	query   string
	cfg     Config
	handler Handler
	logger  *zap.Logger

	state  atomic.Int32
	closed atomic.Bool

	connMu sync.Mutex
	conn   *websocket.Conn

	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe opens a websocket to url and starts the subscription document.
// The returned Subscription runs until Close, ctx cancellation, a server
// "complete" or an unrecoverable error.
func Subscribe(ctx context.Context, url, document string, cfg Config, handler Handler, logger *zap.Logger) *Subscription {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Reconnect {
		cfg.MaxRetries = 0
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultRetryDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		url:     url,
		query:   document,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(zap.String("url", url)),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	context.AfterFunc(ctx, s.closeConn)

	go s.run(ctx)
	return s
}

// State returns the current connection state.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops forwarding events and tears the connection down. Events already
// being delivered may still complete.
func (s *Subscription) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	return nil
}

func (s *Subscription) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_ = s.conn.WriteJSON(message{ID: operationID, Type: msgStop})
	_ = s.conn.WriteJSON(message{Type: msgConnectionTerminate})
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.conn.Close()
	s.conn = nil
}

func (s *Subscription) setState(state State) {
	if State(s.state.Swap(int32(state))) == state {
		return
	}
	s.logger.Debug("subscription state", zap.Stringer("state", state))
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(state)
	}
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(Disconnected)
	defer s.cancel()

	delay := s.cfg.ReconnectDelay
	for attempt := 0; ; attempt++ {
		if attempt == 0 {
			s.setState(Connecting)
		} else {
			s.setState(Reconnecting)
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextDelay(delay, s.cfg.MaxReconnectDelay)
		}

		conn, err := s.connect(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case isTerminal(err):
				s.emitError(err)
			default:
				s.emitError(fmt.Errorf("connect: %w", err))
			}
			return
		}
		s.setState(Connected)

		connectedAt := time.Now()
		delivered, err := s.serve(conn)
		s.closeConn()
		if ctx.Err() != nil {
			return
		}

		switch {
		case errors.Is(err, errCompleted):
			if !s.closed.Load() && s.handler.Complete != nil {
				s.handler.Complete()
			}
			return
		case isTerminal(err):
			s.emitError(err)
			return
		case !s.cfg.Reconnect:
			s.emitError(err)
			return
		}

		// A connection that pushed data or stayed up resets the backoff.
		if delivered || time.Since(connectedAt) >= s.cfg.MaxReconnectDelay {
			delay = s.cfg.ReconnectDelay
		}
		s.logger.Warn("subscription dropped", zap.Error(err), zap.Duration("retry_in", delay))
	}
}

// isTerminal reports errors that end a subscription without reconnecting.
func isTerminal(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr)
}

func (s *Subscription) connect(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.ReconnectDelay, s.cfg.MaxReconnectDelay, func(ctx context.Context) error {
		var err error
		conn, err = s.dial(ctx)
		if err != nil {
			s.logger.Warn("subscription dial failed", zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if ctx.Err() != nil {
		conn.Close()
		return nil, ErrClosed
	}
	s.conn = conn
	return conn, nil
}

// dial opens the websocket, waits for the connection ack and starts the
// operation.
func (s *Subscription) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		Subprotocols:     []string{Subprotocol},
	}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	if err := s.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (s *Subscription) handshake(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(message{Type: msgConnectionInit, Payload: json.RawMessage(`{}`)}); err != nil {
		return fmt.Errorf("write connection_init: %w", err)
	}

	for acked := false; !acked; {
		msg, err := s.read(conn)
		if err != nil {
			return fmt.Errorf("wait for ack: %w", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			acked = true
		case msgKeepAlive:
		case msgConnectionError:
			return &OperationError{Message: payloadMessage(msg.Payload)}
		default:
			return fmt.Errorf("unexpected %q before ack", msg.Type)
		}
	}

	start, err := json.Marshal(startPayload{Query: s.query})
	if err != nil {
		return fmt.Errorf("marshal start: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(message{ID: operationID, Type: msgStart, Payload: start}); err != nil {
		return fmt.Errorf("write start: %w", err)
	}
	return nil
}

func (s *Subscription) read(conn *websocket.Conn) (message, error) {
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	var msg message
	_, data, err := conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// serve reads operation messages until the connection fails or the operation
// ends. delivered reports whether any data message arrived.
func (s *Subscription) serve(conn *websocket.Conn) (bool, error) {
	delivered := false
	for {
		msg, err := s.read(conn)
		if err != nil {
			return delivered, err
		}

		switch msg.Type {
		case msgKeepAlive:
		case msgData:
			var payload Payload
			dec := json.NewDecoder(bytes.NewReader(msg.Payload))
			dec.UseNumber()
			if err := dec.Decode(&payload); err != nil {
				s.emitError(fmt.Errorf("decode payload: %w", err))
				continue
			}
			delivered = true
			s.dispatch(payload)
		case msgError, msgConnectionError:
			return delivered, &OperationError{Message: payloadMessage(msg.Payload)}
		case msgComplete:
			return delivered, errCompleted
		default:
			s.logger.Debug("ignored message", zap.String("type", msg.Type))
		}
	}
}

func (s *Subscription) dispatch(payload Payload) {
	if s.closed.Load() {
		return
	}
	for _, gqlErr := range payload.Errors {
		s.emitError(gqlErr)
	}
	if len(payload.Data) > 0 && s.handler.Next != nil {
		s.handler.Next(payload)
	}
}

func (s *Subscription) emitError(err error) {
	if s.closed.Load() || s.handler.Error == nil {
		return
	}
	s.handler.Error(err)
}

// payloadMessage extracts a message from an error payload, which is either an
// object, a list of objects or a string.
func payloadMessage(raw json.RawMessage) string {
	var single GraphQLError
	if err := json.Unmarshal(raw, &single); err == nil && single.Message != "" {
		return single.Message
	}
	var list []GraphQLError
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0].Message
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}
