package oikos

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/oikos-cash/oikos-data-bsc/internal/mapper"
	"github.com/oikos-cash/oikos-data-bsc/internal/model"
	"github.com/oikos-cash/oikos-data-bsc/internal/query"
	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
	"github.com/oikos-cash/oikos-data-bsc/internal/stream"
)

// Observer receives subscription events. Nil callbacks are skipped.
type Observer[T any] struct {
	OnData     func(T)
	OnError    func(error)
	OnComplete func()
}

// Observable is a live query. Every Subscribe opens its own connection.
//
// Delivery is at most once per connection: records pushed while a dropped
// connection is being re-established are not replayed.
type Observable[T any] struct {
	client *Client
	entity schema.Entity
	params query.Params
	decode func(raw model.RawRecord, rec model.Record) (T, error)
}

func newObservable[T any](c *Client, entity schema.Entity, params query.Params, decode func(model.RawRecord, model.Record) (T, error)) *Observable[T] {
	return &Observable[T]{client: c, entity: entity, params: params, decode: decode}
}

func decodeInto[T any](_ model.RawRecord, rec model.Record) (T, error) {
	var out T
	err := mapper.Decode(rec, &out)
	return out, err
}

// Document returns the subscription document sent to the index.
func (o *Observable[T]) Document() (string, error) {
	sel, err := query.Build(o.entity, o.params, 0)
	if err != nil {
		return "", fmt.Errorf("build %s subscription: %w", o.entity.Key, err)
	}
	return sel.Subscription(), nil
}

// Subscription is the handle of one Observable.Subscribe call.
type Subscription struct {
	stopped atomic.Bool
	channel channel
	done    chan struct{}
}

// Unsubscribe stops forwarding and closes the channel. A record already
// being delivered may still arrive after it returns.
func (s *Subscription) Unsubscribe() {
	if s.stopped.Swap(true) || s.channel == nil {
		return
	}
	_ = s.channel.Close()
}

// Done is closed once the channel has stopped, either after Unsubscribe or
// because the server ended the subscription or it failed for good.
func (s *Subscription) Done() <-chan struct{} {
	if s.channel != nil {
		return s.channel.Done()
	}
	return s.done
}

// Subscribe opens the push channel and forwards each pushed record, mapped,
// to obs.OnData in the order received.
func (o *Observable[T]) Subscribe(ctx context.Context, obs Observer[T]) *Subscription {
	sub := &Subscription{}
	onError := func(err error) {
		if obs.OnError != nil && !sub.stopped.Load() {
			obs.OnError(err)
		}
	}

	url, document, err := o.target()
	if err != nil {
		sub.done = make(chan struct{})
		close(sub.done)
		onError(err)
		return sub
	}

	sub.channel = o.client.subscribe(ctx, url, document, stream.Handler{
		Next: func(p stream.Payload) {
			o.forward(p, obs, &sub.stopped, onError)
		},
		Error: onError,
		Complete: func() {
			if obs.OnComplete != nil && !sub.stopped.Load() {
				obs.OnComplete()
			}
		},
	})
	return sub
}

func (o *Observable[T]) target() (url, document string, err error) {
	document, err = o.Document()
	if err != nil {
		return "", "", err
	}
	url, err = o.client.cfg.Endpoints.StreamURL(o.entity.Endpoint)
	if err != nil {
		return "", "", err
	}
	return url, document, nil
}

func (o *Observable[T]) forward(p stream.Payload, obs Observer[T], stopped *atomic.Bool, onError func(error)) {
	for _, raw := range p.Data[o.entity.Name] {
		if stopped.Load() {
			return
		}
		rec, err := mapper.Map(o.entity, raw)
		if err != nil {
			onError(err)
			continue
		}
		item, err := o.decode(raw, rec)
		if err != nil {
			onError(fmt.Errorf("%s: %w", o.entity.Key, err))
			continue
		}
		if obs.OnData != nil {
			obs.OnData(item)
		}
	}
}

// Streams lists the stream names accepted by Watch.
func Streams() []string {
	return []string{StreamTrades, StreamRates}
}

// Stream names accepted by Watch.
const (
	StreamTrades = "trades"
	StreamRates  = "rates"
)

// Watch returns a live query of a named stream emitting sink envelopes. For
// StreamRates, after is the exclusive lower timestamp bound in seconds; zero
// means now.
func (c *Client) Watch(name string, after int64) (*Observable[Envelope], error) {
	// Stream records are filed under the entity of the matching pull query.
	envelope := func(entity schema.Entity, key string) func(model.RawRecord, model.Record) (Envelope, error) {
		return func(raw model.RawRecord, rec model.Record) (Envelope, error) {
			env := mapper.Envelope(entity, raw, rec)
			env.Entity = key
			return env, nil
		}
	}

	switch name {
	case StreamTrades:
		return newObservable(c, schema.SynthExchangeStream, nil, envelope(schema.SynthExchangeStream, schema.SynthExchanges.Key)), nil
	case StreamRates:
		if after == 0 {
			after = c.now().Unix()
		}
		params := query.Params{"after": after}
		return newObservable(c, schema.RateUpdateStream, params, envelope(schema.RateUpdateStream, schema.RateUpdates.Key)), nil
	default:
		return nil, fmt.Errorf("unknown stream: %s", name)
	}
}
