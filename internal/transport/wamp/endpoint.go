package wamp

import (
	"context"
	"encoding/base64"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/framelink/internal/transport"
	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/rs/zerolog/log"
)

const DefaultTopicPrefix = "framelink.window"

const (
	kwOrigin       = "origin"
	kwSource       = "source"
	kwTargetOrigin = "target_origin"
	kwPayload      = "payload"
)

// Config describes one endpoint on the router.
type Config struct {
	Realm           string
	Address         string
	Origin          string
	TopicPrefix     string
	ResponseTimeout time.Duration
}

func (c Config) withDefaults() (Config, error) {
	c.Address = strings.TrimSpace(c.Address)
	if c.Address == "" {
		return c, fmt.Errorf("%w: empty address", transport.ErrInvalidTarget)
	}
	if strings.TrimSpace(c.Realm) == "" {
		c.Realm = DefaultRealm
	}
	if strings.TrimSpace(c.TopicPrefix) == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 10 * time.Second
	}
	return c, nil
}

func (c Config) clientConfig() client.Config {
	return client.Config{
		Realm:           c.Realm,
		ResponseTimeout: c.ResponseTimeout,
		Logger:          newStdLogger("wamp.client"),
	}
}

// Endpoint is a transport.Transport backed by one WAMP session.
type Endpoint struct {
	cfg    Config
	client *client.Client
	topic  string

	mu      sync.Mutex
	subs    map[uint64]func(transport.Envelope)
	nextSub uint64
	closed  bool
}

var _ transport.Transport = (*Endpoint)(nil)

// Dial connects to a relay over websocket.
func Dial(ctx context.Context, url string, cfg Config) (*Endpoint, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	cli, err := client.ConnectNet(ctx, url, cfg.clientConfig())
	if err != nil {
		return nil, fmt.Errorf("wamp: connect %s: %w", url, err)
	}
	return newEndpoint(cli, cfg)
}

// Local attaches to an in-process router.
func Local(r router.Router, cfg Config) (*Endpoint, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	cli, err := client.ConnectLocal(r, cfg.clientConfig())
	if err != nil {
		return nil, fmt.Errorf("wamp: connect local: %w", err)
	}
	return newEndpoint(cli, cfg)
}

func newEndpoint(cli *client.Client, cfg Config) (*Endpoint, error) {
	e := &Endpoint{
		cfg:    cfg,
		client: cli,
		topic:  topicFor(cfg.TopicPrefix, cfg.Address),
		subs:   make(map[uint64]func(transport.Envelope)),
	}
	if err := cli.Subscribe(e.topic, e.handleEvent, nil); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("wamp: subscribe %s: %w", e.topic, err)
	}
	log.Debug().Msgf("wamp.Endpoint subscribed topic=%s origin=%s", e.topic, cfg.Origin)
	return e, nil
}

func topicFor(prefix, address string) string {
	return prefix + "." + address
}

// Addr is the endpoint's own address, usable as a send target.
func (e *Endpoint) Addr() transport.Addr {
	return transport.Addr(e.cfg.Address)
}

func (e *Endpoint) Origin() string {
	return e.cfg.Origin
}

// Done is closed when the router session ends.
func (e *Endpoint) Done() <-chan struct{} {
	return e.client.Done()
}

func (e *Endpoint) Send(target transport.Source, targetOrigin string, payload []byte) error {
	if target == nil || strings.TrimSpace(target.Address()) == "" {
		return transport.ErrInvalidTarget
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	kwargs := wamp.Dict{
		kwOrigin:       e.cfg.Origin,
		kwSource:       e.cfg.Address,
		kwTargetOrigin: targetOrigin,
		kwPayload:      base64.StdEncoding.EncodeToString(payload),
	}
	opts := wamp.Dict{wamp.OptExcludeMe: false}
	if err := e.client.Publish(topicFor(e.cfg.TopicPrefix, target.Address()), opts, nil, kwargs); err != nil {
		return fmt.Errorf("wamp: publish: %w", err)
	}
	return nil
}

func (e *Endpoint) Subscribe(fn func(transport.Envelope)) (transport.Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("wamp: nil subscriber")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, transport.ErrClosed
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	var once sync.Once
	return transport.SubscriptionFunc(func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}), nil
}

// Close leaves the router.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.subs = make(map[uint64]func(transport.Envelope))
	e.mu.Unlock()
	_ = e.client.Unsubscribe(e.topic)
	return e.client.Close()
}

func (e *Endpoint) handleEvent(event *wamp.Event) {
	env, targetOrigin, ok := decodeEvent(event.ArgumentsKw)
	if !ok {
		log.Debug().Msgf("wamp.Endpoint.handleEvent dropped topic=%s reason=malformed", e.topic)
		return
	}
	if !transport.OriginMatches(targetOrigin, e.cfg.Origin) {
		log.Debug().Msgf("wamp.Endpoint.handleEvent dropped topic=%s reason=origin target_origin=%s", e.topic, targetOrigin)
		return
	}
	e.mu.Lock()
	subs := make([]func(transport.Envelope), 0, len(e.subs))
	for _, id := range slices.Sorted(maps.Keys(e.subs)) {
		subs = append(subs, e.subs[id])
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(env)
	}
}

func decodeEvent(kw wamp.Dict) (transport.Envelope, string, bool) {
	origin, _ := wamp.AsString(kw[kwOrigin])
	source, ok := wamp.AsString(kw[kwSource])
	if !ok || source == "" {
		return transport.Envelope{}, "", false
	}
	targetOrigin, ok := wamp.AsString(kw[kwTargetOrigin])
	if !ok {
		return transport.Envelope{}, "", false
	}
	encoded, ok := wamp.AsString(kw[kwPayload])
	if !ok {
		return transport.Envelope{}, "", false
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return transport.Envelope{}, "", false
	}
	return transport.Envelope{
		Origin:  origin,
		Source:  transport.Addr(source),
		Payload: payload,
	}, targetOrigin, true
}
