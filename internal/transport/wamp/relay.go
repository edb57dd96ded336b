// Package wamp carries channel traffic over a WAMP router. Every endpoint
// subscribes to a topic derived from its own address, and a send publishes
// to the target's topic, so the router behaves as the broadcast medium
// between processes.
package wamp

import (
	"context"
	"errors"
	stdlog "log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/rs/zerolog/log"
)

const DefaultRealm = "framelink"

// Relay runs a nexus router and exposes it over websocket.
type Relay struct {
	addr       string
	realm      string
	router     router.Router
	httpServer *http.Server
}

// NewRelay builds a router for realm. The websocket listener starts with
// Run.
func NewRelay(addr, realm string) (*Relay, error) {
	realm = strings.TrimSpace(realm)
	if realm == "" {
		realm = DefaultRealm
	}
	cfg := &router.Config{
		RealmConfigs: []*router.RealmConfig{
			{
				URI:           wamp.URI(realm),
				AnonymousAuth: true,
			},
		},
	}
	nxr, err := router.NewRouter(cfg, newStdLogger("wamp.router"))
	if err != nil {
		return nil, err
	}
	return &Relay{
		addr:   addr,
		realm:  realm,
		router: nxr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router.NewWebsocketServer(nxr),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (r *Relay) Realm() string {
	return r.realm
}

// Router returns the in-process router for local endpoints.
func (r *Relay) Router() router.Router {
	return r.router
}

// Run serves websocket clients until Shutdown.
func (r *Relay) Run() error {
	log.Info().Msgf("wamp.Relay.Run addr=%s realm=%s", r.addr, r.realm)
	err := r.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve is Run on an existing listener.
func (r *Relay) Serve(ln net.Listener) error {
	log.Info().Msgf("wamp.Relay.Serve addr=%s realm=%s", ln.Addr(), r.realm)
	err := r.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the websocket server and the router.
func (r *Relay) Shutdown(ctx context.Context) error {
	defer r.router.Close()
	return r.httpServer.Shutdown(ctx)
}

// newStdLogger bridges the router and client loggers into zerolog.
func newStdLogger(component string) *stdlog.Logger {
	l := log.Logger.With().Str("component", component).Logger()
	return stdlog.New(l, "", 0)
}
