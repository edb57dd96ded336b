package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/framelink/internal/auth"
	"github.com/danmuck/framelink/internal/channel"
	"github.com/danmuck/framelink/internal/clock"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/testutil/testlog"
	"github.com/danmuck/framelink/internal/transport"
	"github.com/danmuck/framelink/internal/transport/memory"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	controllerID = "controller.admin"
	nodeID       = "node.admin"
)

type fixture struct {
	t      *testing.T
	bus    *memory.Bus
	clk    *clock.FakeClock
	cfg    session.Config
	node   *channel.Link
	link   *channel.Link
	server *Server
	calls  chan protocol.Data
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bus := memory.NewBus()
	ctrlWin, err := bus.Open(controllerID, "https://studio.example")
	if err != nil {
		t.Fatalf("open controller window: %v", err)
	}
	nodeWin, err := bus.Open(nodeID, "https://preview.example")
	if err != nil {
		t.Fatalf("open node window: %v", err)
	}
	t.Cleanup(func() {
		_ = ctrlWin.Close()
		_ = nodeWin.Close()
	})

	clk := clock.Fake(time.Unix(1700000000, 0))
	cfg := session.DefaultConfig()
	cfg.Backoff.Jitter = false

	node, err := channel.Connect(nodeWin, channel.NodeConfig{
		ID:           nodeID,
		ControllerID: controllerID,
		Session:      cfg,
		Clock:        clk,
	})
	if err != nil {
		t.Fatalf("connect node: %v", err)
	}
	t.Cleanup(node.Destroy)

	f := &fixture{t: t, bus: bus, clk: clk, cfg: cfg, node: node, calls: make(chan protocol.Data, 8)}
	if _, err := node.On("echo", func(data protocol.Data) (protocol.Data, error) {
		return protocol.Data{"echo": data["text"]}, nil
	}); err != nil {
		t.Fatalf("on echo: %v", err)
	}
	if _, err := node.On("notice", channel.Notify(func(data protocol.Data) {
		f.calls <- data
	})); err != nil {
		t.Fatalf("on notice: %v", err)
	}

	controller, err := channel.NewController(ctrlWin, channel.ControllerConfig{
		ID:      controllerID,
		Session: cfg,
		Clock:   clk,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	t.Cleanup(controller.Destroy)
	link, err := controller.Link(nodeID, nodeWin.Addr(), transport.AnyOrigin)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	f.link = link
	f.settle()
	if link.Status() != channel.StatusConnected {
		t.Fatalf("link status=%s", link.Status())
	}

	f.server = New(controllerID, "127.0.0.1:0", controller, nil)
	f.server.RegisterRoutes()
	return f
}

func (f *fixture) settle() {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.bus.WaitIdle(ctx); err != nil {
		f.t.Fatalf("bus did not settle: %v", err)
	}
}

func (f *fixture) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	f.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.HTTPRouter().ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			f.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return w, out
}

func TestHealthAndLinkInspection(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	w, body := f.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || body["status"] != "ok" || body["links"] != float64(1) {
		t.Fatalf("health code=%d body=%v", w.Code, body)
	}
	log.Debug().Msg("health returned ok")

	w, body = f.do(http.MethodGet, "/links", "")
	if w.Code != http.StatusOK {
		t.Fatalf("links code=%d", w.Code)
	}
	links, ok := body["links"].([]any)
	if !ok || len(links) != 1 {
		t.Fatalf("links body=%v", body)
	}
	info := links[0].(map[string]any)
	if info["peer_id"] != nodeID || info["status"] != "connected" {
		t.Fatalf("link info=%v", info)
	}

	w, _ = f.do(http.MethodGet, "/links/"+nodeID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("link code=%d", w.Code)
	}
	w, _ = f.do(http.MethodGet, "/links/node.missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing link code=%d", w.Code)
	}
	log.Debug().Msg("link inspection verified")
}

func TestRequestRouteReturnsHandlerResponse(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	w, body := f.do(http.MethodPost, "/links/"+nodeID+"/request/echo", `{"text":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("request code=%d body=%s", w.Code, w.Body.String())
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["echo"] != "hi" {
		t.Fatalf("response body=%v", body)
	}
	log.Debug().Msgf("request returned data=%v", data)
}

func TestPostRouteDeliversToNode(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	w, _ := f.do(http.MethodPost, "/links/"+nodeID+"/post/notice", `{"path":"title"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("post code=%d body=%s", w.Code, w.Body.String())
	}
	f.settle()
	select {
	case data := <-f.calls:
		if data["path"] != "title" {
			t.Fatalf("notice data=%v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("notice not delivered")
	}

	w, _ = f.do(http.MethodPost, "/links/"+nodeID+"/post/notice", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("empty-body post code=%d", w.Code)
	}
}

func TestSlashedTypesRouteThroughPostAndRequest(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	if _, err := f.node.On("overlay/focus", func(data protocol.Data) (protocol.Data, error) {
		return protocol.Data{"focused": data["path"]}, nil
	}); err != nil {
		t.Fatalf("on overlay/focus: %v", err)
	}

	w, body := f.do(http.MethodPost, "/links/"+nodeID+"/request/overlay/focus", `{"path":"title"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("request code=%d body=%s", w.Code, w.Body.String())
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["focused"] != "title" {
		t.Fatalf("response body=%v", body)
	}

	w, _ = f.do(http.MethodPost, "/links/"+nodeID+"/post/overlay/focus", `{"path":"body"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("post code=%d body=%s", w.Code, w.Body.String())
	}
	w, _ = f.do(http.MethodPost, "/links/"+nodeID+"/post/", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty type code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRouteErrorsMapToStatusCodes(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	cases := []struct {
		path string
		body string
		want int
	}{
		{"/links/node.missing/post/notice", "", http.StatusNotFound},
		{"/links/" + nodeID + "/post/" + protocol.MsgHeartbeat, "", http.StatusBadRequest},
		{"/links/" + nodeID + "/request/" + protocol.MsgResponse, "", http.StatusBadRequest},
		{"/links/" + nodeID + "/post/notice", `{not json`, http.StatusBadRequest},
		{"/links/node.missing/reconnect", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		w, _ := f.do(http.MethodPost, tc.path, tc.body)
		if w.Code != tc.want {
			t.Fatalf("%s code=%d want=%d body=%s", tc.path, w.Code, tc.want, w.Body.String())
		}
	}

	f.link.Destroy()
	w, _ := f.do(http.MethodPost, "/links/"+nodeID+"/post/notice", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("destroyed link should be forgotten, code=%d", w.Code)
	}
}

func TestRequestRouteTimesOut(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	f.bus.SetSendHook(func(from, _ transport.Addr, _ []byte) (bool, error) {
		return from != transport.Addr(nodeID), nil
	})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/links/"+nodeID+"/request/echo", nil)
		w := httptest.NewRecorder()
		f.server.HTTPRouter().ServeHTTP(w, req)
		done <- w
	}()

	f.clk.WaitForTimers(1)
	f.settle()
	f.clk.Advance(f.cfg.ResponseTimeout)

	select {
	case w := <-done:
		if w.Code != http.StatusGatewayTimeout {
			t.Fatalf("timeout code=%d body=%s", w.Code, w.Body.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("request route did not return")
	}
}

func TestReconnectRoute(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	w, _ := f.do(http.MethodPost, "/links/"+nodeID+"/reconnect", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("reconnect code=%d", w.Code)
	}
	f.settle()
	if f.link.Status() != channel.StatusConnected || f.node.Status() != channel.StatusConnected {
		t.Fatalf("after reconnect link=%s node=%s", f.link.Status(), f.node.Status())
	}
}

func TestLinksRequireTokenWhenConfigured(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	f.server = New(controllerID, "127.0.0.1:0", f.server.controller, nil)
	f.server.RequireToken(auth.StaticToken{Token: "secret"})
	f.server.RegisterRoutes()

	w, _ := f.do(http.MethodGet, "/links", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated code=%d", w.Code)
	}
	w, _ = f.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health should stay open, code=%d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/links", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	f.server.HTTPRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated code=%d", rec.Code)
	}
}

func TestStatusForMapsChannelErrors(t *testing.T) {
	testlog.Start(t)
	cases := map[error]int{
		channel.ErrNoResponse:   http.StatusGatewayTimeout,
		channel.ErrNotConnected: http.StatusConflict,
		channel.ErrLinkClosed:   http.StatusGone,
		channel.ErrSendFailed:   http.StatusBadGateway,
		protocol.ErrEmptyType:   http.StatusBadRequest,
		context.Canceled:        http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("statusFor(%v)=%d want %d", err, got, want)
		}
	}
}
