package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/framelink/internal/protocol/codec"
	"github.com/danmuck/framelink/internal/testutil/testlog"
)

func sampleMessage() Message {
	return Message{
		ID:           NewMessageID(),
		ConnectionID: "conn-1",
		Domain:       Domain,
		From:         "node.preview",
		To:           "controller.studio",
		Type:         Namespace("node.preview", "fetchValue"),
		Data:         Data{"id": "abc"},
	}
}

func TestWireFieldNamesAreExact(t *testing.T) {
	testlog.Start(t)
	msg := sampleMessage()
	msg.ResponseTo = "msg-previous"
	raw, err := Encode(codec.JSON, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "connectionId", "domain", "from", "to", "type", "data", "responseTo"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing wire field %q in %s", key, raw)
		}
	}
	if len(fields) != 8 {
		t.Fatalf("unexpected extra fields: %s", raw)
	}

	msg.ResponseTo = ""
	msg.Data = nil
	raw, err = Encode(codec.JSON, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(raw), "responseTo") || strings.Contains(string(raw), `"data"`) {
		t.Fatalf("optional fields should be omitted: %s", raw)
	}
}

func TestDecodeRejectsNonMessages(t *testing.T) {
	testlog.Start(t)
	if _, err := Decode(codec.JSON, []byte(`not json`)); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if _, err := Decode(codec.JSON, []byte(`{"type":"x","from":"a","to":"b"}`)); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected missing id rejection, got %v", err)
	}
	raw := []byte(`{"id":"m1","domain":"framelink/channels","from":"a","to":"b","type":"channel/response"}`)
	if _, err := Decode(codec.JSON, raw); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("response without responseTo should be rejected, got %v", err)
	}
}

func TestDecodeFlagsLegacyHandshake(t *testing.T) {
	testlog.Start(t)
	bare := []byte(`{"id":"m1","domain":"framelink/channels","from":"a","to":"b","type":"handshake"}`)
	if _, err := Decode(codec.JSON, bare); !errors.Is(err, ErrLegacyHandshake) {
		t.Fatalf("expected legacy handshake, got %v", err)
	}
	channelKey := []byte(`{"id":"m1","from":"a","to":"b","type":"handshake/syn","data":{"channelId":"c1"}}`)
	if _, err := Decode(codec.JSON, channelKey); !errors.Is(err, ErrLegacyHandshake) {
		t.Fatalf("expected legacy handshake, got %v", err)
	}
	current := []byte(`{"id":"m1","domain":"framelink/channels","from":"a","to":"b","type":"handshake/syn","data":{"id":"c1"}}`)
	if _, err := Decode(codec.JSON, current); err != nil {
		t.Fatalf("current handshake rejected: %v", err)
	}
}

func TestNamespaceLeavesReservedTypesAlone(t *testing.T) {
	testlog.Start(t)
	if got := Namespace("node.a", MsgResponse); got != MsgResponse {
		t.Fatalf("reserved type namespaced: %q", got)
	}
	got := Namespace("node.a", "overlay/focus")
	if got != "node.a/overlay/focus" {
		t.Fatalf("unexpected namespaced type: %q", got)
	}
	stripped, ok := StripNamespace("node.a", got)
	if !ok || stripped != "overlay/focus" {
		t.Fatalf("strip=%q ok=%v", stripped, ok)
	}
	if _, ok := StripNamespace("node.b", got); ok {
		t.Fatalf("foreign prefix should not strip")
	}
}

func TestKindClassification(t *testing.T) {
	testlog.Start(t)
	if !KindOf(MsgHandshakeSynAck).Handshake() {
		t.Fatalf("syn-ack should be handshake")
	}
	if KindOf(MsgHeartbeat).Handshake() || !KindOf(MsgHeartbeat).Internal() {
		t.Fatalf("heartbeat should be internal, non-handshake")
	}
	if KindOf("node.a/select").Internal() {
		t.Fatalf("application type classified internal")
	}
	if KindOf(MsgDisconnect).String() != "disconnect" {
		t.Fatalf("unexpected kind name %q", KindOf(MsgDisconnect).String())
	}
}

func TestHandshakeID(t *testing.T) {
	testlog.Start(t)
	id, err := HandshakeID(Message{Data: HandshakeData("c1")})
	if err != nil || id != "c1" {
		t.Fatalf("id=%q err=%v", id, err)
	}
	if _, err := HandshakeID(Message{}); !errors.Is(err, ErrMissingHandshakeID) {
		t.Fatalf("expected missing id, got %v", err)
	}
	if _, err := HandshakeID(Message{Data: Data{"id": 7}}); !errors.Is(err, ErrMissingHandshakeID) {
		t.Fatalf("non-string id accepted: %v", err)
	}
}

func TestValidateApplicationType(t *testing.T) {
	testlog.Start(t)
	if err := ValidateApplicationType(MsgDisconnect); !errors.Is(err, ErrReservedType) {
		t.Fatalf("expected reserved type, got %v", err)
	}
	if err := ValidateApplicationType("  "); !errors.Is(err, ErrEmptyType) {
		t.Fatalf("expected empty type, got %v", err)
	}
	if err := ValidateApplicationType("fetchValue"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMessageIDsAreUnique(t *testing.T) {
	testlog.Start(t)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewMessageID()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestValidateEndpointID(t *testing.T) {
	testlog.Start(t)
	for _, id := range []string{"channel", "handshake", " channel "} {
		if err := ValidateEndpointID(id); !errors.Is(err, ErrReservedID) {
			t.Fatalf("id %q err=%v", id, err)
		}
	}
	if KindOf(Namespace("channel", "disconnect")) != KindDisconnect {
		t.Fatalf("reserved id no longer collides; reservedNamespaces is stale")
	}
	for _, id := range []string{"node.preview", "channels", "channel.studio", "controller/channel"} {
		if err := ValidateEndpointID(id); err != nil {
			t.Fatalf("id %q rejected: %v", id, err)
		}
	}
}
