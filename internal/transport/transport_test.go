package transport

import "testing"

func TestOriginMatches(t *testing.T) {
	if !OriginMatches(AnyOrigin, "https://studio.example") {
		t.Fatalf("wildcard should match")
	}
	if !OriginMatches("https://studio.example", "https://studio.example") {
		t.Fatalf("exact origin should match")
	}
	if OriginMatches("https://studio.example", "https://evil.example") {
		t.Fatalf("foreign origin should not match")
	}
}

func TestAddrIsComparableSource(t *testing.T) {
	var a, b Source = Addr("node.a"), Addr("node.a")
	if a != b {
		t.Fatalf("equal addresses should compare equal")
	}
	if a.Address() != "node.a" {
		t.Fatalf("address=%q", a.Address())
	}
}

func TestSubscriptionFuncNil(t *testing.T) {
	var f SubscriptionFunc
	f.Unsubscribe()
	called := 0
	SubscriptionFunc(func() { called++ }).Unsubscribe()
	if called != 1 {
		t.Fatalf("called=%d", called)
	}
}
