package net_test

import (
	"context"
	"testing"

	pnet "penwatch/internal/platform/net"
)

func TestWithRequest(t *testing.T) {
	cases := []struct{ reqID, actor string }{
		{"host/abc-000001", "ops"},
		{"host/abc-000002", ""},
		{"", "ops"},
		{"", ""},
	}
	for _, tc := range cases {
		ctx := pnet.WithRequest(context.Background(), tc.reqID, tc.actor)
		if got := pnet.RequestID(ctx); got != tc.reqID {
			t.Fatalf("RequestID = %q, want %q", got, tc.reqID)
		}
		if got := pnet.Actor(ctx); got != tc.actor {
			t.Fatalf("Actor = %q, want %q", got, tc.actor)
		}
	}

	base := context.Background()
	if pnet.WithRequest(base, "", "") != base {
		t.Fatal("empty values should not wrap the context")
	}
}
