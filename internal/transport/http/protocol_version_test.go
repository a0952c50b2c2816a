package http

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/pairchat/internal/proto"
)

func TestProtocolVersionMismatch(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice@example.com", "Alice")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn := env.dial(t, ctx, alice.Token)

	sendFrame(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Protocol: proto.ProtocolVersion + 1})

	perr := waitForError(t, ctx, conn)
	if perr == nil || perr.Code != "unsupported_version" {
		t.Fatalf("expected unsupported_version error, got %+v", perr)
	}
}
