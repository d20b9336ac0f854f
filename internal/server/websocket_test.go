package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/lifecycle"
	"github.com/conneroisu/motiondeck/internal/types"
)

type wsFixture struct {
	*fixture
	ts      *httptest.Server
	session *http.Cookie
	ctx     context.Context
}

func newWSFixture(t *testing.T, path string) *wsFixture {
	t.Helper()
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.srv.hub.Run(ctx)

	ts := httptest.NewServer(f.handler)
	t.Cleanup(ts.Close)

	_, session := f.open(t, path)
	return &wsFixture{fixture: f, ts: ts, session: session, ctx: ctx}
}

func (f *wsFixture) dial(t *testing.T, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(f.ctx, 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	return websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
}

func (f *wsFixture) connect(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := f.dial(t, http.Header{
		"Origin": {f.ts.URL},
		"Cookie": {f.session.String()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	require.Eventually(t, func() bool { return f.srv.hub.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

// next reads messages until one of the wanted type arrives.
func next(t *testing.T, conn *websocket.Conn, want string) UpdateMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg UpdateMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == want {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, data))
}

func TestWebSocket_CardSignals(t *testing.T) {
	f := newWSFixture(t, "/countdown-motion")
	conn := f.connect(t)

	send(t, conn, ClientMessage{Type: "visible", ID: "countdown"})
	require.Eventually(t, func() bool { return f.queue.Len() > 0 }, 2*time.Second, 5*time.Millisecond)
	f.queue.Flush()

	msg := next(t, conn, MessageCard)
	require.NotNil(t, msg.Card)
	assert.Equal(t, "countdown", msg.Card.AnimationID)
	assert.Equal(t, lifecycle.StateMounted, msg.Card.State)

	send(t, conn, ClientMessage{Type: "replay", ID: "countdown"})
	msg = next(t, conn, MessageCard)
	assert.Equal(t, 1, msg.Card.MountKey)

	send(t, conn, ClientMessage{Type: "unmount", ID: "countdown"})
	msg = next(t, conn, MessageCard)
	assert.Equal(t, lifecycle.StateUnmounted, msg.Card.State)

	send(t, conn, ClientMessage{Type: "dance", ID: "countdown"})
	msg = next(t, conn, MessageError)
	assert.Contains(t, msg.Error, "unknown message type")
}

func TestWebSocket_CatalogEvents(t *testing.T) {
	f := newWSFixture(t, "/fade-motion")
	conn := f.connect(t)

	f.srv.onCatalogEvent(types.CatalogEvent{
		Type:    types.EventTypeFailed,
		Variant: types.VariantCSS,
		Err:     apperrors.NewCatalogError(apperrors.ErrCodeCatalogLoad, "catalog load failed", errors.New("disk")),
	})
	msg := next(t, conn, MessageCatalogError)
	assert.True(t, msg.Retry)
	assert.Equal(t, "css", msg.Variant)

	// A variant switch redirects the session and announces the commit.
	_, err := f.srv.catalog.Load(context.Background(), types.VariantCSS)
	require.NoError(t, err)
	f.srv.onCatalogEvent(types.CatalogEvent{Type: types.EventTypeCommitted, Variant: types.VariantCSS})

	msg = next(t, conn, MessageRedirect)
	assert.Equal(t, "fade-css", msg.Group)
	msg = next(t, conn, MessageCatalog)
	assert.Equal(t, "css", msg.Variant)
}

func TestWebSocket_Rejections(t *testing.T) {
	f := newWSFixture(t, "/fade-motion")

	tests := []struct {
		name   string
		header http.Header
		status int
	}{
		{"no origin", http.Header{"Cookie": {f.session.String()}}, http.StatusForbidden},
		{"foreign origin", http.Header{"Origin": {"http://evil.example"}, "Cookie": {f.session.String()}}, http.StatusForbidden},
		{"no session", http.Header{"Origin": {f.ts.URL}}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := f.dial(t, tt.header)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
