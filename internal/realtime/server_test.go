package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minglehq/mingle/internal/config"
	"github.com/minglehq/mingle/internal/models"
	"github.com/minglehq/mingle/internal/tokens"
)

func newWSTestServer(t *testing.T, accessTTL time.Duration) (*Server, *tokens.Service, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tks := tokens.NewService(config.JWTConfig{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: time.Hour,
	})
	srv := NewServer(tks, Options{SendBuffer: 16})

	router := gin.New()
	router.GET("/ws", srv.HandleConnection)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return srv, tks, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialWS(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readWSFrame(t *testing.T, ws *websocket.Conn) *Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return &f
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	_, _, url := newWSTestServer(t, time.Minute)
	ws := dialWS(t, url, "")

	f := readWSFrame(t, ws)
	assert.Equal(t, EventAuthError, f.Event)
	assert.Equal(t, ReasonTokenRequired, f.Error)

	// the server drops the transport after the auth-error frame
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}

func TestHandshakeRejectsGarbageToken(t *testing.T) {
	_, _, url := newWSTestServer(t, time.Minute)
	ws := dialWS(t, url, "not-a-jwt")

	f := readWSFrame(t, ws)
	assert.Equal(t, EventAuthError, f.Event)
	assert.Equal(t, ReasonTokenInvalid, f.Error)
}

func TestHandshakeRejectsExpiredToken(t *testing.T) {
	_, tks, url := newWSTestServer(t, -time.Minute)
	tok, err := tks.IssueAccess(&models.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	ws := dialWS(t, url, tok)
	f := readWSFrame(t, ws)
	assert.Equal(t, EventAuthError, f.Event)
	assert.Equal(t, ReasonTokenExpired, f.Error)
}

func TestHandshakeAcceptsTokenQueryParam(t *testing.T) {
	srv, tks, url := newWSTestServer(t, time.Minute)
	tok, err := tks.IssueAccess(&models.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	ws := dialWS(t, url+"?token="+tok, "")
	require.NoError(t, ws.WriteJSON(Frame{Event: EventJoinRoom, Room: "gophers"}))

	require.Eventually(t, func() bool {
		return len(srv.registry.Members("gophers")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelayOverWebSocket(t *testing.T) {
	srv, tks, url := newWSTestServer(t, time.Minute)

	aliceTok, err := tks.IssueAccess(&models.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)
	bobTok, err := tks.IssueAccess(&models.User{ID: "u2", Username: "bob"})
	require.NoError(t, err)

	alice := dialWS(t, url, aliceTok)
	bob := dialWS(t, url, bobTok)

	require.NoError(t, alice.WriteJSON(Frame{Event: EventJoinRoom, Room: "gophers"}))
	require.NoError(t, bob.WriteJSON(Frame{Event: EventJoinRoom, Room: "gophers"}))
	require.Eventually(t, func() bool {
		return len(srv.registry.Members("gophers")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.WriteJSON(Frame{
		Event:   EventMessage,
		Target:  "gophers",
		Payload: json.RawMessage(`{"text":"hello"}`),
	}))

	f := readWSFrame(t, alice)
	assert.Equal(t, EventMessage, f.Event)
	assert.Equal(t, "gophers", f.Room)
	assert.Equal(t, "bob", f.From)
	assert.JSONEq(t, `{"text":"hello"}`, string(f.Payload))

	// the sender must not hear its own message back
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err)
}

func TestDisconnectCleansUpMembership(t *testing.T) {
	srv, tks, url := newWSTestServer(t, time.Minute)
	tok, err := tks.IssueAccess(&models.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	ws := dialWS(t, url, tok)
	require.NoError(t, ws.WriteJSON(Frame{Event: EventJoinRoom, Room: "gophers"}))
	require.Eventually(t, func() bool {
		return len(srv.registry.Members("gophers")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())

	require.Eventually(t, func() bool {
		return len(srv.registry.Members("gophers")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
