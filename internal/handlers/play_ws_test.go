package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/duel/internal/models"
	"github.com/jason-s-yu/duel/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	hub *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	entry := logrus.NewEntry(logger)

	hub := NewHub(entry)
	store := session.NewStore(session.Options{Notifier: hub, Logger: entry})
	d := session.NewDispatcher(store, 64, entry)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/play/ws", PlayWSHandler(logger, hub, d, WSOptions{OutBuffer: 16}))
	mux.Handle("/rooms", StatsHandler(logger, hub, d))
	mux.HandleFunc("/ping", PingHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-d.Done()
	})
	return &testServer{Server: srv, hub: hub}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/play/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, typ string, data any) {
	t.Helper()
	p := map[string]any{"type": typ}
	if data != nil {
		p["data"] = data
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, p))
}

func recv(t *testing.T, c *websocket.Conn) models.Notification {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var n models.Notification
	require.NoError(t, wsjson.Read(ctx, c, &n))
	return n
}

// waitConnections polls until the hub has registered n clients.
func (s *testServer) waitConnections(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.hub.Count() == n }, 5*time.Second, 10*time.Millisecond)
}

func TestPlayWSRandomPairingAndRelay(t *testing.T) {
	srv := newTestServer(t)
	a := srv.dial(t)
	b := srv.dial(t)
	srv.waitConnections(t, 2)

	send(t, a, PacketJoinRandom, "red")
	send(t, b, PacketJoinRandom, "blue")

	na := recv(t, a)
	nb := recv(t, b)
	assert.Equal(t, models.NoteRoomAssigned, na.Type)
	assert.Equal(t, models.NoteRoomAssigned, nb.Type)
	assert.Equal(t, na.RoomID, nb.RoomID)
	assert.Equal(t, "blue", na.OpponentAttr)
	assert.Equal(t, "red", nb.OpponentAttr)

	send(t, a, PacketAction, map[string]int{"x": 3})
	relayed := recv(t, b)
	assert.Equal(t, models.NoteAction, relayed.Type)
	assert.JSONEq(t, `{"x":3}`, string(relayed.Payload))

	send(t, b, PacketLoss, nil)
	assert.Equal(t, models.NoteLoss, recv(t, a).Type)
}

func TestPlayWSNamedRoomFull(t *testing.T) {
	srv := newTestServer(t)
	a := srv.dial(t)
	b := srv.dial(t)
	c := srv.dial(t)
	srv.waitConnections(t, 3)

	send(t, a, PacketJoinNamed, JoinNamedData{Color: "red", RoomName: "den"})
	send(t, b, PacketJoinNamed, JoinNamedData{Color: "blue", RoomName: "den"})
	assert.Equal(t, models.NoteRoomAssigned, recv(t, a).Type)
	nb := recv(t, b)
	assert.Equal(t, models.RoomID("den"), nb.RoomID)
	assert.Equal(t, "red", nb.OpponentAttr)

	send(t, c, PacketJoinNamed, JoinNamedData{Color: "green", RoomName: "den"})
	full := recv(t, c)
	assert.Equal(t, models.NoteRoomFull, full.Type)
	assert.Equal(t, models.RoomID("den"), full.RoomID)
}

func TestPlayWSBadPacketsAnswerSenderOnly(t *testing.T) {
	srv := newTestServer(t)
	a := srv.dial(t)
	srv.waitConnections(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Write(ctx, websocket.MessageText, []byte("{not json")))
	n := recv(t, a)
	assert.Equal(t, models.NoteError, n.Type)
	assert.NotEmpty(t, n.Message)

	send(t, a, "teleport", nil)
	n = recv(t, a)
	assert.Equal(t, models.NoteError, n.Type)
	assert.Contains(t, n.Message, "teleport")
}

func TestPlayWSDisconnectNotifiesOpponent(t *testing.T) {
	srv := newTestServer(t)
	a := srv.dial(t)
	b := srv.dial(t)
	srv.waitConnections(t, 2)

	send(t, a, PacketJoinRandom, nil)
	send(t, b, PacketJoinRandom, nil)
	recv(t, a)
	recv(t, b)

	require.NoError(t, a.Close(websocket.StatusNormalClosure, "bye"))
	n := recv(t, b)
	assert.Equal(t, models.NoteOpponentDisconnected, n.Type)
	srv.waitConnections(t, 1)
}

func TestPlayWSRejectsMissingSubprotocol(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/play/ws"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.CloseNow()

	_, _, err = c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, BadSubprotocolError, websocket.CloseStatus(err))
}

func TestStatsAndPing(t *testing.T) {
	srv := newTestServer(t)
	a := srv.dial(t)
	b := srv.dial(t)
	c := srv.dial(t)
	srv.waitConnections(t, 3)

	send(t, a, PacketJoinRandom, nil)
	send(t, b, PacketJoinRandom, nil)
	recv(t, a)
	recv(t, b)
	send(t, c, PacketJoinRandom, nil)

	var stats StatsResponse
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/rooms")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return false
		}
		return stats.Waiting == 1
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 3, stats.Connections)
	require.Len(t, stats.Rooms, 1)

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestDrainClosesIdleConnections(t *testing.T) {
	srv := newTestServer(t)
	a := srv.dial(t)
	b := srv.dial(t)
	srv.waitConnections(t, 2)
	send(t, a, PacketJoinRandom, nil)
	send(t, b, PacketJoinRandom, nil)
	recv(t, a)
	recv(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.hub.Drain(ctx))

	_, _, err := a.Read(ctx)
	assert.Error(t, err, "idle client is disconnected without sending anything")

	var stats StatsResponse
	resp, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Empty(t, stats.Rooms, "both disconnects were reconciled")
}
