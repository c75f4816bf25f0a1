package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/omok/internal/config"
	"github.com/cory-johannsen/omok/internal/frontend/ws"
	"github.com/cory-johannsen/omok/internal/game/lobby"
	"github.com/cory-johannsen/omok/internal/game/session"
	"github.com/cory-johannsen/omok/internal/gameserver"
	"github.com/cory-johannsen/omok/internal/testutil"
)

const wait = 2 * time.Second

type testServer struct {
	url      string
	router   *gameserver.Router
	acceptor *ws.Acceptor
}

// startServer runs the full transport stack on a random port. The acceptor
// is stopped on test cleanup.
func startServer(t *testing.T, mode string) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	router := gameserver.NewRouter(lobby.NewRegistry(), session.NewManager(16), mode, logger)
	cfg := config.WebSocketConfig{
		Host:            "127.0.0.1",
		Port:            0,
		Path:            "/ws",
		WriteTimeout:    5 * time.Second,
		PongWait:        5 * time.Second,
		PingInterval:    time.Second,
		MaxMessageBytes: 4096,
		OutboxSize:      16,
	}
	acc := ws.NewAcceptor(cfg, NewGameBridge(router, logger), logger)
	go func() { _ = acc.ListenAndServe() }()

	deadline := time.After(wait)
	for {
		if acc.IsRunning() && acc.Addr() != "" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("acceptor did not start in time")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Cleanup(acc.Stop)
	return &testServer{url: "ws://" + acc.Addr() + "/ws", router: router, acceptor: acc}
}

// eventually polls cond until it holds or the wait elapses.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	assert.Eventually(t, cond, wait, 10*time.Millisecond, msg)
}

func TestGameBridge_NamedMatchAndRelay(t *testing.T) {
	srv := startServer(t, config.ModeNamed)
	alice := testutil.NewWSClient(t, srv.url)
	bob := testutil.NewWSClient(t, srv.url)

	alice.Send("registerNickname", map[string]string{"nickname": "alice"})
	alice.Expect("registerNicknameSuccess", wait)
	bob.Send("registerNickname", map[string]string{"nickname": "bob"})
	bob.Expect("registerNicknameSuccess", wait)

	alice.Send("createRoom", map[string]string{"roomName": "lobby-1", "mode": "normal"})
	assert.Equal(t, "lobby-1", alice.Expect("createRoom", wait)["room"])

	bob.Send("getRooms", nil)
	rooms := bob.Expect("roomsList", wait)["rooms"]
	assert.Equal(t, []any{map[string]any{"roomName": "lobby-1", "mode": "normal"}}, rooms)

	bob.Send("joinRoom", map[string]string{"roomName": "lobby-1"})
	assert.Equal(t, "lobby-1", bob.Expect("joinRoom", wait)["room"])
	start := map[string]any{"room": "lobby-1", "player1": "alice", "player2": "bob"}
	assert.Equal(t, start, bob.Expect("gameStart", wait))
	assert.Equal(t, start, alice.Expect("gameStart", wait))

	alice.Send("doPlayer", map[string]any{"room": "lobby-1", "x": 9, "y": 9})
	move := map[string]any{"x": float64(9), "y": float64(9), "player": "alice"}
	assert.Equal(t, move, alice.Expect("doOpponent", wait))
	assert.Equal(t, move, bob.Expect("doOpponent", wait))

	bob.Send("playerEmoji", map[string]any{"room": "lobby-1", "emoji": "gg"})
	assert.Equal(t, map[string]any{"emoji": "gg", "player": "bob"}, alice.Expect("opponentEmoji", wait))

	// bob never sees his own emoji: the next thing he reads is the reply to getRooms.
	bob.Send("getRooms", nil)
	assert.Equal(t, []any{}, bob.Expect("roomsList", wait)["rooms"])
}

func TestGameBridge_DisconnectReclaimsWaitingRoom(t *testing.T) {
	srv := startServer(t, config.ModeNamed)
	alice := testutil.NewWSClient(t, srv.url)
	bob := testutil.NewWSClient(t, srv.url)

	alice.Send("registerNickname", map[string]string{"nickname": "alice"})
	alice.Expect("registerNicknameSuccess", wait)
	alice.Send("createRoom", map[string]string{"roomName": "gone"})
	alice.Expect("createRoom", wait)

	alice.Close()
	eventually(t, func() bool { return srv.router.Snapshot().WaitingRooms == 0 }, "waiting room not reclaimed")
	eventually(t, func() bool { return srv.router.Snapshot().Sessions == 1 }, "session not removed")

	bob.Send("registerNickname", map[string]string{"nickname": "bob"})
	bob.Expect("registerNicknameSuccess", wait)
	bob.Send("joinRoom", map[string]string{"roomName": "gone"})
	assert.Equal(t, "room_not_found", bob.Expect("joinRoomFailed", wait)["reason"])
}

func TestGameBridge_LegacyPairing(t *testing.T) {
	srv := startServer(t, config.ModeLegacy)

	first := testutil.NewWSClient(t, srv.url)
	room := first.Expect("waitingForPlayer", wait)["room"]
	require.NotEmpty(t, room)

	second := testutil.NewWSClient(t, srv.url)
	assert.Equal(t, room, second.Expect("second", wait)["room"])
	s2 := second.Expect("gameStart", wait)
	s1 := first.Expect("gameStart", wait)
	assert.Equal(t, s1, s2)
	assert.Equal(t, room, s1["room"])
	assert.Equal(t, 0, srv.router.Snapshot().QueuedSessions)

	second.Send("placeStone", map[string]any{"room": room, "x": 1, "y": 2})
	assert.Equal(t, s1["player2"], first.Expect("stonePlaced", wait)["player"])
	assert.Equal(t, s1["player2"], second.Expect("stonePlaced", wait)["player"])
}

func TestGameBridge_MalformedFrame(t *testing.T) {
	srv := startServer(t, config.ModeNamed)
	c := testutil.NewWSClient(t, srv.url)

	c.Send("noSuchEvent", nil)
	assert.Equal(t, "unknown event", c.Expect("error", wait)["reason"])
}

func TestGameBridge_ShutdownDisconnectsSessions(t *testing.T) {
	srv := startServer(t, config.ModeNamed)
	for i := 0; i < 3; i++ {
		testutil.NewWSClient(t, srv.url)
	}
	eventually(t, func() bool { return srv.router.Snapshot().Sessions == 3 }, "sessions not connected")

	srv.acceptor.Stop()
	assert.Equal(t, 0, srv.router.Snapshot().Sessions)
}
