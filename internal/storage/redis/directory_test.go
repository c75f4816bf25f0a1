package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/omok/internal/game/lobby"
	"github.com/cory-johannsen/omok/internal/game/session"
	"github.com/cory-johannsen/omok/internal/testutil"
)

func TestDirectory_QueueFullDropsWithoutBlocking(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	d := NewDirectory(client, "test", 2, zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			d.RoomClosed("r")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer call blocked on a full queue")
	}
	assert.Equal(t, int64(3), d.Dropped())
	assert.Equal(t, "test:rooms", d.Key())
}

func TestDirectory_MirrorsRegistry(t *testing.T) {
	rc := testutil.NewRedisContainer(t)
	d := NewDirectory(rc.Client, "omok-test", 64, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-runDone
	})

	require.NoError(t, d.Reset(ctx))
	reg := lobby.NewRegistry(lobby.WithObserver(d))

	alice := session.New("a", 4)
	require.NoError(t, alice.SetNickname("alice"))
	bob := session.New("b", 4)
	require.NoError(t, bob.SetNickname("bob"))
	carol := session.New("c", 4)
	require.NoError(t, carol.SetNickname("carol"))

	_, err := reg.CreateRoom(alice, "r1", "normal")
	require.NoError(t, err)
	_, err = reg.CreateRoom(bob, "r2", "hard")
	require.NoError(t, err)

	rooms := func() map[string]string {
		got, err := d.Rooms(ctx)
		require.NoError(t, err)
		return got
	}
	assert.Eventually(t, func() bool {
		got := rooms()
		return len(got) == 2 && got["r1"] == "normal" && got["r2"] == "hard"
	}, 5*time.Second, 20*time.Millisecond)

	_, err = reg.JoinRoom(carol, "r1")
	require.NoError(t, err)
	reg.OnDisconnect(bob)
	assert.Eventually(t, func() bool { return len(rooms()) == 0 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, d.Ping(ctx))
	assert.Zero(t, d.Dropped())
}

func TestDirectory_FlushOnShutdown(t *testing.T) {
	rc := testutil.NewRedisContainer(t)
	d := NewDirectory(rc.Client, "omok-flush", 64, zaptest.NewLogger(t))

	d.RoomOpened(lobby.Summary{Name: "late", Mode: "normal"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	got, err := d.Rooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"late": "normal"}, got)
}
