package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/chatd/internal/config"
	"github.com/cory-johannsen/chatd/internal/testutil"
	"github.com/cory-johannsen/chatd/internal/transport"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	srv := NewServer(config.ChatConfig{
		NicknameMaxLen: 32,
		MessageMaxLen:  1000,
		FanoutBuffer:   1000,
		OutboundBuffer: 100,
	}, logger)

	acc := transport.NewAcceptor(config.ListenConfig{
		Addr:         "127.0.0.1:0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
	}, srv, logger)

	go func() {
		_ = acc.ListenAndServe()
	}()

	deadline := time.After(2 * time.Second)
	for !acc.IsRunning() || acc.Addr() == "" {
		select {
		case <-deadline:
			t.Fatal("acceptor did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Cleanup(acc.Stop)

	return srv, acc.Addr()
}

// connect dials the server and completes the nickname handshake.
func connect(t *testing.T, addr, nick string) *testutil.LineClient {
	t.Helper()
	c := testutil.NewLineClient(t, addr)
	c.Send(nick)
	require.Equal(t, "OK", c.ReadLine(2*time.Second))
	return c
}

// createRoom issues /create and returns the new room id.
func createRoom(t *testing.T, c *testutil.LineClient) string {
	t.Helper()
	c.Send("/create")

	created := c.ReadLine(2 * time.Second)
	require.True(t, strings.HasPrefix(created, "Room created: "), "got %q", created)
	require.Equal(t, "Share this ID with others to join.", c.ReadLine(2*time.Second))

	return strings.TrimPrefix(created, "Room created: ")
}

func TestSessionHandshake(t *testing.T) {
	_, addr := startServer(t)
	connect(t, addr, "alice")
}

func TestSessionCreateAndJoin(t *testing.T) {
	srv, addr := startServer(t)

	alice := connect(t, addr, "alice")
	roomID := createRoom(t, alice)
	assert.Regexp(t, `^room-[a-z0-9]{5}$`, roomID)
	assert.Equal(t, 1, srv.Registry().Len())

	bob := connect(t, addr, "bob")
	bob.Send("/join " + roomID)
	assert.Equal(t, "Joined room: "+roomID, bob.ReadLine(2*time.Second))

	// Alice sees bob's join notice.
	assert.Equal(t, "[bob joined]", alice.ReadLine(2*time.Second))

	room, ok := srv.Registry().Get(roomID)
	require.True(t, ok)
	assert.Equal(t, 2, room.MemberCount())
}

func TestSessionBroadcastExcludesSender(t *testing.T) {
	_, addr := startServer(t)

	alice := connect(t, addr, "alice")
	roomID := createRoom(t, alice)

	bob := connect(t, addr, "bob")
	bob.Send("/join " + roomID)
	bob.ReadLine(2 * time.Second) // Joined room
	alice.ReadLine(2 * time.Second) // [bob joined]

	bob.Send("hello everyone")
	assert.Equal(t, "bob: hello everyone", alice.ReadLine(2*time.Second))

	// Bob never receives his own message.
	bob.ExpectSilence(100 * time.Millisecond)
}

func TestSessionJoinUnknownRoom(t *testing.T) {
	srv, addr := startServer(t)

	alice := connect(t, addr, "alice")
	alice.Send("/join does-not-exist")
	assert.Equal(t, "Room not found: does-not-exist", alice.ReadLine(2*time.Second))

	// Still outside any room.
	alice.Send("hello?")
	assert.Equal(t, "You must join a room first. Use /create or /join <id>", alice.ReadLine(2*time.Second))
	assert.Equal(t, 0, srv.Registry().Len())
}

func TestSessionJoinMissingArg(t *testing.T) {
	_, addr := startServer(t)

	alice := connect(t, addr, "alice")
	alice.Send("/join")
	assert.Equal(t, "Usage: /join <room-id>", alice.ReadLine(2*time.Second))
}

func TestSessionQuitEmptiesRoom(t *testing.T) {
	srv, addr := startServer(t)

	alice := connect(t, addr, "alice")
	roomID := createRoom(t, alice)

	alice.Send("/quit")
	assert.Equal(t, "Left the room.", alice.ReadLine(2*time.Second))
	assert.Equal(t, 0, srv.Registry().Len())

	// The emptied room is gone for everyone.
	bob := connect(t, addr, "bob")
	bob.Send("/join " + roomID)
	assert.Equal(t, "Room not found: "+roomID, bob.ReadLine(2*time.Second))
}

func TestSessionQuitWhileIdle(t *testing.T) {
	_, addr := startServer(t)

	alice := connect(t, addr, "alice")
	alice.Send("/quit")
	assert.Equal(t, "You are not in any room.", alice.ReadLine(2*time.Second))
}

func TestSessionUnknownCommand(t *testing.T) {
	_, addr := startServer(t)

	alice := connect(t, addr, "alice")
	alice.Send("/foo")
	assert.Equal(t, "Unknown command: /foo", alice.ReadLine(2*time.Second))
}

func TestSessionHelp(t *testing.T) {
	_, addr := startServer(t)

	alice := connect(t, addr, "alice")
	alice.Send("/help")
	out := alice.ReadUntil("/help", 2*time.Second)
	assert.Contains(t, out, "/create")
	assert.Contains(t, out, "/join <id>")
	assert.Contains(t, out, "/quit")
}

func TestSessionDefaultNickname(t *testing.T) {
	_, addr := startServer(t)

	// First connection of this server gets client id 1.
	anon := connect(t, addr, "")
	roomID := createRoom(t, anon)

	bob := connect(t, addr, "bob")
	bob.Send("/join " + roomID)
	bob.ReadLine(2 * time.Second)

	assert.Equal(t, "[bob joined]", anon.ReadLine(2*time.Second))

	bob.Send("who is there")
	// Nothing for bob; the anonymous user sees the line.
	assert.Equal(t, "bob: who is there", anon.ReadLine(2*time.Second))

	anon.Send("it is me")
	assert.Equal(t, "user-1: it is me", bob.ReadLine(2*time.Second))
}

func TestSessionNicknameTruncated(t *testing.T) {
	_, addr := startServer(t)

	alice := connect(t, addr, "alice")
	roomID := createRoom(t, alice)

	longNick := strings.Repeat("n", 40)
	long := connect(t, addr, longNick)
	long.Send("/join " + roomID)
	long.ReadLine(2 * time.Second)

	want := strings.Repeat("n", 32)
	assert.Equal(t, "["+want+" joined]", alice.ReadLine(2*time.Second))

	long.Send("hi")
	assert.Equal(t, want+": hi", alice.ReadLine(2*time.Second))
}

func TestSessionMessageTruncated(t *testing.T) {
	_, addr := startServer(t)

	alice := connect(t, addr, "alice")
	roomID := createRoom(t, alice)

	bob := connect(t, addr, "bob")
	bob.Send("/join " + roomID)
	bob.ReadLine(2 * time.Second)
	alice.ReadLine(2 * time.Second) // [bob joined]

	bob.Send(strings.Repeat("x", 1500))
	assert.Equal(t, "bob: "+strings.Repeat("x", 1000), alice.ReadLine(2*time.Second))
}

func TestSessionSwitchRoomCancelsOldRelay(t *testing.T) {
	_, addr := startServer(t)

	alice := connect(t, addr, "alice")
	firstRoom := createRoom(t, alice)

	bob := connect(t, addr, "bob")
	bob.Send("/join " + firstRoom)
	bob.ReadLine(2 * time.Second)
	alice.ReadLine(2 * time.Second) // [bob joined]

	// Alice switches to a fresh room; bob sees her leave.
	createRoom(t, alice)
	assert.Equal(t, "[alice left]", bob.ReadLine(2*time.Second))

	// Traffic in the old room must never reach alice through the stale
	// subscription.
	bob.Send("talking to nobody")
	alice.ExpectSilence(200 * time.Millisecond)
}

func TestSessionDisconnectLeavesRoom(t *testing.T) {
	srv, addr := startServer(t)

	alice := connect(t, addr, "alice")
	roomID := createRoom(t, alice)

	bob := connect(t, addr, "bob")
	bob.Send("/join " + roomID)
	bob.ReadLine(2 * time.Second)
	alice.ReadLine(2 * time.Second) // [bob joined]

	alice.Close()
	assert.Equal(t, "[alice left]", bob.ReadLine(2*time.Second))

	deadline := time.After(2 * time.Second)
	for {
		room, ok := srv.Registry().Get(roomID)
		if ok && room.MemberCount() == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("membership not cleaned up after disconnect")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestSessionLastDisconnectRemovesRoom(t *testing.T) {
	srv, addr := startServer(t)

	alice := connect(t, addr, "alice")
	createRoom(t, alice)
	require.Equal(t, 1, srv.Registry().Len())

	alice.Close()

	deadline := time.After(2 * time.Second)
	for srv.Registry().Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("room not garbage-collected after last member disconnected")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestSessionEmptyLinesIgnored(t *testing.T) {
	_, addr := startServer(t)

	alice := connect(t, addr, "alice")
	alice.Send("")
	alice.Send("   ")
	alice.ExpectSilence(100 * time.Millisecond)
}

func TestSessionClientIDsMonotonic(t *testing.T) {
	srv, addr := startServer(t)

	for i := 0; i < 3; i++ {
		c := connect(t, addr, "")
		c.Close()
	}
	assert.GreaterOrEqual(t, srv.nextClientID.Load(), uint64(3))
}
