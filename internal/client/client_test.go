package client

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a goroutine-safe output sink for client runs.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitFor polls until the output contains substr or two seconds pass.
// It reports success rather than failing the test so it is safe to call
// from helper goroutines.
func (b *syncBuffer) waitFor(substr string) bool {
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(b.String(), substr) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}

func TestDefaultNickname(t *testing.T) {
	assert.Equal(t, "user-1", DefaultNickname(time.Unix(10001, 0)))
	assert.Equal(t, "user-ff", DefaultNickname(time.Unix(255, 0)))
	assert.True(t, strings.HasPrefix(DefaultNickname(time.Now()), "user-"))
}

// fakeServer accepts one connection, performs the handshake, and sends one
// broadcast line to the client.
func fakeServer(t *testing.T) (addr string, received <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	lines := make(chan string, 10)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		// Nickname handshake.
		if _, err := reader.ReadString('\n'); err != nil {
			return
		}
		_, _ = io.WriteString(conn, "OK\n")
		_, _ = io.WriteString(conn, "bob: welcome\n")

		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				lines <- strings.TrimRight(line, "\n")
			}
			if err != nil {
				close(lines)
				return
			}
		}
	}()

	return ln.Addr().String(), lines
}

func TestClientRun(t *testing.T) {
	addr, received := fakeServer(t)

	inR, inW := io.Pipe()
	out := &syncBuffer{}
	c := &Client{In: inR, Out: out}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, addr)
	}()

	go func() {
		_, _ = io.WriteString(inW, "alice\n")
		out.waitFor("bob: welcome")
		_, _ = io.WriteString(inW, "hello there\n")
	}()

	select {
	case line := <-received:
		assert.Equal(t, "hello there", line)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the forwarded message")
	}

	// Stdin EOF ends the run.
	_ = inW.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit on stdin EOF")
	}

	output := out.String()
	assert.Contains(t, output, "Welcome to chatd!")
	assert.Contains(t, output, "You are: alice")
	assert.Contains(t, output, "bob: welcome")
	assert.Contains(t, output, "/create")
}

func TestClientRunDefaultNickname(t *testing.T) {
	addr, _ := fakeServer(t)

	inR, inW := io.Pipe()
	out := &syncBuffer{}
	c := &Client{In: inR, Out: out}

	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background(), addr)
	}()

	go func() {
		// Blank nickname triggers the random fallback.
		_, _ = io.WriteString(inW, "\n")
		out.waitFor("bob: welcome")
		_ = inW.Close()
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit")
	}

	assert.Contains(t, out.String(), "You are: user-")
}

func TestClientRunConnectionRefused(t *testing.T) {
	// Grab a port with nothing listening on it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := &Client{In: strings.NewReader("alice\n"), Out: &syncBuffer{}}
	err = c.Run(context.Background(), addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to server")
}

func TestClientRunCancelled(t *testing.T) {
	addr, _ := fakeServer(t)

	inR, inW := io.Pipe()
	out := &syncBuffer{}
	c := &Client{In: inR, Out: out}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, addr)
	}()

	go func() {
		_, _ = io.WriteString(inW, "alice\n")
		out.waitFor("bob: welcome")
		cancel()
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit on cancellation")
	}

	assert.Contains(t, out.String(), "[Disconnecting...]")
}
