// Package client implements the terminal chat client: it forwards stdin
// lines to the server socket and prints server lines to stdout.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const banner = "Welcome to chatd!\n"

const commandList = "Commands:\n" +
	"  /create       - Create a new room\n" +
	"  /join <id>    - Join existing room\n" +
	"  /quit         - Leave room\n" +
	"  /help         - Show commands\n"

// Client is a terminal chat client. In supplies user input (normally
// stdin); Out receives all user-visible output.
type Client struct {
	In  io.Reader
	Out io.Writer
}

// DefaultNickname derives a throwaway nickname from the given time, used
// when the user leaves the nickname prompt blank.
func DefaultNickname(now time.Time) string {
	return fmt.Sprintf("user-%x", now.Unix()%10000)
}

// Run prompts for a nickname, connects to the server at addr, and runs the
// forwarding loops until stdin is exhausted, the context is cancelled, or
// the connection fails.
//
// Postcondition: The connection is closed when Run returns.
func (c *Client) Run(ctx context.Context, addr string) error {
	fmt.Fprintf(c.Out, "%s\n", banner)
	fmt.Fprintf(c.Out, "Connecting to: %s\n\n", addr)

	in := bufio.NewReader(c.In)

	fmt.Fprint(c.Out, "Nick (leave blank for random): ")
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading nickname: %w", err)
	}
	nickname := strings.TrimSpace(line)
	if nickname == "" {
		nickname = DefaultNickname(time.Now())
	}

	fmt.Fprintf(c.Out, "You are: %s\n\n", nickname)
	fmt.Fprint(c.Out, commandList)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to server at %s: %w", addr, err)
	}
	defer conn.Close()

	return c.runConn(ctx, conn, in, nickname)
}

// runConn performs the handshake and runs the stdin and socket pumps over
// an established connection.
func (c *Client) runConn(ctx context.Context, conn net.Conn, in *bufio.Reader, nickname string) error {
	server := bufio.NewReader(conn)

	// Handshake: send nickname, await OK.
	if _, err := fmt.Fprintf(conn, "%s\n", nickname); err != nil {
		return fmt.Errorf("sending nickname: %w", err)
	}
	if _, err := server.ReadString('\n'); err != nil {
		return fmt.Errorf("establishing connection with server: %w", err)
	}

	// Stdin pump: forwards non-empty lines; closed at stdin EOF.
	input := make(chan string, 100)
	go func() {
		defer close(input)
		for {
			fmt.Fprint(c.Out, "> ")
			line, err := in.ReadString('\n')
			msg := strings.TrimSpace(line)
			if msg != "" {
				input <- msg
			}
			if err != nil {
				return
			}
		}
	}()

	// Socket pump: prints server lines until the server closes.
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		for {
			line, err := server.ReadString('\n')
			if line != "" {
				fmt.Fprint(c.Out, line)
			}
			if err != nil {
				if err == io.EOF {
					fmt.Fprintln(c.Out, "\n[Server disconnected]")
				}
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-input:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(conn, "%s\n", msg); err != nil {
				return fmt.Errorf("sending message: %w", err)
			}
		case <-serverDone:
			return nil
		case <-ctx.Done():
			fmt.Fprintln(c.Out, "\n[Disconnecting...]")
			return nil
		}
	}
}
