package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cory-johannsen/chatd/internal/config"
	"github.com/cory-johannsen/chatd/internal/transport"
)

const helpText = "Commands:\n" +
	"  /create       - Create a new room\n" +
	"  /join <id>    - Join existing room\n" +
	"  /quit         - Leave room\n" +
	"  /help         - Show commands\n"

// Server holds the process-wide chat state: the room registry and the
// client id counter. It implements transport.SessionHandler; the acceptor
// invokes HandleSession once per accepted connection.
type Server struct {
	registry     *Registry
	cfg          config.ChatConfig
	logger       *zap.Logger
	nextClientID atomic.Uint64
}

// NewServer creates a chat Server with the given limits.
//
// Precondition: logger must be non-nil.
func NewServer(cfg config.ChatConfig, logger *zap.Logger) *Server {
	return &Server{
		registry: NewRegistry(cfg.FanoutBuffer),
		cfg:      cfg,
		logger:   logger,
	}
}

// Registry exposes the room registry for observability and tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// HandleSession runs the complete session state machine for one connection:
// nickname handshake, command loop, and disconnect cleanup. It returns nil
// on clean disconnect (EOF) and an error on read failures.
func (s *Server) HandleSession(ctx context.Context, conn *transport.Conn) error {
	id := ClientID(s.nextClientID.Add(1))

	sess := &session{
		id:     id,
		server: s,
		conn:   conn,
		out:    NewOutbound(s.cfg.OutboundBuffer),
		logger: s.logger.With(
			zap.Uint64("client_id", uint64(id)),
			zap.String("conn_id", conn.ID()),
		),
		writerDone: make(chan struct{}),
	}
	return sess.run(ctx)
}

// session is the per-connection state: identity, nickname, the currently
// joined room (if any), and the relay bound to it.
type session struct {
	id       ClientID
	nickname string
	server   *Server
	conn     *transport.Conn
	out      *Outbound
	logger   *zap.Logger

	room       *Room
	relay      *Relay
	writerDone chan struct{}
}

func (s *session) run(ctx context.Context) error {
	// Handshake: the first line is the nickname.
	line, err := s.conn.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("reading nickname: %w", err)
	}
	s.nickname = s.sanitizeNickname(line)
	if err := s.conn.WriteLine("OK"); err != nil {
		return fmt.Errorf("writing handshake reply: %w", err)
	}

	s.logger = s.logger.With(zap.String("nickname", s.nickname))
	s.logger.Info("session authenticated")

	// All writes after the handshake flow through the outbound queue.
	go s.runWriter()
	defer func() {
		s.leaveRoom()
		s.out.Close()
		<-s.writerDone
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			return fmt.Errorf("reading from client: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			s.dispatch(input)
			continue
		}
		s.say(input)
	}
}

// runWriter is the outbound writer: the sole consumer of the outbound
// queue, serializing every write to this client's socket. It exits when the
// queue is closed or a write fails, then half-closes the socket.
func (s *session) runWriter() {
	defer close(s.writerDone)
	for line := range s.out.Lines() {
		if err := s.conn.WriteString(line); err != nil {
			s.logger.Debug("write failed, stopping writer", zap.Error(err))
			return
		}
	}
	_ = s.conn.CloseWrite()
}

func (s *session) sanitizeNickname(line string) string {
	nick := strings.TrimSpace(line)
	if nick == "" {
		return fmt.Sprintf("user-%d", s.id)
	}
	return truncateRunes(nick, s.server.cfg.NicknameMaxLen)
}

func (s *session) dispatch(input string) {
	parts := strings.Fields(input)
	switch parts[0] {
	case "/create":
		s.handleCreate()
	case "/join":
		s.handleJoin(parts[1:])
	case "/quit":
		s.handleQuit()
	case "/help":
		s.reply(helpText)
	default:
		s.reply("Unknown command: " + parts[0] + "\n")
	}
}

func (s *session) handleCreate() {
	room := s.server.registry.Create()
	s.joinRoom(room)
	s.reply("Room created: " + room.ID() + "\nShare this ID with others to join.\n")
	room.Publish(s.id, s.nickname, "["+s.nickname+" joined]")

	s.logger.Info("room created", zap.String("room_id", room.ID()))
}

func (s *session) handleJoin(args []string) {
	if len(args) < 1 {
		s.reply("Usage: /join <room-id>\n")
		return
	}
	roomID := strings.TrimSpace(args[0])
	if roomID == "" {
		s.reply("Error: Room ID cannot be empty\n")
		return
	}

	room, ok := s.server.registry.Get(roomID)
	if !ok {
		s.reply("Room not found: " + roomID + "\n")
		return
	}

	s.joinRoom(room)
	s.reply("Joined room: " + roomID + "\n")
	room.Publish(s.id, s.nickname, "["+s.nickname+" joined]")

	s.logger.Info("room joined", zap.String("room_id", roomID))
}

func (s *session) handleQuit() {
	if s.room == nil {
		s.reply("You are not in any room.\n")
		return
	}
	roomID := s.room.ID()
	s.leaveRoom()
	s.reply("Left the room.\n")

	s.logger.Info("room left", zap.String("room_id", roomID))
}

func (s *session) say(text string) {
	if s.room == nil {
		s.reply("You must join a room first. Use /create or /join <id>\n")
		return
	}
	s.room.Publish(s.id, s.nickname, truncateRunes(text, s.server.cfg.MessageMaxLen))
}

// joinRoom moves the session into room, leaving the current room first.
// A client is a member of at most one room at any instant.
func (s *session) joinRoom(room *Room) {
	s.leaveRoom()

	room.AddMember(s.id, s.nickname)
	sub := room.Subscribe()
	s.room = room
	s.relay = StartRelay(sub, s.out, s.id)
}

// leaveRoom removes the session from its current room, garbage-collects the
// room if it became empty, and cancels the relay so no messages from the
// abandoned room reach this client. No-op when not in a room.
func (s *session) leaveRoom() {
	if s.room == nil {
		return
	}

	s.room.Publish(s.id, s.nickname, "["+s.nickname+" left]")
	s.room.RemoveMember(s.id)
	s.server.registry.RemoveIfEmpty(s.room.ID())
	s.relay.Cancel()

	s.room = nil
	s.relay = nil
}

// reply queues a direct command reply. Best-effort: a full outbound queue
// drops the reply, same as a relayed broadcast.
func (s *session) reply(text string) {
	if err := s.out.Push(text); err != nil {
		s.logger.Debug("dropping reply", zap.Error(err))
	}
}
