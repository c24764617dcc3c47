// Package chat keeps the transcript of a conversation with the legal
// assistant and runs text and voice round trips against the backend.
package chat

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/hpungsan/juris/internal/api"
	"github.com/hpungsan/juris/internal/audio"
	"github.com/hpungsan/juris/internal/errors"
)

// Fixed transcript texts.
const (
	Greeting         = "Hello! I'm your legal research assistant. Ask me about judgments, acts or law mappings."
	ErrorReply       = "Sorry, I couldn't process that right now. Please try again."
	VoicePlaceholder = "🎤 Voice message"
)

// ErrReset is returned when the session was reset while a round trip was in
// flight; the reply was dropped.
var ErrReset = stderrors.New("chat: session was reset")

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Voice     bool      `json:"voice,omitempty"`
	ToolUsed  string    `json:"tool_used,omitempty"`
	Failed    bool      `json:"failed,omitempty"`
}

// Backend answers messages.
type Backend interface {
	Chat(ctx context.Context, message string) (*api.ChatReply, error)
	Speech(ctx context.Context, clip *audio.Clip) (*api.ChatReply, error)
}

// Store persists transcripts. The greeting is never stored.
type Store interface {
	AppendChatMessage(ctx context.Context, sessionID string, m Message) error
	LoadChatMessages(ctx context.Context, sessionID string) ([]Message, error)
	ClearChatSession(ctx context.Context, sessionID string) error
}

// Options configures a Session.
type Options struct {
	// ID names the session in the store. Empty means a fresh ULID.
	ID            string
	Store         Store
	Logger        zerolog.Logger
	VoiceMaxBytes int64
	Now           func() time.Time
}

// Session is one conversation. Round trips are serialized: a second Send
// shows its user message right away but waits for the first reply before
// going out, so replies land in the order the messages were sent.
type Session struct {
	id       string
	backend  Backend
	store    Store
	log      zerolog.Logger
	maxVoice int64
	now      func() time.Time

	sendMu sync.Mutex

	mu       sync.Mutex
	gen      uint64
	messages []Message
	entropy  *ulid.MonotonicEntropy
}

// New starts a session whose transcript holds only the greeting.
func New(backend Backend, opts Options) *Session {
	s := &Session{
		id:       opts.ID,
		backend:  backend,
		store:    opts.Store,
		log:      opts.Logger,
		maxVoice: opts.VoiceMaxBytes,
		now:      opts.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.id == "" {
		s.id = s.newID()
	}
	s.messages = []Message{s.greeting()}
	return s
}

// Resume opens a stored session: the greeting followed by the saved messages.
func Resume(ctx context.Context, backend Backend, opts Options) (*Session, error) {
	if opts.Store == nil || opts.ID == "" {
		return nil, errors.NewInvalidRequest("resume needs a store and a session id")
	}
	saved, err := opts.Store.LoadChatMessages(ctx, opts.ID)
	if err != nil {
		return nil, err
	}
	s := New(backend, opts)
	s.messages = append(s.messages, saved...)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Transcript returns a copy of the messages in display order.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Send submits a text message and returns the bot's reply message. On
// failure the generic error reply is appended and the error returned.
func (s *Session) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, errors.NewInvalidRequest("message is empty")
	}

	gen := s.appendUser(ctx, Message{Text: text})
	return s.roundTrip(ctx, gen, func(ctx context.Context) (*api.ChatReply, error) {
		return s.backend.Chat(ctx, text)
	})
}

// SendVoice records a clip from src and sends it to the speech endpoint.
// The capture stream is released before the upload starts, whatever
// happens while reading. The transcript gets a placeholder for the user
// turn since the transcription is not returned.
func (s *Session) SendVoice(ctx context.Context, src audio.Source) (Message, error) {
	clip, err := audio.Record(ctx, src, s.maxVoice)
	if err != nil {
		s.log.Warn().Err(err).Msg("voice capture failed")
		return Message{}, err
	}
	return s.SendClip(ctx, clip)
}

// SendClip sends an already captured recording.
func (s *Session) SendClip(ctx context.Context, clip *audio.Clip) (Message, error) {
	if clip == nil || len(clip.Data) == 0 {
		return Message{}, errors.NewInvalidRequest("recording is empty")
	}
	gen := s.appendUser(ctx, Message{Text: VoicePlaceholder, Voice: true})
	return s.roundTrip(ctx, gen, func(ctx context.Context) (*api.ChatReply, error) {
		return s.backend.Speech(ctx, clip)
	})
}

// Reset discards the transcript and starts over from the greeting. Replies
// to messages sent before the reset are dropped.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	s.messages = []Message{s.greeting()}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ClearChatSession(ctx, s.id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) appendUser(ctx context.Context, m Message) uint64 {
	m.Sender = SenderUser
	s.mu.Lock()
	m.ID = s.newIDLocked()
	m.Timestamp = s.now()
	s.messages = append(s.messages, m)
	gen := s.gen
	s.mu.Unlock()

	s.persist(ctx, m)
	return gen
}

func (s *Session) roundTrip(ctx context.Context, gen uint64, call func(context.Context) (*api.ChatReply, error)) (Message, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.stale(gen) {
		return Message{}, ErrReset
	}

	reply, callErr := call(ctx)

	bot := Message{Sender: SenderBot}
	if callErr != nil {
		bot.Text = ErrorReply
		bot.Failed = true
		s.log.Warn().Err(callErr).Str("session", s.id).Msg("chat request failed")
	} else {
		bot.Text = reply.Reply
		bot.ToolUsed = reply.ToolUsed
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.log.Debug().Str("session", s.id).Msg("dropping reply for reset session")
		return Message{}, ErrReset
	}
	bot.ID = s.newIDLocked()
	bot.Timestamp = s.now()
	s.messages = append(s.messages, bot)
	s.mu.Unlock()

	s.persist(ctx, bot)
	return bot, callErr
}

func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.gen
}

// persist stores m. A storage failure doesn't fail the conversation.
func (s *Session) persist(ctx context.Context, m Message) {
	if s.store == nil {
		return
	}
	if err := s.store.AppendChatMessage(ctx, s.id, m); err != nil {
		s.log.Warn().Err(err).Str("session", s.id).Msg("failed to save chat message")
	}
}

func (s *Session) greeting() Message {
	return Message{
		ID:        s.newIDLocked(),
		Text:      Greeting,
		Sender:    SenderBot,
		Timestamp: s.now(),
	}
}

func (s *Session) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newIDLocked()
}

func (s *Session) newIDLocked() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}
