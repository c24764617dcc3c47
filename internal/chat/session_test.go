package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/juris/internal/api"
	"github.com/hpungsan/juris/internal/audio"
	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/logging"
)

// fakeBackend answers from functions so each test scripts its own behavior.
type fakeBackend struct {
	chat   func(ctx context.Context, message string) (*api.ChatReply, error)
	speech func(ctx context.Context, clip *audio.Clip) (*api.ChatReply, error)
}

func (f *fakeBackend) Chat(ctx context.Context, message string) (*api.ChatReply, error) {
	return f.chat(ctx, message)
}

func (f *fakeBackend) Speech(ctx context.Context, clip *audio.Clip) (*api.ChatReply, error) {
	return f.speech(ctx, clip)
}

func echoBackend() *fakeBackend {
	return &fakeBackend{
		chat: func(_ context.Context, message string) (*api.ChatReply, error) {
			return &api.ChatReply{Reply: "echo: " + message}, nil
		},
		speech: func(_ context.Context, clip *audio.Clip) (*api.ChatReply, error) {
			return &api.ChatReply{Reply: fmt.Sprintf("heard %d bytes", len(clip.Data))}, nil
		},
	}
}

// memStore is an in-memory Store.
type memStore struct {
	mu   sync.Mutex
	msgs map[string][]Message
}

func newMemStore() *memStore {
	return &memStore{msgs: map[string][]Message{}}
}

func (m *memStore) AppendChatMessage(_ context.Context, id string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[id] = append(m.msgs[id], msg)
	return nil
}

func (m *memStore) LoadChatMessages(_ context.Context, id string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.msgs[id]...), nil
}

func (m *memStore) ClearChatSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.msgs, id)
	return nil
}

func newSession(b Backend) *Session {
	return New(b, Options{Logger: logging.Nop()})
}

func TestSession_StartsWithGreeting(t *testing.T) {
	s := newSession(echoBackend())

	msgs := s.Transcript()
	require.Len(t, msgs, 1)
	require.Equal(t, SenderBot, msgs[0].Sender)
	require.Equal(t, Greeting, msgs[0].Text)
	require.NotEmpty(t, msgs[0].ID)
	require.NotEmpty(t, s.ID())
}

func TestSession_SendHello(t *testing.T) {
	release := make(chan struct{})
	b := echoBackend()
	b.chat = func(_ context.Context, message string) (*api.ChatReply, error) {
		<-release
		return &api.ChatReply{Reply: "Hi! How can I help?", ToolUsed: "judgment_search"}, nil
	}
	s := newSession(b)

	done := make(chan Message, 1)
	go func() {
		m, err := s.Send(context.Background(), "hello")
		require.NoError(t, err)
		done <- m
	}()

	// User message appears before the backend answers.
	require.Eventually(t, func() bool { return len(s.Transcript()) == 2 }, time.Second, time.Millisecond)
	msgs := s.Transcript()
	require.Equal(t, SenderUser, msgs[1].Sender)
	require.Equal(t, "hello", msgs[1].Text)

	close(release)
	reply := <-done
	require.Equal(t, "Hi! How can I help?", reply.Text)
	require.Equal(t, "judgment_search", reply.ToolUsed)

	msgs = s.Transcript()
	require.Len(t, msgs, 3)
	require.Equal(t, SenderBot, msgs[2].Sender)
	require.Equal(t, reply.ID, msgs[2].ID)
}

func TestSession_EmptyMessageRejected(t *testing.T) {
	s := newSession(echoBackend())

	_, err := s.Send(context.Background(), "  \n\t ")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.Len(t, s.Transcript(), 1)
}

func TestSession_FailureAppendsErrorReply(t *testing.T) {
	b := echoBackend()
	b.chat = func(context.Context, string) (*api.ChatReply, error) {
		return nil, errors.NewNetwork("POST", api.PathChat, fmt.Errorf("connection refused"))
	}
	s := newSession(b)

	reply, err := s.Send(context.Background(), "anyone there?")
	require.True(t, errors.Is(err, errors.ErrNetwork))
	require.Equal(t, ErrorReply, reply.Text)
	require.True(t, reply.Failed)

	msgs := s.Transcript()
	require.Len(t, msgs, 3)
	require.Equal(t, SenderBot, msgs[2].Sender)
	require.Equal(t, ErrorReply, msgs[2].Text)
}

func TestSession_RepliesKeepSubmissionOrder(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	b := echoBackend()
	b.chat = func(_ context.Context, message string) (*api.ChatReply, error) {
		if message == "first" {
			close(firstStarted)
			<-releaseFirst
		}
		return &api.ChatReply{Reply: "re: " + message}, nil
	}
	s := newSession(b)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = s.Send(ctx, "first")
	}()
	<-firstStarted
	go func() {
		defer wg.Done()
		_, _ = s.Send(ctx, "second")
	}()

	require.Eventually(t, func() bool { return len(s.Transcript()) == 3 }, time.Second, time.Millisecond)
	close(releaseFirst)
	wg.Wait()

	var texts []string
	for _, m := range s.Transcript()[1:] {
		texts = append(texts, m.Text)
	}
	require.Equal(t, []string{"first", "second", "re: first", "re: second"}, texts)
}

func TestSession_ResetDropsInFlightReply(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	b := echoBackend()
	b.chat = func(context.Context, string) (*api.ChatReply, error) {
		close(started)
		<-release
		return &api.ChatReply{Reply: "late"}, nil
	}
	s := newSession(b)

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "question")
		done <- err
	}()
	<-started

	require.NoError(t, s.Reset(context.Background()))
	close(release)

	require.ErrorIs(t, <-done, ErrReset)
	msgs := s.Transcript()
	require.Len(t, msgs, 1)
	require.Equal(t, Greeting, msgs[0].Text)
}

type failingSource struct {
	closed bool
}

func (f *failingSource) Name() string { return "mic.webm" }

func (f *failingSource) Open(context.Context) (io.ReadCloser, error) {
	return f, nil
}

func (f *failingSource) Read([]byte) (int, error) { return 0, fmt.Errorf("microphone disconnected") }

func (f *failingSource) Close() error {
	f.closed = true
	return nil
}

func TestSession_SendVoice(t *testing.T) {
	s := newSession(echoBackend())

	reply, err := s.SendVoice(context.Background(), audio.BytesSource{FileName: "q.webm", Data: []byte("1234")})
	require.NoError(t, err)
	require.Equal(t, "heard 4 bytes", reply.Text)

	msgs := s.Transcript()
	require.Len(t, msgs, 3)
	require.Equal(t, VoicePlaceholder, msgs[1].Text)
	require.True(t, msgs[1].Voice)
	require.Equal(t, SenderUser, msgs[1].Sender)
}

func TestSession_SendVoiceReleasesStreamOnFailure(t *testing.T) {
	b := echoBackend()
	b.speech = func(context.Context, *audio.Clip) (*api.ChatReply, error) {
		t.Error("speech endpoint must not be called")
		return nil, nil
	}
	s := newSession(b)
	src := &failingSource{}

	_, err := s.SendVoice(context.Background(), src)
	require.ErrorContains(t, err, "microphone disconnected")
	require.True(t, src.closed)
	require.Len(t, s.Transcript(), 1)
}

func TestSession_SpeechFailureAppendsErrorReply(t *testing.T) {
	b := echoBackend()
	b.speech = func(context.Context, *audio.Clip) (*api.ChatReply, error) {
		return nil, errors.NewHTTPStatus("POST", api.PathSpeech, 500, "")
	}
	s := newSession(b)

	_, err := s.SendVoice(context.Background(), audio.BytesSource{Data: []byte("x")})
	require.Error(t, err)
	msgs := s.Transcript()
	require.Len(t, msgs, 3)
	require.Equal(t, ErrorReply, msgs[2].Text)
}

func TestSession_StoreAndResume(t *testing.T) {
	store := newMemStore()
	s := New(echoBackend(), Options{ID: "research", Store: store, Logger: logging.Nop()})
	ctx := context.Background()

	_, err := s.Send(ctx, "section 302")
	require.NoError(t, err)

	resumed, err := Resume(ctx, echoBackend(), Options{ID: "research", Store: store, Logger: logging.Nop()})
	require.NoError(t, err)
	msgs := resumed.Transcript()
	require.Len(t, msgs, 3)
	require.Equal(t, Greeting, msgs[0].Text)
	require.Equal(t, "section 302", msgs[1].Text)
	require.True(t, strings.HasPrefix(msgs[2].Text, "echo: "))

	require.NoError(t, resumed.Reset(ctx))
	saved, err := store.LoadChatMessages(ctx, "research")
	require.NoError(t, err)
	require.Empty(t, saved)
}

func TestResume_RequiresStore(t *testing.T) {
	_, err := Resume(context.Background(), echoBackend(), Options{ID: "x"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
