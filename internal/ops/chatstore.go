package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/juris/internal/chat"
	"github.com/hpungsan/juris/internal/db"
)

// ChatStore keeps chat transcripts in the local database.
type ChatStore struct {
	db *sql.DB
}

var _ chat.Store = (*ChatStore)(nil)

// NewChatStore returns a chat.Store backed by database.
func NewChatStore(database *sql.DB) *ChatStore {
	return &ChatStore{db: database}
}

func (s *ChatStore) AppendChatMessage(ctx context.Context, sessionID string, m chat.Message) error {
	return db.InsertChatMessage(ctx, s.db, db.ChatRow{
		ID:        m.ID,
		SessionID: sessionID,
		Sender:    string(m.Sender),
		Text:      m.Text,
		Voice:     m.Voice,
		ToolUsed:  m.ToolUsed,
		Failed:    m.Failed,
		CreatedAt: m.Timestamp.UnixMilli(),
	})
}

func (s *ChatStore) LoadChatMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	rows, err := db.ListChatMessages(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	msgs := make([]chat.Message, len(rows))
	for i, r := range rows {
		msgs[i] = chat.Message{
			ID:        r.ID,
			Text:      r.Text,
			Sender:    chat.Sender(r.Sender),
			Timestamp: time.UnixMilli(r.CreatedAt),
			Voice:     r.Voice,
			ToolUsed:  r.ToolUsed,
			Failed:    r.Failed,
		}
	}
	return msgs, nil
}

func (s *ChatStore) ClearChatSession(ctx context.Context, sessionID string) error {
	return db.DeleteChatSession(ctx, s.db, sessionID)
}
