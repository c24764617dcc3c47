package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/juris/internal/config"
	"github.com/hpungsan/juris/internal/db"
	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/item"
)

// StoreMode controls collision behavior.
type StoreMode string

const (
	StoreModeError   StoreMode = "error"   // default: fail on title collision
	StoreModeReplace StoreMode = "replace" // overwrite existing
)

// StoreNoteInput contains parameters for the StoreNote operation.
type StoreNoteInput struct {
	Title    string // required
	Body     string // required, markdown
	Tags     []string
	ItemKind string // optional reference to a remote item
	ItemID   string
	Mode     StoreMode // default: StoreModeError
}

// StoreNoteOutput contains the result of the StoreNote operation.
type StoreNoteOutput struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Replaced bool   `json:"replaced,omitempty"`
}

// StoreNote creates a note, or replaces the body of the note with the same
// title when Mode is replace.
func StoreNote(ctx context.Context, database *sql.DB, cfg *config.Config, input StoreNoteInput) (*StoreNoteOutput, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.NewInvalidRequest("title is required")
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, errors.NewInvalidRequest("body is required")
	}
	if input.Mode == "" {
		input.Mode = StoreModeError
	}
	if input.Mode != StoreModeError && input.Mode != StoreModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}

	bodyChars := CountChars(input.Body)
	if cfg.NoteMaxChars > 0 && bodyChars > cfg.NoteMaxChars {
		return nil, errors.NewNoteTooLarge(cfg.NoteMaxChars, bodyChars)
	}

	itemKind, itemID, err := itemRef(input.ItemKind, input.ItemID)
	if err != nil {
		return nil, err
	}

	titleNorm := Normalize(title)
	tags := cleanTags(input.Tags)

	if input.Mode == StoreModeReplace {
		existing, err := db.GetNoteByTitle(ctx, database, titleNorm)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			existing.Body = input.Body
			existing.BodyChars = bodyChars
			existing.Tags = tags
			existing.ItemKind = itemKind
			existing.ItemID = itemID
			if err := db.UpdateNote(ctx, database, existing); err != nil {
				return nil, err
			}
			return &StoreNoteOutput{ID: existing.ID, Title: existing.Title, Replaced: true}, nil
		}
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	n := &item.Note{
		ID:        id,
		Title:     title,
		TitleNorm: titleNorm,
		Body:      input.Body,
		BodyChars: bodyChars,
		Tags:      tags,
		ItemKind:  itemKind,
		ItemID:    itemID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := db.InsertNote(ctx, database, n); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewNameAlreadyExists(title)
		}
		return nil, err
	}

	return &StoreNoteOutput{ID: id, Title: title}, nil
}

// itemRef validates an optional reference to a remote item. Both parts are
// required together.
func itemRef(kind, id string) (*item.Kind, *string, error) {
	kind = strings.TrimSpace(kind)
	id = strings.TrimSpace(id)
	if kind == "" && id == "" {
		return nil, nil, nil
	}
	if kind == "" || id == "" {
		return nil, nil, errors.NewInvalidRequest("item_kind and item_id must be given together")
	}
	k, err := item.ParseKind(kind)
	if err != nil {
		return nil, nil, errors.NewInvalidRequest(err.Error())
	}
	return &k, &id, nil
}
