package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/juris/internal/db"
)

// DeleteNoteInput contains parameters for the DeleteNote operation.
type DeleteNoteInput struct {
	ID    string
	Title string
}

// DeleteNoteOutput contains the result of the DeleteNote operation.
type DeleteNoteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// DeleteNote soft-deletes a note.
func DeleteNote(ctx context.Context, database *sql.DB, input DeleteNoteInput) (*DeleteNoteOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Title)
	if err != nil {
		return nil, err
	}

	noteID := addr.ID
	if !addr.ByID {
		n, err := db.GetNoteByTitle(ctx, database, addr.Title)
		if err != nil {
			return nil, err
		}
		noteID = n.ID
	}

	if err := db.SoftDeleteNote(ctx, database, noteID); err != nil {
		return nil, err
	}

	return &DeleteNoteOutput{Deleted: true, ID: noteID}, nil
}
