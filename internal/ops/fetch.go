package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/juris/internal/db"
	"github.com/hpungsan/juris/internal/item"
)

// FetchNoteInput contains parameters for the FetchNote operation.
type FetchNoteInput struct {
	ID             string
	Title          string
	IncludeDeleted bool
	IncludeBody    *bool // default: true (nil means default)
}

// FetchNote retrieves a note by ID or title.
func FetchNote(ctx context.Context, database *sql.DB, input FetchNoteInput) (*item.Note, error) {
	addr, err := ValidateAddress(input.ID, input.Title)
	if err != nil {
		return nil, err
	}

	var n *item.Note
	if addr.ByID {
		n, err = db.GetNote(ctx, database, addr.ID, input.IncludeDeleted)
	} else {
		n, err = db.GetNoteByTitle(ctx, database, addr.Title)
	}
	if err != nil {
		return nil, err
	}

	if input.IncludeBody != nil && !*input.IncludeBody {
		n.Body = ""
	}
	return n, nil
}
