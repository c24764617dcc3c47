package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/juris/internal/db"
	"github.com/hpungsan/juris/internal/item"
)

// ListInput contains parameters for offset-paginated list operations.
type ListInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// ListNotesOutput contains the result of the ListNotes operation.
type ListNotesOutput struct {
	Items      []item.Note `json:"items"`
	Pagination Pagination  `json:"pagination"`
	Sort       string      `json:"sort"`
}

// ListNotes retrieves notes, most recently updated first. Bodies are omitted.
func ListNotes(ctx context.Context, database *sql.DB, input ListInput) (*ListNotesOutput, error) {
	limit := clampLimit(input.Limit)
	offset := max(input.Offset, 0)

	notes, total, err := db.ListNotes(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		notes[i].Body = ""
	}

	return &ListNotesOutput{
		Items:      notes,
		Pagination: newPagination(limit, offset, len(notes), total),
		Sort:       "updated_at_desc",
	}, nil
}

// ListDownloadsOutput contains the result of the ListDownloads operation.
type ListDownloadsOutput struct {
	Items      []item.Download `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

// ListDownloads retrieves recorded downloads, newest first.
func ListDownloads(ctx context.Context, database *sql.DB, input ListInput) (*ListDownloadsOutput, error) {
	limit := clampLimit(input.Limit)
	offset := max(input.Offset, 0)

	downloads, total, err := db.ListDownloads(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}

	return &ListDownloadsOutput{
		Items:      downloads,
		Pagination: newPagination(limit, offset, len(downloads), total),
	}, nil
}
