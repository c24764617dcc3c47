package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/item"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.JurisError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const noteColumns = `id, title, title_norm, body, body_chars, tags_json,
	item_kind, item_id, created_at, updated_at, deleted_at`

// InsertNote stores a new note.
func InsertNote(ctx context.Context, db *sql.DB, n *item.Note) error {
	tagsJSON, err := toTagsJSON(n.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notes (` + noteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err = db.ExecContext(ctx, query,
		n.ID, n.Title, n.TitleNorm, n.Body, n.BodyChars, tagsJSON,
		kindToNull(n.ItemKind), toNullString(n.ItemID), n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetNote retrieves a note by its ULID.
// If includeDeleted is false, soft-deleted notes are excluded.
func GetNote(ctx context.Context, db *sql.DB, id string, includeDeleted bool) (*item.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	n, err := scanNote(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("note", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return n, nil
}

// GetNoteByTitle retrieves an active note by normalized title.
func GetNoteByTitle(ctx context.Context, db *sql.DB, titleNorm string) (*item.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE title_norm = ? AND deleted_at IS NULL`

	n, err := scanNote(db.QueryRowContext(ctx, query, titleNorm))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("note", titleNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return n, nil
}

// UpdateNote replaces the body and tags of an active note and bumps updated_at.
func UpdateNote(ctx context.Context, db *sql.DB, n *item.Note) error {
	tagsJSON, err := toTagsJSON(n.Tags)
	if err != nil {
		return err
	}
	now := time.Now().Unix()

	query := `
		UPDATE notes
		SET body = ?, body_chars = ?, tags_json = ?, item_kind = ?, item_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := db.ExecContext(ctx, query,
		n.Body, n.BodyChars, tagsJSON, kindToNull(n.ItemKind), toNullString(n.ItemID), now, n.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := requireAffected(result, "note", n.ID); err != nil {
		return err
	}
	n.UpdatedAt = now
	return nil
}

// SoftDeleteNote marks a note as deleted by setting deleted_at.
func SoftDeleteNote(ctx context.Context, db *sql.DB, id string) error {
	query := `UPDATE notes SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := db.ExecContext(ctx, query, time.Now().Unix(), id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(result, "note", id)
}

// ListNotes returns active notes, newest first, and the total count.
func ListNotes(ctx context.Context, db *sql.DB, limit, offset int) ([]item.Note, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT ` + noteColumns + ` FROM notes
		WHERE deleted_at IS NULL
		ORDER BY updated_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	notes, err := queryNotes(ctx, db, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

// SearchNotes returns active notes whose title or body contains q
// (case-insensitive), newest first, and the total match count.
func SearchNotes(ctx context.Context, db *sql.DB, q string, limit, offset int) ([]item.Note, int, error) {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	where := `deleted_at IS NULL AND (lower(title) LIKE ? ESCAPE '\' OR lower(body) LIKE ? ESCAPE '\')`

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE `+where, pattern, pattern).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT ` + noteColumns + ` FROM notes
		WHERE ` + where + `
		ORDER BY updated_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	notes, err := queryNotes(ctx, db, query, pattern, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func queryNotes(ctx context.Context, db *sql.DB, query string, args ...any) ([]item.Note, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	notes := []item.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return notes, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanNote scans a single row into a Note.
func scanNote(row scanner) (*item.Note, error) {
	var (
		n         item.Note
		tagsJSON  sql.NullString
		itemKind  sql.NullString
		itemID    sql.NullString
		deletedAt sql.NullInt64
	)
	err := row.Scan(
		&n.ID, &n.Title, &n.TitleNorm, &n.Body, &n.BodyChars, &tagsJSON,
		&itemKind, &itemID, &n.CreatedAt, &n.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if itemKind.Valid {
		k := item.Kind(itemKind.String)
		n.ItemKind = &k
	}
	n.ItemID = fromNullString(itemID)
	if deletedAt.Valid {
		n.DeletedAt = &deletedAt.Int64
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &n.Tags); err != nil {
			return nil, err
		}
	}
	return &n, nil
}

// InsertDownload records a fetched document.
func InsertDownload(ctx context.Context, db *sql.DB, d *item.Download) error {
	query := `
		INSERT INTO downloads (id, item_kind, item_id, title, path, bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		d.ID, string(d.ItemKind), d.ItemID, nullIfEmpty(d.Title), d.Path, d.Bytes, d.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListDownloads returns downloads, newest first, and the total count.
func ListDownloads(ctx context.Context, db *sql.DB, limit, offset int) ([]item.Download, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, item_kind, item_id, title, path, bytes, created_at
		FROM downloads
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	downloads := []item.Download{}
	for rows.Next() {
		var (
			d     item.Download
			kind  string
			title sql.NullString
		)
		if err := rows.Scan(&d.ID, &kind, &d.ItemID, &title, &d.Path, &d.Bytes, &d.CreatedAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		d.ItemKind = item.Kind(kind)
		d.Title = title.String
		downloads = append(downloads, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return downloads, total, nil
}

// ChatRow is a stored transcript entry.
type ChatRow struct {
	ID        string
	SessionID string
	Sender    string
	Text      string
	Voice     bool
	ToolUsed  string
	Failed    bool
	CreatedAt int64 // unix milliseconds
}

// InsertChatMessage appends a message to a session's transcript.
func InsertChatMessage(ctx context.Context, db *sql.DB, m ChatRow) error {
	query := `
		INSERT INTO chat_messages (id, session_id, sender, text, voice, tool_used, failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		m.ID, m.SessionID, m.Sender, m.Text, m.Voice, nullIfEmpty(m.ToolUsed), m.Failed, m.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// ListChatMessages returns a session's transcript in insertion order.
func ListChatMessages(ctx context.Context, db *sql.DB, sessionID string) ([]ChatRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, sender, text, voice, tool_used, failed, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []ChatRow
	for rows.Next() {
		var (
			m        ChatRow
			toolUsed sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Text, &m.Voice, &toolUsed, &m.Failed, &m.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		m.ToolUsed = toolUsed.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// DeleteChatSession removes every message of a session.
func DeleteChatSession(ctx context.Context, db *sql.DB, sessionID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func requireAffected(result sql.Result, kind, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(kind, id)
	}
	return nil
}

func toTagsJSON(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, errors.NewInternal(err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func kindToNull(k *item.Kind) sql.NullString {
	if k == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*k), Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
