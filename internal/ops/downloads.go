package ops

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hpungsan/juris/internal/db"
	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/item"
)

// Downloader streams a judgment's PDF.
type Downloader interface {
	DownloadJudgment(ctx context.Context, id string, w io.Writer) (int64, error)
}

// DownloadInput contains parameters for the Download operation.
type DownloadInput struct {
	JudgmentID string // required
	Title      string // optional, shown in the downloads list
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// downloadFileName maps an item to a file name that cannot escape dir.
func downloadFileName(kind item.Kind, id string) string {
	safe := strings.Trim(unsafeFileChars.ReplaceAllString(id, "_"), "._")
	return string(kind) + "-" + safe + ".pdf"
}

// Download fetches a judgment PDF into dir and records it. The file is
// written under a temporary name and renamed once complete, so a failed
// transfer never leaves a truncated document behind.
func Download(ctx context.Context, database *sql.DB, client Downloader, dir string, input DownloadInput) (*item.Download, error) {
	id := strings.TrimSpace(input.JudgmentID)
	if id == "" {
		return nil, errors.NewInvalidRequest("judgment id is required")
	}
	if downloadFileName(item.KindJudgment, id) == "judgment-.pdf" {
		return nil, errors.NewInvalidRequest("judgment id has no usable characters")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(err)
	}
	finalPath := filepath.Join(dir, downloadFileName(item.KindJudgment, id))
	tmpPath := finalPath + ".part"

	f, err := openFileNoFollow(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(err)
	}

	n, err := client.DownloadJudgment(ctx, id, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.NewInternal(cerr)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, errors.NewInternal(err)
	}

	recordID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	d := &item.Download{
		ID:        recordID,
		ItemKind:  item.KindJudgment,
		ItemID:    id,
		Title:     strings.TrimSpace(input.Title),
		Path:      finalPath,
		Bytes:     n,
		CreatedAt: time.Now().Unix(),
	}
	if err := db.InsertDownload(ctx, database, d); err != nil {
		return nil, err
	}
	return d, nil
}
