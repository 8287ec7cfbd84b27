// Package index persists parsed SubvolumeSnapshot values into a searchable
// SQLite database: one row per live file, an FTS5 table for path search,
// and tombstone entries translated into deletions of whatever the prior
// snapshot recorded at the same path.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/avogabo/sendreplay/internal/sendstream"
)

// Store is a handle to one index database.
type Store struct {
	sql   *sql.DB
	group singleflight.Group
}

// Open creates or opens the index database at path, running migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{sql: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.sql.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS subvolumes (
			id TEXT PRIMARY KEY,
			uuid BLOB NOT NULL,
			overwrite INTEGER NOT NULL,
			indexed_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			subvolume_id TEXT NOT NULL,
			path BLOB NOT NULL,
			path_display TEXT NOT NULL,
			mode INTEGER NOT NULL,
			uid INTEGER NOT NULL,
			gid INTEGER NOT NULL,
			atime INTEGER NOT NULL,
			mtime INTEGER NOT NULL,
			ctime INTEGER NOT NULL,
			length INTEGER NOT NULL,
			filetype INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_files_subvolume ON files(subvolume_id);`,
		`CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			path, rev_path,
			tokenize = "unicode61 remove_diacritics 0 categories 'L* M* N* P* S* Z* C*'"
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.sql.Exec(stmt); err != nil {
			es := err.Error()
			if strings.Contains(es, "duplicate") || strings.Contains(es, "already exists") {
				continue
			}
			return err
		}
	}
	return nil
}

// Index writes one finished snapshot's files into the database, translating
// tombstones into deletions of the prior row at the same path. Concurrent
// calls for the same subvolume UUID are coalesced: only one actually runs.
func (s *Store) Index(ctx context.Context, snap sendstream.SubvolumeSnapshot) (string, error) {
	key := fmt.Sprintf("%x", snap.Source.UUID)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.indexOnce(ctx, snap)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Store) indexOnce(ctx context.Context, snap sendstream.SubvolumeSnapshot) (string, error) {
	id := uuid.NewString()
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO subvolumes (id, uuid, overwrite, indexed_at) VALUES (?, ?, ?, ?)`,
		id, snap.Source.UUID[:], snap.Overwrite, time.Now().Unix(),
	); err != nil {
		return "", err
	}

	for _, entry := range snap.Files {
		raw := entry.Path.ToBytes()
		if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, raw); err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM files_fts WHERE path = ?`, string(raw)); err != nil {
			return "", err
		}
		if entry.Deleted {
			continue
		}
		display := entry.Path.String()
		res, err := tx.ExecContext(ctx, `INSERT INTO files
			(subvolume_id, path, path_display, mode, uid, gid, atime, mtime, ctime, length, filetype)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, raw, display,
			entry.Info.Permissions, entry.Info.UserID, entry.Info.GroupID,
			entry.Info.Accessed.Unix(), entry.Info.Modified.Unix(), entry.Info.Created.Unix(),
			entry.Info.Length, uint8(entry.Info.FileType),
		)
		if err != nil {
			return "", err
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return "", err
		}
		revPath := entry.Path.Reverse().String()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO files_fts (rowid, path, rev_path) VALUES (?, ?, ?)`,
			rowID, display, revPath,
		); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// SearchResult is one path match.
type SearchResult struct {
	Path        string
	Permissions uint64
	Length      uint64
}

// Search runs a full-text query over indexed paths. The tokenizer treats
// every character as a token character, so each indexed path is a single
// token: queries match a whole path or, with a trailing *, a path prefix.
// The query is NFC-normalized before matching; stored paths are indexed as
// they appear in the stream, without normalization, and diacritics are
// kept, so accented and unaccented spellings do not match each other. The
// core's own path equality stays strictly byte-identical.
func (s *Store) Search(ctx context.Context, query string) ([]SearchResult, error) {
	q := norm.NFC.String(query)
	rows, err := s.sql.QueryContext(ctx, `
		SELECT f.path_display, f.mode, f.length
		FROM files_fts
		JOIN files f ON f.id = files_fts.rowid
		WHERE files_fts MATCH ?
		ORDER BY rank
		LIMIT 200`, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Permissions, &r.Length); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
