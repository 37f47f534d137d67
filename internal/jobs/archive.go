// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vidforge/internal/domain"
	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Archive persists terminal job records across restarts.
type Archive interface {
	Save(ctx context.Context, snap domain.JobSnapshot) error
	Load(ctx context.Context, id string) (domain.JobSnapshot, error)
	List(ctx context.Context, limit int) ([]domain.JobSnapshot, error)
	Close() error
}

// SQLiteArchive stores terminal snapshots in a single SQLite table.
type SQLiteArchive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) the archive at path and runs migrations.
func OpenArchive(path string) (*SQLiteArchive, error) {
	// busy_timeout avoids "database locked" errors
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}

	a := &SQLiteArchive{db: db}
	if err := a.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return a, nil
}

// Ping checks the database is reachable.
func (a *SQLiteArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

func (a *SQLiteArchive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL CHECK(status IN ('done', 'error')),
		progress INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		video_path TEXT,
		subtitle_path TEXT,
		request TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Save upserts a terminal snapshot. Non-terminal snapshots are rejected.
func (a *SQLiteArchive) Save(ctx context.Context, snap domain.JobSnapshot) error {
	if !snap.Status.IsTerminal() {
		return fmt.Errorf("archive %s: status %s is not terminal", snap.ID, snap.Status)
	}
	req := []byte("{}")
	if snap.Request != nil {
		b, err := json.Marshal(snap.Request)
		if err != nil {
			return fmt.Errorf("archive %s: encode request: %w", snap.ID, err)
		}
		req = b
	}
	var video, subs sql.NullString
	if snap.Result != nil {
		video = sql.NullString{String: snap.Result.VideoPath, Valid: true}
		subs = sql.NullString{String: snap.Result.SubtitlePath, Valid: snap.Result.SubtitlePath != ""}
	}

	query := `
	INSERT INTO jobs (id, status, progress, message, error, video_path, subtitle_path, request, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		progress = excluded.progress,
		message = excluded.message,
		error = excluded.error,
		video_path = excluded.video_path,
		subtitle_path = excluded.subtitle_path,
		updated_at = excluded.updated_at
	`
	_, err := a.db.ExecContext(ctx, query,
		snap.ID, string(snap.Status), snap.Progress, snap.Message, snap.Error,
		video, subs, string(req),
		snap.CreatedAt.UTC().Format(timeLayout),
		snap.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("archive %s: %w", snap.ID, err)
	}
	return nil
}

// timeLayout keeps a fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `SELECT id, status, progress, message, error, video_path, subtitle_path, request, created_at, updated_at FROM jobs`

// Load returns the archived snapshot or ErrNotFound.
func (a *SQLiteArchive) Load(ctx context.Context, id string) (domain.JobSnapshot, error) {
	row := a.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobSnapshot{}, ErrNotFound
	}
	return snap, err
}

// List returns up to limit archived snapshots, newest first. limit <= 0
// returns everything.
func (a *SQLiteArchive) List(ctx context.Context, limit int) ([]domain.JobSnapshot, error) {
	query := selectColumns + ` ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.JobSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(s scanner) (domain.JobSnapshot, error) {
	var (
		snap             domain.JobSnapshot
		status           string
		video, subs      sql.NullString
		req              string
		created, updated string
	)
	if err := s.Scan(&snap.ID, &status, &snap.Progress, &snap.Message, &snap.Error, &video, &subs, &req, &created, &updated); err != nil {
		return domain.JobSnapshot{}, err
	}
	snap.Status = domain.JobStatus(status)
	if video.Valid && video.String != "" {
		snap.Result = &domain.JobResult{VideoPath: video.String, SubtitlePath: subs.String}
	}
	var gr domain.GenerateRequest
	if err := json.Unmarshal([]byte(req), &gr); err == nil {
		snap.Request = &gr
	}
	var err error
	if snap.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return domain.JobSnapshot{}, fmt.Errorf("parse created_at for %s: %w", snap.ID, err)
	}
	if snap.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return domain.JobSnapshot{}, fmt.Errorf("parse updated_at for %s: %w", snap.ID, err)
	}
	return snap, nil
}
