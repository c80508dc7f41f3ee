package db

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// codeBytes random bytes encode to an 8 character URL-safe code.
const codeBytes = 6

// maxCodeAttempts bounds collision retries in SaveFile.
const maxCodeAttempts = 10

// ErrCodeExhausted is returned when no free code was found.
var ErrCodeExhausted = errors.New("could not allocate a unique file code")

// NewCode returns a random 8 character URL-safe code.
func NewCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SaveFile stores a file handle under a fresh short code and returns the code.
func (db *DB) SaveFile(ctx context.Context, fileHandle, caption string) (string, error) {
	return db.saveFile(ctx, fileHandle, caption, NewCode)
}

func (db *DB) saveFile(ctx context.Context, fileHandle, caption string, newCode func() (string, error)) (string, error) {
	for range maxCodeAttempts {
		code, err := newCode()
		if err != nil {
			return "", err
		}

		var stored string
		err = db.pool.QueryRow(ctx,
			`INSERT INTO stored_files (code, file_handle, caption)
			 VALUES ($1, $2, NULLIF($3, ''))
			 ON CONFLICT (code) DO NOTHING
			 RETURNING code`,
			code, fileHandle, caption,
		).Scan(&stored)
		if errors.Is(err, pgx.ErrNoRows) {
			// collision
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to save file: %w", err)
		}
		return stored, nil
	}
	return "", ErrCodeExhausted
}

// GetFile returns the stored file for code, or nil when there is none.
func (db *DB) GetFile(ctx context.Context, code string) (*StoredFile, error) {
	var f StoredFile
	var caption *string
	err := db.pool.QueryRow(ctx,
		`SELECT code, file_handle, caption, created_at FROM stored_files WHERE code = $1`,
		code,
	).Scan(&f.Code, &f.FileHandle, &caption, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get file %s: %w", code, err)
	}
	if caption != nil {
		f.Caption = *caption
	}
	return &f, nil
}
