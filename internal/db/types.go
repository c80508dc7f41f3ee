package db

import "time"

// StoredFile maps a short share code to an uploaded archive.
type StoredFile struct {
	Code       string    `json:"code"`
	FileHandle string    `json:"file_handle"`
	Caption    string    `json:"caption,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProcessedPost records an aggregator post that has been handled.
type ProcessedPost struct {
	URL         string    `json:"url"`
	ProcessedAt time.Time `json:"processed_at"`
}
