package model

import "time"

// Photo mirrors the `photos` table.  CatchID is nil for profile pictures
// and uploads not yet attached to a catch.
type Photo struct {
    ID          uint64    `json:"id"`
    UserID      uint64    `json:"userId"`
    CatchID     *uint64   `json:"catchId,omitempty"`
    FileName    string    `json:"fileName"`
    URL         string    `json:"url"`
    ContentType string    `json:"contentType"`
    SizeBytes   int64     `json:"sizeBytes"`
    CreatedAt   time.Time `json:"createdAt"`
}

// PhotoStats summarizes a user's uploads for /api/upload/stats.
type PhotoStats struct {
    TotalFiles int   `json:"totalFiles"`
    TotalBytes int64 `json:"totalBytes"`
}
