package models

import "time"

// TempMedia represents a user-uploaded video held on local disk until it has been analysed.
type TempMedia struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Ext       string    `json:"ext"`
	MIMEType  string    `json:"mime_type"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the upload outlived its TTL at the given instant.
func (m *TempMedia) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && !now.Before(m.ExpiresAt)
}
