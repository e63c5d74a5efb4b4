package models

import (
	"fmt"
	"time"
)

// MediaKind is the type of a content item. The set is closed: photo, video and video_note.
type MediaKind string

const (
	KindPhoto     MediaKind = "photo"
	KindVideo     MediaKind = "video"
	KindVideoNote MediaKind = "video_note"
)

// ParseMediaKind converts a stored or user supplied value into a MediaKind
func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(s) {
	case KindPhoto, KindVideo, KindVideoNote:
		return MediaKind(s), nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// Media is an uploaded item before it becomes Content: its kind and the
// Telegram file_id used to send it again.
type Media struct {
	Kind   MediaKind `json:"kind"`
	FileID string    `json:"file_id"`
}

// User represents a Telegram user known to the bot
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	Banned    bool      `json:"banned"`
	CreatedAt time.Time `json:"created_at"`
}

// Content represents a purchasable media item
type Content struct {
	ID        int64     `json:"id"`
	Kind      MediaKind `json:"type"`
	FileID    string    `json:"file_id"`
	Price     int64     `json:"price"`
	AuthorID  int64     `json:"author_id"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

// IsFree reports whether the content can be taken without payment
func (c Content) IsFree() bool {
	return c.Price == 0
}

// Purchase records that a user owns a content item
type Purchase struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ContentID int64     `json:"content_id"`
	Timestamp time.Time `json:"timestamp"`
}
