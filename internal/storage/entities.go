package storage

import "time"

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Message is a persisted chat message. ID is the ordering key used as a polling cursor.
type Message struct {
	ID        int64
	Sender    string
	Content   string
	CreatedAt time.Time
}
