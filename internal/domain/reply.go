package domain

import "time"

// Reply is one message in a ticket's conversation.
type Reply struct {
	Message   string
	IsAdmin   bool
	Timestamp time.Time
}

// Equal compares replies, using time.Equal for the timestamp.
func (r Reply) Equal(o Reply) bool {
	return r.Message == o.Message && r.IsAdmin == o.IsAdmin && r.Timestamp.Equal(o.Timestamp)
}
