package domain

import "time"

// Message is one entry of a session's ordered message sequence.
// IsLoading marks a transient placeholder that is never persisted.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	IsLoading bool      `json:"isLoading,omitempty"`

	// BookingTag is the control tag an assistant reply carried, in wire form
	// ("BOOKING_SUGGEST:website"). Content never contains it.
	BookingTag string `json:"-"`
}

// Session is the persisted record of one chat conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
