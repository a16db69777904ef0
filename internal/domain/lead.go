package domain

import "time"

// LeadSourceChat tags leads captured from the chat widget.
const LeadSourceChat = "chat"

// LeadData is the flat record handed to lead sinks. At least one of Email or
// Phone is set whenever it leaves the lead package.
type LeadData struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Context   string    `json:"context"`
	Source    string    `json:"source"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LeadStatus tracks follow-up progress of a stored lead.
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusContacted   LeadStatus = "contacted"
	LeadStatusConverted   LeadStatus = "converted"
	LeadStatusUnqualified LeadStatus = "unqualified"
)

// Valid reports whether s is one of the known statuses.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusConverted, LeadStatusUnqualified:
		return true
	}
	return false
}

// LeadRecord is a lead as stored in the lead table.
type LeadRecord struct {
	ID        string     `json:"id"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Source    string     `json:"source"`
	Context   string     `json:"context,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Status    LeadStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
