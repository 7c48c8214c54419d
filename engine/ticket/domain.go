package ticket

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a ticket.
type Status int16

const (
	StatusOpen Status = iota
	StatusInProgress
	StatusPaused
	StatusResolved
	StatusClosed
)

func (s Status) Valid() bool {
	return s >= StatusOpen && s <= StatusClosed
}

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusInProgress:
		return "in_progress"
	case StatusPaused:
		return "paused"
	case StatusResolved:
		return "resolved"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Type and Category are flat lookup tables.
type Type struct {
	ID   int32  `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
}

type Category struct {
	ID   int32  `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
}

// Ticket is a support request. Description is a block-structured rich-text
// document whose image blocks point at stored uploads. The joined names are
// only filled by read queries.
type Ticket struct {
	ID            int64           `db:"id"             json:"id"`
	Title         string          `db:"title"          json:"title"`
	Description   json.RawMessage `db:"description"    json:"description"`
	Status        Status          `db:"status"         json:"status"`
	RequesterID   int64           `db:"requester_id"   json:"requester_id"`
	RequesterName *string         `db:"requester_name" json:"requester_name,omitempty"`
	TypeID        int32           `db:"type_id"        json:"type_id"`
	TypeName      *string         `db:"type_name"      json:"type_name,omitempty"`
	CategoryID    *int32          `db:"category_id"    json:"category_id,omitempty"`
	CategoryName  *string         `db:"category_name"  json:"category_name,omitempty"`
	CreatedAt     time.Time       `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"     json:"updated_at"`
}
