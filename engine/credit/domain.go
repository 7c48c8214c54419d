package credit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProcessingStatus tracks where a contact is in the credit pipeline.
type ProcessingStatus int16

const (
	StatusAwaitingAttendance ProcessingStatus = iota + 1
	StatusAwaitingDocuments
	StatusForwardedToAgent
	StatusMissingDocuments
	StatusRegistration
	StatusApproved
	StatusContracting
	StatusRejected
)

func (s ProcessingStatus) Valid() bool {
	return s >= StatusAwaitingAttendance && s <= StatusRejected
}

func (s ProcessingStatus) String() string {
	switch s {
	case StatusAwaitingAttendance:
		return "awaiting_attendance"
	case StatusAwaitingDocuments:
		return "awaiting_documents"
	case StatusForwardedToAgent:
		return "forwarded_to_agent"
	case StatusMissingDocuments:
		return "missing_documents"
	case StatusRegistration:
		return "registration"
	case StatusApproved:
		return "approved"
	case StatusContracting:
		return "contracting"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// DocumentStatus is the review state of an uploaded document.
type DocumentStatus int16

const (
	DocumentPending DocumentStatus = iota
	DocumentInReview
	DocumentApproved
	DocumentRejected
)

func (s DocumentStatus) Valid() bool {
	return s >= DocumentPending && s <= DocumentRejected
}

// Line is a credit product a contact can apply for.
type Line struct {
	ID               int32           `db:"id"                json:"id"`
	Name             string          `db:"name"              json:"name"`
	AllowsCompany    bool            `db:"allows_company"    json:"allows_company"`
	AllowsIndividual bool            `db:"allows_individual" json:"allows_individual"`
	AllowsGuarantor  bool            `db:"allows_guarantor"  json:"allows_guarantor"`
	MaxAmount        decimal.Decimal `db:"max_amount"        json:"max_amount"`
}

type Municipality struct {
	ID   int64  `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
}

// Region groups municipalities served by the same agent. MunicipalityName is
// only filled by read queries.
type Region struct {
	ID               int32   `db:"id"                json:"id"`
	Name             string  `db:"name"              json:"name"`
	MunicipalityID   int64   `db:"municipality_id"   json:"municipality_id"`
	MunicipalityName *string `db:"municipality_name" json:"municipality_name,omitempty"`
}

// Contact is a credit request. It owns resource lines and documents.
type Contact struct {
	ID               uuid.UUID        `db:"id"                json:"id"`
	LineID           int32            `db:"line_id"           json:"line_id"`
	LineName         *string          `db:"line_name"         json:"line_name,omitempty"`
	Protocol         string           `db:"protocol"          json:"protocol"`
	Attended         bool             `db:"attended"          json:"attended"`
	TaxID            string           `db:"tax_id"            json:"tax_id"`
	Name             string           `db:"name"              json:"name"`
	Phone            string           `db:"phone"             json:"phone"`
	Email            string           `db:"email"             json:"email"`
	CityID           *int64           `db:"city_id"           json:"city_id,omitempty"`
	RequestedAmount  decimal.Decimal  `db:"requested_amount"  json:"requested_amount"`
	ProcessingStatus ProcessingStatus `db:"processing_status" json:"processing_status"`
	Fields           json.RawMessage  `db:"fields"            json:"fields"`
	ImportData       json.RawMessage  `db:"import_data"       json:"import_data,omitempty"`
	CreatedAt        time.Time        `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at"        json:"updated_at"`
}

// ResourceLine is one item of how a contact plans to spend the credit.
type ResourceLine struct {
	ID          int64           `db:"id"          json:"id"`
	ContactID   uuid.UUID       `db:"contact_id"  json:"contact_id"`
	Description string          `db:"description" json:"description"`
	Quantity    int32           `db:"quantity"    json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"  json:"unit_price"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"total_price"`
}

// Document is an uploaded file attached to a contact. FilePath is the store key.
type Document struct {
	ID        int64          `db:"id"         json:"id"`
	ContactID uuid.UUID      `db:"contact_id" json:"contact_id"`
	Category  string         `db:"category"   json:"category"`
	FilePath  string         `db:"file_path"  json:"file_path"`
	Status    DocumentStatus `db:"status"     json:"status"`
	Note      string         `db:"note"       json:"note"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
