package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lendbook/internal/core"
)

// Routing keys on the lendbook exchange.
const (
	RoutingDebtorChanged = "debtor.changed"
)

// Debtor change actions.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionDeleted       = "deleted"
	ActionInterestPaid  = "interest_paid"
	ActionPrincipalPaid = "principal_paid"
)

// ReportRequestMessage asks the worker to publish the in/out report of one month.
type ReportRequestMessage struct {
	JobID       string    `json:"job_id"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewReportRequestMessage creates a request with a fresh job ID.
func NewReportRequestMessage(month core.MonthKey, requestedBy string) *ReportRequestMessage {
	return &ReportRequestMessage{
		JobID:       uuid.NewString(),
		Year:        month.Year,
		Month:       int(month.Month),
		RequestedBy: requestedBy,
		Timestamp:   time.Now(),
	}
}

// MonthKey returns the requested month, rejecting out-of-range values.
func (m *ReportRequestMessage) MonthKey() (core.MonthKey, error) {
	if m.Month < 1 || m.Month > 12 || m.Year < 2000 {
		return core.MonthKey{}, fmt.Errorf("%w: %d-%02d", core.ErrInvalidMonth, m.Year, m.Month)
	}
	return core.MonthKey{Year: m.Year, Month: time.Month(m.Month)}, nil
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestMessageFromJSON creates a message from JSON bytes
func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.JobID == "" {
		return nil, fmt.Errorf("report request without job id")
	}
	return &msg, nil
}

// DebtorChangedMessage tells other processes that a debtor record was written.
// Receivers drop their debtor snapshot.
type DebtorChangedMessage struct {
	DebtorKey string    `json:"debtor_key"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDebtorChangedMessage(debtorKey, action string) *DebtorChangedMessage {
	return &DebtorChangedMessage{
		DebtorKey: debtorKey,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DebtorChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DebtorChangedMessageFromJSON creates a message from JSON bytes
func DebtorChangedMessageFromJSON(data []byte) (*DebtorChangedMessage, error) {
	var msg DebtorChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
