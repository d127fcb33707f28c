package models

import "time"

// Job represents a background job in the queue
type Job struct {
	ID          int64      `json:"id"`
	JobType     string     `json:"job_type"`
	Payload     string     `json:"-"`      // JSON payload
	Status      string     `json:"status"` // pending, running, completed, failed
	Progress    int        `json:"progress"`
	Result      string     `json:"result,omitempty"` // JSON result or error message
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Job types
const (
	JobTypeProcessMessage = "process_message"
)

// ProcessMessagePayload is the payload of a process_message job
type ProcessMessagePayload struct {
	Message     string `json:"message"`
	ArchivePath string `json:"archive_path,omitempty"`
	ReceivedAt  string `json:"received_at"`
}

// Settlement is a ledger row written after the billing transaction was created
type Settlement struct {
	ID            int64
	MessageSHA256 string
	Reference     string // PIX-<invoice ids>
	RunID         string
	ClientName    string
	AccountID     int64
	AmountCents   int64
	Status        string  // settlement status at the time of writing
	TransactionID *int64  // billing transaction id
	InvoiceIDs    []int64 // stored comma-separated
	CreatedAt     time.Time
}
