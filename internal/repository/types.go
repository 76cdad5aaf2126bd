package repository

import "time"

// ── Domain types for training approval routing ───────────────────────────────

// TrainingRequest is the routing-relevant view of a training request. The
// surrounding application owns the row and creates it with status 'pending'
// and no approver assigned; the routing core mutates status,
// current_approval_level and current_approver_id from then on.
//
// Only a 'pending' request carries routing fields; finalization clears
// current_approval_level and current_approver_id.
type TrainingRequest struct {
	ID                   string
	EntityID             string
	EmployeeID           string
	NominatorID          string
	CourseName           string
	TrainingLocation     string // local | abroad
	CostLevel            string // low | high
	IsExtended           bool
	Status               string // pending | approved | rejected
	CurrentApprovalLevel *int
	CurrentApproverID    *string
	SubmittedAt          time.Time
	DecidedAt            *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Approval is one row in the append-only approval trail of a request.
// Exactly one row per (request, level); at most one row per request is
// 'pending' at any time, and a decided row is never re-opened.
type Approval struct {
	ID           string
	RequestID    string
	EntityID     string
	EmployeeID   string
	Level        int
	ApproverRole string
	ApproverID   *string // nil when the level was routed but unassigned
	Status       string  // pending | approved | rejected
	AutoApproved bool
	Comments     *string
	DecidedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuditEntry is one immutable record in the routing audit log.
type AuditEntry struct {
	ID                  string
	RequestID           string
	ApprovalID          *string
	EntityID            string
	Action              string // initialized | auto_approved | routed | approved | rejected | finalized
	PerformedBy         string
	PerformedAt         time.Time
	RequestStatusBefore *string
	RequestStatusAfter  *string
	Metadata            map[string]interface{}
}
