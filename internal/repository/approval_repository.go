package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/database"
	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/errors"
)

// ApprovalRepository manages the append-only approval trail of a request.
// Every state transition that touches both an approval row and the request's
// routing fields commits in a single transaction, so a failure mid-operation
// never leaves a decided approval against a still-pending request.
type ApprovalRepository struct {
	db *database.DB
}

// NewApprovalRepository creates a new ApprovalRepository.
func NewApprovalRepository(db *database.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// InsertDecidedAndRoute writes a decided approval row (nominator
// auto-approval) together with the next pending approval row and the
// request's routing fields, in one transaction.
func (a *ApprovalRepository) InsertDecidedAndRoute(ctx context.Context, decided, next *Approval) error {
	return a.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := a.insertDecidedTx(ctx, tx, decided); err != nil {
			return err
		}
		if err := a.insertPendingTx(ctx, tx, next); err != nil {
			return err
		}
		return a.routeRequestTx(ctx, tx, next)
	})
}

// InsertDecidedAndFinalize writes a decided approval row and moves the
// request into a terminal state, in one transaction.
func (a *ApprovalRepository) InsertDecidedAndFinalize(ctx context.Context, decided *Approval, requestStatus string) error {
	return a.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := a.insertDecidedTx(ctx, tx, decided); err != nil {
			return err
		}
		return a.finalizeRequestTx(ctx, tx, decided.RequestID, requestStatus)
	})
}

// RouteToLevel inserts a fresh pending approval row and points the request
// at it, in one transaction. The request-status guard fails closed: if the
// request already left 'pending', nothing is written and
// ErrCodeStaleApproval is returned.
func (a *ApprovalRepository) RouteToLevel(ctx context.Context, approval *Approval) error {
	return a.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := a.insertPendingTx(ctx, tx, approval); err != nil {
			return err
		}
		return a.routeRequestTx(ctx, tx, approval)
	})
}

// DecideAndRoute records a decision on the pending approval row and routes
// the request to the next level, in one transaction.
func (a *ApprovalRepository) DecideAndRoute(ctx context.Context, id, decision string, comments *string, next *Approval) error {
	return a.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := a.decidePendingTx(ctx, tx, id, decision, comments); err != nil {
			return err
		}
		if err := a.insertPendingTx(ctx, tx, next); err != nil {
			return err
		}
		return a.routeRequestTx(ctx, tx, next)
	})
}

// DecideAndFinalize records a decision on the pending approval row and moves
// the request into a terminal state, in one transaction.
func (a *ApprovalRepository) DecideAndFinalize(ctx context.Context, id, decision string, comments *string, requestID, requestStatus string) error {
	return a.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := a.decidePendingTx(ctx, tx, id, decision, comments); err != nil {
			return err
		}
		return a.finalizeRequestTx(ctx, tx, requestID, requestStatus)
	})
}

// GetByID retrieves an approval row by primary key.
func (a *ApprovalRepository) GetByID(ctx context.Context, id string) (*Approval, error) {
	query := selectApproval + ` WHERE id = $1`

	approval, err := a.scanApproval(a.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("approval", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval")
	}
	return approval, nil
}

// ListByRequest returns all approval rows for a request in level order.
func (a *ApprovalRepository) ListByRequest(ctx context.Context, requestID string) ([]*Approval, error) {
	query := selectApproval + `
		WHERE request_id = $1
		ORDER BY level ASC
	`

	rows, err := a.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approvals")
	}
	defer rows.Close()

	return a.scanRows(rows)
}

// ListPendingForApprover returns all pending approval rows currently
// awaiting action from a specific approver, oldest first.
func (a *ApprovalRepository) ListPendingForApprover(ctx context.Context, approverID string) ([]*Approval, error) {
	query := selectApproval + `
		WHERE approver_id = $1
		  AND status = 'pending'
		ORDER BY created_at ASC
	`

	rows, err := a.db.Query(ctx, query, approverID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list pending approvals")
	}
	defer rows.Close()

	return a.scanRows(rows)
}

// ── transaction-scoped writes ─────────────────────────────────────────────────

// insertDecidedTx inserts an approval row that is already decided at
// creation time. DecidedAt is stamped by the database.
func (a *ApprovalRepository) insertDecidedTx(ctx context.Context, tx pgx.Tx, approval *Approval) error {
	query := `
		INSERT INTO training_approvals
		    (request_id, entity_id, employee_id,
		     level, approver_role, approver_id,
		     status, auto_approved, comments, decided_at)
		VALUES ($1, $2, $3,
		        $4, $5, $6,
		        $7::approval_status, $8, $9, NOW())
		RETURNING id, decided_at, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query,
		approval.RequestID,
		approval.EntityID,
		approval.EmployeeID,
		approval.Level,
		approval.ApproverRole,
		approval.ApproverID,
		approval.Status,
		approval.AutoApproved,
		approval.Comments,
	).Scan(&approval.ID, &approval.DecidedAt, &approval.CreatedAt, &approval.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to insert approval")
	}
	return nil
}

// insertPendingTx inserts a fresh pending approval row.
func (a *ApprovalRepository) insertPendingTx(ctx context.Context, tx pgx.Tx, approval *Approval) error {
	query := `
		INSERT INTO training_approvals
		    (request_id, entity_id, employee_id,
		     level, approver_role, approver_id,
		     status, auto_approved)
		VALUES ($1, $2, $3,
		        $4, $5, $6,
		        'pending'::approval_status, FALSE)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query,
		approval.RequestID,
		approval.EntityID,
		approval.EmployeeID,
		approval.Level,
		approval.ApproverRole,
		approval.ApproverID,
	).Scan(&approval.ID, &approval.CreatedAt, &approval.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to insert pending approval")
	}
	approval.Status = "pending"
	return nil
}

// routeRequestTx points the request at the given pending approval. The
// status guard fails closed as ErrCodeStaleApproval.
func (a *ApprovalRepository) routeRequestTx(ctx context.Context, tx pgx.Tx, approval *Approval) error {
	query := `
		UPDATE training_requests
		SET current_approval_level = $2,
		    current_approver_id    = $3,
		    updated_at             = NOW()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id
	`

	var requestID string
	err := tx.QueryRow(ctx, query,
		approval.RequestID,
		approval.Level,
		approval.ApproverID,
	).Scan(&requestID)
	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeStaleApproval, "request is no longer pending")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to route training request")
	}
	return nil
}

// decidePendingTx records a human decision on the currently pending approval
// row. The conditional update fails closed: if the row already left
// 'pending' (duplicate submission, concurrent decision), no write happens
// and ErrCodeStaleApproval is returned.
func (a *ApprovalRepository) decidePendingTx(ctx context.Context, tx pgx.Tx, id, status string, comments *string) error {
	query := `
		UPDATE training_approvals
		SET status     = $2::approval_status,
		    comments   = $3,
		    decided_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id
	`

	var returnedID string
	err := tx.QueryRow(ctx, query, id, status, comments).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeStaleApproval, "approval is no longer pending")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to record approval decision")
	}
	return nil
}

// finalizeRequestTx moves a pending request into a terminal state, clearing
// the routing fields. The status guard fails closed as ErrCodeStaleApproval.
func (a *ApprovalRepository) finalizeRequestTx(ctx context.Context, tx pgx.Tx, requestID, status string) error {
	query := `
		UPDATE training_requests
		SET status                 = $2::training_request_status,
		    current_approval_level = NULL,
		    current_approver_id    = NULL,
		    decided_at             = NOW(),
		    updated_at             = NOW()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id
	`

	var returnedID string
	err := tx.QueryRow(ctx, query, requestID, status).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeStaleApproval, "request is no longer pending")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to finalize training request")
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

const selectApproval = `
	SELECT id, request_id, entity_id, employee_id,
	       level, approver_role, approver_id,
	       status, auto_approved, comments, decided_at,
	       created_at, updated_at
	FROM training_approvals`

type approvalScanner interface {
	Scan(dest ...any) error
}

func (a *ApprovalRepository) scanApproval(row approvalScanner) (*Approval, error) {
	approval := &Approval{}
	err := row.Scan(
		&approval.ID,
		&approval.RequestID,
		&approval.EntityID,
		&approval.EmployeeID,
		&approval.Level,
		&approval.ApproverRole,
		&approval.ApproverID,
		&approval.Status,
		&approval.AutoApproved,
		&approval.Comments,
		&approval.DecidedAt,
		&approval.CreatedAt,
		&approval.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return approval, nil
}

func (a *ApprovalRepository) scanRows(rows pgx.Rows) ([]*Approval, error) {
	var approvals []*Approval
	for rows.Next() {
		approval, err := a.scanApproval(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval")
		}
		approvals = append(approvals, approval)
	}
	return approvals, nil
}
