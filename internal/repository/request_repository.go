package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/database"
	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/errors"
)

// TrainingRequestRepository reads and mutates the routing state of training
// requests. Row creation belongs to the surrounding application; only the
// routing fields are written here.
type TrainingRequestRepository struct {
	db *database.DB
}

// NewTrainingRequestRepository creates a new TrainingRequestRepository.
func NewTrainingRequestRepository(db *database.DB) *TrainingRequestRepository {
	return &TrainingRequestRepository{db: db}
}

// GetByID retrieves a training request by primary key.
func (r *TrainingRequestRepository) GetByID(ctx context.Context, id string) (*TrainingRequest, error) {
	query := `
		SELECT id, entity_id, employee_id, nominator_id, course_name,
		       training_location, cost_level, is_extended,
		       status, current_approval_level, current_approver_id,
		       submitted_at, decided_at, created_at, updated_at
		FROM training_requests
		WHERE id = $1
	`

	req, err := r.scanRequest(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("training_request", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get training request")
	}
	return req, nil
}

// Finalize moves a pending request into a terminal state (approved or
// rejected), clearing the current approver. The status guard fails closed:
// a request that already left 'pending' yields ErrCodeStaleApproval.
func (r *TrainingRequestRepository) Finalize(ctx context.Context, id, status string) error {
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
	err := r.db.QueryRow(ctx, query, id, status).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeStaleApproval, "request is no longer pending")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to finalize training request")
	}
	return nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type requestScanner interface {
	Scan(dest ...any) error
}

func (r *TrainingRequestRepository) scanRequest(row requestScanner) (*TrainingRequest, error) {
	req := &TrainingRequest{}
	err := row.Scan(
		&req.ID,
		&req.EntityID,
		&req.EmployeeID,
		&req.NominatorID,
		&req.CourseName,
		&req.TrainingLocation,
		&req.CostLevel,
		&req.IsExtended,
		&req.Status,
		&req.CurrentApprovalLevel,
		&req.CurrentApproverID,
		&req.SubmittedAt,
		&req.DecidedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}
