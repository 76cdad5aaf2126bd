package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/errors"
	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/logger"
	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/repository"
)

// Training request and approval statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const referenceTypeRequest = "training_request"

// RequestStore reads and finalizes training request routing state.
type RequestStore interface {
	GetByID(ctx context.Context, id string) (*repository.TrainingRequest, error)
	Finalize(ctx context.Context, id, status string) error
}

// ApprovalStore manages the append-only approval trail. Methods that pair a
// decision or auto-approval with the request's next transition must commit
// both writes atomically: a failure leaves neither write behind.
type ApprovalStore interface {
	InsertDecidedAndRoute(ctx context.Context, decided, next *repository.Approval) error
	InsertDecidedAndFinalize(ctx context.Context, decided *repository.Approval, requestStatus string) error
	RouteToLevel(ctx context.Context, approval *repository.Approval) error
	GetByID(ctx context.Context, id string) (*repository.Approval, error)
	DecideAndRoute(ctx context.Context, id, decision string, comments *string, next *repository.Approval) error
	DecideAndFinalize(ctx context.Context, id, decision string, comments *string, requestID, requestStatus string) error
	ListByRequest(ctx context.Context, requestID string) ([]*repository.Approval, error)
	ListPendingForApprover(ctx context.Context, approverID string) ([]*repository.Approval, error)
}

// AuditStore appends and reads immutable audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *repository.AuditEntry) error
	ListByRequest(ctx context.Context, requestID string) ([]*repository.AuditEntry, error)
}

// Notifier delivers fire-and-forget notifications. Implementations must
// never fail the caller; delivery problems are theirs to log.
type Notifier interface {
	Notify(ctx context.Context, recipientID, title, message, referenceType, referenceID string)
}

// ApprovalRoutingService orchestrates the multi-level approval chain for
// training requests: it routes a new request to its first approver and
// advances or terminates the chain on each decision.
//
// Operations on the same request are serialized through a per-request lock,
// and every state-changing write carries a status guard in SQL, so a
// duplicate or concurrent decision fails closed as stale_approval instead
// of double-advancing the chain. Each operation's writes commit in one
// transaction: a store failure never leaves a decided approval against a
// still-pending request.
type ApprovalRoutingService struct {
	requests  RequestStore
	approvals ApprovalStore
	audit     AuditStore
	directory OrgDirectory
	walker    *ChainWalker
	notifier  Notifier
	log       *logger.Logger

	locks sync.Map // request ID -> *sync.Mutex
}

// NewApprovalRoutingService creates a new ApprovalRoutingService.
func NewApprovalRoutingService(
	requests RequestStore,
	approvals ApprovalStore,
	audit AuditStore,
	directory OrgDirectory,
	walker *ChainWalker,
	notifier Notifier,
	log *logger.Logger,
) *ApprovalRoutingService {
	return &ApprovalRoutingService{
		requests:  requests,
		approvals: approvals,
		audit:     audit,
		directory: directory,
		walker:    walker,
		notifier:  notifier,
		log:       log,
	}
}

// ── Workflow initialization ───────────────────────────────────────────────────

// InitializeWorkflowParams are the inputs to InitializeWorkflow.
type InitializeWorkflowParams struct {
	RequestID   string
	NominatorID string
	EmployeeID  string
	CourseName  string
	IsExtended  bool
}

// InitializeWorkflow routes a freshly created training request. Invoked
// exactly once per request.
//
// A nominator at Manager level or above auto-approves on their own behalf
// at their effective level; the simple (local/low-cost) variant then
// finalizes immediately, while the extended variant advances the chain from
// that level. A non-elevated nominator's request is walked from level 0;
// in the simple variant an empty chain fails the initiation with
// no_approver_resolvable rather than leaving the request unroutable.
func (s *ApprovalRoutingService) InitializeWorkflow(ctx context.Context, p InitializeWorkflowParams) error {
	unlock := s.lockRequest(p.RequestID)
	defer unlock()

	req, err := s.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		return err
	}
	if p.EmployeeID != "" && p.EmployeeID != req.EmployeeID {
		return errors.InvalidInput("employee_id", "does not match the request's employee")
	}
	if req.Status != StatusPending || req.CurrentApprovalLevel != nil {
		return errors.New(errors.ErrCodeConflict,
			fmt.Sprintf("workflow already initialized (status: %s)", req.Status))
	}

	nomRoles, err := s.directory.RolesOf(ctx, p.NominatorID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDirectoryUnavailable, "failed to resolve nominator roles")
	}
	nomLevel := EffectiveLevel(nomRoles)

	s.appendAudit(ctx, &repository.AuditEntry{
		RequestID:   req.ID,
		EntityID:    req.EntityID,
		Action:      "initialized",
		PerformedBy: p.NominatorID,
		Metadata: map[string]interface{}{
			"is_extended":     p.IsExtended,
			"nominator_level": int(nomLevel),
		},
	})

	if nomLevel >= LevelManager {
		decided := s.nominatorApproval(req, p.NominatorID, nomLevel, p.IsExtended)

		if !p.IsExtended {
			if err := s.approvals.InsertDecidedAndFinalize(ctx, decided, StatusApproved); err != nil {
				return err
			}
			s.auditAutoApproved(ctx, req, decided, p.NominatorID)
			s.recordFinalized(ctx, req, StatusApproved, p.NominatorID)
			s.notifyEmployeeApproved(ctx, req)
			return nil
		}

		// Resolve the next hop before writing anything so a directory
		// outage aborts without partial state.
		hop, err := s.walker.Walk(ctx, nomLevel, req.EmployeeID, req.EntityID)
		if err != nil {
			return err
		}
		if hop.Exhausted() {
			if err := s.approvals.InsertDecidedAndFinalize(ctx, decided, StatusApproved); err != nil {
				return err
			}
			s.auditAutoApproved(ctx, req, decided, p.NominatorID)
			s.recordFinalized(ctx, req, StatusApproved, p.NominatorID)
			s.notifyEmployeeApproved(ctx, req)
			return nil
		}

		next := s.pendingApproval(req, hop)
		if err := s.approvals.InsertDecidedAndRoute(ctx, decided, next); err != nil {
			return err
		}
		s.auditAutoApproved(ctx, req, decided, p.NominatorID)
		s.auditRouted(ctx, req, next, p.NominatorID)
		s.notifyApproverPending(ctx, req, hop)
		if p.NominatorID != req.EmployeeID {
			s.notifyEmployeeNominated(ctx, req, hop)
		}
		return nil
	}

	// Non-elevated nominator: route from level 0. The extended variant
	// treats an empty chain as implicit full approval; the simple variant
	// surfaces it as an error before anything is written.
	hop, err := s.walker.Walk(ctx, LevelEmployee, req.EmployeeID, req.EntityID)
	if err != nil {
		return err
	}
	if hop.Exhausted() {
		if !p.IsExtended {
			return errors.New(errors.ErrCodeNoApproverResolvable,
				"no approver resolvable anywhere in the chain")
		}
		if err := s.requests.Finalize(ctx, req.ID, StatusApproved); err != nil {
			return err
		}
		s.recordFinalized(ctx, req, StatusApproved, p.NominatorID)
		s.notifyEmployeeApproved(ctx, req)
		return nil
	}

	next := s.pendingApproval(req, hop)
	if err := s.approvals.RouteToLevel(ctx, next); err != nil {
		return err
	}
	s.auditRouted(ctx, req, next, p.NominatorID)
	s.notifyApproverPending(ctx, req, hop)
	if p.IsExtended && p.NominatorID != req.EmployeeID {
		s.notifyEmployeeNominated(ctx, req, hop)
	}

	s.log.Info().
		Str("request_id", req.ID).
		Int("level", int(hop.Level)).
		Str("role", hop.Role).
		Msg("Training request routed to first approver")

	return nil
}

// nominatorApproval builds the auto-approval row credited to the nominator
// at their actual effective level.
func (s *ApprovalRoutingService) nominatorApproval(
	req *repository.TrainingRequest,
	nominatorID string,
	level Level,
	isExtended bool,
) *repository.Approval {
	comment := "auto-approved: local/low-cost training nominated by " + RoleForLevel(level)
	if isExtended {
		comment = "auto-approved: nominated by " + RoleForLevel(level)
	}

	return &repository.Approval{
		RequestID:    req.ID,
		EntityID:     req.EntityID,
		EmployeeID:   req.EmployeeID,
		Level:        int(level),
		ApproverRole: RoleForLevel(level),
		ApproverID:   &nominatorID,
		Status:       StatusApproved,
		AutoApproved: true,
		Comments:     &comment,
	}
}

// pendingApproval builds the pending approval row for a resolved chain hop.
func (s *ApprovalRoutingService) pendingApproval(req *repository.TrainingRequest, hop *ChainHop) *repository.Approval {
	return &repository.Approval{
		RequestID:    req.ID,
		EntityID:     req.EntityID,
		EmployeeID:   req.EmployeeID,
		Level:        int(hop.Level),
		ApproverRole: hop.Role,
		ApproverID:   hop.ApproverID,
	}
}

// ── Decision processing ───────────────────────────────────────────────────────

// ProcessDecisionParams are the inputs to ProcessDecision.
type ProcessDecisionParams struct {
	ApprovalID   string
	RequestID    string
	EmployeeID   string
	CourseName   string
	CurrentLevel int
	Decision     string // approved | rejected
	Comments     *string
	IsExtended   bool
}

// ProcessDecision records a human approve/reject decision and advances or
// terminates the chain. A rejection is terminal and forwards the reviewer's
// comment to the employee verbatim. An approval finalizes the request when
// the variant is simple or the terminal level was reached, and otherwise
// advances to the next resolvable level.
func (s *ApprovalRoutingService) ProcessDecision(ctx context.Context, p ProcessDecisionParams) error {
	if p.Decision != StatusApproved && p.Decision != StatusRejected {
		return errors.InvalidInput("status", "must be 'approved' or 'rejected'")
	}

	unlock := s.lockRequest(p.RequestID)
	defer unlock()

	req, err := s.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		s.forgetLock(req.ID)
		return errors.New(errors.ErrCodeStaleApproval,
			fmt.Sprintf("request is already %s", req.Status))
	}
	if req.CurrentApprovalLevel == nil || *req.CurrentApprovalLevel != p.CurrentLevel {
		return errors.New(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("decision targets level %d but request is at a different level", p.CurrentLevel))
	}

	approval, err := s.approvals.GetByID(ctx, p.ApprovalID)
	if err != nil {
		return err
	}
	if approval.RequestID != p.RequestID {
		return errors.InvalidInput("approval_id", "approval does not belong to this request")
	}
	if approval.Level != p.CurrentLevel {
		return errors.New(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("approval is for level %d, not %d", approval.Level, p.CurrentLevel))
	}

	// Resolve the next hop (directory reads only) before any write so a
	// directory outage leaves the decision unrecorded.
	var hop *ChainHop
	if p.Decision == StatusApproved && p.IsExtended && Level(p.CurrentLevel) < TerminalLevel {
		hop, err = s.walker.Walk(ctx, Level(p.CurrentLevel), req.EmployeeID, req.EntityID)
		if err != nil {
			return err
		}
	}

	actedBy := ""
	if approval.ApproverID != nil {
		actedBy = *approval.ApproverID
	}

	if p.Decision == StatusRejected {
		if err := s.approvals.DecideAndFinalize(ctx, p.ApprovalID, StatusRejected, p.Comments, req.ID, StatusRejected); err != nil {
			return err
		}
		s.auditDecision(ctx, req, approval, StatusRejected, actedBy)
		s.recordFinalized(ctx, req, StatusRejected, actedBy)
		s.notifyEmployeeRejected(ctx, req, p.Comments)
		return nil
	}

	// hop is nil for the simple variant and at the terminal level; both
	// finalize on approval, as does a mid-chain exhaustion.
	if hop == nil || hop.Exhausted() {
		if err := s.approvals.DecideAndFinalize(ctx, p.ApprovalID, StatusApproved, p.Comments, req.ID, StatusApproved); err != nil {
			return err
		}
		s.auditDecision(ctx, req, approval, StatusApproved, actedBy)
		s.recordFinalized(ctx, req, StatusApproved, actedBy)
		s.notifyEmployeeApproved(ctx, req)
		return nil
	}

	next := s.pendingApproval(req, hop)
	if err := s.approvals.DecideAndRoute(ctx, p.ApprovalID, StatusApproved, p.Comments, next); err != nil {
		return err
	}
	s.auditDecision(ctx, req, approval, StatusApproved, actedBy)
	s.auditRouted(ctx, req, next, actedBy)
	s.notifyApproverPending(ctx, req, hop)

	s.log.Info().
		Str("request_id", req.ID).
		Int("from_level", p.CurrentLevel).
		Int("to_level", int(hop.Level)).
		Msg("Approval chain advanced")

	return nil
}

// ── Query helpers ─────────────────────────────────────────────────────────────

// GetPendingApprovals returns all approvals currently awaiting a user.
func (s *ApprovalRoutingService) GetPendingApprovals(ctx context.Context, approverID string) ([]*repository.Approval, error) {
	return s.approvals.ListPendingForApprover(ctx, approverID)
}

// GetRequestApprovals returns a request's approval trail in level order.
func (s *ApprovalRoutingService) GetRequestApprovals(ctx context.Context, requestID string) ([]*repository.Approval, error) {
	return s.approvals.ListByRequest(ctx, requestID)
}

// GetApprovalHistory returns the full audit trail for a request.
func (s *ApprovalRoutingService) GetApprovalHistory(ctx context.Context, requestID string) ([]*repository.AuditEntry, error) {
	return s.audit.ListByRequest(ctx, requestID)
}

// ── Notifications ─────────────────────────────────────────────────────────────
//
// All notifications run strictly after the state transition they describe
// has committed, and none of them can fail the operation.

func (s *ApprovalRoutingService) notifyApproverPending(ctx context.Context, req *repository.TrainingRequest, hop *ChainHop) {
	if hop.ApproverID == nil {
		return
	}
	s.notifier.Notify(ctx, *hop.ApproverID,
		"Training approval required",
		fmt.Sprintf("Training request for %q is awaiting your %s approval.", req.CourseName, hop.Role),
		referenceTypeRequest, req.ID)
}

func (s *ApprovalRoutingService) notifyEmployeeApproved(ctx context.Context, req *repository.TrainingRequest) {
	s.notifier.Notify(ctx, req.EmployeeID,
		"Training request approved",
		fmt.Sprintf("Your training request for %q has been fully approved.", req.CourseName),
		referenceTypeRequest, req.ID)
}

func (s *ApprovalRoutingService) notifyEmployeeRejected(ctx context.Context, req *repository.TrainingRequest, comments *string) {
	message := fmt.Sprintf("Your training request for %q was rejected.", req.CourseName)
	if comments != nil && *comments != "" {
		message = fmt.Sprintf("%s Reason: %s", message, *comments)
	}
	s.notifier.Notify(ctx, req.EmployeeID,
		"Training request rejected", message,
		referenceTypeRequest, req.ID)
}

func (s *ApprovalRoutingService) notifyEmployeeNominated(ctx context.Context, req *repository.TrainingRequest, hop *ChainHop) {
	s.notifier.Notify(ctx, req.EmployeeID,
		"Nominated for training",
		fmt.Sprintf("You have been nominated for %q; awaiting %s approval.", req.CourseName, hop.Role),
		referenceTypeRequest, req.ID)
}

// ── Audit helpers ─────────────────────────────────────────────────────────────

func (s *ApprovalRoutingService) auditAutoApproved(
	ctx context.Context,
	req *repository.TrainingRequest,
	approval *repository.Approval,
	nominatorID string,
) {
	statusBefore := StatusPending
	s.appendAudit(ctx, &repository.AuditEntry{
		RequestID:           req.ID,
		ApprovalID:          &approval.ID,
		EntityID:            req.EntityID,
		Action:              "auto_approved",
		PerformedBy:         nominatorID,
		RequestStatusBefore: &statusBefore,
		RequestStatusAfter:  &statusBefore,
		Metadata: map[string]interface{}{
			"level": approval.Level,
			"role":  approval.ApproverRole,
		},
	})
}

func (s *ApprovalRoutingService) auditRouted(
	ctx context.Context,
	req *repository.TrainingRequest,
	approval *repository.Approval,
	actedBy string,
) {
	statusBefore := StatusPending
	s.appendAudit(ctx, &repository.AuditEntry{
		RequestID:           req.ID,
		ApprovalID:          &approval.ID,
		EntityID:            req.EntityID,
		Action:              "routed",
		PerformedBy:         actedBy,
		RequestStatusBefore: &statusBefore,
		RequestStatusAfter:  &statusBefore,
		Metadata: map[string]interface{}{
			"level": approval.Level,
			"role":  approval.ApproverRole,
		},
	})
}

func (s *ApprovalRoutingService) auditDecision(
	ctx context.Context,
	req *repository.TrainingRequest,
	approval *repository.Approval,
	decision, actedBy string,
) {
	s.appendAudit(ctx, &repository.AuditEntry{
		RequestID:   req.ID,
		ApprovalID:  &approval.ID,
		EntityID:    req.EntityID,
		Action:      decision,
		PerformedBy: actedBy,
		Metadata: map[string]interface{}{
			"level": approval.Level,
			"role":  approval.ApproverRole,
		},
	})
}

// recordFinalized audits the committed terminal transition and releases the
// request's lock entry.
func (s *ApprovalRoutingService) recordFinalized(
	ctx context.Context,
	req *repository.TrainingRequest,
	status, actedBy string,
) {
	statusBefore := StatusPending
	s.appendAudit(ctx, &repository.AuditEntry{
		RequestID:           req.ID,
		EntityID:            req.EntityID,
		Action:              "finalized",
		PerformedBy:         actedBy,
		RequestStatusBefore: &statusBefore,
		RequestStatusAfter:  &status,
	})

	s.forgetLock(req.ID)

	s.log.Info().
		Str("request_id", req.ID).
		Str("status", status).
		Msg("Training request finalized")
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// lockRequest serializes state transitions per request. Callers must invoke
// the returned unlock.
func (s *ApprovalRoutingService) lockRequest(requestID string) func() {
	v, _ := s.locks.LoadOrStore(requestID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// forgetLock drops the per-request mutex once the request is known to be in
// a terminal state, keeping the lock table bounded. The SQL status guards
// stay authoritative, so a caller that recreates the entry still fails
// closed as stale.
func (s *ApprovalRoutingService) forgetLock(requestID string) {
	s.locks.Delete(requestID)
}

// appendAudit writes an audit entry and logs a warning on failure (never
// returns an error).
func (s *ApprovalRoutingService) appendAudit(ctx context.Context, entry *repository.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("request_id", entry.RequestID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}
