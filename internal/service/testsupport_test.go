package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/errors"
	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/logger"
	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/repository"
)

// In-memory store implementations used as test doubles. They enforce the
// same status guards as the SQL repositories so guard behavior is testable
// without a database.

func newTestLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

func strPtr(s string) *string { return &s }

// ── request store ─────────────────────────────────────────────────────────────

type memRequestStore struct {
	mu       sync.Mutex
	requests map[string]*repository.TrainingRequest
}

func newMemRequestStore() *memRequestStore {
	return &memRequestStore{requests: make(map[string]*repository.TrainingRequest)}
}

func (m *memRequestStore) put(req *repository.TrainingRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
}

func (m *memRequestStore) GetByID(_ context.Context, id string) (*repository.TrainingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, errors.NotFound("training_request", id)
	}
	clone := *req
	return &clone, nil
}

func (m *memRequestStore) Finalize(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return errors.NotFound("training_request", id)
	}
	if req.Status != StatusPending {
		return errors.New(errors.ErrCodeStaleApproval, "request is no longer pending")
	}
	now := time.Now()
	req.Status = status
	req.CurrentApprovalLevel = nil
	req.CurrentApproverID = nil
	req.DecidedAt = &now
	return nil
}

// ── approval store ────────────────────────────────────────────────────────────

type memApprovalStore struct {
	mu        sync.Mutex
	approvals map[string]*repository.Approval
	requests  *memRequestStore
	failNext  error // next composite write fails atomically (nothing mutated)
}

func newMemApprovalStore(requests *memRequestStore) *memApprovalStore {
	return &memApprovalStore{
		approvals: make(map[string]*repository.Approval),
		requests:  requests,
	}
}

// takeFailure consumes an injected failure. Caller holds both mutexes.
func (m *memApprovalStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memApprovalStore) pendingRequestLocked(requestID string) (*repository.TrainingRequest, error) {
	req, ok := m.requests.requests[requestID]
	if !ok {
		return nil, errors.NotFound("training_request", requestID)
	}
	if req.Status != StatusPending {
		return nil, errors.New(errors.ErrCodeStaleApproval, "request is no longer pending")
	}
	return req, nil
}

func (m *memApprovalStore) insertDecidedLocked(approval *repository.Approval) {
	now := time.Now()
	approval.ID = uuid.NewString()
	approval.DecidedAt = &now
	approval.CreatedAt = now
	clone := *approval
	m.approvals[approval.ID] = &clone
}

func (m *memApprovalStore) routeLocked(req *repository.TrainingRequest, next *repository.Approval) {
	next.ID = uuid.NewString()
	next.Status = StatusPending
	next.CreatedAt = time.Now()
	clone := *next
	m.approvals[next.ID] = &clone

	level := next.Level
	req.CurrentApprovalLevel = &level
	req.CurrentApproverID = next.ApproverID
}

func (m *memApprovalStore) finalizeLocked(req *repository.TrainingRequest, status string) {
	now := time.Now()
	req.Status = status
	req.CurrentApprovalLevel = nil
	req.CurrentApproverID = nil
	req.DecidedAt = &now
}

func (m *memApprovalStore) decideLocked(id, status string, comments *string) error {
	approval, ok := m.approvals[id]
	if !ok {
		return errors.NotFound("approval", id)
	}
	if approval.Status != StatusPending {
		return errors.New(errors.ErrCodeStaleApproval, "approval is no longer pending")
	}
	now := time.Now()
	approval.Status = status
	approval.Comments = comments
	approval.DecidedAt = &now
	return nil
}

func (m *memApprovalStore) InsertDecidedAndRoute(_ context.Context, decided, next *repository.Approval) error {
	m.requests.mu.Lock()
	defer m.requests.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	req, err := m.pendingRequestLocked(next.RequestID)
	if err != nil {
		return err
	}
	m.insertDecidedLocked(decided)
	m.routeLocked(req, next)
	return nil
}

func (m *memApprovalStore) InsertDecidedAndFinalize(_ context.Context, decided *repository.Approval, requestStatus string) error {
	m.requests.mu.Lock()
	defer m.requests.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	req, err := m.pendingRequestLocked(decided.RequestID)
	if err != nil {
		return err
	}
	m.insertDecidedLocked(decided)
	m.finalizeLocked(req, requestStatus)
	return nil
}

func (m *memApprovalStore) RouteToLevel(_ context.Context, approval *repository.Approval) error {
	m.requests.mu.Lock()
	defer m.requests.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	req, err := m.pendingRequestLocked(approval.RequestID)
	if err != nil {
		return err
	}
	m.routeLocked(req, approval)
	return nil
}

func (m *memApprovalStore) DecideAndRoute(_ context.Context, id, decision string, comments *string, next *repository.Approval) error {
	m.requests.mu.Lock()
	defer m.requests.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	req, err := m.pendingRequestLocked(next.RequestID)
	if err != nil {
		return err
	}
	if err := m.decideLocked(id, decision, comments); err != nil {
		return err
	}
	m.routeLocked(req, next)
	return nil
}

func (m *memApprovalStore) DecideAndFinalize(_ context.Context, id, decision string, comments *string, requestID, requestStatus string) error {
	m.requests.mu.Lock()
	defer m.requests.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	req, err := m.pendingRequestLocked(requestID)
	if err != nil {
		return err
	}
	if err := m.decideLocked(id, decision, comments); err != nil {
		return err
	}
	m.finalizeLocked(req, requestStatus)
	return nil
}

func (m *memApprovalStore) GetByID(_ context.Context, id string) (*repository.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	approval, ok := m.approvals[id]
	if !ok {
		return nil, errors.NotFound("approval", id)
	}
	clone := *approval
	return &clone, nil
}

func (m *memApprovalStore) ListByRequest(_ context.Context, requestID string) ([]*repository.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Approval
	for _, approval := range m.approvals {
		if approval.RequestID == requestID {
			clone := *approval
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (m *memApprovalStore) ListPendingForApprover(_ context.Context, approverID string) ([]*repository.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Approval
	for _, approval := range m.approvals {
		if approval.Status == StatusPending &&
			approval.ApproverID != nil && *approval.ApproverID == approverID {
			clone := *approval
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// pendingFor returns the single pending approval row for a request, or nil.
func (m *memApprovalStore) pendingFor(requestID string) *repository.Approval {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *repository.Approval
	for _, approval := range m.approvals {
		if approval.RequestID == requestID && approval.Status == StatusPending {
			if found != nil {
				return nil // more than one pending row is an invariant violation
			}
			clone := *approval
			found = &clone
		}
	}
	return found
}

// ── audit store ───────────────────────────────────────────────────────────────

type memAuditStore struct {
	mu      sync.Mutex
	entries []*repository.AuditEntry
}

func newMemAuditStore() *memAuditStore { return &memAuditStore{} }

func (m *memAuditStore) Append(_ context.Context, entry *repository.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.PerformedAt = time.Now()
	clone := *entry
	m.entries = append(m.entries, &clone)
	return nil
}

func (m *memAuditStore) ListByRequest(_ context.Context, requestID string) ([]*repository.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.AuditEntry
	for _, entry := range m.entries {
		if entry.RequestID == requestID {
			clone := *entry
			out = append(out, &clone)
		}
	}
	return out, nil
}

// ── directory ─────────────────────────────────────────────────────────────────

type fakeDirectory struct {
	roles        map[string][]string // user -> roles
	managers     map[string]string   // employee -> manager
	hrbpByEntity map[string]string   // entity -> HRBP user
	roleHolders  map[string]string   // role -> any holder
	err          error               // when set, every lookup fails
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		roles:        make(map[string][]string),
		managers:     make(map[string]string),
		hrbpByEntity: make(map[string]string),
		roleHolders:  make(map[string]string),
	}
}

func (f *fakeDirectory) RolesOf(_ context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roles[userID], nil
}

func (f *fakeDirectory) ManagerOf(_ context.Context, employeeID string) (*string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if managerID, ok := f.managers[employeeID]; ok {
		return &managerID, nil
	}
	return nil, nil
}

func (f *fakeDirectory) FindHRBP(_ context.Context, entityID string) (*string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if hrbpID, ok := f.hrbpByEntity[entityID]; ok {
		return &hrbpID, nil
	}
	return nil, nil
}

func (f *fakeDirectory) FindAnyHRBP(ctx context.Context) (*string, error) {
	return f.FindByRole(ctx, RoleHRBP)
}

func (f *fakeDirectory) FindByRole(_ context.Context, role string) (*string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if userID, ok := f.roleHolders[role]; ok {
		return &userID, nil
	}
	return nil, nil
}

// ── notifier ──────────────────────────────────────────────────────────────────

type sentNotification struct {
	RecipientID string
	Title       string
	Message     string
	RefType     string
	RefID       string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Notify(_ context.Context, recipientID, title, message, refType, refID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{recipientID, title, message, refType, refID})
}

func (f *fakeNotifier) sentTo(recipientID string) []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNotification
	for _, n := range f.sent {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeNotifier) anyMessageContains(recipientID, substr string) bool {
	for _, n := range f.sentTo(recipientID) {
		if strings.Contains(n.Message, substr) {
			return true
		}
	}
	return false
}

// ── fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	requests  *memRequestStore
	approvals *memApprovalStore
	audit     *memAuditStore
	directory *fakeDirectory
	notifier  *fakeNotifier
	svc       *ApprovalRoutingService
}

func newFixture() *fixture {
	requests := newMemRequestStore()
	approvals := newMemApprovalStore(requests)
	audit := newMemAuditStore()
	directory := newFakeDirectory()
	notifier := &fakeNotifier{}

	svc := NewApprovalRoutingService(
		requests, approvals, audit, directory,
		NewChainWalker(NewApproverLocator(directory)),
		notifier, newTestLogger())

	return &fixture{
		requests:  requests,
		approvals: approvals,
		audit:     audit,
		directory: directory,
		notifier:  notifier,
		svc:       svc,
	}
}

// addRequest seeds an unrouted pending training request.
func (f *fixture) addRequest(id, entityID, employeeID, nominatorID, course string, extended bool) *repository.TrainingRequest {
	req := &repository.TrainingRequest{
		ID:               id,
		EntityID:         entityID,
		EmployeeID:       employeeID,
		NominatorID:      nominatorID,
		CourseName:       course,
		TrainingLocation: "local",
		CostLevel:        "low",
		IsExtended:       extended,
		Status:           StatusPending,
		SubmittedAt:      time.Now(),
		CreatedAt:        time.Now(),
	}
	if extended {
		req.TrainingLocation = "abroad"
		req.CostLevel = "high"
	}
	f.requests.put(req)
	return req
}

func (f *fixture) request(id string) *repository.TrainingRequest {
	req, err := f.requests.GetByID(context.Background(), id)
	if err != nil {
		return nil
	}
	return req
}
