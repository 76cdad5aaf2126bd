package service

import (
	"context"

	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/errors"
)

// OrgDirectory resolves identities from the organizational directory.
// All lookups are read-only; "no match" is a nil result, not an error.
type OrgDirectory interface {
	// RolesOf returns the roles an identity holds.
	RolesOf(ctx context.Context, userID string) ([]string, error)
	// ManagerOf returns the employee's directly assigned manager, or nil.
	ManagerOf(ctx context.Context, employeeID string) (*string, error)
	// FindHRBP returns an HRBP scoped to the given entity, or nil.
	FindHRBP(ctx context.Context, entityID string) (*string, error)
	// FindAnyHRBP returns any HRBP system-wide, or nil.
	FindAnyHRBP(ctx context.Context) (*string, error)
	// FindByRole returns any holder of the given role, or nil.
	FindByRole(ctx context.Context, role string) (*string, error)
}

// ApproverLocator resolves the concrete approver identity for a level.
type ApproverLocator struct {
	directory OrgDirectory
}

// NewApproverLocator creates a new ApproverLocator.
func NewApproverLocator(directory OrgDirectory) *ApproverLocator {
	return &ApproverLocator{directory: directory}
}

// Locate returns the approver for the given level and employee, or nil when
// the level has no resolvable approver. Directory failures surface as
// directory_unavailable so the enclosing operation aborts instead of
// misreading an outage as an organizational gap.
//
// Level 2 falls back from the employee's entity to any HRBP system-wide:
// availability is preferred over precise entity routing.
func (l *ApproverLocator) Locate(ctx context.Context, level Level, employeeID, entityID string) (*string, error) {
	switch level {
	case LevelManager:
		managerID, err := l.directory.ManagerOf(ctx, employeeID)
		if err != nil {
			return nil, directoryUnavailable(err)
		}
		return managerID, nil

	case LevelHRBP:
		hrbpID, err := l.directory.FindHRBP(ctx, entityID)
		if err != nil {
			return nil, directoryUnavailable(err)
		}
		if hrbpID != nil {
			return hrbpID, nil
		}
		hrbpID, err = l.directory.FindAnyHRBP(ctx)
		if err != nil {
			return nil, directoryUnavailable(err)
		}
		return hrbpID, nil

	case LevelLearning:
		userID, err := l.directory.FindByRole(ctx, RoleLearning)
		if err != nil {
			return nil, directoryUnavailable(err)
		}
		return userID, nil

	case LevelCHRO:
		userID, err := l.directory.FindByRole(ctx, RoleCHRO)
		if err != nil {
			return nil, directoryUnavailable(err)
		}
		return userID, nil
	}

	return nil, nil
}

func directoryUnavailable(err error) error {
	return errors.Wrap(err, errors.ErrCodeDirectoryUnavailable, "org directory lookup failed")
}
