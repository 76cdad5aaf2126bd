package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/database"
	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/errors"
)

// OrgDirectoryRepository answers point lookups against the organizational
// directory: role assignments, manager chains and role-holder searches.
// All reads; routing never writes the directory.
//
// "No match" is a normal answer (nil, nil); only transport or query
// failures become errors, which callers surface as directory_unavailable.
type OrgDirectoryRepository struct {
	db *database.DB
}

// NewOrgDirectoryRepository creates a new OrgDirectoryRepository.
func NewOrgDirectoryRepository(db *database.DB) *OrgDirectoryRepository {
	return &OrgDirectoryRepository{db: db}
}

// RolesOf returns the roles held by an identity. Empty slice when none.
func (d *OrgDirectoryRepository) RolesOf(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT role
		FROM employee_roles
		WHERE user_id = $1
		ORDER BY role ASC
	`

	rows, err := d.db.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get roles")
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan role")
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// ManagerOf returns the employee's directly assigned manager, or nil when
// none is on file (including when the employee itself is unknown).
func (d *OrgDirectoryRepository) ManagerOf(ctx context.Context, employeeID string) (*string, error) {
	query := `
		SELECT manager_id
		FROM employees
		WHERE id = $1
	`

	var managerID *string
	err := d.db.QueryRow(ctx, query, employeeID).Scan(&managerID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get manager")
	}
	return managerID, nil
}

// FindHRBP returns an HRBP scoped to the given organizational entity, or nil.
func (d *OrgDirectoryRepository) FindHRBP(ctx context.Context, entityID string) (*string, error) {
	query := `
		SELECT r.user_id
		FROM employee_roles r
		JOIN employees e ON e.id = r.user_id
		WHERE r.role = $1
		  AND e.entity_id = $2
		ORDER BY r.user_id ASC
		LIMIT 1
	`

	return d.findOne(ctx, query, "HRBP", entityID)
}

// FindAnyHRBP returns any identity holding the HRBP role, or nil.
func (d *OrgDirectoryRepository) FindAnyHRBP(ctx context.Context) (*string, error) {
	return d.FindByRole(ctx, "HRBP")
}

// FindByRole returns any identity holding the given role, or nil.
func (d *OrgDirectoryRepository) FindByRole(ctx context.Context, role string) (*string, error) {
	query := `
		SELECT user_id
		FROM employee_roles
		WHERE role = $1
		ORDER BY user_id ASC
		LIMIT 1
	`

	return d.findOne(ctx, query, role)
}

func (d *OrgDirectoryRepository) findOne(ctx context.Context, query string, args ...any) (*string, error) {
	var userID string
	err := d.db.QueryRow(ctx, query, args...).Scan(&userID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to look up role holder")
	}
	return &userID, nil
}
