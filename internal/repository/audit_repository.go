package repository

import (
	"context"
	"encoding/json"

	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/database"
	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/errors"
)

// AuditRepository appends and reads immutable routing audit log entries.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry. The table has a delete-prevention trigger
// so this is the only mutation operation exposed.
func (a *AuditRepository) Append(ctx context.Context, entry *AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO training_approval_audit_log
		    (request_id, approval_id, entity_id,
		     action, performed_by,
		     request_status_before, request_status_after,
		     metadata)
		VALUES ($1, $2, $3,
		        $4, $5,
		        $6, $7,
		        $8)
		RETURNING id, performed_at
	`

	err := a.db.QueryRow(ctx, query,
		entry.RequestID,
		entry.ApprovalID,
		entry.EntityID,
		entry.Action,
		entry.PerformedBy,
		entry.RequestStatusBefore,
		entry.RequestStatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}
	return nil
}

// ListByRequest returns the full audit trail for a request, oldest first.
func (a *AuditRepository) ListByRequest(ctx context.Context, requestID string) ([]*AuditEntry, error) {
	query := `
		SELECT id, request_id, approval_id, entity_id,
		       action, performed_by, performed_at,
		       request_status_before, request_status_after,
		       metadata
		FROM training_approval_audit_log
		WHERE request_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := a.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		var metadataJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ApprovalID,
			&entry.EntityID,
			&entry.Action,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&entry.RequestStatusBefore,
			&entry.RequestStatusAfter,
			&metadataJSON,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode audit metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
