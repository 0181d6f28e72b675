package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type activityLogRepository struct {
	db *sqlx.DB
}

func NewActivityLogRepository(db *sqlx.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Record(ctx context.Context, policyID, agencyID, template string, properties map[string]any) error {
	props, err := json.Marshal(properties)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO activity_log (id, policy_id, agency_id, template, properties, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		uuid.New(),
		policyID,
		agencyID,
		template,
		props,
		time.Now().UTC(),
	)
	return err
}
