package loginlogs

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, entry models.LoginLogEntry) error {
	query :=
		`INSERT INTO login_logs (user_id, user_name, created_at)
		 VALUES ($1, $2, $3)
		 `

	_, err := r.db.ExecContext(ctx, query, entry.UserID, entry.UserName, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", common.Classify(err))
	}

	return nil
}
