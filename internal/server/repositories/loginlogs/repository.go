// Package loginlogs is the append-only audit trail of successful logins.
package loginlogs

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, entry models.LoginLogEntry) error
}
