// Package accounts is the credential store: account records looked up by id
// or by unique email, created at registration and patched on verification.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Repository errors: common.ErrNotFound when no row matches,
// common.ErrDuplicateAccount on a unique email/uid violation, and
// common.ErrStoreUnavailable for timeouts and connection failures.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Update(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error)
}
