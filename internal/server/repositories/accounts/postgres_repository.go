package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const selectColumns = `id, uid, email, name, password_hash, verified, active, created_at, updated_at`

type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.UID, &a.Email, &a.Name, &a.PasswordHash, &a.Verified, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", common.ErrDuplicateAccount, pgErr.ConstraintName)
	}
	return fmt.Errorf("db error: %w", common.Classify(err))
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (uid, email, name, password_hash, verified, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		account.UID, normalizeEmail(account.Email), account.Name, account.PasswordHash, account.Verified, account.Active,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	account.Email = normalizeEmail(account.Email)
	return account, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE email = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, normalizeEmail(email)))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if !validID(id) {
		return nil, common.ErrNotFound
	}
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

// Update locks the row, applies patch and writes it back. When the
// repository is already bound to a transaction the statements join it.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error) {
	if !validID(id) {
		return nil, common.ErrNotFound
	}
	var updated *models.Account

	apply := func(ctx context.Context, tx dbx.DBTX) error {
		lock := `SELECT ` + selectColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
		a, err := scanAccount(tx.QueryRowContext(ctx, lock, id))
		if err != nil {
			return mapError(err)
		}
		if patch.Empty() {
			updated = a
			return nil
		}
		if patch.Verified != nil {
			a.Verified = *patch.Verified
		}
		if patch.Active != nil {
			a.Active = *patch.Active
		}
		a.UpdatedAt = r.now().UTC()

		query :=
			`UPDATE accounts SET verified = $2, active = $3, updated_at = $4
			 WHERE id = $1
			 `
		if _, err := tx.ExecContext(ctx, query, id, a.Verified, a.Active, a.UpdatedAt); err != nil {
			return mapError(err)
		}
		updated = a
		return nil
	}

	var err error
	if b, ok := r.db.(dbx.TxBeginner); ok {
		err = dbx.WithTx(ctx, b, nil, apply)
	} else {
		err = apply(ctx, r.db)
	}
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("update account: %w", common.Classify(err))
	}
	return updated, nil
}

// validID reports whether id can name a bigserial row; anything else cannot
// match and is reported as not found without a round trip.
func validID(id string) bool {
	n, err := strconv.ParseInt(id, 10, 64)
	return err == nil && n > 0
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
