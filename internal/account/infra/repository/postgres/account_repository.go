package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/charitybid/auctioncore/internal/account/domain"
	"github.com/charitybid/auctioncore/internal/shared/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository implements domain.AccountRepository on PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
        SELECT id, display_name, email, payment_method_token, payout_account, created_at, updated_at
        FROM accounts
        WHERE id = $1
    `
	account := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.DisplayName,
		&account.Email,
		&account.PaymentMethodToken,
		&account.PayoutAccount,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *AccountRepository) AddFollowing(ctx context.Context, tx db.Tx, accountID, auctionID uuid.UUID, at time.Time) error {
	// the auction-side insert is the duplicate guard; this side mirrors it
	_, err := db.Unwrap(tx).Exec(ctx, `
        INSERT INTO account_following (account_id, auction_id, followed_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (account_id, auction_id) DO NOTHING
    `, accountID, auctionID, at)
	return err
}

func (r *AccountRepository) RemoveFollowing(ctx context.Context, tx db.Tx, accountID, auctionID uuid.UUID) error {
	_, err := db.Unwrap(tx).Exec(ctx, `
        DELETE FROM account_following WHERE account_id = $1 AND auction_id = $2
    `, accountID, auctionID)
	return err
}

func (r *AccountRepository) ListFollowing(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT auction_id FROM account_following WHERE account_id = $1 ORDER BY followed_at ASC
    `, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var following []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		following = append(following, id)
	}
	return following, rows.Err()
}
