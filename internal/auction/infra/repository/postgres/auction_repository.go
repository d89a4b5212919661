package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/charitybid/auctioncore/internal/shared/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuctionRepository implements domain.AuctionRepository on PostgreSQL.
type AuctionRepository struct {
	pool *pgxpool.Pool
}

func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

const auctionColumns = `id, organizer_id, charity_id, item_ref, start_time, end_time, time_zone,
       stopped_at, closure_notified, currency, price_precision, start_price, current_price,
       item_price, fair_market_value, status, media_refs, created_at, updated_at`

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	a := &domain.Auction{}
	var (
		currency        string
		precision       int32
		startPrice      int64
		currentPrice    int64
		itemPrice       *int64
		fairMarketValue *int64
		status          string
	)
	err := row.Scan(
		&a.ID,
		&a.OrganizerID,
		&a.CharityID,
		&a.ItemRef,
		&a.StartTime,
		&a.EndTime,
		&a.TimeZone,
		&a.StoppedAt,
		&a.ClosureNotified,
		&currency,
		&precision,
		&startPrice,
		&currentPrice,
		&itemPrice,
		&fairMarketValue,
		&status,
		&a.MediaRefs,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}

	a.StartPrice = domain.NewMoney(startPrice, currency, precision)
	a.CurrentPrice = domain.NewMoney(currentPrice, currency, precision)
	if itemPrice != nil {
		m := domain.NewMoney(*itemPrice, currency, precision)
		a.ItemPrice = &m
	}
	if fairMarketValue != nil {
		m := domain.NewMoney(*fairMarketValue, currency, precision)
		a.FairMarketValue = &m
	}
	a.Status = domain.Status(status)
	return a, nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return r.getByID(ctx, r.pool, id, false)
}

// GetByIDForUpdate locks the auction row inside the transaction so the price
// check and the subsequent writes see the same row version.
func (r *AuctionRepository) GetByIDForUpdate(ctx context.Context, tx db.Tx, id uuid.UUID) (*domain.Auction, error) {
	return r.getByID(ctx, db.Unwrap(tx), id, true)
}

func (r *AuctionRepository) getByID(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	auction, err := scanAuction(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, q, auction); err != nil {
		return nil, err
	}
	return auction, nil
}

func (r *AuctionRepository) loadChildren(ctx context.Context, q querier, auction *domain.Auction) error {
	// ledger order is submission order
	rows, err := q.Query(ctx, `
        SELECT id, auction_id, bidder_id, amount, currency, payment_source_token, placed_at, charge_id, payment_failed
        FROM bids
        WHERE auction_id = $1
        ORDER BY placed_at ASC, created_at ASC
    `, auction.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	precision := auction.CurrentPrice.Precision
	for rows.Next() {
		bid := &domain.Bid{}
		var amount int64
		var currency string
		if err := rows.Scan(
			&bid.ID,
			&bid.AuctionID,
			&bid.BidderID,
			&amount,
			&currency,
			&bid.PaymentSourceToken,
			&bid.PlacedAt,
			&bid.ChargeID,
			&bid.PaymentFailed,
		); err != nil {
			return err
		}
		bid.Amount = domain.NewMoney(amount, currency, precision)
		auction.Bids = append(auction.Bids, bid)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	frows, err := q.Query(ctx, `
        SELECT account_id, followed_at
        FROM auction_followers
        WHERE auction_id = $1
        ORDER BY followed_at ASC
    `, auction.ID)
	if err != nil {
		return err
	}
	defer frows.Close()

	for frows.Next() {
		var f domain.Follower
		if err := frows.Scan(&f.AccountID, &f.FollowedAt); err != nil {
			return err
		}
		auction.Followers = append(auction.Followers, f)
	}
	return frows.Err()
}

// Save writes the aggregate row; INSERT ON CONFLICT covers creation and
// update. Bids and follower edges have their own write methods.
func (r *AuctionRepository) Save(ctx context.Context, tx db.Tx, auction *domain.Auction) error {
	var itemPrice, fairMarketValue *int64
	if auction.ItemPrice != nil {
		itemPrice = &auction.ItemPrice.Amount
	}
	if auction.FairMarketValue != nil {
		fairMarketValue = &auction.FairMarketValue.Amount
	}

	query := `
        INSERT INTO auctions (id, organizer_id, charity_id, item_ref, start_time, end_time, time_zone,
                              stopped_at, closure_notified, currency, price_precision, start_price,
                              current_price, item_price, fair_market_value, status, media_refs)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        ON CONFLICT (id) DO UPDATE
        SET
            charity_id = EXCLUDED.charity_id,
            item_ref = EXCLUDED.item_ref,
            start_time = EXCLUDED.start_time,
            end_time = EXCLUDED.end_time,
            time_zone = EXCLUDED.time_zone,
            stopped_at = EXCLUDED.stopped_at,
            closure_notified = EXCLUDED.closure_notified,
            start_price = EXCLUDED.start_price,
            current_price = EXCLUDED.current_price,
            item_price = EXCLUDED.item_price,
            fair_market_value = EXCLUDED.fair_market_value,
            status = EXCLUDED.status,
            media_refs = EXCLUDED.media_refs,
            updated_at = NOW();
    `
	_, err := db.Unwrap(tx).Exec(ctx, query,
		auction.ID,
		auction.OrganizerID,
		auction.CharityID,
		auction.ItemRef,
		auction.StartTime,
		auction.EndTime,
		auction.TimeZone,
		auction.StoppedAt,
		auction.ClosureNotified,
		auction.CurrentPrice.Currency,
		auction.CurrentPrice.Precision,
		auction.StartPrice.Amount,
		auction.CurrentPrice.Amount,
		itemPrice,
		fairMarketValue,
		auction.Status,
		auction.MediaRefs,
	)
	return err
}

func (r *AuctionRepository) SaveBid(ctx context.Context, tx db.Tx, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, bidder_id, amount, currency, payment_source_token, placed_at, charge_id, payment_failed)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := db.Unwrap(tx).Exec(ctx, query,
		bid.ID,
		bid.AuctionID,
		bid.BidderID,
		bid.Amount.Amount,
		bid.Amount.Currency,
		bid.PaymentSourceToken,
		bid.PlacedAt,
		bid.ChargeID,
		bid.PaymentFailed,
	)
	return err
}

// UpdateCurrentPrice is the conditional write resolving the check-then-set
// race: it only succeeds while the stored price still equals the price the
// caller validated against.
func (r *AuctionRepository) UpdateCurrentPrice(ctx context.Context, tx db.Tx, auctionID uuid.UUID, observed, next domain.Money) error {
	tag, err := db.Unwrap(tx).Exec(ctx, `
        UPDATE auctions
        SET current_price = $3, updated_at = NOW()
        WHERE id = $1 AND current_price = $2
    `, auctionID, observed.Amount, next.Amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPriceConflict
	}
	return nil
}

func (r *AuctionRepository) SetBidCharge(ctx context.Context, tx db.Tx, bidID uuid.UUID, chargeID string) error {
	tag, err := db.Unwrap(tx).Exec(ctx, `
        UPDATE bids SET charge_id = $2 WHERE id = $1 AND charge_id IS NULL
    `, bidID, chargeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChargeAlreadySet
	}
	return nil
}

func (r *AuctionRepository) MarkBidPaymentFailed(ctx context.Context, tx db.Tx, bidID uuid.UUID) error {
	_, err := db.Unwrap(tx).Exec(ctx, `
        UPDATE bids SET payment_failed = TRUE WHERE id = $1
    `, bidID)
	return err
}

func (r *AuctionRepository) GetActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Auction, error) {
	return r.list(ctx, `
        SELECT `+auctionColumns+`
        FROM auctions
        WHERE status = $1 AND end_time <= $2
        ORDER BY end_time ASC
    `, domain.StatusActive, cutoff)
}

func (r *AuctionRepository) GetActiveEndingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*domain.Auction, error) {
	return r.list(ctx, `
        SELECT `+auctionColumns+`
        FROM auctions
        WHERE status = $1 AND closure_notified = FALSE AND end_time > $2 AND end_time <= $3
        ORDER BY end_time ASC
    `, domain.StatusActive, now, now.Add(window))
}

func (r *AuctionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Auction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, auction := range auctions {
		if err := r.loadChildren(ctx, r.pool, auction); err != nil {
			return nil, err
		}
	}
	return auctions, nil
}

func (r *AuctionRepository) SetClosureNotified(ctx context.Context, auctionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
        UPDATE auctions SET closure_notified = TRUE, updated_at = NOW() WHERE id = $1
    `, auctionID)
	return err
}

func (r *AuctionRepository) AddFollower(ctx context.Context, tx db.Tx, auctionID, accountID uuid.UUID, at time.Time) error {
	_, err := db.Unwrap(tx).Exec(ctx, `
        INSERT INTO auction_followers (auction_id, account_id, followed_at)
        VALUES ($1, $2, $3)
    `, auctionID, accountID, at)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyFollowing
		}
		return err
	}
	return nil
}

func (r *AuctionRepository) RemoveFollower(ctx context.Context, tx db.Tx, auctionID, accountID uuid.UUID) error {
	_, err := db.Unwrap(tx).Exec(ctx, `
        DELETE FROM auction_followers WHERE auction_id = $1 AND account_id = $2
    `, auctionID, accountID)
	return err
}
