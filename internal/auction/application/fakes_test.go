package application

import (
	"context"
	"fmt"
	"time"

	accountdomain "github.com/charitybid/auctioncore/internal/account/domain"
	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/charitybid/auctioncore/internal/shared/db"
	"github.com/google/uuid"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeTxManager struct {
	txs []*fakeTx
}

func (m *fakeTxManager) BeginTx(ctx context.Context) (db.Tx, error) {
	tx := &fakeTx{}
	m.txs = append(m.txs, tx)
	return tx, nil
}

// fakeAuctionRepo keeps aggregates in memory. Reads hand out copies so a
// failed attempt does not leak uncommitted mutations, mirroring transaction
// rollback; writes mutate the stored aggregate.
type fakeAuctionRepo struct {
	order          []uuid.UUID
	auctions       map[uuid.UUID]*domain.Auction
	priceConflicts int
	savedBids      []*domain.Bid
}

func newFakeAuctionRepo() *fakeAuctionRepo {
	return &fakeAuctionRepo{auctions: map[uuid.UUID]*domain.Auction{}}
}

func (r *fakeAuctionRepo) put(a *domain.Auction) {
	if _, ok := r.auctions[a.ID]; !ok {
		r.order = append(r.order, a.ID)
	}
	r.auctions[a.ID] = a
}

// cloneAuction rebuilds the aggregate field by field; bids are shared
// pointers, which matches how charge bookkeeping reaches the store.
func cloneAuction(a *domain.Auction) *domain.Auction {
	clone := &domain.Auction{
		ID:              a.ID,
		OrganizerID:     a.OrganizerID,
		CharityID:       a.CharityID,
		ItemRef:         a.ItemRef,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		TimeZone:        a.TimeZone,
		StoppedAt:       a.StoppedAt,
		ClosureNotified: a.ClosureNotified,
		StartPrice:      a.StartPrice,
		CurrentPrice:    a.CurrentPrice,
		ItemPrice:       a.ItemPrice,
		FairMarketValue: a.FairMarketValue,
		Status:          a.Status,
		MediaRefs:       a.MediaRefs,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	clone.Bids = append(clone.Bids, a.Bids...)
	clone.Followers = append(clone.Followers, a.Followers...)
	return clone
}

func (r *fakeAuctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	a, ok := r.auctions[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return cloneAuction(a), nil
}

func (r *fakeAuctionRepo) GetByIDForUpdate(ctx context.Context, tx db.Tx, id uuid.UUID) (*domain.Auction, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeAuctionRepo) Save(ctx context.Context, tx db.Tx, a *domain.Auction) error {
	r.put(cloneAuction(a))
	return nil
}

func (r *fakeAuctionRepo) SaveBid(ctx context.Context, tx db.Tx, bid *domain.Bid) error {
	r.savedBids = append(r.savedBids, bid)
	a, ok := r.auctions[bid.AuctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	for _, existing := range a.Bids {
		if existing.ID == bid.ID {
			return nil
		}
	}
	a.Bids = append(a.Bids, bid)
	return nil
}

func (r *fakeAuctionRepo) UpdateCurrentPrice(ctx context.Context, tx db.Tx, auctionID uuid.UUID, observed, next domain.Money) error {
	if r.priceConflicts > 0 {
		r.priceConflicts--
		return domain.ErrPriceConflict
	}
	a, ok := r.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	if a.CurrentPrice.Amount != observed.Amount {
		return domain.ErrPriceConflict
	}
	a.CurrentPrice = next
	return nil
}

func (r *fakeAuctionRepo) SetBidCharge(ctx context.Context, tx db.Tx, bidID uuid.UUID, chargeID string) error {
	bid := r.findBid(bidID)
	if bid == nil {
		return fmt.Errorf("bid %s not found", bidID)
	}
	if bid.ChargeID != nil {
		if *bid.ChargeID == chargeID {
			return nil
		}
		return domain.ErrChargeAlreadySet
	}
	bid.ChargeID = &chargeID
	return nil
}

func (r *fakeAuctionRepo) MarkBidPaymentFailed(ctx context.Context, tx db.Tx, bidID uuid.UUID) error {
	bid := r.findBid(bidID)
	if bid == nil {
		return fmt.Errorf("bid %s not found", bidID)
	}
	bid.PaymentFailed = true
	return nil
}

func (r *fakeAuctionRepo) findBid(bidID uuid.UUID) *domain.Bid {
	for _, a := range r.auctions {
		for _, b := range a.Bids {
			if b.ID == bidID {
				return b
			}
		}
	}
	return nil
}

func (r *fakeAuctionRepo) GetActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Auction, error) {
	var out []*domain.Auction
	for _, id := range r.order {
		a := r.auctions[id]
		if a.Status == domain.StatusActive && !a.EndTime.After(cutoff) {
			out = append(out, cloneAuction(a))
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) GetActiveEndingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*domain.Auction, error) {
	var out []*domain.Auction
	for _, id := range r.order {
		a := r.auctions[id]
		if a.Status == domain.StatusActive && !a.ClosureNotified &&
			a.EndTime.After(now) && !a.EndTime.After(now.Add(window)) {
			out = append(out, cloneAuction(a))
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) SetClosureNotified(ctx context.Context, auctionID uuid.UUID) error {
	a, ok := r.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	a.ClosureNotified = true
	return nil
}

func (r *fakeAuctionRepo) AddFollower(ctx context.Context, tx db.Tx, auctionID, accountID uuid.UUID, at time.Time) error {
	a, ok := r.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	return a.Follow(accountID, at)
}

func (r *fakeAuctionRepo) RemoveFollower(ctx context.Context, tx db.Tx, auctionID, accountID uuid.UUID) error {
	if a, ok := r.auctions[auctionID]; ok {
		a.Unfollow(accountID)
	}
	return nil
}

type fakeAccountRepo struct {
	accounts  map[uuid.UUID]*accountdomain.Account
	following map[uuid.UUID][]uuid.UUID
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts:  map[uuid.UUID]*accountdomain.Account{},
		following: map[uuid.UUID][]uuid.UUID{},
	}
}

func (r *fakeAccountRepo) put(a *accountdomain.Account) {
	r.accounts[a.ID] = a
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*accountdomain.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, accountdomain.ErrAccountNotFound
	}
	return a, nil
}

func (r *fakeAccountRepo) AddFollowing(ctx context.Context, tx db.Tx, accountID, auctionID uuid.UUID, at time.Time) error {
	r.following[accountID] = append(r.following[accountID], auctionID)
	return nil
}

func (r *fakeAccountRepo) RemoveFollowing(ctx context.Context, tx db.Tx, accountID, auctionID uuid.UUID) error {
	list := r.following[accountID]
	for i, id := range list {
		if id == auctionID {
			r.following[accountID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeAccountRepo) ListFollowing(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	return r.following[accountID], nil
}

type fakeGateway struct {
	charges     []domain.ChargeRequest
	declineWith error
	nextCharge  int
}

func (g *fakeGateway) Charge(ctx context.Context, req domain.ChargeRequest) (string, error) {
	g.charges = append(g.charges, req)
	if g.declineWith != nil {
		return "", g.declineWith
	}
	g.nextCharge++
	return fmt.Sprintf("ch_%d", g.nextCharge), nil
}

type fakeDispatcher struct {
	sent     []domain.Notification
	failWith error
}

func (d *fakeDispatcher) SendLater(ctx context.Context, n domain.Notification) error {
	if d.failWith != nil {
		return d.failWith
	}
	d.sent = append(d.sent, n)
	return nil
}

func (d *fakeDispatcher) byTemplate(template string) []domain.Notification {
	var out []domain.Notification
	for _, n := range d.sent {
		if n.Template == template {
			out = append(out, n)
		}
	}
	return out
}

type fakePublisher struct {
	events []domain.Event
}

func (p *fakePublisher) Publish(ctx context.Context, ev domain.Event) error {
	p.events = append(p.events, ev)
	return nil
}
