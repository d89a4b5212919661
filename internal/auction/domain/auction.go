package domain

import (
	"sync"
	"time"

	"github.com/charitybid/auctioncore/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Follower is one edge of the follow graph on the auction side.
type Follower struct {
	AccountID  uuid.UUID
	FollowedAt time.Time
}

// Auction is the aggregate root tracking one item's bidding lifecycle, price
// and terminal disposition. The bid ledger is append-only; insertion order is
// submission order and the last entry always carries the current price.
type Auction struct {
	ID          uuid.UUID
	OrganizerID uuid.UUID
	CharityID   *uuid.UUID
	ItemRef     *string

	StartTime       time.Time
	EndTime         time.Time
	TimeZone        string
	StoppedAt       *time.Time
	ClosureNotified bool

	StartPrice      Money
	CurrentPrice    Money
	ItemPrice       *Money
	FairMarketValue *Money

	Status    Status
	MediaRefs []string
	CreatedAt time.Time
	UpdatedAt time.Time

	// protects aggregate state when the same instance is shared between
	// goroutines (event hub, tests); the DB transaction is the real unit of
	// isolation across processes
	mu sync.Mutex

	Bids      []*Bid
	Followers []Follower
}

func NewAuction(id, organizerID uuid.UUID, charityID *uuid.UUID, startPrice Money, startTime, endTime time.Time, timeZone string) *Auction {
	return &Auction{
		ID:           id,
		OrganizerID:  organizerID,
		CharityID:    charityID,
		StartPrice:   startPrice,
		CurrentPrice: startPrice, // current price starts at start price
		StartTime:    startTime,
		EndTime:      endTime,
		TimeZone:     timeZone,
		Status:       StatusDraft,
		Bids:         []*Bid{},
	}
}

// HasBeneficiary reports whether a charity is attached to receive proceeds.
func (a *Auction) HasBeneficiary() bool {
	return a.CharityID != nil
}

// AppendBid validates and appends one bid, updating the current price. The
// caller supplies the server-assigned timestamp through its Clock.
func (a *Auction) AppendBid(bidderID uuid.UUID, amount Money, paymentSourceToken string, now time.Time) (*Bid, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Status != StatusActive {
		log.Warn("Bid rejected: auction not active",
			zap.String("auctionID", a.ID.String()),
			zap.String("status", string(a.Status)),
			zap.String("bidderID", bidderID.String()),
		)
		return nil, ErrAuctionNotActive
	}

	if !now.Before(a.EndTime) {
		log.Warn("Bid rejected: auction ended",
			zap.String("auctionID", a.ID.String()),
			zap.Time("endTime", a.EndTime),
			zap.String("bidderID", bidderID.String()),
		)
		return nil, ErrAuctionEnded
	}

	higher, err := amount.GreaterThan(a.CurrentPrice)
	if err != nil {
		return nil, err
	}
	if !higher {
		log.Warn("Bid rejected: amount too low",
			zap.String("auctionID", a.ID.String()),
			zap.Int64("bidAmount", amount.Amount),
			zap.Int64("currentPrice", a.CurrentPrice.Amount),
			zap.String("bidderID", bidderID.String()),
		)
		return nil, ErrBidTooLow
	}

	bid := NewBid(uuid.New(), a.ID, bidderID, amount, paymentSourceToken, now)
	a.Bids = append(a.Bids, bid)
	a.CurrentPrice = amount

	log.Info("Bid appended",
		zap.String("auctionID", a.ID.String()),
		zap.String("bidID", bid.ID.String()),
		zap.String("bidderID", bidderID.String()),
		zap.Int64("amount", amount.Amount),
	)

	return bid, nil
}

// LastBid returns the ledger's last entry, which monotonicity guarantees is
// the highest bid, or nil for an empty ledger.
func (a *Auction) LastBid() *Bid {
	if len(a.Bids) == 0 {
		return nil
	}
	return a.Bids[len(a.Bids)-1]
}

func (a *Auction) TotalBids() int {
	return len(a.Bids)
}

// LeadingBidder returns the account currently winning, or nil with no bids.
func (a *Auction) LeadingBidder() *uuid.UUID {
	last := a.LastBid()
	if last == nil {
		return nil
	}
	id := last.BidderID
	return &id
}

// Activate moves the auction live, or to pending when activated before its
// start time.
func (a *Auction) Activate(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ev := EventActivate
	if now.Before(a.StartTime) {
		ev = EventSchedule
	}
	next, err := Transition(a.Status, ev)
	if err != nil {
		return err
	}
	a.Status = next
	a.StoppedAt = nil
	log.Info("Auction activated",
		zap.String("auctionID", a.ID.String()),
		zap.String("status", string(next)),
	)
	return nil
}

// Stop halts an active auction (manual/admin action).
func (a *Auction) Stop(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := Transition(a.Status, EventStop)
	if err != nil {
		return err
	}
	a.Status = next
	a.StoppedAt = &now
	log.Info("Auction stopped",
		zap.String("auctionID", a.ID.String()),
		zap.Time("stoppedAt", now),
	)
	return nil
}

func (a *Auction) MarkSettled() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := Transition(a.Status, EventSettle)
	if err != nil {
		return err
	}
	a.Status = next
	return nil
}

func (a *Auction) MarkFailed() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := Transition(a.Status, EventFail)
	if err != nil {
		return err
	}
	a.Status = next
	return nil
}

func (a *Auction) MarkSold() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := Transition(a.Status, EventSell)
	if err != nil {
		return err
	}
	a.Status = next
	return nil
}

// BuyNowAmount validates buy-now availability and returns the price to
// charge: the item price must be set and not undercut the current price.
func (a *Auction) BuyNowAmount() (Money, error) {
	if a.ItemPrice == nil {
		return Money{}, ErrBuyNowUnavailable
	}
	ok, err := a.CurrentPrice.LessThanOrEqual(*a.ItemPrice)
	if err != nil {
		return Money{}, err
	}
	if !ok {
		return Money{}, ErrBuyNowUnavailable
	}
	return *a.ItemPrice, nil
}

// EnsurePricingEditable guards edits to startPrice, fairMarketValue and
// dates, which are only legal while the auction is not live or terminal.
func (a *Auction) EnsurePricingEditable() error {
	if !a.Status.CanEditPricing() {
		return ErrPricingLocked
	}
	return nil
}

// Follow adds the auction-side follower edge; duplicates are rejected.
func (a *Auction) Follow(accountID uuid.UUID, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, f := range a.Followers {
		if f.AccountID == accountID {
			return ErrAlreadyFollowing
		}
	}
	a.Followers = append(a.Followers, Follower{AccountID: accountID, FollowedAt: at})
	return nil
}

// Unfollow removes the edge if present; removing an absent edge is a no-op.
func (a *Auction) Unfollow(accountID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, f := range a.Followers {
		if f.AccountID == accountID {
			a.Followers = append(a.Followers[:i], a.Followers[i+1:]...)
			return true
		}
	}
	return false
}
