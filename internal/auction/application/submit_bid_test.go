package application

import (
	"context"
	"testing"
	"time"

	accountdomain "github.com/charitybid/auctioncore/internal/account/domain"
	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/charitybid/auctioncore/internal/shared/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bidFixture struct {
	auctions   *fakeAuctionRepo
	accounts   *fakeAccountRepo
	txm        *fakeTxManager
	clk        *clock.Fake
	dispatcher *fakeDispatcher
	publisher  *fakePublisher
	uc         *SubmitBidUseCase
	auction    *domain.Auction
	charityID  uuid.UUID
}

func token(s string) *string { return &s }

func newBidFixture(t *testing.T) *bidFixture {
	t.Helper()
	f := &bidFixture{
		auctions:   newFakeAuctionRepo(),
		accounts:   newFakeAccountRepo(),
		txm:        &fakeTxManager{},
		clk:        clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		dispatcher: &fakeDispatcher{},
		publisher:  &fakePublisher{},
	}

	f.charityID = uuid.New()
	f.accounts.put(&accountdomain.Account{ID: f.charityID, Email: "charity@example.org", PayoutAccount: token("acct_charity")})

	now := f.clk.Now()
	f.auction = domain.NewAuction(uuid.New(), uuid.New(), &f.charityID, domain.USD(10000),
		now.Add(-time.Hour), now.Add(time.Hour), "UTC")
	f.auction.Status = domain.StatusActive
	f.auctions.put(f.auction)

	f.uc = NewSubmitBidUseCase(f.auctions, f.accounts, f.txm, f.clk, f.dispatcher, f.publisher)
	return f
}

func (f *bidFixture) newBidder(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.accounts.put(&accountdomain.Account{ID: id, Email: id.String() + "@example.org", PaymentMethodToken: token("pm_" + id.String())})
	return id
}

func TestSubmitBidAccepted(t *testing.T) {
	f := newBidFixture(t)
	bidder := f.newBidder(t)

	receipt, err := f.uc.Execute(context.Background(), SubmitBidInput{
		AuctionID: f.auction.ID,
		BidderID:  bidder,
		Amount:    domain.USD(15000),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(15000), receipt.CurrentPrice.Amount)
	assert.Equal(t, 1, receipt.TotalBids)
	assert.Equal(t, bidder, receipt.Bid.BidderID)
	assert.Equal(t, f.clk.Now(), receipt.Bid.PlacedAt, "timestamp is server-assigned")

	stored, err := f.auctions.GetByID(context.Background(), f.auction.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), stored.CurrentPrice.Amount)
	assert.Equal(t, 1, stored.TotalBids())

	require.Len(t, f.txm.txs, 1)
	assert.True(t, f.txm.txs[0].committed)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, domain.EventTypeBidPlaced, f.publisher.events[0].Type)
}

func TestSubmitBidTooLowLeavesLedgerUntouched(t *testing.T) {
	f := newBidFixture(t)
	first := f.newBidder(t)
	second := f.newBidder(t)

	_, err := f.uc.Execute(context.Background(), SubmitBidInput{
		AuctionID: f.auction.ID, BidderID: first, Amount: domain.USD(15000),
	})
	require.NoError(t, err)

	_, err = f.uc.Execute(context.Background(), SubmitBidInput{
		AuctionID: f.auction.ID, BidderID: second, Amount: domain.USD(12000),
	})
	assert.ErrorIs(t, err, domain.ErrBidTooLow)

	stored, _ := f.auctions.GetByID(context.Background(), f.auction.ID)
	assert.Equal(t, int64(15000), stored.CurrentPrice.Amount)
	assert.Equal(t, 1, stored.TotalBids())
	assert.True(t, f.txm.txs[len(f.txm.txs)-1].rolledBack)
}

func TestSubmitBidPreconditions(t *testing.T) {
	t.Run("payment method missing", func(t *testing.T) {
		f := newBidFixture(t)
		broke := uuid.New()
		f.accounts.put(&accountdomain.Account{ID: broke, Email: "broke@example.org"})

		_, err := f.uc.Execute(context.Background(), SubmitBidInput{
			AuctionID: f.auction.ID, BidderID: broke, Amount: domain.USD(20000),
		})
		assert.ErrorIs(t, err, domain.ErrPaymentMethodMissing)
	})

	t.Run("auction not found", func(t *testing.T) {
		f := newBidFixture(t)
		_, err := f.uc.Execute(context.Background(), SubmitBidInput{
			AuctionID: uuid.New(), BidderID: f.newBidder(t), Amount: domain.USD(20000),
		})
		assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
	})

	t.Run("missing beneficiary", func(t *testing.T) {
		f := newBidFixture(t)
		f.auctions.auctions[f.auction.ID].CharityID = nil
		_, err := f.uc.Execute(context.Background(), SubmitBidInput{
			AuctionID: f.auction.ID, BidderID: f.newBidder(t), Amount: domain.USD(20000),
		})
		assert.ErrorIs(t, err, domain.ErrMissingBeneficiary)
	})

	t.Run("auction ended", func(t *testing.T) {
		f := newBidFixture(t)
		f.clk.Advance(2 * time.Hour)
		_, err := f.uc.Execute(context.Background(), SubmitBidInput{
			AuctionID: f.auction.ID, BidderID: f.newBidder(t), Amount: domain.USD(20000),
		})
		assert.ErrorIs(t, err, domain.ErrAuctionEnded)
	})

	t.Run("invalid amount", func(t *testing.T) {
		f := newBidFixture(t)
		_, err := f.uc.Execute(context.Background(), SubmitBidInput{
			AuctionID: f.auction.ID, BidderID: f.newBidder(t), Amount: domain.USD(0),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
}

func TestSubmitBidNotifiesOutbidBidder(t *testing.T) {
	f := newBidFixture(t)
	first := f.newBidder(t)
	second := f.newBidder(t)

	_, err := f.uc.Execute(context.Background(), SubmitBidInput{
		AuctionID: f.auction.ID, BidderID: first, Amount: domain.USD(15000),
	})
	require.NoError(t, err)
	assert.Empty(t, f.dispatcher.byTemplate("outbid"), "first bid outbids nobody")

	_, err = f.uc.Execute(context.Background(), SubmitBidInput{
		AuctionID: f.auction.ID, BidderID: second, Amount: domain.USD(16000),
	})
	require.NoError(t, err)

	outbid := f.dispatcher.byTemplate("outbid")
	require.Len(t, outbid, 1)
	assert.Equal(t, first.String()+"@example.org", outbid[0].Recipient)
}

func TestSubmitBidSelfOutbidIsSilent(t *testing.T) {
	f := newBidFixture(t)
	bidder := f.newBidder(t)

	for _, amount := range []int64{15000, 16000} {
		_, err := f.uc.Execute(context.Background(), SubmitBidInput{
			AuctionID: f.auction.ID, BidderID: bidder, Amount: domain.USD(amount),
		})
		require.NoError(t, err)
	}
	assert.Empty(t, f.dispatcher.byTemplate("outbid"))
}

func TestSubmitBidNotificationFailureNotPropagated(t *testing.T) {
	f := newBidFixture(t)
	f.dispatcher.failWith = assert.AnError
	first := f.newBidder(t)
	second := f.newBidder(t)

	_, err := f.uc.Execute(context.Background(), SubmitBidInput{
		AuctionID: f.auction.ID, BidderID: first, Amount: domain.USD(15000),
	})
	require.NoError(t, err)

	receipt, err := f.uc.Execute(context.Background(), SubmitBidInput{
		AuctionID: f.auction.ID, BidderID: second, Amount: domain.USD(16000),
	})
	require.NoError(t, err, "notification failure must never reach the bidder")
	assert.Equal(t, 2, receipt.TotalBids)
}

func TestSubmitBidRetriesOnPriceConflict(t *testing.T) {
	f := newBidFixture(t)
	f.auctions.priceConflicts = 2
	bidder := f.newBidder(t)

	receipt, err := f.uc.Execute(context.Background(), SubmitBidInput{
		AuctionID: f.auction.ID, BidderID: bidder, Amount: domain.USD(15000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), receipt.CurrentPrice.Amount)
	assert.Equal(t, 1, receipt.TotalBids)
	assert.Len(t, f.txm.txs, 3, "two conflicted attempts plus the success")
}

func TestSubmitBidGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newBidFixture(t)
	f.auctions.priceConflicts = 10
	bidder := f.newBidder(t)

	_, err := f.uc.Execute(context.Background(), SubmitBidInput{
		AuctionID: f.auction.ID, BidderID: bidder, Amount: domain.USD(15000),
	})
	assert.ErrorIs(t, err, domain.ErrPriceConflict)
}
