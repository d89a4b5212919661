package application

import (
	"context"
	"testing"
	"time"

	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/charitybid/auctioncore/internal/shared/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusFixture struct {
	auctions *fakeAuctionRepo
	txm      *fakeTxManager
	clk      *clock.Fake
	uc       *StatusUpdateUseCase
}

func newStatusFixture(t *testing.T) *statusFixture {
	t.Helper()
	f := &statusFixture{
		auctions: newFakeAuctionRepo(),
		txm:      &fakeTxManager{},
		clk:      clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.uc = NewStatusUpdateUseCase(f.auctions, f.txm, f.clk)
	return f
}

func (f *statusFixture) draftAuction(t *testing.T, start, end time.Time) *domain.Auction {
	t.Helper()
	charity := uuid.New()
	a := domain.NewAuction(uuid.New(), uuid.New(), &charity, domain.USD(10000), start, end, "UTC")
	f.auctions.put(a)
	return a
}

func TestUpdateStatusActivation(t *testing.T) {
	f := newStatusFixture(t)
	now := f.clk.Now()

	t.Run("future start parks in pending", func(t *testing.T) {
		a := f.draftAuction(t, now.Add(time.Hour), now.Add(2*time.Hour))
		updated, err := f.uc.UpdateStatus(context.Background(), a.ID, domain.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, updated.Status)

		stored, _ := f.auctions.GetByID(context.Background(), a.ID)
		assert.Equal(t, domain.StatusPending, stored.Status)
	})

	t.Run("past start goes live", func(t *testing.T) {
		a := f.draftAuction(t, now.Add(-time.Minute), now.Add(2*time.Hour))
		updated, err := f.uc.UpdateStatus(context.Background(), a.ID, domain.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, updated.Status)
	})

	t.Run("pending promotes once started", func(t *testing.T) {
		a := f.draftAuction(t, now.Add(time.Hour), now.Add(2*time.Hour))
		_, err := f.uc.UpdateStatus(context.Background(), a.ID, domain.StatusActive)
		require.NoError(t, err)

		f.clk.Advance(time.Hour)
		updated, err := f.uc.UpdateStatus(context.Background(), a.ID, domain.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, updated.Status)
	})
}

func TestUpdateStatusStop(t *testing.T) {
	f := newStatusFixture(t)
	now := f.clk.Now()
	a := f.draftAuction(t, now.Add(-time.Hour), now.Add(time.Hour))
	f.auctions.auctions[a.ID].Status = domain.StatusActive

	updated, err := f.uc.UpdateStatus(context.Background(), a.ID, domain.StatusStopped)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, updated.Status)
	require.NotNil(t, updated.StoppedAt)
	assert.Equal(t, now, *updated.StoppedAt)
}

func TestUpdateStatusRejectsTerminalTargets(t *testing.T) {
	f := newStatusFixture(t)
	now := f.clk.Now()
	a := f.draftAuction(t, now.Add(-time.Hour), now.Add(time.Hour))
	f.auctions.auctions[a.ID].Status = domain.StatusActive

	for _, target := range []domain.Status{domain.StatusSettled, domain.StatusFailed, domain.StatusSold} {
		_, err := f.uc.UpdateStatus(context.Background(), a.ID, target)
		assert.ErrorIs(t, err, domain.ErrStatusNotAssignable, "target %s", target)
	}

	_, err := f.uc.UpdateStatus(context.Background(), a.ID, domain.Status("bogus"))
	assert.ErrorIs(t, err, domain.ErrUnknownStatus)

	stored, _ := f.auctions.GetByID(context.Background(), a.ID)
	assert.Equal(t, domain.StatusActive, stored.Status, "rejected updates roll back")
}

func TestUpdateStatusLifecycleConflict(t *testing.T) {
	f := newStatusFixture(t)
	now := f.clk.Now()
	a := f.draftAuction(t, now.Add(-time.Hour), now.Add(time.Hour))
	f.auctions.auctions[a.ID].Status = domain.StatusSettled

	_, err := f.uc.UpdateStatus(context.Background(), a.ID, domain.StatusStopped)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.StatusSettled, conflict.From)
}

func TestUpdatePricingOnDraft(t *testing.T) {
	f := newStatusFixture(t)
	now := f.clk.Now()
	a := f.draftAuction(t, now.Add(time.Hour), now.Add(2*time.Hour))

	newStart := domain.USD(20000)
	itemPrice := domain.USD(80000)
	updated, err := f.uc.UpdatePricing(context.Background(), a.ID, PricingUpdate{
		StartPrice: &newStart,
		ItemPrice:  &itemPrice,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(20000), updated.StartPrice.Amount)
	assert.Equal(t, int64(20000), updated.CurrentPrice.Amount, "empty ledger pins currentPrice to startPrice")
	require.NotNil(t, updated.ItemPrice)
	assert.Equal(t, int64(80000), updated.ItemPrice.Amount)
}

func TestUpdatePricingLockedWhileLive(t *testing.T) {
	f := newStatusFixture(t)
	now := f.clk.Now()
	a := f.draftAuction(t, now.Add(-time.Hour), now.Add(time.Hour))
	f.auctions.auctions[a.ID].Status = domain.StatusActive

	newStart := domain.USD(20000)
	_, err := f.uc.UpdatePricing(context.Background(), a.ID, PricingUpdate{StartPrice: &newStart})
	assert.ErrorIs(t, err, domain.ErrPricingLocked)

	stored, _ := f.auctions.GetByID(context.Background(), a.ID)
	assert.Equal(t, int64(10000), stored.StartPrice.Amount)
}

func TestUpdatePricingMovesDates(t *testing.T) {
	f := newStatusFixture(t)
	now := f.clk.Now()
	a := f.draftAuction(t, now.Add(time.Hour), now.Add(2*time.Hour))

	newEnd := now.Add(4 * time.Hour)
	updated, err := f.uc.UpdatePricing(context.Background(), a.ID, PricingUpdate{EndTime: &newEnd})
	require.NoError(t, err)
	assert.Equal(t, newEnd, updated.EndTime)
	assert.Equal(t, int64(10000), updated.CurrentPrice.Amount, "price fields untouched")
}
