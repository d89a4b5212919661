package application

import (
	"context"

	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/google/uuid"
)

// AuctionService is the application interface of the auction module, exposing
// the use cases to the outer layers (HTTP handlers, event feed).
type AuctionService interface {
	SubmitBid(ctx context.Context, input SubmitBidInput) (*BidReceipt, error)
	BuyNow(ctx context.Context, auctionID, buyerID uuid.UUID) error
	Settle(ctx context.Context, auctionID uuid.UUID) error
	SweepForSettlement(ctx context.Context) (SweepSummary, error)
	SweepForEndingSoonNotifications(ctx context.Context) (SweepSummary, error)
	UpdateStatus(ctx context.Context, auctionID uuid.UUID, target domain.Status) (*AuctionStateDTO, error)
	UpdatePricing(ctx context.Context, auctionID uuid.UUID, update PricingUpdate) (*AuctionStateDTO, error)
	Follow(ctx context.Context, auctionID, accountID uuid.UUID) (*FollowAck, error)
	Unfollow(ctx context.Context, auctionID, accountID uuid.UUID) (*FollowAck, error)
	GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*AuctionStateDTO, error)
}

type auctionService struct {
	submitBidUC    *SubmitBidUseCase
	settlementUC   *SettlementUseCase
	schedulerUC    *SchedulerUseCase
	statusUpdateUC *StatusUpdateUseCase
	followUC       *FollowUseCase
	auctions       domain.AuctionRepository
}

func NewAuctionService(
	submitBidUC *SubmitBidUseCase,
	settlementUC *SettlementUseCase,
	schedulerUC *SchedulerUseCase,
	statusUpdateUC *StatusUpdateUseCase,
	followUC *FollowUseCase,
	auctions domain.AuctionRepository,
) AuctionService {
	return &auctionService{
		submitBidUC:    submitBidUC,
		settlementUC:   settlementUC,
		schedulerUC:    schedulerUC,
		statusUpdateUC: statusUpdateUC,
		followUC:       followUC,
		auctions:       auctions,
	}
}

func (s *auctionService) SubmitBid(ctx context.Context, input SubmitBidInput) (*BidReceipt, error) {
	return s.submitBidUC.Execute(ctx, input)
}

func (s *auctionService) BuyNow(ctx context.Context, auctionID, buyerID uuid.UUID) error {
	return s.settlementUC.BuyNow(ctx, auctionID, buyerID)
}

func (s *auctionService) Settle(ctx context.Context, auctionID uuid.UUID) error {
	return s.settlementUC.Settle(ctx, auctionID)
}

func (s *auctionService) SweepForSettlement(ctx context.Context) (SweepSummary, error) {
	return s.schedulerUC.SweepForSettlement(ctx)
}

func (s *auctionService) SweepForEndingSoonNotifications(ctx context.Context) (SweepSummary, error) {
	return s.schedulerUC.SweepForEndingSoonNotifications(ctx)
}

func (s *auctionService) UpdateStatus(ctx context.Context, auctionID uuid.UUID, target domain.Status) (*AuctionStateDTO, error) {
	auction, err := s.statusUpdateUC.UpdateStatus(ctx, auctionID, target)
	if err != nil {
		return nil, err
	}
	return ToAuctionStateDTO(auction), nil
}

func (s *auctionService) UpdatePricing(ctx context.Context, auctionID uuid.UUID, update PricingUpdate) (*AuctionStateDTO, error) {
	auction, err := s.statusUpdateUC.UpdatePricing(ctx, auctionID, update)
	if err != nil {
		return nil, err
	}
	return ToAuctionStateDTO(auction), nil
}

func (s *auctionService) Follow(ctx context.Context, auctionID, accountID uuid.UUID) (*FollowAck, error) {
	return s.followUC.Follow(ctx, auctionID, accountID)
}

func (s *auctionService) Unfollow(ctx context.Context, auctionID, accountID uuid.UUID) (*FollowAck, error) {
	return s.followUC.Unfollow(ctx, auctionID, accountID)
}

func (s *auctionService) GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*AuctionStateDTO, error) {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return ToAuctionStateDTO(auction), nil
}
