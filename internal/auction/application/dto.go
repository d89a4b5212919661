package application

import (
	"time"

	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/google/uuid"
)

// MoneyDTO is the wire representation of a Money value.
type MoneyDTO struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Precision int32  `json:"precision"`
}

func ToMoneyDTO(m domain.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency, Precision: m.Precision}
}

func (d MoneyDTO) ToDomain() domain.Money {
	return domain.NewMoney(d.Amount, d.Currency, d.Precision)
}

// BidDTO is the protocol model of one ledger entry.
type BidDTO struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    MoneyDTO  `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
	ChargeID  *string   `json:"charge_id,omitempty"`
}

func ToBidDTO(b *domain.Bid) BidDTO {
	return BidDTO{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    ToMoneyDTO(b.Amount),
		PlacedAt:  b.PlacedAt,
		ChargeID:  b.ChargeID,
	}
}

// BidReceiptDTO feeds immediate UI feedback after an accepted bid.
type BidReceiptDTO struct {
	Bid          BidDTO   `json:"bid"`
	CurrentPrice MoneyDTO `json:"current_price"`
	TotalBids    int      `json:"total_bids"`
}

func ToBidReceiptDTO(r *BidReceipt) BidReceiptDTO {
	return BidReceiptDTO{
		Bid:          ToBidDTO(r.Bid),
		CurrentPrice: ToMoneyDTO(r.CurrentPrice),
		TotalBids:    r.TotalBids,
	}
}

// AuctionStateDTO is the protocol model of the aggregate; the field set is
// fixed, nothing is trimmed or renamed ad hoc on the way out.
type AuctionStateDTO struct {
	ID              uuid.UUID  `json:"id"`
	OrganizerID     uuid.UUID  `json:"organizer_id"`
	CharityID       *uuid.UUID `json:"charity_id,omitempty"`
	ItemRef         *string    `json:"item_ref,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	TimeZone        string     `json:"time_zone"`
	StoppedAt       *time.Time `json:"stopped_at,omitempty"`
	StartPrice      MoneyDTO   `json:"start_price"`
	CurrentPrice    MoneyDTO   `json:"current_price"`
	ItemPrice       *MoneyDTO  `json:"item_price,omitempty"`
	FairMarketValue *MoneyDTO  `json:"fair_market_value,omitempty"`
	Status          string     `json:"status"`
	TotalBids       int        `json:"total_bids"`
	TotalFollowers  int        `json:"total_followers"`
	MediaRefs       []string   `json:"media_refs,omitempty"`
	LastBid         *BidDTO    `json:"last_bid,omitempty"`
}

func ToAuctionStateDTO(a *domain.Auction) *AuctionStateDTO {
	dto := &AuctionStateDTO{
		ID:             a.ID,
		OrganizerID:    a.OrganizerID,
		CharityID:      a.CharityID,
		ItemRef:        a.ItemRef,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		TimeZone:       a.TimeZone,
		StoppedAt:      a.StoppedAt,
		StartPrice:     ToMoneyDTO(a.StartPrice),
		CurrentPrice:   ToMoneyDTO(a.CurrentPrice),
		Status:         string(a.Status),
		TotalBids:      a.TotalBids(),
		TotalFollowers: len(a.Followers),
		MediaRefs:      a.MediaRefs,
	}
	if a.ItemPrice != nil {
		m := ToMoneyDTO(*a.ItemPrice)
		dto.ItemPrice = &m
	}
	if a.FairMarketValue != nil {
		m := ToMoneyDTO(*a.FairMarketValue)
		dto.FairMarketValue = &m
	}
	if last := a.LastBid(); last != nil {
		b := ToBidDTO(last)
		dto.LastBid = &b
	}
	return dto
}
