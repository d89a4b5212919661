package http

import (
	"crypto/subtle"
	"errors"
	"time"

	accountdomain "github.com/charitybid/auctioncore/internal/account/domain"
	"github.com/charitybid/auctioncore/internal/auction/application"
	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/charitybid/auctioncore/internal/shared/events"
	"github.com/charitybid/auctioncore/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Handler exposes the auction core over HTTP: scheduler trigger endpoints
// behind a shared secret, bid/status/follow mutations, and the live feed.
type Handler struct {
	service      application.AuctionService
	hub          *events.Hub
	schedulerKey string
}

func NewHandler(service application.AuctionService, hub *events.Hub, schedulerKey string) *Handler {
	return &Handler{service: service, hub: hub, schedulerKey: schedulerKey}
}

func (h *Handler) Register(app *fiber.App) {
	// scheduler trigger endpoints, before the :id routes so they match first
	app.Post("/auctions/settle", h.requireSchedulerKey, h.handleSettleSweep)
	app.Post("/auctions/ends-notify", h.requireSchedulerKey, h.handleEndsNotifySweep)

	app.Get("/auctions/:id", h.handleGetAuction)
	app.Post("/auctions/:id/bids", h.handleCreateBid)
	app.Post("/auctions/:id/buy-now", h.handleBuyNow)
	app.Patch("/auctions/:id/status", h.handleUpdateStatus)
	app.Patch("/auctions/:id/pricing", h.handleUpdatePricing)
	app.Post("/auctions/:id/follow", h.handleFollow)
	app.Delete("/auctions/:id/follow", h.handleUnfollow)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/auctions/:id", websocket.New(h.handleFeed))
}

// requireSchedulerKey guards the trigger endpoints with the shared secret the
// external scheduler presents.
func (h *Handler) requireSchedulerKey(c *fiber.Ctx) error {
	presented := c.Get("X-Scheduler-Key")
	if h.schedulerKey == "" ||
		subtle.ConstantTimeCompare([]byte(presented), []byte(h.schedulerKey)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid scheduler key"})
	}
	return c.Next()
}

func (h *Handler) handleSettleSweep(c *fiber.Ctx) error {
	summary, err := h.service.SweepForSettlement(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

func (h *Handler) handleEndsNotifySweep(c *fiber.Ctx) error {
	summary, err := h.service.SweepForEndingSoonNotifications(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

func (h *Handler) handleGetAuction(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid auction id"})
	}
	state, err := h.service.GetAuctionState(c.Context(), auctionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

type createBidRequest struct {
	Amount             application.MoneyDTO `json:"amount"`
	PaymentSourceToken string               `json:"payment_source_token,omitempty"`
}

func (h *Handler) handleCreateBid(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid auction id"})
	}
	bidderID, err := callerAccount(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or invalid X-Account-ID"})
	}

	var req createBidRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	receipt, err := h.service.SubmitBid(c.Context(), application.SubmitBidInput{
		AuctionID:          auctionID,
		BidderID:           bidderID,
		Amount:             req.Amount.ToDomain(),
		PaymentSourceToken: req.PaymentSourceToken,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(application.ToBidReceiptDTO(receipt))
}

func (h *Handler) handleBuyNow(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid auction id"})
	}
	buyerID, err := callerAccount(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or invalid X-Account-ID"})
	}
	if err := h.service.BuyNow(c.Context(), auctionID, buyerID); err != nil {
		return respondError(c, err)
	}
	state, err := h.service.GetAuctionState(c.Context(), auctionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid auction id"})
	}
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	target, err := domain.ParseStatus(req.Status)
	if err != nil {
		return respondError(c, err)
	}
	state, err := h.service.UpdateStatus(c.Context(), auctionID, target)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

type updatePricingRequest struct {
	StartPrice      *application.MoneyDTO `json:"start_price,omitempty"`
	FairMarketValue *application.MoneyDTO `json:"fair_market_value,omitempty"`
	ItemPrice       *application.MoneyDTO `json:"item_price,omitempty"`
	StartTime       *time.Time            `json:"start_time,omitempty"`
	EndTime         *time.Time            `json:"end_time,omitempty"`
}

func (h *Handler) handleUpdatePricing(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid auction id"})
	}
	var req updatePricingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	update := application.PricingUpdate{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if req.StartPrice != nil {
		m := req.StartPrice.ToDomain()
		update.StartPrice = &m
	}
	if req.FairMarketValue != nil {
		m := req.FairMarketValue.ToDomain()
		update.FairMarketValue = &m
	}
	if req.ItemPrice != nil {
		m := req.ItemPrice.ToDomain()
		update.ItemPrice = &m
	}

	state, err := h.service.UpdatePricing(c.Context(), auctionID, update)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

func (h *Handler) handleFollow(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid auction id"})
	}
	accountID, err := callerAccount(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or invalid X-Account-ID"})
	}
	ack, err := h.service.Follow(c.Context(), auctionID, accountID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ack)
}

func (h *Handler) handleUnfollow(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid auction id"})
	}
	accountID, err := callerAccount(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or invalid X-Account-ID"})
	}
	ack, err := h.service.Unfollow(c.Context(), auctionID, accountID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ack)
}

// handleFeed subscribes the connection to an auction's live event feed.
func (h *Handler) handleFeed(conn *websocket.Conn) {
	client := &events.Client{
		Hub:       h.hub,
		Conn:      conn,
		Send:      make(chan []byte, 16),
		AuctionID: conn.Params("id"),
		ID:        uuid.NewString(),
	}
	h.hub.Register(client)
	client.Listen()
}

// callerAccount resolves the authenticated caller; identity issuance is
// outside this core, the gateway forwards it as a header.
func callerAccount(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Get("X-Account-ID"))
}

func respondError(c *fiber.Ctx, err error) error {
	var conflict *domain.ConflictError
	var payment *domain.PaymentError

	switch {
	case errors.Is(err, domain.ErrAuctionNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &payment):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": payment.Error()})
	case errors.As(err, &conflict),
		errors.Is(err, domain.ErrBidTooLow),
		errors.Is(err, domain.ErrAlreadyFollowing),
		errors.Is(err, domain.ErrPriceConflict),
		errors.Is(err, domain.ErrAuctionNotActive),
		errors.Is(err, domain.ErrAuctionEnded),
		errors.Is(err, domain.ErrPricingLocked),
		errors.Is(err, domain.ErrStatusNotAssignable),
		errors.Is(err, domain.ErrChargeAlreadySet):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrMissingBeneficiary),
		errors.Is(err, domain.ErrPaymentMethodMissing),
		errors.Is(err, domain.ErrBuyNowUnavailable),
		errors.Is(err, domain.ErrUnknownStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	log.Error("Unhandled API error", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
