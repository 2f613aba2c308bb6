package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/event"
	"github.com/xraph/certledger/order"
	"github.com/xraph/certledger/tx"
	"github.com/xraph/certledger/types"
)

// Ledger is the read side of *certledger.Ledger served by the API.
type Ledger interface {
	Owner() types.Address
	GetEntry(ctx context.Context, index uint64) (*catalog.Entry, error)
	ListEntries(ctx context.Context) ([]*catalog.Entry, error)
	NextEntryIndex(ctx context.Context) (uint64, error)
	GetOrder(ctx context.Context, orderID uint64) (*order.Order, error)
	ListOrders(ctx context.Context) ([]*order.Order, error)
	NextOrderID(ctx context.Context) (uint64, error)
	Events(since uint64) []event.Event
	Ping(ctx context.Context) error
}

var _ Ledger = (*certledger.Ledger)(nil)

// Handler serves ledger reads and signed transactions.
type Handler struct {
	log        *slog.Logger
	ledger     Ledger
	dispatcher *tx.Dispatcher
}

func NewHandler(log *slog.Logger, l Ledger, d *tx.Dispatcher) *Handler {
	return &Handler{
		log:        log.With("handler", "certledger"),
		ledger:     l,
		dispatcher: d,
	}
}

func (h *Handler) ListEntries(c *gin.Context) {
	entries, err := h.ledger.ListEntries(c.Request.Context())
	if err != nil {
		h.log.Error("ListEntries failed", "error", err, "request_id", RequestIDFromContext(c))
		respondLedgerError(c, err)
		return
	}
	RespondOK(c, gin.H{"entries": entries})
}

func (h *Handler) GetEntry(c *gin.Context) {
	index, ok := uintParam(c, "index")
	if !ok {
		return
	}
	e, err := h.ledger.GetEntry(c.Request.Context(), index)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	RespondOK(c, e)
}

func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.ledger.ListOrders(c.Request.Context())
	if err != nil {
		h.log.Error("ListOrders failed", "error", err, "request_id", RequestIDFromContext(c))
		respondLedgerError(c, err)
		return
	}
	RespondOK(c, gin.H{"orders": orders})
}

func (h *Handler) GetOrder(c *gin.Context) {
	orderID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	o, err := h.ledger.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	RespondOK(c, o)
}

func (h *Handler) Events(c *gin.Context) {
	var since uint64
	if raw := c.Query("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_input", err)
			return
		}
		since = v
	}
	RespondOK(c, gin.H{"events": h.ledger.Events(since)})
}

func (h *Handler) Owner(c *gin.Context) {
	ctx := c.Request.Context()
	nextEntry, err := h.ledger.NextEntryIndex(ctx)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	nextOrder, err := h.ledger.NextOrderID(ctx)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"owner":            h.ledger.Owner(),
		"next_entry_index": nextEntry,
		"next_order_id":    nextOrder,
	})
}

// SubmitTx dispatches a signed envelope.
func (h *Handler) SubmitTx(c *gin.Context) {
	var req tx.Signed
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}

	res, err := h.dispatcher.DispatchSigned(c.Request.Context(), &req)
	if err != nil {
		status, code := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("SubmitTx failed", "error", err, "request_id", RequestIDFromContext(c))
		}
		RespondError(c, status, code, err)
		return
	}
	RespondOK(c, res)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.ledger.Ping(c.Request.Context()); err != nil {
		RespondError(c, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	c.String(http.StatusOK, "ok")
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return 0, false
	}
	return v, true
}
