// Package api exposes a certledger.Ledger over HTTP with gin.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/tx"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// errorStatus maps ledger errors to an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, certledger.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, certledger.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid_signature"
	case certledger.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, certledger.ErrOutOfStock):
		return http.StatusConflict, "out_of_stock"
	case errors.Is(err, certledger.ErrInvalidPayment):
		return http.StatusUnprocessableEntity, "invalid_payment"
	case errors.Is(err, certledger.ErrPaymentFailed):
		return http.StatusPaymentRequired, "payment_failed"
	case errors.Is(err, certledger.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, certledger.ErrDirectTransferRejected):
		return http.StatusBadRequest, "direct_transfer_rejected"
	case errors.Is(err, certledger.ErrUnknownMethod):
		return http.StatusBadRequest, "unknown_method"
	case errors.Is(err, tx.ErrNonceReused):
		return http.StatusConflict, "nonce_reused"
	case errors.Is(err, certledger.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, certledger.ErrStoreClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func respondLedgerError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	RespondError(c, status, code, err)
}
