package match

import (
	"errors"
	"fmt"

	"github.com/0x5487/matchcore/protocol"
)

var (
	ErrInvalidOrder      = errors.New("the order is invalid")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrOrderNotFound     = errors.New("order not found")
	ErrMarketExists      = errors.New("market already exists")
	ErrInvalidParam      = errors.New("the param is invalid")
	ErrTimeout           = errors.New("timeout")
	ErrShutdown          = errors.New("matching engine is shutting down")
	ErrInvariant         = errors.New("order book invariant violated")
	ErrSequenceGap       = errors.New("update sequence gap")
)

// RejectError is returned by SubmitOrder when an order fails validation.
// It wraps ErrInvalidOrder or ErrUnknownInstrument; the rejected order never reached the book.
type RejectError struct {
	Order  *Order
	Reason RejectReason
	err    error
	detail string
}

func newRejectError(order *Order, reason RejectReason, err error, detail string) *RejectError {
	order.Status = StatusRejected
	return &RejectError{Order: order, Reason: reason, err: err, detail: detail}
}

func (e *RejectError) Error() string {
	if e.detail == "" {
		return fmt.Sprintf("%s (%s)", e.err, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", e.err, e.detail, e.Reason)
}

func (e *RejectError) Unwrap() error {
	return e.err
}

// RejectReason aliases the protocol reason codes.
type RejectReason = protocol.RejectReason

const (
	ReasonNone              RejectReason = protocol.RejectReasonNone
	ReasonNoLiquidity       RejectReason = protocol.RejectReasonNoLiquidity
	ReasonPriceMismatch     RejectReason = protocol.RejectReasonPriceMismatch
	ReasonInsufficientSize  RejectReason = protocol.RejectReasonInsufficientSize
	ReasonInvalidQuantity   RejectReason = protocol.RejectReasonInvalidQuantity
	ReasonInvalidPrice      RejectReason = protocol.RejectReasonInvalidPrice
	ReasonInvalidSide       RejectReason = protocol.RejectReasonInvalidSide
	ReasonInvalidType       RejectReason = protocol.RejectReasonInvalidType
	ReasonUnknownInstrument RejectReason = protocol.RejectReasonUnknownInstrument
	ReasonInvalidPayload    RejectReason = protocol.RejectReasonInvalidPayload
	ReasonUserCancelled     RejectReason = protocol.RejectReasonUserCancelled
)
