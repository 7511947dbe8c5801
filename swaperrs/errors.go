package swaperrs

import (
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Sentinel kinds for swap-protocol failures. Callers match with errors.Is;
// the constructors below attach context while keeping the kind.
var (
	ErrSignatureVerification = errors.New("signature verification")
	ErrSwapDataVerification  = errors.New("swap data verification")
	ErrCannotInitializeAta   = errors.New("cannot initialize allowance")
	ErrTxReverted            = errors.New("transaction reverted")
	ErrPaymentAuth           = errors.New("payment authorization")
	ErrNotSynchronized       = errors.New("relay not synchronized")
	ErrHttpResponse          = errors.New("http response")
	ErrCancelled             = errors.New("cancelled")
	ErrInvalidArgument       = errors.New("invalid argument")
)

func SignatureVerification(reason string) error {
	return fmt.Errorf("%w: %s", ErrSignatureVerification, reason)
}

func SwapDataVerification(reason string) error {
	return fmt.Errorf("%w: %s", ErrSwapDataVerification, reason)
}

func TxReverted(txHash ethcommon.Hash) error {
	return fmt.Errorf("%w: %s", ErrTxReverted, txHash.Hex())
}

func PaymentAuth(reason string) error {
	return fmt.Errorf("%w: %s", ErrPaymentAuth, reason)
}

func NotSynchronized(required, current uint32) error {
	return fmt.Errorf("%w: relay at height %d, need %d", ErrNotSynchronized, current, required)
}

func HttpResponse(status int, body string) error {
	return fmt.Errorf("%w: status=%d body=%s", ErrHttpResponse, status, body)
}

func InvalidArgument(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}

// Retryable reports whether an error is worth another attempt. Signature,
// preflight and argument failures are deterministic and never retried.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrSignatureVerification),
		errors.Is(err, ErrSwapDataVerification),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrCancelled),
		errors.Is(err, ErrPaymentAuth),
		errors.Is(err, ErrTxReverted):
		return false
	}
	return true
}
