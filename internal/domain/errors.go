package domain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Provider / session
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUserRejected        = errors.New("user rejected the request")
	ErrNotInitialized      = errors.New("wallet not initialized or not connected")
	ErrNoAccounts          = errors.New("provider returned no accounts")
)

// Contract
var (
	ErrContractUnreachable = errors.New("contract unreachable")
	ErrPartialEnumeration  = errors.New("some donation records could not be read")
	ErrTransactionFailed   = errors.New("transaction failed")
)

// Input
var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidCharity = errors.New("invalid charity id")
)

// userRejectedCode is the EIP-1193 code for a request declined by the user.
const userRejectedCode = 4001

// TxPhase names the step of a donation write that failed.
type TxPhase string

const (
	PhaseApproval TxPhase = "approval"
	PhaseDonate   TxPhase = "donate"
)

// TxError describes a failed donation write. AllowanceGranted is set when the
// token approval went through but the donation did not; the allowance is left
// in place so a retry does not need to approve again.
type TxError struct {
	Phase            TxPhase
	AllowanceGranted bool
	Err              error
}

func (e *TxError) Error() string {
	if e.AllowanceGranted {
		return fmt.Sprintf("%s failed (token allowance still granted): %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// ClassifyProviderError maps a raw provider error onto the sentinel taxonomy.
// Rejections carry EIP-1193 code 4001; anything else is returned as fallback
// wrapping err.
func ClassifyProviderError(err error, fallback error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUserRejected) || errors.Is(err, ErrProviderUnavailable) {
		return err
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return fmt.Errorf("%w: %s", ErrUserRejected, rpcErr.Error())
	}
	return fmt.Errorf("%w: %w", fallback, err)
}
