// internal/domain/wallet.go
package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// WalletState is the snapshot of the wallet connection exposed to the UI.
// Values are replaced whole, never patched field by field.
type WalletState struct {
	IsConnected bool            `json:"isConnected"`
	Account     *common.Address `json:"account"`
	ChainID     *int64          `json:"chainId"`
	Error       string          `json:"error,omitempty"`
}

// DisconnectedState returns the zero wallet state.
func DisconnectedState() WalletState {
	return WalletState{}
}

// ConnectedState returns a connected snapshot for account on chainID.
// A zero chainID leaves the chain unset.
func ConnectedState(account common.Address, chainID int64) WalletState {
	acc := account
	state := WalletState{
		IsConnected: true,
		Account:     &acc,
	}
	if chainID != 0 {
		id := chainID
		state.ChainID = &id
	}
	return state
}

// WithError returns a copy of s carrying msg.
func (s WalletState) WithError(msg string) WalletState {
	next := s.clone()
	next.Error = msg
	return next
}

// WithChainID returns a copy of s on chainID. Disconnected states never carry a chain.
func (s WalletState) WithChainID(chainID int64) WalletState {
	next := s.clone()
	if !next.IsConnected {
		next.ChainID = nil
		return next
	}
	id := chainID
	next.ChainID = &id
	return next
}

// Valid reports whether s satisfies the account/connection invariant.
func (s WalletState) Valid() bool {
	if s.IsConnected != (s.Account != nil) {
		return false
	}
	if s.ChainID != nil && !s.IsConnected {
		return false
	}
	return true
}

// AccountHex returns the checksummed account or "".
func (s WalletState) AccountHex() string {
	if s.Account == nil {
		return ""
	}
	return s.Account.Hex()
}

// clone deep-copies the pointer fields so callers cannot mutate a published snapshot.
func (s WalletState) clone() WalletState {
	next := s
	if s.Account != nil {
		acc := *s.Account
		next.Account = &acc
	}
	if s.ChainID != nil {
		id := *s.ChainID
		next.ChainID = &id
	}
	return next
}

// Clone returns an independent copy of s.
func (s WalletState) Clone() WalletState {
	return s.clone()
}

// ShortAddress renders addr the way the wallet button does: 0x1234...abcd
func ShortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "..." + hex[38:]
}

// SessionStatus is the lifecycle phase of a wallet session.
type SessionStatus string

const (
	StatusUninitialized SessionStatus = "uninitialized"
	StatusDisconnected  SessionStatus = "disconnected"
	StatusConnecting    SessionStatus = "connecting"
	StatusConnected     SessionStatus = "connected"
)
