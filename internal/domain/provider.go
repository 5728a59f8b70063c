// internal/domain/provider.go
package domain

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// Provider is the injected wallet agent. It owns the keys: transactions are
// handed over unsigned and come back as hashes.
type Provider interface {
	// Accounts returns the accounts already authorised for this client
	// without prompting the user.
	Accounts(ctx context.Context) ([]common.Address, error)

	// RequestAccounts asks the user to authorise account access.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// ChainID returns the chain the provider is currently on.
	ChainID(ctx context.Context) (int64, error)

	// CallContract executes a read-only call against the latest block.
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)

	// SendTransaction submits msg for signing and broadcast.
	SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error)

	// SubscribeEvents delivers provider events to ch until unsubscribed.
	SubscribeEvents(ch chan<- ProviderEvent) event.Subscription
}

type EventKind string

const (
	EventAccountsChanged EventKind = "accountsChanged"
	EventChainChanged    EventKind = "chainChanged"
	EventDisconnect      EventKind = "disconnect"
)

// ProviderEvent is an asynchronous notification raised by the provider.
type ProviderEvent struct {
	Kind     EventKind
	Accounts []common.Address // EventAccountsChanged
	ChainID  int64            // EventChainChanged
	Err      error            // EventDisconnect, optional cause
}
