// internal/chains/ethereum/watcher.go
package ethereum

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

// watchState is what the watcher saw on its last successful poll.
type watchState struct {
	accounts []common.Address
	chainID  int64
	healthy  bool
	primed   bool
}

// StartWatcher polls the endpoint for account and chain changes and emits
// them as provider events. A failed poll after a healthy one is reported as
// a disconnect.
func (p *RPCProvider) StartWatcher(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.watch(ctx)
	}()
}

func (p *RPCProvider) watch(ctx context.Context) {
	p.logger.Info("Starting provider watcher", zap.Duration("interval", p.pollInterval))

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var last watchState
	for {
		select {
		case <-ticker.C:
			last = p.poll(ctx, last)

		case <-p.stopChan:
			p.logger.Info("Stopping provider watcher")
			return

		case <-ctx.Done():
			p.logger.Info("Context cancelled, stopping provider watcher")
			return
		}
	}
}

// poll compares the endpoint with prev and emits the differences.
func (p *RPCProvider) poll(ctx context.Context, prev watchState) watchState {
	pollCtx, cancel := context.WithTimeout(ctx, p.pollInterval)
	defer cancel()

	accounts, err := p.Accounts(pollCtx)
	if err == nil {
		var chainID int64
		chainID, err = p.ChainID(pollCtx)
		if err == nil {
			return p.diff(prev, watchState{accounts: accounts, chainID: chainID, healthy: true, primed: true})
		}
	}

	if prev.healthy {
		p.logger.Warn("Wallet provider unreachable", zap.Error(err))
		p.feed.Send(domain.ProviderEvent{Kind: domain.EventDisconnect, Err: err})
	}
	prev.healthy = false
	return prev
}

func (p *RPCProvider) diff(prev, next watchState) watchState {
	// First successful poll only records the baseline.
	if !prev.primed {
		return next
	}

	if prev.chainID != next.chainID {
		p.logger.Info("Provider chain changed",
			zap.Int64("from", prev.chainID),
			zap.Int64("to", next.chainID))
		p.feed.Send(domain.ProviderEvent{Kind: domain.EventChainChanged, ChainID: next.chainID})
	}

	if !prev.healthy || !sameAccounts(prev.accounts, next.accounts) {
		p.logger.Info("Provider accounts changed", zap.Int("count", len(next.accounts)))
		p.feed.Send(domain.ProviderEvent{Kind: domain.EventAccountsChanged, Accounts: next.accounts})
	}
	return next
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
