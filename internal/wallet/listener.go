// internal/wallet/listener.go
package wallet

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

// EventHandler receives provider events translated by a Listener.
type EventHandler interface {
	AccountsChanged(accounts []common.Address)
	ChainChanged(chainID int64)
	ProviderDisconnected(err error)
}

// Listener forwards provider events to an EventHandler on its own goroutine.
type Listener struct {
	provider domain.Provider
	handler  EventHandler
	logger   *zap.Logger

	events   chan domain.ProviderEvent
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewListener(provider domain.Provider, handler EventHandler, logger *zap.Logger) *Listener {
	return &Listener{
		provider: provider,
		handler:  handler,
		logger:   logger,
		events:   make(chan domain.ProviderEvent, 16),
		stopChan: make(chan struct{}),
	}
}

// Start subscribes to the provider and begins dispatching events.
func (l *Listener) Start() {
	sub := l.provider.SubscribeEvents(l.events)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer sub.Unsubscribe()

		l.logger.Info("Listening for wallet provider events")
		for {
			select {
			case ev := <-l.events:
				l.dispatch(ev)

			case err := <-sub.Err():
				if err != nil {
					l.logger.Error("Provider event subscription failed", zap.Error(err))
				}
				return

			case <-l.stopChan:
				l.logger.Info("Stopping wallet event listener")
				return
			}
		}
	}()
}

// Stop ends dispatching and waits for the in-flight event to finish.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
}

func (l *Listener) dispatch(ev domain.ProviderEvent) {
	switch ev.Kind {
	case domain.EventAccountsChanged:
		l.handler.AccountsChanged(ev.Accounts)
	case domain.EventChainChanged:
		l.handler.ChainChanged(ev.ChainID)
	case domain.EventDisconnect:
		l.handler.ProviderDisconnected(ev.Err)
	default:
		l.logger.Warn("Ignoring unknown provider event", zap.String("kind", string(ev.Kind)))
	}
}
