// internal/chains/registry.go
package chains

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

// Registry maps chain ids to the donation deployments known for them.
type Registry struct {
	networks map[int64]domain.Network
	fallback int64
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		networks: make(map[int64]domain.Network),
	}
}

// Register adds a network to the registry. The first registered network is
// the fallback for unknown chains.
func (r *Registry) Register(network domain.Network) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.networks) == 0 {
		r.fallback = network.ChainID
	}
	if network.Name == "" {
		network.Name = NetworkName(network.ChainID)
	}
	r.networks[network.ChainID] = network
}

// SetDefault makes chainID the fallback network.
func (r *Registry) SetDefault(chainID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.networks[chainID]; !ok {
		return fmt.Errorf("network not registered: %d", chainID)
	}
	r.fallback = chainID
	return nil
}

// Get retrieves a network by chain id
func (r *Registry) Get(chainID int64) (domain.Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	network, ok := r.networks[chainID]
	if !ok {
		return domain.Network{}, fmt.Errorf("chain not supported: %d", chainID)
	}

	return network, nil
}

// Resolve returns the network for chainID, or the default network when the
// chain is unknown. found reports which one it was.
func (r *Registry) Resolve(chainID int64) (network domain.Network, found bool, err error) {
	if network, err := r.Get(chainID); err == nil {
		return network, true, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	network, ok := r.networks[r.fallback]
	if !ok {
		return domain.Network{}, false, fmt.Errorf("no networks registered")
	}
	return network, false, nil
}

// List returns all registered chain ids in ascending order
func (r *Registry) List() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.networks))
	for id := range r.networks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// NetworkName returns a display name for chainID.
func NetworkName(chainID int64) string {
	switch chainID {
	case 0:
		return "Unknown"
	case 1:
		return "Ethereum Mainnet"
	case 5:
		return "Goerli Testnet"
	case 137:
		return "Polygon Mainnet"
	case 80001:
		return "Mumbai Testnet"
	case 11155111:
		return "Sepolia Testnet"
	default:
		return fmt.Sprintf("Chain ID: %d", chainID)
	}
}
