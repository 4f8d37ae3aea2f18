// Package chainclient is the C1 Chain Client Registry: one read client and
// one write client per configured chain, resolved by chain-name lookup. It
// generalizes blackholedex's Blackhole, which dialed a single *ethclient.Client
// for one chain and kept a map of per-contract clients on top of it.
package chainclient

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
)

// ConfigError signals a chain the caller asked for but the registry was
// never configured with.
type ConfigError struct {
	MissingChain string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: no client registered for chain %q", e.MissingChain)
}

// ChainClients bundles the read/write dial targets for one chain. They may
// point at the same RPC endpoint.
type ChainClients struct {
	Read  *ethclient.Client
	Write *ethclient.Client
}

// Registry resolves chain-name to clients. Safe for concurrent use: the
// monitor, the orchestrator's pools, and every strategy all read it
// concurrently while only Register/Close mutate it.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*ChainClients
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*ChainClients)}
}

// Register dials rpcURL once and stores it as both the read and write
// client for chain. Use RegisterSplit if a chain needs a dedicated write
// endpoint.
func (r *Registry) Register(chain, rpcURL string) error {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return fmt.Errorf("dial %s for chain %s: %w", rpcURL, chain, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[chain] = &ChainClients{Read: client, Write: client}
	return nil
}

// RegisterSplit dials distinct read/write endpoints for chain.
func (r *Registry) RegisterSplit(chain, readURL, writeURL string) error {
	readClient, err := ethclient.Dial(readURL)
	if err != nil {
		return fmt.Errorf("dial read %s for chain %s: %w", readURL, chain, err)
	}
	writeClient, err := ethclient.Dial(writeURL)
	if err != nil {
		return fmt.Errorf("dial write %s for chain %s: %w", writeURL, chain, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[chain] = &ChainClients{Read: readClient, Write: writeClient}
	return nil
}

// Get returns the chain's clients, or a *ConfigError if chain was never
// registered.
func (r *Registry) Get(chain string) (*ChainClients, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[chain]
	if !ok {
		return nil, &ConfigError{MissingChain: chain}
	}
	return c, nil
}

// Close tears down every dialed client, mirroring the Hyperlane7683
// reference filler's Close(): safe to call from the orchestrator's
// documented shutdown sequence after pools have drained.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[*ethclient.Client]bool)
	for _, c := range r.clients {
		for _, cl := range []*ethclient.Client{c.Read, c.Write} {
			if cl == nil || seen[cl] {
				continue
			}
			seen[cl] = true
			cl.Close()
		}
	}
	r.clients = make(map[string]*ChainClients)
}
