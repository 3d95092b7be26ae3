// Package chain defines Solana cluster parameters and the derivation path used for accounts.
// All cluster-specific values are hardcoded here; the config file can only override endpoints.
package chain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Network identifies a Solana cluster.
type Network string

const (
	Mainnet  Network = "mainnet"
	Devnet   Network = "devnet"
	Testnet  Network = "testnet"
	Localnet Network = "localnet"
)

// DefaultNetwork is the cluster used when none is configured.
const DefaultNetwork = Devnet

// BIP44 constants for Solana.
const (
	Purpose  uint32 = 44
	CoinType uint32 = 501

	// MaxAccountIndex is the largest index usable as a hardened path segment.
	MaxAccountIndex uint32 = 1<<31 - 1
)

// Params contains all parameters for a cluster.
type Params struct {
	Network Network
	Name    string
	Symbol  string
	// Decimals of the native token (lamports per SOL = 10^Decimals).
	Decimals uint8

	RPCURL string
	WSURL  string

	// ExplorerCluster is appended as ?cluster= to explorer links. Empty on mainnet.
	ExplorerCluster string

	// AirdropEnabled is true on clusters with a faucet.
	AirdropEnabled bool
}

// ParseNetwork parses a cluster name. "mainnet-beta" is accepted as an alias.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet", "mainnet-beta":
		return Mainnet, nil
	case "devnet", "":
		return Devnet, nil
	case "testnet":
		return Testnet, nil
	case "localnet", "localhost":
		return Localnet, nil
	default:
		return "", fmt.Errorf("unknown network: %s", s)
	}
}

// DerivationPath returns the SLIP-10 path for an account index: m/44'/501'/{index}'/0'.
func DerivationPath(index uint32) string {
	return "m/" +
		strconv.FormatUint(uint64(Purpose), 10) + "'/" +
		strconv.FormatUint(uint64(CoinType), 10) + "'/" +
		strconv.FormatUint(uint64(index), 10) + "'/0'"
}

// ValidateAccountIndex validates an account index for hardened derivation.
func ValidateAccountIndex(index uint32) error {
	if index > MaxAccountIndex {
		return fmt.Errorf("account index %d exceeds maximum %d", index, MaxAccountIndex)
	}
	return nil
}

// ExplorerTxURL returns a block explorer link for a transaction signature.
func (p *Params) ExplorerTxURL(signature string) string {
	return p.explorerURL("tx/" + signature)
}

// ExplorerAddressURL returns a block explorer link for an account address.
func (p *Params) ExplorerAddressURL(address string) string {
	return p.explorerURL("account/" + address)
}

func (p *Params) explorerURL(path string) string {
	u := "https://solscan.io/" + path
	if p.ExplorerCluster != "" {
		u += "?cluster=" + p.ExplorerCluster
	}
	return u
}

// registry holds all cluster parameters.
var registry = make(map[Network]*Params)

// Register adds cluster params to the registry.
func Register(params *Params) {
	registry[params.Network] = params
}

// Get returns cluster params for a network.
func Get(network Network) (*Params, bool) {
	params, ok := registry[network]
	return params, ok
}

// List returns all registered networks in sorted order.
func List() []Network {
	networks := make([]Network, 0, len(registry))
	for n := range registry {
		networks = append(networks, n)
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i] < networks[j] })
	return networks
}
