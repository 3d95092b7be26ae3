package chain

// TokenInfo contains information about a well-known SPL mint on a cluster.
type TokenInfo struct {
	Symbol   string
	Name     string
	Decimals uint8
	Mint     string
}

// Wrapped SOL has the same mint address on every cluster.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// tokenRegistry maps network -> symbol -> TokenInfo
var tokenRegistry = make(map[Network]map[string]*TokenInfo)

func init() {
	for _, n := range []Network{Mainnet, Devnet, Testnet, Localnet} {
		registerToken(n, &TokenInfo{
			Symbol:   "WSOL",
			Name:     "Wrapped SOL",
			Decimals: 9,
			Mint:     WrappedSOLMint,
		})
	}

	registerToken(Mainnet, &TokenInfo{
		Symbol:   "USDC",
		Name:     "USD Coin",
		Decimals: 6,
		Mint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	})
	registerToken(Mainnet, &TokenInfo{
		Symbol:   "USDT",
		Name:     "Tether USD",
		Decimals: 6,
		Mint:     "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
	})

	// Circle's devnet faucet mint
	registerToken(Devnet, &TokenInfo{
		Symbol:   "USDC",
		Name:     "USD Coin (Devnet)",
		Decimals: 6,
		Mint:     "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
	})
}

func registerToken(network Network, info *TokenInfo) {
	if tokenRegistry[network] == nil {
		tokenRegistry[network] = make(map[string]*TokenInfo)
	}
	tokenRegistry[network][info.Symbol] = info
}

// GetToken returns a well-known token by symbol on a network.
func GetToken(network Network, symbol string) (*TokenInfo, bool) {
	tokens, ok := tokenRegistry[network]
	if !ok {
		return nil, false
	}
	info, ok := tokens[symbol]
	return info, ok
}

// GetTokenByMint looks up a well-known token by mint address.
func GetTokenByMint(network Network, mint string) (*TokenInfo, bool) {
	for _, info := range tokenRegistry[network] {
		if info.Mint == mint {
			return info, true
		}
	}
	return nil, false
}
