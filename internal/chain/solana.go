package chain

func init() {
	Register(&Params{
		Network:  Mainnet,
		Name:     "Solana Mainnet Beta",
		Symbol:   "SOL",
		Decimals: 9,
		RPCURL:   "https://api.mainnet-beta.solana.com",
		WSURL:    "wss://api.mainnet-beta.solana.com",
	})

	Register(&Params{
		Network:         Devnet,
		Name:            "Solana Devnet",
		Symbol:          "SOL",
		Decimals:        9,
		RPCURL:          "https://api.devnet.solana.com",
		WSURL:           "wss://api.devnet.solana.com",
		ExplorerCluster: "devnet",
		AirdropEnabled:  true,
	})

	Register(&Params{
		Network:         Testnet,
		Name:            "Solana Testnet",
		Symbol:          "SOL",
		Decimals:        9,
		RPCURL:          "https://api.testnet.solana.com",
		WSURL:           "wss://api.testnet.solana.com",
		ExplorerCluster: "testnet",
		AirdropEnabled:  true,
	})

	// solana-test-validator defaults
	Register(&Params{
		Network:         Localnet,
		Name:            "Local Validator",
		Symbol:          "SOL",
		Decimals:        9,
		RPCURL:          "http://127.0.0.1:8899",
		WSURL:           "ws://127.0.0.1:8900",
		ExplorerCluster: "custom",
		AirdropEnabled:  true,
	})
}
