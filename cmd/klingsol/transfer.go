package main

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingsol/internal/rpc"
	"github.com/Klingon-tech/klingsol/internal/storage"
	"github.com/Klingon-tech/klingsol/internal/wallet"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Refresh and show an account's SOL balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		external, _ := cmd.Flags().GetBool("external")
		params := rpc.WalletBalanceParams{Account: account, External: external}

		if external {
			var bal storage.Balance
			if done, err := call("wallet_balance", params, &bal); done || err != nil {
				return err
			}
			fmt.Printf("Address: %s\n", bal.Address)
			fmt.Printf("Balance: %s SOL\n", formatUnits(bal.Amount, bal.Decimals))
			return nil
		}

		var bal wallet.BalanceInfo
		if done, err := call("wallet_balance", params, &bal); done || err != nil {
			return err
		}
		fmt.Printf("Account: %d\n", bal.Account)
		fmt.Printf("Address: %s\n", bal.Address)
		fmt.Printf("Balance: %s SOL\n", bal.SOL)
		if bal.USD != "" {
			fmt.Printf("Value:   $%s\n", bal.USD)
		}
		return nil
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List Token-2022 holdings of an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var res rpc.WalletTokensResult
		if done, err := call("wallet_tokens", rpc.AccountParams{Account: account}, &res); done || err != nil {
			return err
		}
		if res.Count == 0 {
			fmt.Println("No token accounts")
			return nil
		}
		table := newTable("Symbol", "Amount", "Mint", "Token Account")
		for _, tok := range res.Tokens {
			table.Append([]string{tok.Symbol, tok.UIAmount, tok.Mint, tok.TokenAccount})
		}
		table.Render()
		return nil
	},
}

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Show the last synced balances of an account",
	Long:  "Show the balances recorded by the daemon's last refresh without contacting the cluster.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var res rpc.WalletBalancesResult
		if done, err := call("wallet_balances", rpc.AccountParams{Account: account}, &res); done || err != nil {
			return err
		}
		if res.Count == 0 {
			fmt.Println("No balances synced yet")
			return nil
		}
		table := newTable("Mint", "Amount", "Updated")
		for _, b := range res.Balances {
			mint := b.Mint
			if mint == storage.NativeMint {
				mint = "SOL"
			}
			table.Append([]string{mint, formatUnits(b.Amount, b.Decimals), b.UpdatedAt.Local().Format("2006-01-02 15:04")})
		}
		table.Render()
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <to> <amount>",
	Short: "Send SOL or an SPL token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mint, _ := cmd.Flags().GetString("mint")
		token, _ := cmd.Flags().GetString("token")

		var res wallet.TxResult
		done, err := call("wallet_send", rpc.WalletSendParams{
			Account: account,
			To:      args[0],
			Amount:  args[1],
			Mint:    mint,
			Token:   token,
		}, &res)
		if done || err != nil {
			return err
		}
		printTx(&res)
		return nil
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount>",
	Short: "Move SOL to the configured external wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res wallet.TxResult
		if done, err := call("wallet_withdraw", rpc.AmountParams{Account: account, Amount: args[0]}, &res); done || err != nil {
			return err
		}
		printTx(&res)
		return nil
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Move SOL from the external wallet into an account",
	Long: "Move SOL from the external wallet into an account. Without an external " +
		"keypair the daemon returns an unsigned transaction to sign elsewhere and pass to 'klingsol submit'.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res wallet.DepositResult
		if done, err := call("wallet_deposit", rpc.AmountParams{Account: account, Amount: args[0]}, &res); done || err != nil {
			return err
		}
		if res.Transaction != nil {
			printTx(res.Transaction)
			return nil
		}
		fmt.Printf("From:     %s\n", res.From)
		fmt.Printf("To:       %s\n", res.To)
		fmt.Printf("Amount:   %s SOL\n", formatUnits(res.Lamports, 9))
		fmt.Println()
		fmt.Println("Unsigned transaction (base64):")
		fmt.Println(res.Unsigned)
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <base64-tx>",
	Short: "Submit an externally signed transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		var res wallet.TxResult
		done, err := call("wallet_submitSigned", rpc.WalletSubmitSignedParams{
			Account:     account,
			Kind:        kind,
			Transaction: args[0],
		}, &res)
		if done || err != nil {
			return err
		}
		printTx(&res)
		return nil
	},
}

var airdropCmd = &cobra.Command{
	Use:   "airdrop [amount]",
	Short: "Request faucet SOL (devnet, testnet and localnet)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := rpc.AmountParams{Account: account}
		if len(args) == 1 {
			p.Amount = args[0]
		}
		var res wallet.TxResult
		if done, err := call("wallet_airdrop", p, &res); done || err != nil {
			return err
		}
		printTx(&res)
		return nil
	},
}

var swapCmd = &cobra.Command{
	Use:   "swap <amount>",
	Short: "Swap SOL to USDC through Jupiter (mainnet only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res wallet.SwapResult
		if done, err := call("wallet_swap", rpc.AmountParams{Account: account, Amount: args[0]}, &res); done || err != nil {
			return err
		}
		printTx(&res.TxResult)
		fmt.Printf("Received:  %s USDC\n", formatUnits(res.OutAmount, 6))
		if res.PriceImpactPct != "" {
			fmt.Printf("Impact:    %s%%\n", res.PriceImpactPct)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded transactions for an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		var res rpc.WalletHistoryResult
		if done, err := call("wallet_history", rpc.WalletHistoryParams{Account: account, Limit: limit}, &res); done || err != nil {
			return err
		}
		if res.Count == 0 {
			fmt.Println("No transactions")
			return nil
		}
		table := newTable("Time", "Kind", "Status", "Amount", "To", "Signature")
		for _, tx := range res.Transactions {
			table.Append([]string{
				tx.CreatedAt.Local().Format("2006-01-02 15:04"),
				string(tx.Kind),
				string(tx.Status),
				formatUnits(tx.Amount, tx.Decimals),
				shorten(tx.To),
				shorten(tx.Signature),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	balanceCmd.Flags().Bool("external", false, "show the external wallet instead")
	sendCmd.Flags().String("mint", "", "SPL token mint address")
	sendCmd.Flags().String("token", "", "known token symbol, e.g. USDC")
	submitCmd.Flags().String("kind", string(storage.TxKindDeposit), "transaction kind to record")
	historyCmd.Flags().Int("limit", rpc.DefaultHistoryLimit, "maximum rows")
}

func printTx(tx *wallet.TxResult) {
	fmt.Printf("Signature: %s\n", tx.Signature)
	fmt.Printf("Kind:      %s\n", tx.Kind)
	fmt.Printf("From:      %s\n", tx.From)
	if tx.To != "" {
		fmt.Printf("To:        %s\n", tx.To)
	}
	unit := "SOL"
	if tx.Mint != "" {
		unit = tx.Mint
	}
	fmt.Printf("Amount:    %s %s\n", tx.UIAmount, unit)
	fmt.Printf("Explorer:  %s\n", tx.Explorer)
}

func formatUnits(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

func shorten(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + ".." + s[len(s)-4:]
}
