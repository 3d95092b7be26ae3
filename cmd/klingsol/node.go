package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingsol/internal/rpc"
	"github.com/Klingon-tech/klingsol/internal/storage"
	"github.com/Klingon-tech/klingsol/internal/wallet"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wallet status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var st wallet.Status
		if done, err := call("wallet_status", nil, &st); done || err != nil {
			return err
		}
		fmt.Printf("Daemon:    %s\n", client().Endpoint())
		fmt.Printf("Network:   %s\n", st.Network)
		fmt.Printf("Wallet:    %s\n", yesNo(st.HasWallet, "present", "none"))
		fmt.Printf("Unlocked:  %v\n", st.Unlocked)
		fmt.Printf("Accounts:  %d\n", st.Accounts)
		fmt.Printf("Connected: %v\n", st.Connected)
		if st.ExternalAddress != "" {
			fmt.Printf("External:  %s (signer: %v)\n", st.ExternalAddress, st.ExternalSigner)
		}
		return nil
	},
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Show daemon and cluster information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var info rpc.NodeInfoResult
		if done, err := call("node_info", nil, &info); done || err != nil {
			return err
		}
		var st rpc.NodeStatusResult
		if err := client().Call("node_status", nil, &st); err != nil {
			return fmt.Errorf("node_status: %w", err)
		}

		fmt.Printf("Daemon:    klingsold %s (up %s)\n", info.Version, st.Uptime)
		fmt.Printf("Cluster:   %s\n", info.Cluster)
		fmt.Printf("RPC:       %s\n", info.RPCURL)
		if info.Connected {
			fmt.Printf("Node:      solana-core %s, slot %d\n", info.NodeVersion, info.Slot)
		} else {
			fmt.Printf("Node:      unreachable (%s)\n", info.Error)
		}
		fmt.Printf("WS:        %d clients\n", st.WSClients)
		fmt.Printf("Pending:   %d\n", st.Transactions[storage.TxStatusPending])
		fmt.Printf("Confirmed: %d\n", st.Transactions[storage.TxStatusConfirmed])
		fmt.Printf("Failed:    %d\n", st.Transactions[storage.TxStatusFailed])
		return nil
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Create a Token-2022 mint with on-chain metadata",
	Long:  "Create a Token-2022 mint with on-chain metadata. Omitted fields take the daemon's configured token defaults.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		p := rpc.WalletMintParams{Account: account}
		p.Name, _ = f.GetString("name")
		p.Symbol, _ = f.GetString("symbol")
		p.URI, _ = f.GetString("uri")
		p.Description, _ = f.GetString("description")
		p.Amount, _ = f.GetUint64("amount")
		if f.Changed("decimals") {
			d, _ := f.GetUint8("decimals")
			p.Decimals = &d
		}

		var res wallet.MintResult
		if done, err := call("wallet_mint", p, &res); done || err != nil {
			return err
		}
		fmt.Printf("Mint:      %s\n", res.Mint)
		fmt.Printf("Token:     %s (%s)\n", res.Name, res.Symbol)
		fmt.Printf("Supply:    %s\n", formatUnits(res.Supply, res.Decimals))
		fmt.Printf("Holder:    %s\n", res.TokenAccount)
		fmt.Printf("Explorer:  %s\n", res.Explorer)
		return nil
	},
}

var mintedCmd = &cobra.Command{
	Use:   "minted",
	Short: "List tokens minted by an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var tokens []*storage.MintedToken
		if done, err := call("wallet_minted", rpc.AccountParams{Account: account}, &tokens); done || err != nil {
			return err
		}
		if len(tokens) == 0 {
			fmt.Println("No minted tokens")
			return nil
		}
		table := newTable("Symbol", "Name", "Decimals", "Supply", "Mint")
		for _, t := range tokens {
			table.Append([]string{
				t.Symbol,
				t.Name,
				strconv.Itoa(int(t.Decimals)),
				formatUnits(t.Supply, t.Decimals),
				t.Mint,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	f := mintCmd.Flags()
	f.String("name", "", "token name")
	f.String("symbol", "", "token symbol")
	f.String("uri", "", "metadata URI")
	f.String("description", "", "token description")
	f.Uint8("decimals", 0, "decimal places")
	f.Uint64("amount", 0, "initial supply in whole tokens")
}

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}
