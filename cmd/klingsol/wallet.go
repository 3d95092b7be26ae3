package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingsol/internal/rpc"
	"github.com/Klingon-tech/klingsol/internal/wallet"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new 12-word mnemonic without storing it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var res rpc.WalletGenerateResult
		if done, err := call("wallet_generate", nil, &res); done || err != nil {
			return err
		}
		fmt.Println(res.Mnemonic)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a wallet from a fresh mnemonic",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := newPassword(cmd)
		if err != nil {
			return err
		}
		label, _ := cmd.Flags().GetString("label")

		var acct wallet.NewAccount
		done, err := call("wallet_create", rpc.WalletCreateParams{Password: pw, Label: label}, &acct)
		if done || err != nil {
			return err
		}
		printNewAccount(&acct)
		if acct.Mnemonic != "" {
			fmt.Println()
			fmt.Println("Write down your recovery phrase and keep it offline:")
			fmt.Println()
			fmt.Printf("  %s\n", acct.Mnemonic)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an account from a mnemonic",
	Long:  "Import an account from a mnemonic. The phrase is read from --mnemonic or stdin.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mnemonic, _ := cmd.Flags().GetString("mnemonic")
		if mnemonic == "" {
			fmt.Fprint(os.Stderr, "Mnemonic: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read mnemonic: %w", err)
			}
			mnemonic = strings.TrimSpace(line)
		}
		index, _ := cmd.Flags().GetUint32("index")
		label, _ := cmd.Flags().GetString("label")
		pw, err := newPassword(cmd)
		if err != nil {
			return err
		}

		var acct wallet.NewAccount
		done, err := call("wallet_import", rpc.WalletImportParams{
			Mnemonic: mnemonic,
			Index:    index,
			Password: pw,
			Label:    label,
		}, &acct)
		if done || err != nil {
			return err
		}
		printNewAccount(&acct)
		return nil
	},
}

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive the next account from an existing account's mnemonic",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		pw, err := password(cmd, "Password: ")
		if err != nil {
			return err
		}

		var acct wallet.NewAccount
		done, err := call("wallet_derive", rpc.WalletDeriveParams{From: account, Password: pw, Label: label}, &acct)
		if done || err != nil {
			return err
		}
		printNewAccount(&acct)
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock the daemon's wallet for signing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := password(cmd, "Password: ")
		if err != nil {
			return err
		}
		var res struct {
			Accounts int `json:"accounts"`
		}
		if done, err := call("wallet_unlock", rpc.WalletUnlockParams{Password: pw}, &res); done || err != nil {
			return err
		}
		fmt.Printf("Wallet unlocked (%d accounts)\n", res.Accounts)
		return nil
	},
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock the wallet and drop keys from memory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if done, err := call("wallet_lock", nil, nil); done || err != nil {
			return err
		}
		fmt.Println("Wallet locked")
		return nil
	},
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List wallet accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var res rpc.WalletAccountsResult
		if done, err := call("wallet_accounts", nil, &res); done || err != nil {
			return err
		}
		if res.Count == 0 {
			fmt.Println("No accounts. Run 'klingsol create' or 'klingsol import'.")
			return nil
		}
		table := newTable("#", "Address", "Path", "Label")
		for _, a := range res.Accounts {
			table.Append([]string{strconv.Itoa(a.Index), a.Address, a.DerivationPath, a.Label})
		}
		table.Render()
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [position]",
	Short: "Show one account",
	Long:  "Show one account. With --secrets the private key, keypair and mnemonic are printed after password confirmation.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos := account
		if len(args) == 1 {
			n, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			pos = n
		}
		p := rpc.WalletAccountParams{Account: pos}
		p.Secrets, _ = cmd.Flags().GetBool("secrets")
		if p.Secrets {
			pw, err := password(cmd, "Password: ")
			if err != nil {
				return err
			}
			p.Password = pw
		}

		var res rpc.WalletAccountResult
		if done, err := call("wallet_account", p, &res); done || err != nil {
			return err
		}
		fmt.Printf("Account:  %d\n", res.Index)
		fmt.Printf("Address:  %s\n", res.Address)
		fmt.Printf("Path:     %s\n", res.DerivationPath)
		if res.Label != "" {
			fmt.Printf("Label:    %s\n", res.Label)
		}
		fmt.Printf("Created:  %s\n", res.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Explorer: %s\n", res.Explorer)
		if p.Secrets {
			fmt.Println()
			fmt.Printf("Private key: %s\n", res.PrivateKey)
			fmt.Printf("Keypair:     %s\n", res.Keypair)
			if res.Mnemonic != "" {
				fmt.Printf("Mnemonic:    %s\n", res.Mnemonic)
			}
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export wallet records as JSON (includes secrets)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := password(cmd, "Password: ")
		if err != nil {
			return err
		}
		var raw json.RawMessage
		if err := client().Call("wallet_export", rpc.WalletExportParams{Password: pw}, &raw); err != nil {
			return fmt.Errorf("wallet_export: %w", err)
		}
		return printJSON(os.Stdout, raw)
	},
}

var importRecordsCmd = &cobra.Command{
	Use:   "import-records <file>",
	Short: "Import accounts from a wallet export file",
	Long:  "Import accounts from a file written by 'klingsol export'. Accounts already in the wallet are skipped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read records: %w", err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("%s is not a JSON document", args[0])
		}
		pw, err := password(cmd, "Password: ")
		if err != nil {
			return err
		}

		var res rpc.WalletImportRecordsResult
		done, err := call("wallet_importRecords", rpc.WalletImportRecordsParams{Records: data, Password: pw}, &res)
		if done || err != nil {
			return err
		}
		if res.Count == 0 {
			fmt.Println("No new accounts")
			return nil
		}
		table := newTable("#", "Address", "Path", "Label")
		for _, a := range res.Added {
			table.Append([]string{strconv.Itoa(a.Index), a.Address, a.DerivationPath, a.Label})
		}
		table.Render()
		return nil
	},
}

func init() {
	addPasswordFlag(createCmd)
	createCmd.Flags().String("label", "", "account label")

	addPasswordFlag(importCmd)
	importCmd.Flags().String("mnemonic", "", "recovery phrase")
	importCmd.Flags().Uint32("index", 0, "derivation index")
	importCmd.Flags().String("label", "", "account label")

	addPasswordFlag(deriveCmd)
	deriveCmd.Flags().String("label", "", "account label")

	addPasswordFlag(unlockCmd)
	addPasswordFlag(exportCmd)
	addPasswordFlag(importRecordsCmd)

	addPasswordFlag(showCmd)
	showCmd.Flags().Bool("secrets", false, "also print the private key and mnemonic")
}

func printNewAccount(acct *wallet.NewAccount) {
	fmt.Printf("Account: %d\n", acct.Index)
	fmt.Printf("Address: %s\n", acct.Address)
	fmt.Printf("Path:    %s\n", acct.DerivationPath)
}
