// klingsol is a command-line client for a running klingsold daemon.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Klingon-tech/klingsol/internal/rpcclient"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

// Global flags.
var (
	rpcURL     string
	rpcTimeout time.Duration
	jsonOutput bool
	account    int
)

var rootCmd = &cobra.Command{
	Use:           "klingsol",
	Short:         "Command-line client for the klingsol wallet daemon",
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rpcURL, "rpc", envOr("KLINGSOL_RPC", rpcclient.DefaultEndpoint), "klingsold API endpoint")
	flags.DurationVar(&rpcTimeout, "timeout", 3*time.Minute, "request timeout")
	flags.BoolVar(&jsonOutput, "json", false, "print raw JSON results")
	flags.IntVarP(&account, "account", "a", 0, "account position in the wallet")

	rootCmd.AddCommand(
		statusCmd, nodeCmd,
		generateCmd, createCmd, importCmd, deriveCmd, unlockCmd, lockCmd,
		accountsCmd, showCmd, exportCmd, importRecordsCmd,
		balanceCmd, balancesCmd, tokensCmd, sendCmd, withdrawCmd, depositCmd, submitCmd, airdropCmd,
		mintCmd, mintedCmd, swapCmd, historyCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func client() *rpcclient.Client {
	return rpcclient.NewWithTimeout(rpcURL, rpcTimeout)
}

// call invokes method and decodes into result. With --json the raw result
// is printed and done is true so the caller can skip formatting.
func call(method string, params, result interface{}) (done bool, err error) {
	var raw json.RawMessage
	if err := client().Call(method, params, &raw); err != nil {
		return false, fmt.Errorf("%s: %w", method, err)
	}
	if jsonOutput {
		return true, printJSON(os.Stdout, raw)
	}
	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return false, fmt.Errorf("decode %s: %w", method, err)
		}
	}
	return false, nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

// password returns --password, then KLINGSOL_PASSWORD, then prompts.
func password(cmd *cobra.Command, prompt string) (string, error) {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p, nil
	}
	if p := os.Getenv("KLINGSOL_PASSWORD"); p != "" {
		return p, nil
	}
	b, err := readPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// newPassword prompts twice when reading interactively.
func newPassword(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p, nil
	}
	if p := os.Getenv("KLINGSOL_PASSWORD"); p != "" {
		return p, nil
	}
	first, err := readPassword("New password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	second, err := readPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func addPasswordFlag(cmd *cobra.Command) {
	cmd.Flags().String("password", "", "wallet password (prompted when omitted)")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid account position %q", s)
	}
	return n, nil
}
