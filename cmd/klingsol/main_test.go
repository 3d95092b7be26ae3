package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		amount   uint64
		decimals uint8
		want     string
	}{
		{1_500_000_000, 9, "1.5"},
		{1, 9, "0.000000001"},
		{0, 6, "0"},
		{100_000_000, 6, "100"},
		{42, 0, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatUnits(tt.amount, tt.decimals); got != tt.want {
				t.Errorf("formatUnits(%d, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("short"); got != "short" {
		t.Errorf("shorten(short) = %s", got)
	}
	if got := shorten("5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnb"); got != "5VERv8..BRnb" {
		t.Errorf("shorten() = %s, want 5VERv8..BRnb", got)
	}
}

func TestParseIndex(t *testing.T) {
	if n, err := parseIndex("3"); err != nil || n != 3 {
		t.Errorf("parseIndex(3) = %d, %v", n, err)
	}
	for _, bad := range []string{"-1", "x", ""} {
		if _, err := parseIndex(bad); err == nil {
			t.Errorf("parseIndex(%q) expected error", bad)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{
		"status", "node", "generate", "create", "import", "derive", "unlock", "lock",
		"accounts", "show", "export", "import-records", "balance", "balances", "tokens", "send", "withdraw",
		"deposit", "submit", "airdrop", "mint", "minted", "swap", "history",
	}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestCall(t *testing.T) {
	var method string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		method, _ = req["method"].(string)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"mnemonic":"abandon about"},"id":1}`))
	}))
	defer ts.Close()

	oldURL := rpcURL
	rpcURL = ts.URL
	defer func() { rpcURL = oldURL }()

	var res struct {
		Mnemonic string `json:"mnemonic"`
	}
	done, err := call("wallet_generate", nil, &res)
	if err != nil {
		t.Fatalf("call() error = %v", err)
	}
	if done {
		t.Error("done = true without --json")
	}
	if method != "wallet_generate" {
		t.Errorf("method = %s, want wallet_generate", method)
	}
	if res.Mnemonic != "abandon about" {
		t.Errorf("Mnemonic = %s", res.Mnemonic)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, json.RawMessage(`{"a":1}`)); err != nil {
		t.Fatalf("printJSON() error = %v", err)
	}
	if buf.String() != "{\n  \"a\": 1\n}\n" {
		t.Errorf("printJSON() = %q", buf.String())
	}
}
