package wallet

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/Klingon-tech/klingsol/internal/programs/token2022"
)

// Test mnemonic (DO NOT USE FOR REAL FUNDS)
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

const testPassword = "Str0ng!Passw0rd"

func TestMain(m *testing.M) {
	// Keep the keystore tests fast.
	defaultKDF = KDFParams{Time: 1, Memory: 8 * 1024, Parallelism: 1}
	os.Exit(m.Run())
}

func TestGenerateMnemonic(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error = %v", err)
	}

	words := strings.Fields(mnemonic)
	if len(words) != 12 {
		t.Errorf("expected 12 words, got %d", len(words))
	}
	if !ValidateMnemonic(mnemonic) {
		t.Error("generated mnemonic should be valid")
	}

	long, err := GenerateMnemonicWords(24)
	if err != nil {
		t.Fatalf("GenerateMnemonicWords(24) error = %v", err)
	}
	if n := len(strings.Fields(long)); n != 24 {
		t.Errorf("expected 24 words, got %d", n)
	}

	if _, err := GenerateMnemonicWords(13); err == nil {
		t.Error("GenerateMnemonicWords(13) expected error")
	}
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		mnemonic string
		valid    bool
	}{
		{testMnemonic, true},
		{"  " + strings.ReplaceAll(testMnemonic, " ", "   ") + "\n", true},
		{strings.ToUpper(testMnemonic), true},
		{"invalid mnemonic words", false},
		{"", false},
		{"abandon", false}, // Too short
	}

	for _, tc := range tests {
		result := ValidateMnemonic(tc.mnemonic)
		if result != tc.valid {
			t.Errorf("ValidateMnemonic(%q) = %v, want %v", tc.mnemonic, result, tc.valid)
		}
	}
}

func TestNewFromMnemonicInvalid(t *testing.T) {
	_, err := NewFromMnemonic("invalid mnemonic", "")
	if err == nil {
		t.Error("expected error for invalid mnemonic")
	}
}

func TestDeterministicDerivation(t *testing.T) {
	for _, index := range []uint32{0, 1, 7, 1 << 20} {
		a, err := DeriveKeypair(testMnemonic, "", index)
		if err != nil {
			t.Fatalf("DeriveKeypair(%d) error = %v", index, err)
		}
		b, err := DeriveKeypair(testMnemonic, "", index)
		if err != nil {
			t.Fatalf("DeriveKeypair(%d) error = %v", index, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("index %d: derivation is not deterministic", index)
		}
		if len(a) != 64 {
			t.Errorf("index %d: key length = %d, want 64", index, len(a))
		}
	}
}

// Addresses for the test mnemonic at m/44'/501'/i'/0', as produced by
// Phantom and the Solana CLI.
func TestDerivationKnownVectors(t *testing.T) {
	tests := []struct {
		index uint32
		want  string
	}{
		{0, "HAgk14JpMQLgt6rVgv7cBQFJWFto5Dqxi472uT3DKpqk"},
		{1, "Hh8QwFUA6MtVu1qAoq12ucvFHNwCcVTV7hpWjeY1Hztb"},
	}

	for _, tt := range tests {
		key, err := DeriveKeypair(testMnemonic, "", tt.index)
		if err != nil {
			t.Fatalf("DeriveKeypair(%d) error = %v", tt.index, err)
		}
		if got := key.PublicKey().String(); got != tt.want {
			t.Errorf("index %d: address = %s, want %s", tt.index, got, tt.want)
		}
	}
}

func TestDeriveDistinctIndices(t *testing.T) {
	w, err := NewFromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("NewFromMnemonic() error = %v", err)
	}
	defer w.Close()

	seen := make(map[solana.PublicKey]uint32)
	for i := uint32(0); i < 5; i++ {
		key, err := w.DeriveKeypair(i)
		if err != nil {
			t.Fatalf("DeriveKeypair(%d) error = %v", i, err)
		}
		pub := key.PublicKey()
		if prev, ok := seen[pub]; ok {
			t.Fatalf("index %d and %d derived the same key", prev, i)
		}
		seen[pub] = i
	}

	withPass, err := DeriveKeypair(testMnemonic, "extra", 0)
	if err != nil {
		t.Fatalf("DeriveKeypair() error = %v", err)
	}
	if _, dup := seen[withPass.PublicKey()]; dup {
		t.Error("passphrase should change the derived key")
	}
}

func TestDeriveInvalidIndex(t *testing.T) {
	if _, err := DeriveKeypair(testMnemonic, "", 1<<31); err == nil {
		t.Error("expected error for non-hardenable index")
	}
}

func TestWalletCache(t *testing.T) {
	w, _ := NewFromMnemonic(testMnemonic, "")

	first, _ := w.DeriveKeypair(0)
	// Mutating the returned key must not corrupt the cache.
	SecureClear(first)

	second, err := w.DeriveKeypair(0)
	if err != nil {
		t.Fatalf("DeriveKeypair() error = %v", err)
	}
	want, _ := DeriveKeypair(testMnemonic, "", 0)
	if !bytes.Equal(second, want) {
		t.Error("cached key was corrupted by caller")
	}

	w.ClearCache()
	w.Close()
	if _, err := w.DeriveKeypair(0); err == nil {
		t.Error("expected error after Close")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	var records []Record
	for i := uint32(0); i < 3; i++ {
		rec, err := NewRecord(testMnemonic, "", i)
		if err != nil {
			t.Fatalf("NewRecord(%d) error = %v", i, err)
		}
		records = append(records, *rec)
	}
	other, _ := GenerateMnemonic()
	rec, err := NewRecord(other, "", 0)
	if err != nil {
		t.Fatalf("NewRecord() error = %v", err)
	}
	records = append(records, *rec)

	data, err := MarshalRecords(records)
	if err != nil {
		t.Fatalf("MarshalRecords() error = %v", err)
	}

	got, err := UnmarshalRecords(data)
	if err != nil {
		t.Fatalf("UnmarshalRecords() error = %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i].PublicKey != records[i].PublicKey ||
			got[i].PrivateKey != records[i].PrivateKey ||
			got[i].Mnemonic != records[i].Mnemonic {
			t.Errorf("record %d did not round-trip", i)
		}
	}

	key, err := got[1].Keypair()
	if err != nil {
		t.Fatalf("Keypair() error = %v", err)
	}
	want, _ := DeriveKeypair(testMnemonic, "", 1)
	if !bytes.Equal(key, want) {
		t.Error("decoded private key does not match derivation")
	}
}

func TestRecordJSONFieldNames(t *testing.T) {
	rec, _ := NewRecord(testMnemonic, "", 0)
	data, _ := json.Marshal(rec)

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"publicKey", "privateKey", "mnemonic", "index", "derivationPath"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing JSON field %q", key)
		}
	}
	if m["derivationPath"] != "m/44'/501'/0'/0'" {
		t.Errorf("derivationPath = %v", m["derivationPath"])
	}
}

func TestUnmarshalRecordsRejects(t *testing.T) {
	a, _ := NewRecord(testMnemonic, "", 0)
	b, _ := NewRecord(testMnemonic, "", 1)

	mismatched := *a
	mismatched.PublicKey = b.PublicKey

	tests := []struct {
		name    string
		records []Record
	}{
		{"mismatched key", []Record{mismatched}},
		{"duplicate", []Record{*a, *a}},
		{"bad private key", []Record{{PublicKey: a.PublicKey, PrivateKey: "xyz"}}},
		{"no public key", []Record{{PrivateKey: a.PrivateKey}}},
		{"bad mnemonic", []Record{{PublicKey: a.PublicKey, PrivateKey: a.PrivateKey, Mnemonic: "not words"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _ := json.Marshal(tt.records)
			if _, err := UnmarshalRecords(data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExportImportRecords(t *testing.T) {
	rec, _ := NewRecord(testMnemonic, "", 0)
	records := []Record{*rec}

	data, err := ExportRecords(records)
	if err != nil {
		t.Fatalf("ExportRecords() error = %v", err)
	}
	if !strings.Contains(string(data), `"wallets"`) {
		t.Error("export should use the wallets key")
	}

	got, err := ImportRecords(data)
	if err != nil {
		t.Fatalf("ImportRecords() error = %v", err)
	}
	if len(got) != 1 || got[0].PrivateKey != rec.PrivateKey {
		t.Errorf("ImportRecords() = %+v", got)
	}

	bare, _ := MarshalRecords(records)
	if _, err := ImportRecords(bare); err != nil {
		t.Errorf("ImportRecords(bare array) error = %v", err)
	}
	if _, err := ImportRecords([]byte(`{"other": []}`)); err == nil {
		t.Error("expected error without wallets key")
	}
}

func TestRecordPublic(t *testing.T) {
	rec, _ := NewRecord(testMnemonic, "", 0)
	pub := rec.Public()
	if pub.PrivateKey != "" || pub.Mnemonic != "" {
		t.Error("Public() should strip secrets")
	}
	if rec.PrivateKey == "" {
		t.Error("Public() should not modify the original")
	}
}

func TestKeystoreSaveLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "klingsol-keystore-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	ks := NewKeystore(tmpDir)
	if ks.Exists() {
		t.Fatal("keystore should not exist yet")
	}

	rec, _ := NewRecord(testMnemonic, "", 0)
	if err := ks.Save([]Record{*rec}, testPassword); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !ks.Exists() {
		t.Fatal("keystore should exist after Save")
	}

	info, err := os.Stat(filepath.Join(tmpDir, KeystoreFileName))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("keystore permissions = %o, want 0600", info.Mode().Perm())
	}

	raw, _ := os.ReadFile(ks.Path())
	if strings.Contains(string(raw), "abandon") || strings.Contains(string(raw), rec.PrivateKey) {
		t.Error("keystore contains plaintext secrets")
	}

	got, err := ks.Load(testPassword)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || got[0].PublicKey != rec.PublicKey {
		t.Errorf("Load() = %+v", got)
	}

	if _, err := ks.Load("Wr0ng!Password"); err == nil {
		t.Error("Load() with wrong password should fail")
	}
}

func TestSealOpen(t *testing.T) {
	blob, err := Seal([]byte("secret"), testPassword)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if blob.Version != blobVersion {
		t.Errorf("Version = %d", blob.Version)
	}

	plain, err := Open(blob, testPassword)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(plain) != "secret" {
		t.Errorf("Open() = %q", plain)
	}

	if _, err := Open(blob, "other"); err == nil {
		t.Error("Open() with wrong password should fail")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{testPassword, true},
		{"short1!", false},
		{"alllowercase", false},
		{"NoDigitsOrSymbols", false},
		{"Passw0rdOK", true},
		{strings.Repeat("Ab1!", 65), false},
	}

	for _, tc := range tests {
		err := ValidatePassword(tc.password)
		if (err == nil) != tc.valid {
			t.Errorf("ValidatePassword(%q) error = %v, want valid %v", tc.password, err, tc.valid)
		}
	}
}

func TestSecureClear(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	SecureClear(data)
	for i, b := range data {
		if b != 0 {
			t.Errorf("byte %d not cleared", i)
		}
	}
}

func TestParseKeypair(t *testing.T) {
	key, _ := DeriveKeypair(testMnemonic, "", 0)

	cli, err := MarshalKeypair(key)
	if err != nil {
		t.Fatalf("MarshalKeypair() error = %v", err)
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"cli json", cli, false},
		{"base58", []byte(key.String()), false},
		{"quoted base58", []byte(`"` + key.String() + `"` + "\n"), false},
		{"short array", []byte("[1,2,3]"), true},
		{"out of range", []byte("[" + strings.Repeat("300,", 63) + "300]"), true},
		{"garbage", []byte("not a key"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeypair(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKeypair() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, key) {
				t.Error("parsed key mismatch")
			}
		})
	}

	tampered := make(solana.PrivateKey, len(key))
	copy(tampered, key)
	tampered[63] ^= 1
	data, _ := MarshalKeypair(tampered)
	if _, err := ParseKeypair(data); err == nil {
		t.Error("expected error for mismatched public half")
	}
}

func TestLoadKeypairFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "klingsol-keypair-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	key, _ := DeriveKeypair(testMnemonic, "", 3)
	data, _ := MarshalKeypair(key)
	path := filepath.Join(tmpDir, "id.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := LoadKeypairFile(path)
	if err != nil {
		t.Fatalf("LoadKeypairFile() error = %v", err)
	}
	if !got.PublicKey().Equals(key.PublicKey()) {
		t.Error("loaded key mismatch")
	}

	if _, err := LoadKeypairFile(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateTransfer(t *testing.T) {
	tests := []struct {
		name      string
		amount    uint64
		available uint64
		wantErr   error
	}{
		{"zero", 0, 100, ErrInvalidAmount},
		{"exact", 100, 100, nil},
		{"below", 1, 100, nil},
		{"above", 101, 100, ErrInsufficientFunds},
		{"empty balance", 1, 0, ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransfer(tt.amount, tt.available)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTransfer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckTransfer(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		decimals  uint8
		available uint64
		want      uint64
		wantErr   error
	}{
		{"one and a half SOL", "1.5", 9, 2_000_000_000, 1_500_000_000, nil},
		{"whole tokens", "100", 6, 100_000_000, 100_000_000, nil},
		{"zero", "0", 9, 10, 0, ErrInvalidAmount},
		{"zero decimal", "0.000", 9, 10, 0, ErrInvalidAmount},
		{"negative", "-1", 9, 10, 0, ErrInvalidAmount},
		{"malformed", "abc", 9, 10, 0, ErrInvalidAmount},
		{"too precise", "0.0000000001", 9, 10, 0, ErrInvalidAmount},
		{"too much", "2.000000001", 9, 2_000_000_000, 0, ErrInsufficientFunds},
		{"spaces", " 1 ", 0, 1, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckTransfer(tt.amount, tt.decimals, tt.available)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckTransfer() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CheckTransfer() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseSOL(t *testing.T) {
	got, err := ParseSOL("0.25")
	if err != nil {
		t.Fatalf("ParseSOL() error = %v", err)
	}
	if got != 250_000_000 {
		t.Errorf("ParseSOL(0.25) = %d", got)
	}
	if _, err := ParseTransferAmount("-3", 6); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("ParseTransferAmount(-3) error = %v", err)
	}
}

func TestBuildSOLTransfer(t *testing.T) {
	key, _ := DeriveKeypair(testMnemonic, "", 0)
	from := key.PublicKey()
	to := solana.NewWallet().PublicKey()

	tx, err := BuildSOLTransfer(from, to, 1_000, solana.Hash{1})
	if err != nil {
		t.Fatalf("BuildSOLTransfer() error = %v", err)
	}
	if !tx.Message.AccountKeys[0].Equals(from) {
		t.Error("payer should be the first account")
	}
	src, dst, lamports, ok := systemTransfer(tx)
	if !ok || !src.Equals(from) || !dst.Equals(to) || lamports != 1_000 {
		t.Errorf("systemTransfer() = %s, %s, %d, %v", src, dst, lamports, ok)
	}

	if FullySigned(tx) {
		t.Error("unsigned transaction reported as signed")
	}
	if err := SignTransaction(tx, key); err != nil {
		t.Fatalf("SignTransaction() error = %v", err)
	}
	if !FullySigned(tx) {
		t.Error("transaction should be fully signed")
	}
	if err := tx.VerifySignatures(); err != nil {
		t.Errorf("VerifySignatures() error = %v", err)
	}

	_, b64, err := EncodeTransaction(tx)
	if err != nil {
		t.Fatalf("EncodeTransaction() error = %v", err)
	}
	decoded, err := DecodeTransaction(b64)
	if err != nil {
		t.Fatalf("DecodeTransaction() error = %v", err)
	}
	if decoded.Signatures[0] != tx.Signatures[0] {
		t.Error("signature lost in encoding")
	}
}

func TestPartialSignature(t *testing.T) {
	payer := solana.NewWallet().PrivateKey
	mint := solana.NewWallet().PrivateKey

	req := DefaultMintRequest()
	tx, err := BuildCreateMintTransaction(payer.PublicKey(), mint.PublicKey(), req, 5_000_000, solana.Hash{2})
	if err != nil {
		t.Fatalf("BuildCreateMintTransaction() error = %v", err)
	}
	if tx.Message.Header.NumRequiredSignatures != 2 {
		t.Fatalf("required signatures = %d, want 2", tx.Message.Header.NumRequiredSignatures)
	}

	if err := SignTransaction(tx, payer); err != nil {
		t.Fatalf("SignTransaction() error = %v", err)
	}
	if FullySigned(tx) {
		t.Error("mint keypair has not signed yet")
	}
	if err := SignTransaction(tx, mint); err != nil {
		t.Fatalf("SignTransaction() error = %v", err)
	}
	if !FullySigned(tx) {
		t.Error("transaction should be fully signed")
	}
	if len(tx.Signatures) != 2 {
		t.Errorf("signatures = %d, want 2", len(tx.Signatures))
	}
}

func TestBuildTokenTransfer(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	tx, err := BuildTokenTransfer(owner, recipient, mint, 5, 6, solana.Hash{3})
	if err != nil {
		t.Fatalf("BuildTokenTransfer() error = %v", err)
	}
	if len(tx.Message.Instructions) != 2 {
		t.Fatalf("instructions = %d, want 2", len(tx.Message.Instructions))
	}

	prog := tx.Message.AccountKeys[tx.Message.Instructions[1].ProgramIDIndex]
	if !prog.Equals(token2022.ProgramID) {
		t.Errorf("transfer program = %s", prog)
	}
	data := []byte(tx.Message.Instructions[1].Data)
	if data[0] != 12 || data[9] != 6 {
		t.Errorf("unexpected TransferChecked data %v", data)
	}

	ata, _ := token2022.FindAssociatedTokenAddress(owner, mint)
	if _, err := BuildTokenTransfer(owner, ata, mint, 5, 6, solana.Hash{3}); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("BuildTokenTransfer(off-curve) error = %v, want ErrInvalidRecipient", err)
	}
}

func TestMintRequest(t *testing.T) {
	req := MintRequest{Name: "Klingon"}.WithDefaults(DefaultMintRequest())
	if req.Name != "Klingon" || req.Symbol != DefaultTokenSymbol || *req.Decimals != DefaultTokenDecimals {
		t.Errorf("WithDefaults() = %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	supply, err := req.Supply()
	if err != nil {
		t.Fatalf("Supply() error = %v", err)
	}
	if supply != 100_000_000_000 {
		t.Errorf("Supply() = %d, want 100000000000", supply)
	}

	zero := uint8(0)
	tests := []struct {
		name string
		req  MintRequest
	}{
		{"long name", MintRequest{Name: strings.Repeat("n", 33), Symbol: "S", Decimals: &zero, Amount: 1}},
		{"no symbol", MintRequest{Name: "N", Decimals: &zero, Amount: 1}},
		{"no decimals", MintRequest{Name: "N", Symbol: "S", Amount: 1}},
		{"no amount", MintRequest{Name: "N", Symbol: "S", Decimals: &zero}},
		{"overflow", MintRequest{Name: "N", Symbol: "S", Decimals: req.Decimals, Amount: 1 << 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, ErrInvalidMintRequest) {
				t.Errorf("Validate() error = %v, want ErrInvalidMintRequest", err)
			}
		})
	}
}

func TestBuildCreateMintTransaction(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	req := DefaultMintRequest()

	tx, err := BuildCreateMintTransaction(payer, mint, req, 4_000_000, solana.Hash{4})
	if err != nil {
		t.Fatalf("BuildCreateMintTransaction() error = %v", err)
	}
	// create account, metadata pointer, mint, metadata, description
	if len(tx.Message.Instructions) != 5 {
		t.Fatalf("instructions = %d, want 5", len(tx.Message.Instructions))
	}

	create := tx.Message.Instructions[0]
	prog := tx.Message.AccountKeys[create.ProgramIDIndex]
	if !prog.Equals(solana.SystemProgramID) {
		t.Fatalf("first instruction program = %s", prog)
	}
	inst, err := system.DecodeInstruction(nil, create.Data)
	if err != nil {
		t.Fatalf("DecodeInstruction() error = %v", err)
	}
	ca, ok := inst.Impl.(*system.CreateAccount)
	if !ok {
		t.Fatalf("first instruction is %T", inst.Impl)
	}
	if *ca.Space != token2022.MintSizeWithMetadataPointer || *ca.Lamports != 4_000_000 {
		t.Errorf("space/lamports = %d/%d", *ca.Space, *ca.Lamports)
	}
	if !ca.Owner.Equals(token2022.ProgramID) {
		t.Errorf("owner = %s", ca.Owner)
	}

	noDesc := req
	noDesc.Description = ""
	tx, _ = BuildCreateMintTransaction(payer, mint, noDesc, 4_000_000, solana.Hash{4})
	if len(tx.Message.Instructions) != 4 {
		t.Errorf("instructions without description = %d, want 4", len(tx.Message.Instructions))
	}
}

func TestBuildMintToTransaction(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	tx, ata, err := BuildMintToTransaction(owner, mint, 42, solana.Hash{5})
	if err != nil {
		t.Fatalf("BuildMintToTransaction() error = %v", err)
	}
	want, _ := token2022.FindAssociatedTokenAddress(owner, mint)
	if !ata.Equals(want) {
		t.Errorf("ata = %s, want %s", ata, want)
	}
	if tx.Message.Header.NumRequiredSignatures != 1 {
		t.Errorf("required signatures = %d, want 1", tx.Message.Header.NumRequiredSignatures)
	}
}
