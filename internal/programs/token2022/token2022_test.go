package token2022

import (
	"bytes"
	"encoding/binary"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

func TestMintSizeWithMetadataPointer(t *testing.T) {
	if MintSizeWithMetadataPointer != 234 {
		t.Errorf("MintSizeWithMetadataPointer = %d, want 234", MintSizeWithMetadataPointer)
	}
}

func TestFindAssociatedTokenAddressDeterministic(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	a, err := FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		t.Fatalf("FindAssociatedTokenAddress() error = %v", err)
	}
	b, err := FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		t.Fatalf("FindAssociatedTokenAddress() error = %v", err)
	}
	if !a.Equals(b) {
		t.Errorf("addresses differ: %s vs %s", a, b)
	}
	if IsOnCurve(a) {
		t.Errorf("associated token address %s should be off curve", a)
	}
	if !IsOnCurve(owner) {
		t.Errorf("wallet address %s should be on curve", owner)
	}
}

func TestRequireOnCurve(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	if err := RequireOnCurve(owner); err != nil {
		t.Errorf("RequireOnCurve(wallet) error = %v", err)
	}

	ata, _ := FindAssociatedTokenAddress(owner, solana.NewWallet().PublicKey())
	if err := RequireOnCurve(ata); err == nil {
		t.Error("RequireOnCurve(pda) expected error")
	}
}

func TestInstructionData(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	auth := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()

	t.Run("MintTo", func(t *testing.T) {
		ix := NewMintTo(mint, dest, auth, 100_000_000_000)
		data, err := ix.Data()
		if err != nil {
			t.Fatalf("Data() error = %v", err)
		}
		if len(data) != 9 || data[0] != 7 {
			t.Fatalf("unexpected data %v", data)
		}
		if got := binary.LittleEndian.Uint64(data[1:]); got != 100_000_000_000 {
			t.Errorf("amount = %d", got)
		}
		if !ix.ProgramID().Equals(ProgramID) {
			t.Errorf("program = %s", ix.ProgramID())
		}
		accts := ix.Accounts()
		if len(accts) != 3 || !accts[2].IsSigner {
			t.Errorf("authority should be the only signer")
		}
	})

	t.Run("TransferChecked", func(t *testing.T) {
		ix := NewTransferChecked(dest, mint, auth, auth, 42, 6)
		data, _ := ix.Data()
		if len(data) != 10 || data[0] != 12 || data[9] != 6 {
			t.Fatalf("unexpected data %v", data)
		}
		if got := binary.LittleEndian.Uint64(data[1:9]); got != 42 {
			t.Errorf("amount = %d", got)
		}
	})

	t.Run("InitializeMint2", func(t *testing.T) {
		ix := NewInitializeMint2(mint, 9, auth, nil)
		data, _ := ix.Data()
		if len(data) != 35 || data[0] != 20 || data[1] != 9 || data[34] != 0 {
			t.Fatalf("unexpected data %v", data)
		}
		if !bytes.Equal(data[2:34], auth[:]) {
			t.Errorf("mint authority mismatch")
		}

		freeze := solana.NewWallet().PublicKey()
		ix = NewInitializeMint2(mint, 9, auth, &freeze)
		data, _ = ix.Data()
		if len(data) != 67 || data[34] != 1 || !bytes.Equal(data[35:], freeze[:]) {
			t.Errorf("freeze authority not encoded")
		}
	})

	t.Run("InitializeMetadataPointer", func(t *testing.T) {
		ix := NewInitializeMetadataPointer(mint, auth, mint)
		data, _ := ix.Data()
		if len(data) != 66 || data[0] != 39 || data[1] != 0 {
			t.Fatalf("unexpected data %v", data)
		}
		if !bytes.Equal(data[34:], mint[:]) {
			t.Errorf("metadata address mismatch")
		}
	})

	t.Run("CreateIdempotent", func(t *testing.T) {
		ix, err := NewCreateAssociatedTokenAccountIdempotent(auth, dest, mint)
		if err != nil {
			t.Fatalf("NewCreateAssociatedTokenAccountIdempotent() error = %v", err)
		}
		data, _ := ix.Data()
		if !bytes.Equal(data, []byte{1}) {
			t.Errorf("data = %v, want [1]", data)
		}
		if len(ix.Accounts()) != 6 {
			t.Errorf("accounts = %d, want 6", len(ix.Accounts()))
		}
	})
}

func TestMetadataInstructions(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	auth := solana.NewWallet().PublicKey()

	ix, err := NewInitializeMetadata(mint, auth, mint, auth, "OPOS", "OPOS", "https://example.com/m.json")
	if err != nil {
		t.Fatalf("NewInitializeMetadata() error = %v", err)
	}
	data, _ := ix.Data()
	if !bytes.Equal(data[:8], initializeDiscriminator) {
		t.Errorf("discriminator mismatch")
	}
	if got := binary.LittleEndian.Uint32(data[8:12]); got != 4 {
		t.Errorf("name length = %d, want 4", got)
	}

	ix, err = NewUpdateMetadataField(mint, auth, FieldKey, "description", "Only Possible On Solana")
	if err != nil {
		t.Fatalf("NewUpdateMetadataField() error = %v", err)
	}
	data, _ = ix.Data()
	if !bytes.Equal(data[:8], updateFieldDiscriminator) || data[8] != byte(FieldKey) {
		t.Errorf("unexpected header %v", data[:9])
	}

	if _, err := NewUpdateMetadataField(mint, auth, FieldKey, "", "x"); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := NewUpdateMetadataField(mint, auth, Field(9), "", "x"); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestMetadataPackedLen(t *testing.T) {
	m := &Metadata{
		Name:   "OPOS",
		Symbol: "OPOS",
		URI:    "https://example.com",
		AdditionalMetadata: []KeyValue{
			{Key: "description", Value: "Only Possible On Solana"},
		},
	}

	encoded, err := encodeMetadata(m)
	if err != nil {
		t.Fatalf("encodeMetadata() error = %v", err)
	}
	if len(encoded) != m.PackedLen() {
		t.Errorf("PackedLen() = %d, encoded = %d", m.PackedLen(), len(encoded))
	}
	if m.MintAccountSpace() != uint64(234+4+len(encoded)) {
		t.Errorf("MintAccountSpace() = %d", m.MintAccountSpace())
	}
}

// buildMintAccount lays out a Token-2022 mint with pointer and metadata extensions.
func buildMintAccount(t *testing.T, mint, auth solana.PublicKey, decimals uint8, supply uint64, md *Metadata) []byte {
	t.Helper()

	data := make([]byte, AccountBaseSize+1)
	binary.LittleEndian.PutUint32(data[0:4], 1)
	copy(data[4:36], auth[:])
	binary.LittleEndian.PutUint64(data[36:44], supply)
	data[44] = decimals
	data[45] = 1
	data[AccountBaseSize] = accountTypeMint

	ptr := make([]byte, 4+64)
	binary.LittleEndian.PutUint16(ptr[0:2], ExtensionMetadataPointer)
	binary.LittleEndian.PutUint16(ptr[2:4], 64)
	copy(ptr[4:36], auth[:])
	copy(ptr[36:68], mint[:])
	data = append(data, ptr...)

	encoded, err := encodeMetadata(md)
	if err != nil {
		t.Fatalf("encodeMetadata() error = %v", err)
	}
	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint16(hdr[0:2], ExtensionTokenMetadata)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(encoded)))
	data = append(data, hdr...)
	return append(data, encoded...)
}

func TestParseMint(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	auth := solana.NewWallet().PublicKey()
	md := &Metadata{
		UpdateAuthority:    auth,
		Mint:               mint,
		Name:               "OPOS",
		Symbol:             "OPOS",
		URI:                "https://example.com/m.json",
		AdditionalMetadata: []KeyValue{{Key: "description", Value: "Only Possible On Solana"}},
	}

	raw := buildMintAccount(t, mint, auth, 9, 100_000_000_000, md)
	if uint64(len(raw)) != md.MintAccountSpace() {
		t.Fatalf("layout size = %d, want %d", len(raw), md.MintAccountSpace())
	}

	info, err := ParseMint(mint, raw)
	if err != nil {
		t.Fatalf("ParseMint() error = %v", err)
	}
	if info.Decimals != 9 || info.Supply != 100_000_000_000 {
		t.Errorf("decimals/supply = %d/%d", info.Decimals, info.Supply)
	}
	if info.MintAuthority == nil || !info.MintAuthority.Equals(auth) {
		t.Errorf("mint authority = %v", info.MintAuthority)
	}
	if info.MetadataPointer == nil || !info.MetadataPointer.Equals(mint) {
		t.Errorf("metadata pointer = %v", info.MetadataPointer)
	}
	if info.Metadata == nil || info.Metadata.Name != "OPOS" || info.Metadata.URI != md.URI {
		t.Fatalf("metadata = %+v", info.Metadata)
	}
	if v, ok := info.Metadata.Get("description"); !ok || v != "Only Possible On Solana" {
		t.Errorf("description = %q, %v", v, ok)
	}
}

func TestParseMintErrors(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	if _, err := ParseMint(mint, make([]byte, 10)); err == nil {
		t.Error("expected error for short data")
	}
	if _, err := ParseMint(mint, make([]byte, MintBaseSize)); err == nil {
		t.Error("expected error for uninitialized mint")
	}
}

func TestParseTokenMetadata(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	auth := solana.NewWallet().PublicKey()
	md := &Metadata{UpdateAuthority: auth, Mint: mint, Name: "Test", Symbol: "TST", URI: "u"}
	raw := buildMintAccount(t, mint, auth, 6, 1, md)

	got, err := ParseTokenMetadata(raw)
	if err != nil {
		t.Fatalf("ParseTokenMetadata() error = %v", err)
	}
	if got.Symbol != "TST" || len(got.AdditionalMetadata) != 0 {
		t.Errorf("ParseTokenMetadata() = %+v", got)
	}
}

// encodeMetadata borsh-encodes m the way the program stores it.
func encodeMetadata(m *Metadata) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	buf.Write(m.UpdateAuthority[:])
	buf.Write(m.Mint[:])
	for _, s := range []string{m.Name, m.Symbol, m.URI} {
		if err := writeString(enc, s); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteUint32(uint32(len(m.AdditionalMetadata)), binary.LittleEndian); err != nil {
		return nil, err
	}
	for _, kv := range m.AdditionalMetadata {
		if err := writeString(enc, kv.Key); err != nil {
			return nil, err
		}
		if err := writeString(enc, kv.Value); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
