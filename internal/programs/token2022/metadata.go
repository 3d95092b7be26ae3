package token2022

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Field selects which metadata field UpdateField changes.
type Field uint8

const (
	FieldName Field = iota
	FieldSymbol
	FieldURI
	// FieldKey is an additional key/value entry; Key must be set.
	FieldKey
)

var (
	initializeDiscriminator  = interfaceDiscriminator("spl_token_metadata_interface:initialize_account")
	updateFieldDiscriminator = interfaceDiscriminator("spl_token_metadata_interface:updating_field")
)

func interfaceDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte(name))
	return sum[:8]
}

// Metadata is the token-metadata interface record stored in a mint's TLV data.
type Metadata struct {
	UpdateAuthority    solana.PublicKey
	Mint               solana.PublicKey
	Name               string
	Symbol             string
	URI                string
	AdditionalMetadata []KeyValue
}

// KeyValue is one additional metadata entry.
type KeyValue struct {
	Key   string
	Value string
}

// PackedLen is the borsh-encoded size of the metadata. Rent for a new mint
// must cover this plus the TLV header before the metadata is written.
func (m *Metadata) PackedLen() int {
	n := 32 + 32 + 4 + len(m.Name) + 4 + len(m.Symbol) + 4 + len(m.URI) + 4
	for _, kv := range m.AdditionalMetadata {
		n += 4 + len(kv.Key) + 4 + len(kv.Value)
	}
	return n
}

// MintAccountSpace is the final account size once the metadata is written.
func (m *Metadata) MintAccountSpace() uint64 {
	return uint64(MintSizeWithMetadataPointer + tlvTypeSize + tlvLengthSize + m.PackedLen())
}

// Get returns an additional metadata value.
func (m *Metadata) Get(key string) (string, bool) {
	for _, kv := range m.AdditionalMetadata {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

func writeString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func readString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return "", err
	}
	if int(n) > dec.Remaining() {
		return "", fmt.Errorf("string length %d exceeds remaining %d bytes", n, dec.Remaining())
	}
	b, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NewInitializeMetadata writes name, symbol and uri into the metadata account
// (the mint itself when the pointer targets it).
func NewInitializeMetadata(metadata, updateAuthority, mint, mintAuthority solana.PublicKey, name, symbol, uri string) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(initializeDiscriminator)

	enc := bin.NewBorshEncoder(buf)
	for _, s := range []string{name, symbol, uri} {
		if err := writeString(enc, s); err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(metadata).WRITE(),
		solana.Meta(updateAuthority),
		solana.Meta(mint),
		solana.Meta(mintAuthority).SIGNER(),
	}, buf.Bytes()), nil
}

// NewUpdateMetadataField sets a metadata field. For FieldKey the key names
// the additional entry and is created if missing.
func NewUpdateMetadataField(metadata, updateAuthority solana.PublicKey, field Field, key, value string) (solana.Instruction, error) {
	if field > FieldKey {
		return nil, fmt.Errorf("unknown metadata field %d", field)
	}
	if field == FieldKey && key == "" {
		return nil, fmt.Errorf("additional metadata key is empty")
	}

	buf := new(bytes.Buffer)
	buf.Write(updateFieldDiscriminator)

	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(uint8(field)); err != nil {
		return nil, err
	}
	if field == FieldKey {
		if err := writeString(enc, key); err != nil {
			return nil, err
		}
	}
	if err := writeString(enc, value); err != nil {
		return nil, err
	}

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(metadata).WRITE(),
		solana.Meta(updateAuthority).SIGNER(),
	}, buf.Bytes()), nil
}

// DecodeMetadata parses a borsh-encoded metadata record.
func DecodeMetadata(data []byte) (*Metadata, error) {
	dec := bin.NewBorshDecoder(data)
	m := &Metadata{}

	ua, err := dec.ReadNBytes(32)
	if err != nil {
		return nil, fmt.Errorf("update authority: %w", err)
	}
	copy(m.UpdateAuthority[:], ua)

	mint, err := dec.ReadNBytes(32)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	copy(m.Mint[:], mint)

	if m.Name, err = readString(dec); err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	if m.Symbol, err = readString(dec); err != nil {
		return nil, fmt.Errorf("symbol: %w", err)
	}
	if m.URI, err = readString(dec); err != nil {
		return nil, fmt.Errorf("uri: %w", err)
	}

	count, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("additional metadata: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		k, err := readString(dec)
		if err != nil {
			return nil, fmt.Errorf("additional key %d: %w", i, err)
		}
		v, err := readString(dec)
		if err != nil {
			return nil, fmt.Errorf("additional value %d: %w", i, err)
		}
		m.AdditionalMetadata = append(m.AdditionalMetadata, KeyValue{Key: k, Value: v})
	}

	return m, nil
}

// MintInfo is a decoded Token-2022 mint with its metadata extensions.
type MintInfo struct {
	Address         solana.PublicKey
	Supply          uint64
	Decimals        uint8
	MintAuthority   *solana.PublicKey
	FreezeAuthority *solana.PublicKey
	MetadataPointer *solana.PublicKey
	Metadata        *Metadata
}

// ParseMint decodes raw mint account data including TLV extensions.
func ParseMint(address solana.PublicKey, data []byte) (*MintInfo, error) {
	if len(data) < MintBaseSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidMint, len(data))
	}

	var base token.Mint
	if err := base.UnmarshalWithDecoder(bin.NewBinDecoder(data[:MintBaseSize])); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if !base.IsInitialized {
		return nil, fmt.Errorf("%w: not initialized", ErrInvalidMint)
	}

	info := &MintInfo{
		Address:         address,
		Supply:          base.Supply,
		Decimals:        base.Decimals,
		MintAuthority:   base.MintAuthority,
		FreezeAuthority: base.FreezeAuthority,
	}

	if len(data) <= AccountBaseSize {
		return info, nil
	}
	if data[AccountBaseSize] != accountTypeMint {
		return nil, fmt.Errorf("%w: account type %d", ErrInvalidMint, data[AccountBaseSize])
	}

	tlv := data[AccountBaseSize+accountTypeSize:]
	for len(tlv) >= tlvTypeSize+tlvLengthSize {
		typ := binary.LittleEndian.Uint16(tlv[0:2])
		length := int(binary.LittleEndian.Uint16(tlv[2:4]))
		if typ == 0 {
			break
		}
		body := tlv[tlvTypeSize+tlvLengthSize:]
		if length > len(body) {
			return nil, fmt.Errorf("%w: extension %d truncated", ErrInvalidMint, typ)
		}
		body = body[:length]

		switch typ {
		case ExtensionMetadataPointer:
			if length == metadataPointerSize {
				addr := solana.PublicKeyFromBytes(body[32:64])
				if !addr.IsZero() {
					info.MetadataPointer = &addr
				}
			}
		case ExtensionTokenMetadata:
			md, err := DecodeMetadata(body)
			if err != nil {
				return nil, fmt.Errorf("%w: metadata: %v", ErrInvalidMint, err)
			}
			info.Metadata = md
		}

		tlv = tlv[tlvTypeSize+tlvLengthSize+length:]
	}

	return info, nil
}

// ParseTokenMetadata returns the token-metadata extension of a mint, or nil
// when the mint carries none.
func ParseTokenMetadata(data []byte) (*Metadata, error) {
	info, err := ParseMint(solana.PublicKey{}, data)
	if err != nil {
		return nil, err
	}
	return info.Metadata, nil
}
