// Package token2022 builds instructions for the SPL Token-2022 program, the
// associated token account program and the token-metadata interface, and
// parses Token-2022 mint accounts.
package token2022

import (
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
)

// Program IDs.
var (
	ProgramID                = solana.MustPublicKeyFromBase58("TokenzQdBNbQqX3P7jKzJgNB3o6B1gx1NVNxoDkw3pB")
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// Token instruction discriminators (first data byte).
const (
	instructionMintTo                   uint8 = 7
	instructionTransferChecked          uint8 = 12
	instructionInitializeMint2          uint8 = 20
	instructionMetadataPointerExtension uint8 = 39

	metadataPointerInitialize uint8 = 0

	// associated token account program
	ataCreateIdempotent uint8 = 1
)

// Account layout sizes.
const (
	// MintBaseSize is the size of a classic SPL mint.
	MintBaseSize = 82
	// AccountBaseSize is the size of a classic SPL token account; extended
	// mints are padded to it so the account type byte lands at the same offset.
	AccountBaseSize = 165
	accountTypeSize = 1

	tlvTypeSize   = 2
	tlvLengthSize = 2

	metadataPointerSize = 64

	// MintSizeWithMetadataPointer is a mint with only the MetadataPointer extension.
	MintSizeWithMetadataPointer = AccountBaseSize + accountTypeSize + tlvTypeSize + tlvLengthSize + metadataPointerSize
)

// Extension types found in mint TLV data.
const (
	ExtensionMetadataPointer uint16 = 18
	ExtensionTokenMetadata   uint16 = 19
)

const accountTypeMint = 1

var (
	ErrInvalidMint   = errors.New("invalid token-2022 mint data")
	ErrOwnerOffCurve = errors.New("owner is not a wallet address (off curve)")
)

// FindAssociatedTokenAddress derives the Token-2022 associated token account for owner and mint.
func FindAssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{owner[:], ProgramID[:], mint[:]},
		AssociatedTokenProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token address: %w", err)
	}
	return addr, nil
}

// IsOnCurve reports whether key is a valid ed25519 point, i.e. a wallet
// address rather than a program derived address.
func IsOnCurve(key solana.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}

// RequireOnCurve returns ErrOwnerOffCurve for program derived addresses.
func RequireOnCurve(owner solana.PublicKey) error {
	if !IsOnCurve(owner) {
		return fmt.Errorf("%w: %s", ErrOwnerOffCurve, owner)
	}
	return nil
}

// NewCreateAssociatedTokenAccountIdempotent creates owner's ATA for mint if it does not exist.
func NewCreateAssociatedTokenAccountIdempotent(payer, owner, mint solana.PublicKey) (solana.Instruction, error) {
	ata, err := FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
		solana.Meta(owner),
		solana.Meta(mint),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(ProgramID),
	}

	return solana.NewInstruction(AssociatedTokenProgramID, accounts, []byte{ataCreateIdempotent}), nil
}

// NewInitializeMetadataPointer points the mint's metadata at metadataAddress.
// Must run before InitializeMint2.
func NewInitializeMetadataPointer(mint, authority, metadataAddress solana.PublicKey) solana.Instruction {
	data := make([]byte, 0, 2+64)
	data = append(data, instructionMetadataPointerExtension, metadataPointerInitialize)
	data = append(data, authority[:]...)
	data = append(data, metadataAddress[:]...)

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(mint).WRITE(),
	}, data)
}

// NewInitializeMint2 initializes a mint. freezeAuthority may be nil.
func NewInitializeMint2(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) solana.Instruction {
	data := make([]byte, 0, 2+32+1+32)
	data = append(data, instructionInitializeMint2, decimals)
	data = append(data, mintAuthority[:]...)
	if freezeAuthority != nil {
		data = append(data, 1)
		data = append(data, freezeAuthority[:]...)
	} else {
		data = append(data, 0)
	}

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(mint).WRITE(),
	}, data)
}

// NewMintTo mints amount base units to destination.
func NewMintTo(mint, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = instructionMintTo
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(mint).WRITE(),
		solana.Meta(destination).WRITE(),
		solana.Meta(authority).SIGNER(),
	}, data)
}

// NewTransferChecked moves amount base units between token accounts of mint.
func NewTransferChecked(source, mint, destination, owner solana.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	data := make([]byte, 10)
	data[0] = instructionTransferChecked
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = decimals

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(source).WRITE(),
		solana.Meta(mint),
		solana.Meta(destination).WRITE(),
		solana.Meta(owner).SIGNER(),
	}, data)
}
