package wallet

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/Klingon-tech/klingsol/internal/programs/token2022"
	"github.com/Klingon-tech/klingsol/pkg/helpers"
)

// Defaults for MintRequest fields left empty.
const (
	DefaultTokenName        = "OPOS"
	DefaultTokenSymbol      = "OPOS"
	DefaultTokenURI         = "https://raw.githubusercontent.com/solana-developers/opos-asset/main/assets/DeveloperPortal/metadata.json"
	DefaultTokenDescription = "Only Possible On Solana"
	DefaultTokenDecimals    = 9
	DefaultTokenAmount      = 100
)

// DescriptionKey is the additional-metadata key holding the token description.
const DescriptionKey = "description"

// Token metadata limits enforced before building the mint transaction.
const (
	MaxTokenNameLen   = 32
	MaxTokenSymbolLen = 10
	MaxTokenURILen    = 200
)

var ErrInvalidMintRequest = errors.New("invalid mint request")

// MintRequest describes a new Token-2022 mint with on-chain metadata.
// Amount is the initial supply in whole tokens.
type MintRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	URI         string `json:"uri"`
	Description string `json:"description"`
	Decimals    *uint8 `json:"decimals,omitempty"`
	Amount      uint64 `json:"amount"`
}

// WithDefaults fills empty fields from defaults.
func (r MintRequest) WithDefaults(defaults MintRequest) MintRequest {
	if r.Name == "" {
		r.Name = defaults.Name
	}
	if r.Symbol == "" {
		r.Symbol = defaults.Symbol
	}
	if r.URI == "" {
		r.URI = defaults.URI
	}
	if r.Description == "" {
		r.Description = defaults.Description
	}
	if r.Decimals == nil {
		r.Decimals = defaults.Decimals
	}
	if r.Amount == 0 {
		r.Amount = defaults.Amount
	}
	return r
}

// DefaultMintRequest returns the stock OPOS token parameters.
func DefaultMintRequest() MintRequest {
	decimals := uint8(DefaultTokenDecimals)
	return MintRequest{
		Name:        DefaultTokenName,
		Symbol:      DefaultTokenSymbol,
		URI:         DefaultTokenURI,
		Description: DefaultTokenDescription,
		Decimals:    &decimals,
		Amount:      DefaultTokenAmount,
	}
}

// Validate checks field lengths and that the supply fits in base units.
func (r MintRequest) Validate() error {
	switch {
	case r.Name == "" || len(r.Name) > MaxTokenNameLen:
		return fmt.Errorf("%w: name must be 1-%d bytes", ErrInvalidMintRequest, MaxTokenNameLen)
	case r.Symbol == "" || len(r.Symbol) > MaxTokenSymbolLen:
		return fmt.Errorf("%w: symbol must be 1-%d bytes", ErrInvalidMintRequest, MaxTokenSymbolLen)
	case len(r.URI) > MaxTokenURILen:
		return fmt.Errorf("%w: uri longer than %d bytes", ErrInvalidMintRequest, MaxTokenURILen)
	case r.Decimals == nil:
		return fmt.Errorf("%w: decimals not set", ErrInvalidMintRequest)
	case *r.Decimals > 19:
		return fmt.Errorf("%w: decimals must be at most 19", ErrInvalidMintRequest)
	case r.Amount == 0:
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidMintRequest)
	}
	if _, err := r.Supply(); err != nil {
		return err
	}
	return nil
}

// Supply returns Amount scaled to base units.
func (r MintRequest) Supply() (uint64, error) {
	if r.Decimals == nil {
		return 0, fmt.Errorf("%w: decimals not set", ErrInvalidMintRequest)
	}
	scale, err := helpers.Pow10(*r.Decimals)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMintRequest, err)
	}
	hi, lo := bits.Mul64(r.Amount, scale)
	if hi != 0 {
		return 0, fmt.Errorf("%w: supply overflows", ErrInvalidMintRequest)
	}
	return lo, nil
}

// Metadata returns the token metadata the mint account will hold.
func (r MintRequest) Metadata(mint, authority solana.PublicKey) *token2022.Metadata {
	md := &token2022.Metadata{
		UpdateAuthority: authority,
		Mint:            mint,
		Name:            r.Name,
		Symbol:          r.Symbol,
		URI:             r.URI,
	}
	if r.Description != "" {
		md.AdditionalMetadata = []token2022.KeyValue{{Key: DescriptionKey, Value: r.Description}}
	}
	return md
}

// BuildCreateMintTransaction builds the first mint transaction: allocate the
// mint account, point its metadata at itself, initialize the mint and write
// the metadata. It must be signed by payer and the mint keypair.
//
// The account is allocated for the mint and pointer only; rentLamports must
// already cover the metadata extension, which the token program reallocates.
func BuildCreateMintTransaction(payer, mint solana.PublicKey, req MintRequest, rentLamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	instructions := []solana.Instruction{
		system.NewCreateAccountInstruction(
			rentLamports,
			token2022.MintSizeWithMetadataPointer,
			token2022.ProgramID,
			payer,
			mint,
		).Build(),
		token2022.NewInitializeMetadataPointer(mint, payer, mint),
		token2022.NewInitializeMint2(mint, *req.Decimals, payer, nil),
	}

	initMeta, err := token2022.NewInitializeMetadata(mint, payer, mint, payer, req.Name, req.Symbol, req.URI)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, initMeta)

	if req.Description != "" {
		update, err := token2022.NewUpdateMetadataField(mint, payer, token2022.FieldKey, DescriptionKey, req.Description)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, update)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to build mint transaction: %w", err)
	}
	return tx, nil
}

// BuildMintToTransaction builds the second mint transaction: create the
// owner's associated token account and mint supply base units into it.
func BuildMintToTransaction(owner, mint solana.PublicKey, supply uint64, blockhash solana.Hash) (*solana.Transaction, solana.PublicKey, error) {
	ata, err := token2022.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}

	createIx, err := token2022.NewCreateAssociatedTokenAccountIdempotent(owner, owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{createIx, token2022.NewMintTo(mint, ata, owner, supply)},
		blockhash,
		solana.TransactionPayer(owner),
	)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("failed to build mint-to transaction: %w", err)
	}
	return tx, ata, nil
}
