package wallet

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/Klingon-tech/klingsol/internal/programs/token2022"
)

// BuildSOLTransfer builds an unsigned system transfer paid by from.
func BuildSOLTransfer(from, to solana.PublicKey, lamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	ix := system.NewTransferInstruction(lamports, from, to).Build()

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(from))
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer: %w", err)
	}
	return tx, nil
}

// BuildTokenTransfer builds an unsigned Token-2022 TransferChecked between the
// associated token accounts of owner and recipient. The recipient's account
// is created first if missing, paid by owner.
func BuildTokenTransfer(owner, recipient, mint solana.PublicKey, amount uint64, decimals uint8, blockhash solana.Hash) (*solana.Transaction, error) {
	if err := token2022.RequireOnCurve(recipient); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}

	source, err := token2022.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	dest, err := token2022.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, err
	}

	createIx, err := token2022.NewCreateAssociatedTokenAccountIdempotent(owner, recipient, mint)
	if err != nil {
		return nil, err
	}
	transferIx := token2022.NewTransferChecked(source, mint, dest, owner, amount, decimals)

	tx, err := solana.NewTransaction([]solana.Instruction{createIx, transferIx}, blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to build token transfer: %w", err)
	}
	return tx, nil
}

// SignTransaction fills the signature slots of the given keys. Slots of
// signers not in keys are left zero, so a transaction can be partly signed.
func SignTransaction(tx *solana.Transaction, keys ...solana.PrivateKey) error {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Message.AccountKeys) < required {
		return fmt.Errorf("message has %d keys but requires %d signatures", len(tx.Message.AccountKeys), required)
	}
	if len(tx.Signatures) != required {
		sigs := make([]solana.Signature, required)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}

	for i := 0; i < required; i++ {
		signer := tx.Message.AccountKeys[i]
		for _, key := range keys {
			if !key.PublicKey().Equals(signer) {
				continue
			}
			sig, err := key.Sign(msg)
			if err != nil {
				return fmt.Errorf("failed to sign for %s: %w", signer, err)
			}
			tx.Signatures[i] = sig
		}
	}

	return nil
}

// FullySigned returns true if no signature slot is empty.
func FullySigned(tx *solana.Transaction) bool {
	if len(tx.Signatures) != int(tx.Message.Header.NumRequiredSignatures) {
		return false
	}
	for _, sig := range tx.Signatures {
		if sig.IsZero() {
			return false
		}
	}
	return true
}

// EncodeTransaction serializes tx to wire bytes and base64.
func EncodeTransaction(tx *solana.Transaction) ([]byte, string, error) {
	if len(tx.Signatures) == 0 {
		tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return raw, base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeTransaction parses a base64 wire transaction, legacy or versioned.
func DecodeTransaction(b64 string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return tx, nil
}

// systemTransfer returns the source, destination and amount of the first
// system transfer in tx. ok is false if there is none.
func systemTransfer(tx *solana.Transaction) (from, to solana.PublicKey, lamports uint64, ok bool) {
	keys := tx.Message.AccountKeys
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) || !keys[ix.ProgramIDIndex].Equals(solana.SystemProgramID) {
			continue
		}
		data := []byte(ix.Data)
		if len(data) != 12 || binary.LittleEndian.Uint32(data[:4]) != system.Instruction_Transfer {
			continue
		}
		if len(ix.Accounts) < 2 || int(ix.Accounts[0]) >= len(keys) || int(ix.Accounts[1]) >= len(keys) {
			continue
		}
		return keys[ix.Accounts[0]], keys[ix.Accounts[1]], binary.LittleEndian.Uint64(data[4:]), true
	}
	return solana.PublicKey{}, solana.PublicKey{}, 0, false
}
