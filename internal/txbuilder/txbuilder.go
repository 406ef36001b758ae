// Package txbuilder assembles unsigned chain transactions for the five
// user-facing operations and the authority migrations (spec §4.2). It is
// pure and stateless: given a project snapshot and a request it returns
// bytes, applying no side effects itself — callers persist whatever the
// operation requires before or after invoking the builder, per the
// ordering rule in spec §4.2's failure signals.
package txbuilder

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/chain"
	"github.com/moonzip/launchd/internal/fee"
)

// UnsignedTx is the wire value returned to clients: serialized transaction
// bytes plus the list of signers the platform has already partially
// applied, represented explicitly rather than relying on the client to
// inspect the wire format (spec §9 "Partial-sign co-authorship").
type UnsignedTx struct {
	Bytes            []byte
	PreSignedSigners []solana.PublicKey
}

// Base64 returns the transaction payload as the API's wire form.
func (t UnsignedTx) Base64() string {
	return base64.StdEncoding.EncodeToString(t.Bytes)
}

// Config holds the well-known accounts and program IDs the builder
// references on every instruction, set once at process startup from the
// environment profile.
type Config struct {
	ProgramID                solana.PublicKey
	TokenProgramID           solana.PublicKey
	AssociatedTokenProgramID solana.PublicKey
	SystemProgramID          solana.PublicKey
	FeeAccount               solana.PublicKey
	Authority                solana.PrivateKey
	FeeBPS                   fee.BasisPoints
}

// Builder assembles instructions and transactions against a fixed
// program configuration and a chain RPC client used only to fetch a
// recent blockhash — it never submits anything itself.
type Builder struct {
	cfg    Config
	client *chain.Client
}

// New creates a Builder.
func New(cfg Config, client *chain.Client) *Builder {
	return &Builder{cfg: cfg, client: client}
}

// ProgramID exposes the platform program id, used by callers deriving
// program-derived addresses outside the builder itself (e.g. pool PDAs
// for trade account resolution).
func (b *Builder) ProgramID() solana.PublicKey { return b.cfg.ProgramID }

// anchorDiscriminator reproduces Anchor's 8-byte instruction discriminator:
// the first 8 bytes of sha256("global:<method_name>"), so instruction data
// here matches byte-for-byte what an Anchor-generated client would send.
func anchorDiscriminator(method string) []byte {
	sum := sha256.Sum256([]byte("global:" + method))
	out := make([]byte, 8)
	copy(out, sum[:8])
	return out
}

func putUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// buildAndSign assembles a transaction from instructions against a fresh
// blockhash and partial-signs with every private key in signers whose
// public key the instructions reference.
func (b *Builder) buildAndSign(ctx context.Context, instructions []solana.Instruction, feePayer solana.PublicKey, signers []solana.PrivateKey) (UnsignedTx, error) {
	recent, err := b.client.GetLatestBlockhash(ctx, chain.CommitmentConfirmed)
	if err != nil {
		return UnsignedTx{}, apperrors.Transient("txbuilder: fetch recent blockhash", err)
	}
	hash, err := solana.HashFromBase58(recent.Blockhash)
	if err != nil {
		return UnsignedTx{}, apperrors.Fatal("txbuilder: decode blockhash", err)
	}

	tx, err := solana.NewTransaction(instructions, hash, solana.TransactionPayer(feePayer))
	if err != nil {
		return UnsignedTx{}, apperrors.Fatal("txbuilder: assemble transaction", err)
	}

	keyset := make(map[solana.PublicKey]solana.PrivateKey, len(signers))
	for _, pk := range signers {
		keyset[pk.PublicKey()] = pk
	}

	var preSigned []solana.PublicKey
	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if pk, ok := keyset[key]; ok {
			preSigned = append(preSigned, key)
			return &pk
		}
		return nil
	})
	if err != nil {
		return UnsignedTx{}, apperrors.Fatal("txbuilder: partial sign", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return UnsignedTx{}, apperrors.Fatal("txbuilder: marshal transaction", err)
	}

	return UnsignedTx{Bytes: raw, PreSignedSigners: preSigned}, nil
}
