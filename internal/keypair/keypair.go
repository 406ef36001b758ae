// Package keypair implements the Keypair Pool: a pre-generated set of
// reserved signing identities consumed atomically when a project needs one
// for its curve pool or dev-lock escrow (spec §4.1).
package keypair

import (
	"github.com/gagliardetto/solana-go"
)

// Keypair is a 32-byte public key paired with its 64-byte private key,
// matching the domain's pubkey/keypair byte-length invariants (spec §6).
type Keypair struct {
	PublicKey  solana.PublicKey
	PrivateKey solana.PrivateKey
}

// Generate produces a fresh ed25519 keypair. The design notes (spec §9)
// explicitly prefer unguessable, pool-drawn addresses over deterministic
// per-project derivation, so Generate is only ever called by the
// provisioning job that refills the pool — never inline on the request path.
func Generate() (Keypair, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{PublicKey: priv.PublicKey(), PrivateKey: priv}, nil
}
