package syncer

import "encoding/binary"

// DecodeStaticPoolVault reads a static pool vault account's raw bytes:
// an 8-byte discriminator, the collected lamports total, and a closed
// flag byte, matching the layout the migrator's static pool instructions
// write on close.
func DecodeStaticPoolVault(data []byte) (collected uint64, closed bool) {
	const (
		offsetCollected = 8
		offsetClosed    = 16
	)
	if len(data) < offsetClosed+1 {
		return 0, false
	}
	collected = binary.LittleEndian.Uint64(data[offsetCollected : offsetCollected+8])
	closed = data[offsetClosed] != 0
	return collected, closed
}

// DecodeCurvePoolAccount reads a curve pool state account's raw bytes:
// an 8-byte discriminator followed by virtual token reserves, virtual
// sol reserves, and a completion flag, mirroring the field order
// internal/curve.State keeps in memory.
func DecodeCurvePoolAccount(data []byte) (virtualSol, virtualToken uint64, complete bool) {
	const (
		offsetVirtualToken = 8
		offsetVirtualSol   = 16
		offsetComplete     = 24
	)
	if len(data) < offsetComplete+1 {
		return 0, 0, false
	}
	virtualToken = binary.LittleEndian.Uint64(data[offsetVirtualToken : offsetVirtualToken+8])
	virtualSol = binary.LittleEndian.Uint64(data[offsetVirtualSol : offsetVirtualSol+8])
	complete = data[offsetComplete] != 0
	return virtualSol, virtualToken, complete
}
