package chain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Commitment mirrors Solana's commitment levels.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// Blockhash is the response shape of getLatestBlockhash.
type Blockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// GetSlot returns the current slot observed by the RPC node.
func (c *Client) GetSlot(ctx context.Context, commitment Commitment) (uint64, error) {
	result, err := c.Call(ctx, "getSlot", []interface{}{map[string]string{"commitment": string(commitment)}})
	if err != nil {
		return 0, err
	}
	var slot uint64
	if err := json.Unmarshal(result, &slot); err != nil {
		return 0, fmt.Errorf("chain: unmarshal slot: %w", err)
	}
	return slot, nil
}

// GetLatestBlockhash fetches a fresh recent_blockhash for transaction assembly.
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment Commitment) (Blockhash, error) {
	result, err := c.Call(ctx, "getLatestBlockhash", []interface{}{map[string]string{"commitment": string(commitment)}})
	if err != nil {
		return Blockhash{}, err
	}
	var wrapper struct {
		Value Blockhash `json:"value"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return Blockhash{}, fmt.Errorf("chain: unmarshal blockhash: %w", err)
	}
	return wrapper.Value, nil
}

// AccountInfo is the decoded shape of getAccountInfo, base64-encoded data.
type AccountInfo struct {
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
	Data     []string `json:"data"`
	Exists   bool     `json:"-"`
}

// GetAccountInfo fetches an account's on-chain state. Exists is false and no
// error is returned when the account has not been created yet — the caller
// (chain syncer, migration Precheck) treats that as "not yet observed"
// rather than a transient failure.
func (c *Client) GetAccountInfo(ctx context.Context, base58Address string, commitment Commitment) (AccountInfo, error) {
	result, err := c.Call(ctx, "getAccountInfo", []interface{}{
		base58Address,
		map[string]string{"commitment": string(commitment), "encoding": "base64"},
	})
	if err != nil {
		return AccountInfo{}, err
	}

	var wrapper struct {
		Value *AccountInfo `json:"value"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return AccountInfo{}, fmt.Errorf("chain: unmarshal account info: %w", err)
	}
	if wrapper.Value == nil {
		return AccountInfo{Exists: false}, nil
	}
	info := *wrapper.Value
	info.Exists = true
	return info, nil
}

// GetSignatureStatus reports the commitment level reached by a submitted
// transaction signature, used to resolve ambiguous confirmations (spec S6).
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (Commitment, error) {
	result, err := c.Call(ctx, "getSignatureStatuses", []interface{}{
		[]string{signature},
		map[string]bool{"searchTransactionHistory": true},
	})
	if err != nil {
		return "", err
	}

	var wrapper struct {
		Value []*struct {
			ConfirmationStatus string `json:"confirmationStatus"`
			Err                interface{} `json:"err"`
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return "", fmt.Errorf("chain: unmarshal signature status: %w", err)
	}
	if len(wrapper.Value) == 0 || wrapper.Value[0] == nil {
		return "", nil
	}
	if wrapper.Value[0].Err != nil {
		return "", fmt.Errorf("chain: transaction failed on-chain: %v", wrapper.Value[0].Err)
	}
	return Commitment(wrapper.Value[0].ConfirmationStatus), nil
}
