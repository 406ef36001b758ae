package chain

import (
	"context"
	"encoding/json"
	"fmt"
)

// BundleSubmitter forwards one or many transactions to the chain with
// best-effort atomic landing, per spec §6. It reuses the generic JSON-RPC
// Client since sendTransaction/sendBundle/getBundleStatuses speak the same
// wire protocol as the Solana RPC node.
type BundleSubmitter struct {
	client *Client
}

// NewBundleSubmitter wraps an RPC Client as a bundle submitter.
func NewBundleSubmitter(client *Client) *BundleSubmitter {
	return &BundleSubmitter{client: client}
}

// SendOpts mirrors the options object accepted by sendTransaction/sendBundle.
type SendOpts struct {
	SkipPreflight       bool       `json:"skipPreflight,omitempty"`
	PreflightCommitment Commitment `json:"preflightCommitment,omitempty"`
	MaxRetries          int        `json:"maxRetries,omitempty"`
}

// SendTransaction submits a single base64-encoded signed transaction and
// returns its signature.
func (b *BundleSubmitter) SendTransaction(ctx context.Context, encodedTx string, opts SendOpts) (string, error) {
	result, err := b.client.Call(ctx, "sendTransaction", []interface{}{encodedTx, opts})
	if err != nil {
		return "", fmt.Errorf("bundle submitter: sendTransaction: %w", err)
	}
	var signature string
	if err := json.Unmarshal(result, &signature); err != nil {
		return "", fmt.Errorf("bundle submitter: unmarshal signature: %w", err)
	}
	return signature, nil
}

// SendBundle submits an ordered set of base64-encoded signed transactions
// and returns the bundle id used to poll GetBundleStatuses.
func (b *BundleSubmitter) SendBundle(ctx context.Context, encodedTxs []string, opts SendOpts) (string, error) {
	result, err := b.client.Call(ctx, "sendBundle", []interface{}{encodedTxs, opts})
	if err != nil {
		return "", fmt.Errorf("bundle submitter: sendBundle: %w", err)
	}
	var bundleID string
	if err := json.Unmarshal(result, &bundleID); err != nil {
		return "", fmt.Errorf("bundle submitter: unmarshal bundle id: %w", err)
	}
	return bundleID, nil
}

// BundleStatus is one entry of getBundleStatuses, errors surfaced as
// {Err: string} or {Ok: null} per spec §6.
type BundleStatus struct {
	BundleID          string     `json:"bundle_id"`
	ConfirmationStatus Commitment `json:"confirmation_status"`
	Err               *string    `json:"err"`
}

// GetBundleStatuses polls the outcome of previously submitted bundles.
func (b *BundleSubmitter) GetBundleStatuses(ctx context.Context, bundleIDs []string) ([]BundleStatus, error) {
	result, err := b.client.Call(ctx, "getBundleStatuses", []interface{}{bundleIDs})
	if err != nil {
		return nil, fmt.Errorf("bundle submitter: getBundleStatuses: %w", err)
	}
	var wrapper struct {
		Value []BundleStatus `json:"value"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return nil, fmt.Errorf("bundle submitter: unmarshal statuses: %w", err)
	}
	return wrapper.Value, nil
}
