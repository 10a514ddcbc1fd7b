package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/brojonat/solboard/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"
)

// Defaults for HistoryOptions.
const (
	DefaultSignatureLimit  = 10
	MaxSignatureLimit      = 1000
	DefaultBatchSize       = 25
	DefaultInterBatchDelay = 100 * time.Millisecond
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetAccountInfo(
		ctx context.Context,
		address solana.PublicKey,
	) (*rpc.GetAccountInfoResult, error)

	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// HistoryOptions tunes a history fetch. Zero values select the defaults;
// a negative InterBatchDelay disables pacing. An empty Policy uses the
// client's classifier.
type HistoryOptions struct {
	SignatureLimit  int
	BatchSize       int
	InterBatchDelay time.Duration
	Policy          Policy
}

// DefaultHistoryOptions returns the shallow deployment defaults.
func DefaultHistoryOptions() HistoryOptions {
	return HistoryOptions{
		SignatureLimit:  DefaultSignatureLimit,
		BatchSize:       DefaultBatchSize,
		InterBatchDelay: DefaultInterBatchDelay,
	}
}

func (o HistoryOptions) withDefaults() HistoryOptions {
	if o.SignatureLimit <= 0 {
		o.SignatureLimit = DefaultSignatureLimit
	}
	if o.SignatureLimit > MaxSignatureLimit {
		o.SignatureLimit = MaxSignatureLimit
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	switch {
	case o.InterBatchDelay == 0:
		o.InterBatchDelay = DefaultInterBatchDelay
	case o.InterBatchDelay < 0:
		o.InterBatchDelay = 0
	}
	return o
}

// Client fetches and classifies wallet history.
// It wraps the RPC client with domain-specific operations.
type Client struct {
	rpc        RPCClient
	classifier Classifier
	cluster    string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	endpoint   string // RPC endpoint identifier for metrics (e.g., "mainnet", rpc host)
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:        rpcClient,
		classifier: StructuralClassifier{},
		cluster:    ClusterMainnet,
		logger:     logger,
		metrics:    m,
		endpoint:   endpoint,
		sleep:      sleepContext,
	}
}

// WithClassifier sets the classification policy used for every record.
func (c *Client) WithClassifier(classifier Classifier) *Client {
	c.classifier = classifier
	return c
}

// WithCluster sets the cluster used when building explorer links.
func (c *Client) WithCluster(cluster string) *Client {
	c.cluster = cluster
	return c
}

// Classifier returns the active classifier.
func (c *Client) Classifier() Classifier {
	return c.classifier
}

// FetchWalletHistory validates address, reads its balance and returns its
// most recent transactions, newest first.
//
// Transaction bodies are fetched in rounds of opts.BatchSize concurrent
// requests with opts.InterBatchDelay between rounds. A body that fails to
// fetch is dropped; a failing balance or signature lookup aborts the fetch.
func (c *Client) FetchWalletHistory(ctx context.Context, address string, opts HistoryOptions) (*WalletSnapshot, error) {
	start := time.Now()
	snapshot, err := c.fetchWalletHistory(ctx, address, opts.withDefaults())

	status := "success"
	switch {
	case errors.Is(err, ErrInvalidAddress):
		status = "invalid_address"
	case errors.Is(err, ErrUpstreamUnavailable):
		status = "upstream_unavailable"
	case err != nil:
		status = "cancelled"
	}
	if c.metrics != nil {
		c.metrics.RecordHistoryFetch(status, time.Since(start).Seconds())
	}
	return snapshot, err
}

func (c *Client) fetchWalletHistory(ctx context.Context, address string, opts HistoryOptions) (*WalletSnapshot, error) {
	wallet, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		c.logger.DebugContext(ctx, "rejected wallet address", "address", address, "error", err)
		return nil, invalidAddress(err)
	}

	lamports, err := c.getBalance(ctx, wallet)
	if err != nil {
		return nil, upstreamUnavailable("get_balance", err)
	}

	signatures, err := c.getSignatures(ctx, wallet, opts.SignatureLimit)
	if err != nil {
		return nil, upstreamUnavailable("get_signatures", err)
	}

	snapshot := &WalletSnapshot{
		Address:      wallet.String(),
		Lamports:     lamports,
		Balance:      LamportsToSOL(int64(lamports)),
		Transactions: []TransactionRecord{},
		Requested:    len(signatures),
		FetchedAt:    time.Now().UTC(),
	}
	if len(signatures) == 0 {
		c.logger.DebugContext(ctx, "wallet has no transaction history", "wallet", wallet.String())
		return snapshot, nil
	}

	classifier := c.classifier
	if opts.Policy != "" {
		classifier = ClassifierForPolicy(opts.Policy)
	}

	records := make([]TransactionRecord, 0, len(signatures))
	for start := 0; start < len(signatures); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(signatures))

		batch, err := c.fetchBatch(ctx, signatures[start:end], classifier)
		if err != nil {
			return nil, err
		}
		for _, rec := range batch {
			if rec != nil {
				records = append(records, *rec)
			}
		}

		if end < len(signatures) && opts.InterBatchDelay > 0 {
			if err := c.sleep(ctx, opts.InterBatchDelay); err != nil {
				return nil, err
			}
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].BlockTime > records[j].BlockTime
	})

	snapshot.Transactions = records
	snapshot.Dropped = len(signatures) - len(records)

	c.logger.InfoContext(ctx, "fetched wallet history",
		"wallet", wallet.String(),
		"balance", snapshot.Balance.String(),
		"signatures", len(signatures),
		"transactions", len(records),
		"dropped", snapshot.Dropped,
	)
	if c.metrics != nil {
		c.metrics.RecordTransactionsFetched(c.endpoint, len(records))
	}

	return snapshot, nil
}

func (c *Client) getBalance(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetAccountInfo(ctx, wallet)
	c.recordRPC("GetAccountInfo", start, err, rpc.ErrNotFound)

	if errors.Is(err, rpc.ErrNotFound) {
		// Unfunded accounts do not exist on chain; that is a zero balance.
		return 0, nil
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get account info", "wallet", wallet.String(), "error", err)
		return 0, err
	}
	if out == nil || out.Value == nil {
		return 0, nil
	}
	return out.Value.Lamports, nil
}

func (c *Client) getSignatures(ctx context.Context, wallet solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	}

	c.logger.DebugContext(ctx, "calling GetSignaturesForAddress",
		"wallet", wallet.String(),
		"limit", limit,
	)

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, wallet, opts)
	c.recordRPC("GetSignaturesForAddress", start, err, nil)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures", "wallet", wallet.String(), "error", err)
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(signatures)))
	}
	return signatures, nil
}

// fetchBatch fetches one round of transaction bodies concurrently and waits
// for all of them. Slot i of the result corresponds to sigs[i]; a nil slot
// is a dropped transaction. Only context cancellation fails the round.
func (c *Client) fetchBatch(ctx context.Context, sigs []*rpc.TransactionSignature, classifier Classifier) ([]*TransactionRecord, error) {
	start := time.Now()
	out := make([]*TransactionRecord, len(sigs))

	var g errgroup.Group
	for i, sig := range sigs {
		g.Go(func() error {
			body, err := c.getTransaction(ctx, sig.Signature)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				c.logger.WarnContext(ctx, "dropping transaction",
					"signature", sig.Signature.String(),
					"error", err,
				)
				if c.metrics != nil {
					c.metrics.RecordTransactionDropped(c.endpoint)
				}
				return nil
			}
			rec := buildRecord(sig, body, classifier, c.cluster)
			out[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordBatch(c.endpoint, len(sigs), time.Since(start).Seconds())
	}
	return out, nil
}

func (c *Client) getTransaction(ctx context.Context, sig solana.Signature) (*TransactionBody, error) {
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}
	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig, opts)
	c.recordRPC("GetTransaction", start, err, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransactionFetch, err)
	}

	body, err := bodyFromResult(result)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransactionFetch, err)
	}
	return body, nil
}

// recordRPC records one RPC call. An error matching benign counts as success.
func (c *Client) recordRPC(method string, start time.Time, err error, benign error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil && (benign == nil || !errors.Is(err, benign)) {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
