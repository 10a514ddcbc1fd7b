package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	lamports     uint64
	noAccount    bool
	accountErr   error
	signatures   []*rpc.TransactionSignature
	sigErr       error
	transactions map[string]*rpc.GetTransactionResult
	txErrs       map[string]error
	txDelay      time.Duration

	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
	sigLimit    int
}

func (m *mockRPCClient) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	if m.noAccount {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{Lamports: m.lamports}}, nil
}

func (m *mockRPCClient) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	m.mu.Lock()
	m.calls++
	if opts != nil && opts.Limit != nil {
		m.sigLimit = *opts.Limit
	}
	m.mu.Unlock()
	if m.sigErr != nil {
		return nil, m.sigErr
	}
	return m.signatures, nil
}

func (m *mockRPCClient) GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.txDelay > 0 {
		select {
		case <-time.After(m.txDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := m.txErrs[signature.String()]; err != nil {
		return nil, err
	}
	if m.transactions == nil {
		return &rpc.GetTransactionResult{}, nil
	}
	return m.transactions[signature.String()], nil
}

func (m *mockRPCClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(mock, "test", nil, logger)
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func testSig(i int) solana.Signature {
	var s solana.Signature
	s[0] = byte(i)
	s[1] = byte(i >> 8)
	s[63] = 1
	return s
}

func testKey(i byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = i
	k[31] = 7
	return k
}

func blockTime(t int64) *solana.UnixTimeSeconds {
	bt := solana.UnixTimeSeconds(t)
	return &bt
}

// resultWithMeta builds a body with metadata only; the message is absent.
func resultWithMeta(bt int64, meta *rpc.TransactionMeta) *rpc.GetTransactionResult {
	return &rpc.GetTransactionResult{BlockTime: blockTime(bt), Meta: meta}
}

const testWallet = "11111111111111111111111111111111"

func TestFetchWalletHistory_InvalidAddressFailsFast(t *testing.T) {
	mock := &mockRPCClient{}
	client := newTestClient(mock)

	for _, addr := range []string{"", "abc", "0OIl", "not-a-base58-address!"} {
		snap, err := client.FetchWalletHistory(context.Background(), addr, DefaultHistoryOptions())
		require.Error(t, err, addr)
		assert.Nil(t, snap)
		assert.ErrorIs(t, err, ErrInvalidAddress)
	}
	assert.Zero(t, mock.callCount(), "no RPC calls may be issued for an invalid address")
}

func TestFetchWalletHistory_NoSignatures(t *testing.T) {
	mock := &mockRPCClient{lamports: 2_500_000_000, signatures: []*rpc.TransactionSignature{}}
	client := newTestClient(mock)

	snap, err := client.FetchWalletHistory(context.Background(), testWallet, DefaultHistoryOptions())

	require.NoError(t, err)
	assert.Equal(t, "2.5000", snap.Balance.String())
	assert.Equal(t, uint64(2_500_000_000), snap.Lamports)
	require.NotNil(t, snap.Transactions)
	assert.Empty(t, snap.Transactions)
}

func TestFetchWalletHistory_MissingAccountIsZeroBalance(t *testing.T) {
	mock := &mockRPCClient{noAccount: true}
	client := newTestClient(mock)

	snap, err := client.FetchWalletHistory(context.Background(), testWallet, DefaultHistoryOptions())

	require.NoError(t, err)
	assert.Equal(t, "0.0000", snap.Balance.String())
}

func TestFetchWalletHistory_UpstreamFailures(t *testing.T) {
	t.Run("balance lookup", func(t *testing.T) {
		client := newTestClient(&mockRPCClient{accountErr: errors.New("connection refused")})

		snap, err := client.FetchWalletHistory(context.Background(), testWallet, DefaultHistoryOptions())

		require.Error(t, err)
		assert.Nil(t, snap)
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.Equal(t, "connection refused", err.Error(), "raw upstream message is surfaced verbatim")
	})

	t.Run("signature lookup", func(t *testing.T) {
		client := newTestClient(&mockRPCClient{sigErr: errors.New("429 Too Many Requests")})

		snap, err := client.FetchWalletHistory(context.Background(), testWallet, DefaultHistoryOptions())

		require.Error(t, err)
		assert.Nil(t, snap)
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)

		var fe *FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "get_signatures", fe.Op)
	})
}

func TestFetchWalletHistory_SortsNewestFirstAndStable(t *testing.T) {
	sigs := []*rpc.TransactionSignature{
		{Signature: testSig(1), Slot: 10, BlockTime: blockTime(100)},
		{Signature: testSig(2), Slot: 11, BlockTime: blockTime(300)},
		{Signature: testSig(3), Slot: 12, BlockTime: blockTime(200)},
		{Signature: testSig(4), Slot: 13, BlockTime: blockTime(300)},
		{Signature: testSig(5), Slot: 14}, // no block time sorts last
	}
	txs := map[string]*rpc.GetTransactionResult{}
	for _, s := range sigs {
		res := &rpc.GetTransactionResult{Slot: s.Slot, BlockTime: s.BlockTime, Meta: &rpc.TransactionMeta{}}
		txs[s.Signature.String()] = res
	}
	mock := &mockRPCClient{signatures: sigs, transactions: txs}
	client := newTestClient(mock)

	snap, err := client.FetchWalletHistory(context.Background(), testWallet, HistoryOptions{SignatureLimit: 10, BatchSize: 2})

	require.NoError(t, err)
	require.Len(t, snap.Transactions, 5)
	got := make([]string, len(snap.Transactions))
	for i, rec := range snap.Transactions {
		got[i] = rec.Signature
	}
	assert.Equal(t, []string{
		testSig(2).String(), // 300, earlier in input
		testSig(4).String(), // 300
		testSig(3).String(), // 200
		testSig(1).String(), // 100
		testSig(5).String(), // 0
	}, got)
	assert.Equal(t, UnknownTimestamp, snap.Transactions[4].Timestamp)
	assert.Equal(t, int64(0), snap.Transactions[4].BlockTime)
	assert.Equal(t, "1970-01-01T00:05:00Z", snap.Transactions[0].Timestamp)
}

func TestFetchWalletHistory_DropsFailedBodies(t *testing.T) {
	sigs := []*rpc.TransactionSignature{
		{Signature: testSig(1), BlockTime: blockTime(3)},
		{Signature: testSig(2), BlockTime: blockTime(2)},
		{Signature: testSig(3), BlockTime: blockTime(1)},
	}
	mock := &mockRPCClient{
		signatures: sigs,
		transactions: map[string]*rpc.GetTransactionResult{
			testSig(1).String(): resultWithMeta(3, &rpc.TransactionMeta{}),
			// testSig(2) resolves to nil: pruned by the node
			testSig(3).String(): resultWithMeta(1, &rpc.TransactionMeta{}),
		},
		txErrs: map[string]error{
			testSig(3).String(): errors.New("timeout"),
		},
	}
	client := newTestClient(mock)

	snap, err := client.FetchWalletHistory(context.Background(), testWallet, DefaultHistoryOptions())

	require.NoError(t, err)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, testSig(1).String(), snap.Transactions[0].Signature)
	assert.Equal(t, 3, snap.Requested)
	assert.Equal(t, 2, snap.Dropped)
	assert.LessOrEqual(t, len(snap.Transactions), snap.Requested)
}

func TestFetchWalletHistory_BatchesAndPacing(t *testing.T) {
	var sigs []*rpc.TransactionSignature
	for i := range 7 {
		sigs = append(sigs, &rpc.TransactionSignature{Signature: testSig(i + 1), BlockTime: blockTime(int64(i))})
	}
	mock := &mockRPCClient{signatures: sigs, txDelay: 5 * time.Millisecond}
	client := newTestClient(mock)

	var pauses []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		mock.mu.Lock()
		inFlight := mock.inFlight
		mock.mu.Unlock()
		assert.Zero(t, inFlight, "a round must settle completely before the pause")
		pauses = append(pauses, d)
		return nil
	}

	snap, err := client.FetchWalletHistory(context.Background(), testWallet, HistoryOptions{
		SignatureLimit:  7,
		BatchSize:       3,
		InterBatchDelay: 40 * time.Millisecond,
	})

	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 7)
	assert.LessOrEqual(t, mock.maxInFlight, 3)
	// 3 rounds (3, 3, 1) means 2 pauses; none after the final round
	assert.Equal(t, []time.Duration{40 * time.Millisecond, 40 * time.Millisecond}, pauses)
	assert.Equal(t, 7, mock.sigLimit)
}

func TestFetchWalletHistory_CancelledDuringPause(t *testing.T) {
	sigs := []*rpc.TransactionSignature{
		{Signature: testSig(1)},
		{Signature: testSig(2)},
	}
	mock := &mockRPCClient{signatures: sigs}
	client := newTestClient(mock)
	client.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := client.FetchWalletHistory(ctx, testWallet, HistoryOptions{BatchSize: 1, InterBatchDelay: time.Hour})

	require.Error(t, err)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchWalletHistory_SuccessFromMetadata(t *testing.T) {
	sigs := []*rpc.TransactionSignature{
		// signature says ok, metadata says failed: metadata wins
		{Signature: testSig(1), BlockTime: blockTime(2)},
		// signature says failed, metadata says ok: metadata wins
		{Signature: testSig(2), BlockTime: blockTime(1), Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
	}
	mock := &mockRPCClient{
		signatures: sigs,
		transactions: map[string]*rpc.GetTransactionResult{
			testSig(1).String(): resultWithMeta(2, &rpc.TransactionMeta{Err: map[string]interface{}{"InsufficientFundsForFee": nil}}),
			testSig(2).String(): resultWithMeta(1, &rpc.TransactionMeta{}),
		},
	}
	client := newTestClient(mock)

	snap, err := client.FetchWalletHistory(context.Background(), testWallet, DefaultHistoryOptions())

	require.NoError(t, err)
	require.Len(t, snap.Transactions, 2)
	assert.False(t, snap.Transactions[0].Success)
	assert.NotNil(t, snap.Transactions[0].Err)
	assert.True(t, snap.Transactions[1].Success)
	assert.Nil(t, snap.Transactions[1].Err)
}

func TestFetchWalletHistory_ClassifierPolicy(t *testing.T) {
	sigs := []*rpc.TransactionSignature{{Signature: testSig(1), BlockTime: blockTime(1)}}
	mock := &mockRPCClient{
		signatures: sigs,
		transactions: map[string]*rpc.GetTransactionResult{
			testSig(1).String(): resultWithMeta(1, &rpc.TransactionMeta{
				LogMessages: []string{"Program log: Instruction: Swap", "Program log: 1.5 SOL -> 42 USDC"},
			}),
		},
	}
	client := newTestClient(mock).WithClassifier(HeuristicClassifier{}).WithCluster(ClusterDevnet)

	snap, err := client.FetchWalletHistory(context.Background(), testWallet, DefaultHistoryOptions())

	require.NoError(t, err)
	require.Len(t, snap.Transactions, 1)
	rec := snap.Transactions[0]
	assert.Equal(t, PolicyHeuristic, rec.Classification.Policy)
	assert.Equal(t, "Swapped 1.5 SOL for 42 USDC", rec.Classification.Description)
	assert.Contains(t, rec.Links.Solscan, "?cluster=devnet")
}

func TestHistoryOptions_WithDefaults(t *testing.T) {
	got := HistoryOptions{SignatureLimit: 5000, BatchSize: -1, InterBatchDelay: -time.Second}.withDefaults()
	assert.Equal(t, MaxSignatureLimit, got.SignatureLimit)
	assert.Equal(t, DefaultBatchSize, got.BatchSize)
	assert.Equal(t, time.Duration(0), got.InterBatchDelay)

	assert.Equal(t, DefaultHistoryOptions(), HistoryOptions{}.withDefaults())
}
