package solana

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logsBody(logs ...string) *TransactionBody {
	return &TransactionBody{Meta: &TransactionMeta{LogMessages: logs}}
}

func TestComputeBalanceChanges(t *testing.T) {
	accounts := []string{"alice", "bob", "carol", "dave"}
	pre := []uint64{1_000_000_000, 5_000, 2_000_000_000, 7}
	post := []uint64{1_500_000_000, 5_000, 1_999_995_000}

	changes := ComputeBalanceChanges(accounts, pre, post)

	require.Len(t, changes, 2)
	assert.Equal(t, "alice", changes[0].Account)
	assert.Equal(t, "0.5000", changes[0].Change.String())
	assert.Equal(t, int64(500_000_000), changes[0].Lamports)

	// bob is unchanged and omitted; dave has no post balance and is skipped
	assert.Equal(t, "carol", changes[1].Account)
	assert.Equal(t, int64(-5_000), changes[1].Lamports)
	assert.Equal(t, "-0.0000", changes[1].Change.String())
}

func TestComputeBalanceChanges_KeepsAccountOrder(t *testing.T) {
	accounts := []string{"small", "large"}
	changes := ComputeBalanceChanges(accounts, []uint64{0, 0}, []uint64{1_000, 9_000_000_000})

	require.Len(t, changes, 2)
	assert.Equal(t, "small", changes[0].Account)
	assert.Equal(t, "large", changes[1].Account)
}

func TestStripProgramLogs(t *testing.T) {
	logs := []string{
		"Program 11111111111111111111111111111111 invoke [1]",
		"Program log: Instruction: Transfer",
		"Program 11111111111111111111111111111111 success",
	}

	assert.Equal(t, []string{
		"Program 11111111111111111111111111111111 invoke [1]",
		"Program 11111111111111111111111111111111 success",
	}, StripProgramLogs(logs))
	assert.Empty(t, StripProgramLogs(nil))
}

func TestStructuralClassifier(t *testing.T) {
	body := &TransactionBody{
		Meta: &TransactionMeta{
			LogMessages:  []string{"Program X invoke [1]", "Program log: hello", "Program X success"},
			PreBalances:  []uint64{2_000_000_000, 0, 1},
			PostBalances: []uint64{1_000_000_000, 1_000_000_000, 1},
			InnerInstructions: [][]Instruction{
				{{ProgramID: "X", Inner: true, Parent: 0}},
			},
		},
		Message: &Message{
			AccountKeys:  []string{"payer", "dest", "X"},
			Instructions: []Instruction{{ProgramID: "X", Accounts: []string{"payer", "dest"}}},
		},
	}

	c := StructuralClassifier{}.Classify(body)

	assert.Equal(t, PolicyStructural, c.Policy)
	assert.Equal(t, KindStructural, c.Kind)
	assert.Equal(t, "2 instructions across 3 accounts", c.Description)
	assert.Equal(t, []string{"payer", "dest", "X"}, c.Accounts)
	require.Len(t, c.BalanceChanges, 2)
	assert.Equal(t, "-1.0000", c.BalanceChanges[0].Change.String())
	assert.Equal(t, "1.0000", c.BalanceChanges[1].Change.String())
	assert.Equal(t, []string{"Program X invoke [1]", "Program X success"}, c.Logs)
	require.Len(t, c.Instructions, 2)
	assert.False(t, c.Instructions[0].Inner)
	assert.True(t, c.Instructions[1].Inner)
}

func TestClassifiers_DegenerateInput(t *testing.T) {
	for _, classifier := range []Classifier{StructuralClassifier{}, HeuristicClassifier{}} {
		for name, body := range map[string]*TransactionBody{
			"nil body": nil,
			"nil meta": {Message: &Message{AccountKeys: []string{"a"}}},
		} {
			c := classifier.Classify(body)
			assert.Equal(t, KindUnknown, c.Kind, "%s/%s", classifier.Policy(), name)
			assert.Equal(t, UnknownDescription, c.Description)
			assert.Equal(t, classifier.Policy(), c.Policy)
		}
	}
}

func TestHeuristicClassifier(t *testing.T) {
	tests := []struct {
		name string
		logs []string
		kind string
		desc string
	}{
		{
			name: "swap with amounts",
			logs: []string{"Program log: Instruction: Swap", "Program log: 1.5 SOL for 42 USDC"},
			kind: KindSwap,
			desc: "Swapped 1.5 SOL for 42 USDC",
		},
		{
			name: "swap with mixed case symbols",
			logs: []string{"Program log: Instruction: Swap", "Program log: 2 mSOL for 0.001 wBTC"},
			kind: KindSwap,
			desc: "Swapped 2 mSOL for 0.001 wBTC",
		},
		{
			name: "swap with prefixed symbols",
			logs: []string{"Program log: Instruction: Swap", "Program log: 3.5 stSOL for 4 JitoSOL"},
			kind: KindSwap,
			desc: "Swapped 3.5 stSOL for 4 JitoSOL",
		},
		{
			name: "plain words are not symbols",
			logs: []string{"Program log: Instruction: Swap", "Program log: 2 Tokens for 3 units"},
			kind: KindSwap,
			desc: "Token Swap",
		},
		{
			name: "swap without enough amounts",
			logs: []string{"Program log: Instruction: Swap", "Program log: amount 3 BONK"},
			kind: KindSwap,
			desc: "Token Swap",
		},
		{
			name: "swap wins over transfer",
			logs: []string{"Program log: Instruction: Transfer", "Program log: Instruction: Swap"},
			kind: KindSwap,
			desc: "Token Swap",
		},
		{
			name: "transfer with amount",
			logs: []string{"Program log: Instruction: Transfer 0.25 SOL"},
			kind: KindTransfer,
			desc: "Transferred 0.25 SOL",
		},
		{
			name: "transfer without amount",
			logs: []string{"Program log: Instruction: TransferChecked"},
			kind: KindTransfer,
			desc: "Transfer",
		},
		{
			name: "deposit",
			logs: []string{"Program log: Deposit reserve liquidity"},
			kind: KindDeposit,
			desc: "Deposit",
		},
		{
			name: "withdraw",
			logs: []string{"Program log: Withdraw obligation collateral"},
			kind: KindWithdraw,
			desc: "Withdrawal",
		},
		{
			name: "stake",
			logs: []string{"Program log: Stake delegated"},
			kind: KindStake,
			desc: "Staking",
		},
		{
			name: "create",
			logs: []string{"Program log: Create"},
			kind: KindCreate,
			desc: "Account Creation",
		},
		{
			name: "close",
			logs: []string{"Program log: Instruction: CloseAccount"},
			kind: KindClose,
			desc: "Close Account",
		},
		{
			name: "deposit beats close",
			logs: []string{"Program log: CloseAccount", "Program log: Deposit"},
			kind: KindDeposit,
			desc: "Deposit",
		},
		{
			name: "no keyword",
			logs: []string{"Program ComputeBudget111111111111111111111111111111 invoke [1]"},
			kind: KindGeneric,
			desc: "Transaction",
		},
		{
			name: "empty logs",
			logs: nil,
			kind: KindGeneric,
			desc: "Transaction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := HeuristicClassifier{}.Classify(logsBody(tt.logs...))
			assert.Equal(t, PolicyHeuristic, c.Policy)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.desc, c.Description)
			assert.Nil(t, c.BalanceChanges)
		})
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStructural, p)

	p, err = ParsePolicy(" Heuristic ")
	require.NoError(t, err)
	assert.Equal(t, PolicyHeuristic, p)

	_, err = ParsePolicy("magic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown classifier policy")

	assert.IsType(t, HeuristicClassifier{}, ClassifierForPolicy(PolicyHeuristic))
	assert.IsType(t, StructuralClassifier{}, ClassifierForPolicy(PolicyStructural))
}

func TestExplorerLinksFor(t *testing.T) {
	mainnet := ExplorerLinksFor("abc", ClusterMainnet)
	assert.Equal(t, "https://solscan.io/tx/abc", mainnet.Solscan)
	assert.Equal(t, "https://explorer.solana.com/tx/abc", mainnet.SolanaExplorer)
	assert.Equal(t, "https://solana.fm/tx/abc", mainnet.SolanaFM)

	devnet := ExplorerLinksFor("abc", ClusterDevnet)
	assert.Equal(t, "https://solscan.io/tx/abc?cluster=devnet", devnet.Solscan)
	assert.Equal(t, "https://explorer.solana.com/tx/abc?cluster=devnet", devnet.SolanaExplorer)
	assert.Equal(t, "https://solana.fm/tx/abc?cluster=devnet-solana", devnet.SolanaFM)
}

func TestSOL(t *testing.T) {
	assert.Equal(t, "1.5000", LamportsToSOL(1_500_000_000).String())
	assert.Equal(t, "0.0000", LamportsToSOL(0).String())

	b, err := LamportsToSOL(123_456_789).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"0.1235"`, string(b))

	var s SOL
	require.NoError(t, json.Unmarshal([]byte(`"0.5000"`), &s))
	assert.Equal(t, SOL(0.5), s)
	require.NoError(t, json.Unmarshal([]byte(`2`), &s))
	assert.Equal(t, SOL(2), s)
	assert.Error(t, json.Unmarshal([]byte(`"lots"`), &s))
}
