package solana

import (
	"fmt"
	"regexp"
	"strings"
)

// Policy tags which classifier produced a Classification.
type Policy string

const (
	// PolicyStructural reports accounts, balance changes, logs and
	// instructions without interpreting log text.
	PolicyStructural Policy = "structural"

	// PolicyHeuristic derives a human-readable label from keywords in the
	// program logs.
	PolicyHeuristic Policy = "heuristic"
)

// Classification kinds.
const (
	KindUnknown    = "unknown"
	KindStructural = "structural"
	KindSwap       = "swap"
	KindTransfer   = "transfer"
	KindDeposit    = "deposit"
	KindWithdraw   = "withdraw"
	KindStake      = "stake"
	KindCreate     = "create"
	KindClose      = "close"
	KindGeneric    = "generic"
)

// UnknownDescription labels transactions without usable metadata.
const UnknownDescription = "Unknown Transaction"

// programLogMarker identifies log lines stripped by the structural policy.
const programLogMarker = "Program log:"

// Classification describes what a transaction did. Policy is the variant
// tag; the optional fields are only populated by the structural policy.
type Classification struct {
	Policy         Policy          `json:"policy"`
	Kind           string          `json:"kind"`
	Description    string          `json:"description"`
	Accounts       []string        `json:"accounts,omitempty"`
	BalanceChanges []BalanceChange `json:"balance_changes,omitempty"`
	Logs           []string        `json:"logs,omitempty"`
	Instructions   []Instruction   `json:"instructions,omitempty"`
}

// Classifier turns a transaction body into a Classification.
// Implementations must accept a nil body or nil metadata.
type Classifier interface {
	Classify(body *TransactionBody) Classification
	Policy() Policy
}

// ParsePolicy validates a policy name. Empty selects the structural policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStructural:
		return PolicyStructural, nil
	case PolicyHeuristic:
		return PolicyHeuristic, nil
	default:
		return "", fmt.Errorf("unknown classifier policy %q: must be %q or %q", s, PolicyStructural, PolicyHeuristic)
	}
}

// ClassifierForPolicy returns the classifier implementing p.
func ClassifierForPolicy(p Policy) Classifier {
	if p == PolicyHeuristic {
		return HeuristicClassifier{}
	}
	return StructuralClassifier{}
}

func unknownClassification(p Policy) Classification {
	return Classification{Policy: p, Kind: KindUnknown, Description: UnknownDescription}
}

// StructuralClassifier reports the raw shape of a transaction.
type StructuralClassifier struct{}

func (StructuralClassifier) Policy() Policy { return PolicyStructural }

func (StructuralClassifier) Classify(body *TransactionBody) Classification {
	if body == nil || body.Meta == nil {
		return unknownClassification(PolicyStructural)
	}

	var accounts []string
	var instructions []Instruction
	if body.Message != nil {
		accounts = body.Message.AccountKeys
		instructions = append(instructions, body.Message.Instructions...)
	}
	for _, group := range body.Meta.InnerInstructions {
		instructions = append(instructions, group...)
	}

	return Classification{
		Policy:         PolicyStructural,
		Kind:           KindStructural,
		Description:    fmt.Sprintf("%d instructions across %d accounts", len(instructions), len(accounts)),
		Accounts:       accounts,
		BalanceChanges: ComputeBalanceChanges(accounts, body.Meta.PreBalances, body.Meta.PostBalances),
		Logs:           StripProgramLogs(body.Meta.LogMessages),
		Instructions:   instructions,
	}
}

// ComputeBalanceChanges returns the non-zero lamport deltas in account order.
// Accounts beyond either balance slice are skipped.
func ComputeBalanceChanges(accounts []string, pre, post []uint64) []BalanceChange {
	var changes []BalanceChange
	for i, account := range accounts {
		if i >= len(pre) || i >= len(post) {
			break
		}
		delta := int64(post[i]) - int64(pre[i])
		if delta == 0 {
			continue
		}
		changes = append(changes, BalanceChange{
			Account:  account,
			Lamports: delta,
			Change:   LamportsToSOL(delta),
		})
	}
	return changes
}

// StripProgramLogs drops every line containing the "Program log:" marker.
func StripProgramLogs(logs []string) []string {
	out := make([]string, 0, len(logs))
	for _, line := range logs {
		if strings.Contains(line, programLogMarker) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// HeuristicClassifier labels transactions from keywords in their logs.
type HeuristicClassifier struct{}

// amountPattern matches "<decimal amount> <TOKEN>" pairs such as "1.5 SOL"
// or "2 mSOL". A symbol may start with up to four lowercase letters and must
// end in an uppercase letter or digit.
var amountPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s+([a-z]{0,4}[A-Z][A-Za-z0-9]{0,8}[A-Z0-9])\b`)

// keywordRule is one entry of the first-match-wins keyword table.
type keywordRule struct {
	keyword  string
	kind     string
	fallback string
	// needs is the number of amount matches required for a detailed label;
	// zero means the fallback label is always used.
	needs    int
	describe func(m [][]string) string
}

var keywordRules = []keywordRule{
	{
		keyword: "Swap", kind: KindSwap, fallback: "Token Swap", needs: 2,
		describe: func(m [][]string) string {
			return fmt.Sprintf("Swapped %s %s for %s %s", m[0][1], m[0][2], m[1][1], m[1][2])
		},
	},
	{
		keyword: "Transfer", kind: KindTransfer, fallback: "Transfer", needs: 1,
		describe: func(m [][]string) string {
			return fmt.Sprintf("Transferred %s %s", m[0][1], m[0][2])
		},
	},
	{keyword: "Deposit", kind: KindDeposit, fallback: "Deposit"},
	{keyword: "Withdraw", kind: KindWithdraw, fallback: "Withdrawal"},
	{keyword: "Stake", kind: KindStake, fallback: "Staking"},
	{keyword: "Create", kind: KindCreate, fallback: "Account Creation"},
	{keyword: "Close", kind: KindClose, fallback: "Close Account"},
}

func (HeuristicClassifier) Policy() Policy { return PolicyHeuristic }

func (HeuristicClassifier) Classify(body *TransactionBody) Classification {
	if body == nil || body.Meta == nil {
		return unknownClassification(PolicyHeuristic)
	}

	text := strings.Join(body.Meta.LogMessages, " ")
	for _, rule := range keywordRules {
		if !strings.Contains(text, rule.keyword) {
			continue
		}
		c := Classification{Policy: PolicyHeuristic, Kind: rule.kind, Description: rule.fallback}
		if rule.needs > 0 {
			if m := amountPattern.FindAllStringSubmatch(text, -1); len(m) >= rule.needs {
				c.Description = rule.describe(m)
			}
		}
		return c
	}

	return Classification{Policy: PolicyHeuristic, Kind: KindGeneric, Description: "Transaction"}
}
