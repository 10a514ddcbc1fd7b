package solana

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// UnknownTimestamp is rendered when a transaction has no block time.
const UnknownTimestamp = "unknown"

// SOL is a decimal amount of native SOL.
type SOL float64

// LamportsToSOL converts a signed lamport amount to SOL.
func LamportsToSOL(lamports int64) SOL {
	return SOL(float64(lamports) / float64(solana.LAMPORTS_PER_SOL))
}

// String renders the amount with 4 decimal places.
func (s SOL) String() string {
	return fmt.Sprintf("%.4f", float64(s))
}

// MarshalJSON renders the amount as its 4-decimal string so clients never
// see float noise.
func (s SOL) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the rendered string form as well as bare numbers.
func (s *SOL) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseFloat(strings.Trim(string(data), `"`), 64)
	if err != nil {
		return fmt.Errorf("invalid SOL amount %s: %w", data, err)
	}
	*s = SOL(v)
	return nil
}

// BalanceChange is the net SOL movement of one account within a transaction.
type BalanceChange struct {
	Account  string `json:"account"`
	Lamports int64  `json:"lamports"`
	Change   SOL    `json:"change"`
}

// TransactionRecord is one entry of a wallet's history as shown to the user.
type TransactionRecord struct {
	Signature      string         `json:"signature"`
	Slot           uint64         `json:"slot"`
	Timestamp      string         `json:"timestamp"`
	BlockTime      int64          `json:"block_time"`
	Success        bool           `json:"success"`
	Err            *string        `json:"error,omitempty"`
	Classification Classification `json:"classification"`
	Links          ExplorerLinks  `json:"links"`
}

// WalletSnapshot is the result of a successful history fetch.
type WalletSnapshot struct {
	Address      string              `json:"address"`
	Lamports     uint64              `json:"lamports"`
	Balance      SOL                 `json:"balance"`
	Transactions []TransactionRecord `json:"transactions"`
	Requested    int                 `json:"requested"` // signatures returned by the RPC node
	Dropped      int                 `json:"dropped"`   // bodies that could not be fetched
	FetchedAt    time.Time           `json:"fetched_at"`
}

// TransactionBody is the subset of a getTransaction response we rely on.
// Every optional upstream field is an explicit nil-able field here, so a
// malformed or pruned response is a typed absence rather than a crash.
type TransactionBody struct {
	Slot      uint64
	BlockTime *int64
	Meta      *TransactionMeta // nil when the node returned no metadata
	Message   *Message         // nil when the transaction could not be decoded
}

// TransactionMeta mirrors the metadata block of a transaction.
type TransactionMeta struct {
	Err               any
	LogMessages       []string
	PreBalances       []uint64
	PostBalances      []uint64
	InnerInstructions [][]Instruction
}

// Failed reports whether the metadata carries an execution error.
func (m *TransactionMeta) Failed() bool {
	return m != nil && m.Err != nil
}

// Message is the decoded transaction message with account keys resolved
// to base58 strings.
type Message struct {
	AccountKeys  []string
	Instructions []Instruction
}

// Instruction is a compiled instruction with its program and accounts
// resolved against the message's account keys.
type Instruction struct {
	ProgramID string   `json:"program_id"`
	Accounts  []string `json:"accounts"`
	Data      []byte   `json:"data"`
	Inner     bool     `json:"inner"`
	Parent    int      `json:"parent"` // index of the outer instruction for inner ones
}
