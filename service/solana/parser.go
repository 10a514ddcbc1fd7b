package solana

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// bodyFromResult converts a getTransaction response into our optional-field
// schema. A nil result is an error: the node has no body for the signature.
// A message that fails to decode is also an error, so the record is dropped.
// Message is nil only when the response carries no transaction.
func bodyFromResult(result *rpc.GetTransactionResult) (*TransactionBody, error) {
	if result == nil {
		return nil, fmt.Errorf("transaction not available")
	}

	body := &TransactionBody{Slot: result.Slot}
	if result.BlockTime != nil {
		bt := int64(*result.BlockTime)
		body.BlockTime = &bt
	}

	var keys []string
	if result.Transaction != nil {
		tx, err := result.Transaction.GetTransaction()
		if err != nil {
			return nil, fmt.Errorf("failed to decode transaction: %w", err)
		}
		if tx != nil {
			keys = publicKeysToStrings(tx.Message.AccountKeys)
			if result.Meta != nil {
				// v0 transactions append lookup-table addresses after the static keys
				keys = append(keys, publicKeysToStrings(result.Meta.LoadedAddresses.Writable)...)
				keys = append(keys, publicKeysToStrings(result.Meta.LoadedAddresses.ReadOnly)...)
			}
			msg := &Message{AccountKeys: keys}
			for _, ix := range tx.Message.Instructions {
				msg.Instructions = append(msg.Instructions,
					resolveInstruction(ix.ProgramIDIndex, ix.Accounts, []byte(ix.Data), keys))
			}
			body.Message = msg
		}
	}

	if result.Meta != nil {
		meta := &TransactionMeta{
			Err:          result.Meta.Err,
			LogMessages:  result.Meta.LogMessages,
			PreBalances:  result.Meta.PreBalances,
			PostBalances: result.Meta.PostBalances,
		}
		for _, group := range result.Meta.InnerInstructions {
			inner := make([]Instruction, 0, len(group.Instructions))
			for _, ix := range group.Instructions {
				resolved := resolveInstruction(ix.ProgramIDIndex, ix.Accounts, []byte(ix.Data), keys)
				resolved.Inner = true
				resolved.Parent = int(group.Index)
				inner = append(inner, resolved)
			}
			meta.InnerInstructions = append(meta.InnerInstructions, inner)
		}
		body.Meta = meta
	}

	return body, nil
}

// resolveInstruction maps account indexes to keys. Out-of-range indexes
// resolve to an empty string instead of panicking.
func resolveInstruction(programIDIndex uint16, accounts []uint16, data []byte, keys []string) Instruction {
	ix := Instruction{
		ProgramID: keyAt(keys, int(programIDIndex)),
		Accounts:  make([]string, 0, len(accounts)),
		Data:      data,
	}
	for _, idx := range accounts {
		ix.Accounts = append(ix.Accounts, keyAt(keys, int(idx)))
	}
	return ix
}

func keyAt(keys []string, i int) string {
	if i < 0 || i >= len(keys) {
		return ""
	}
	return keys[i]
}

func publicKeysToStrings(keys []solana.PublicKey) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}

// buildRecord assembles the user-facing record for one signature.
// The transaction metadata is the source of truth for success; the
// signature record's err is only consulted when the body has no metadata.
func buildRecord(sig *rpc.TransactionSignature, body *TransactionBody, classifier Classifier, cluster string) TransactionRecord {
	rec := TransactionRecord{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
		Timestamp: UnknownTimestamp,
	}

	var blockTime *int64
	if body != nil && body.BlockTime != nil {
		blockTime = body.BlockTime
	} else if sig.BlockTime != nil {
		bt := int64(*sig.BlockTime)
		blockTime = &bt
	}
	if blockTime != nil {
		rec.BlockTime = *blockTime
		rec.Timestamp = formatBlockTime(*blockTime)
	}
	if body != nil && body.Slot != 0 {
		rec.Slot = body.Slot
	}

	var txErr any
	if body != nil && body.Meta != nil {
		txErr = body.Meta.Err
	} else {
		txErr = sig.Err
	}
	rec.Success = txErr == nil
	if txErr != nil {
		msg := fmt.Sprintf("transaction failed: %v", txErr)
		rec.Err = &msg
	}

	rec.Classification = classifier.Classify(body)
	rec.Links = ExplorerLinksFor(rec.Signature, cluster)
	return rec
}

func formatBlockTime(seconds int64) string {
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}
