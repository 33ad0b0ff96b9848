// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package transactions implements the six-variant transaction envelope:
// a common header (sender, recipient, amount, timestamp, metadata,
// signature) dispatched on a type tag rather than an inheritance
// hierarchy, plus its canonical hash and admission rules.
package transactions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Type is the transaction variant tag.
type Type string

const (
	Standard      Type = "standard"
	MultiSig      Type = "multi_sig"
	TimeLocked    Type = "time_locked"
	AtomicSwap    Type = "atomic_swap"
	DataStorage   Type = "data_storage"
	SmartContract Type = "smart_contract"
)

// MaxMetadataBytes is the canonical-JSON size cap on Metadata.
const MaxMetadataBytes = 1024

var (
	// ErrNegativeAmount is returned when amount < 0.
	ErrNegativeAmount = errors.New("transaction: amount must be >= 0")
	// ErrMetadataTooLarge is returned when metadata serializes over MaxMetadataBytes.
	ErrMetadataTooLarge = errors.New("transaction: metadata exceeds size cap")
	// ErrUnknownType is returned for a tag outside the six known variants.
	ErrUnknownType = errors.New("transaction: unknown type")
	// ErrTimeLockMissing is returned when a time_locked tx lacks unlock_time.
	ErrTimeLockMissing = errors.New("transaction: time_locked requires metadata.unlock_time")
	// ErrTimeLockPast is returned when unlock_time is not strictly in the future.
	ErrTimeLockPast = errors.New("transaction: unlock_time must be in the future")
	// ErrMultiSigShape is returned for a malformed multi_sig envelope.
	ErrMultiSigShape = errors.New("transaction: multi_sig requires required_signatures and enough signatories")
	// ErrAtomicSwapShape is returned for a malformed atomic_swap envelope.
	ErrAtomicSwapShape = errors.New("transaction: atomic_swap requires secret_hash and counterparty_chain")
	// ErrDataStorageShape is returned for a malformed data_storage envelope.
	ErrDataStorageShape = errors.New("transaction: data_storage requires stored_data")
	// ErrSmartContractShape is returned for a malformed smart_contract envelope.
	ErrSmartContractShape = errors.New("transaction: smart_contract requires contract_code")
)

// Transaction is the common envelope shared by all six variants.
//
// Non-goal (preserved): Signature is recorded but never verified.
type Transaction struct {
	TxHash    string                 `json:"tx_hash"`
	Type      Type                   `json:"type"`
	Sender    string                 `json:"sender"`
	Recipient string                 `json:"recipient"`
	Amount    float64                `json:"amount"`
	Timestamp float64                `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata"`
	Signature string                 `json:"signature,omitempty"`
}

// New builds a Transaction and computes its tx_hash. metadata may be nil.
func New(txType Type, sender, recipient string, amount, timestamp float64, metadata map[string]interface{}, signature string) *Transaction {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	tx := &Transaction{
		Type:      txType,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Timestamp: timestamp,
		Metadata:  metadata,
		Signature: signature,
	}
	tx.TxHash = tx.ComputeHash()
	return tx
}

// NewNow is New with Timestamp defaulting to the wall clock, mirroring
// the Python TransactionBuilder's use of time.time() at construction.
func NewNow(txType Type, sender, recipient string, amount float64, metadata map[string]interface{}, signature string) *Transaction {
	return New(txType, sender, recipient, amount, float64(time.Now().UnixNano())/1e9, metadata, signature)
}

// ComputeHash is a pure function of the envelope fields: the SHA-256 of
// canonical JSON over {type, sender, recipient, amount, timestamp,
// metadata} with keys sorted lexicographically. encoding/json sorts map
// keys on marshal, so building the hash input as a map (rather than a
// fixed-order struct) gives canonical ordering for free, including
// within nested metadata.
func (tx *Transaction) ComputeHash() string {
	canonical := map[string]interface{}{
		"type":      string(tx.Type),
		"sender":    tx.Sender,
		"recipient": tx.Recipient,
		"amount":    tx.Amount,
		"timestamp": tx.Timestamp,
		"metadata":  tx.Metadata,
	}
	// canonical construction above cannot fail to marshal: every value is
	// a plain string/float/map built from JSON-safe types.
	b, _ := json.Marshal(canonical)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func metadataSize(metadata map[string]interface{}) (int, error) {
	b, err := json.Marshal(metadata)
	if err != nil {
		return 0, errors.Wrap(err, "transaction: metadata not serializable")
	}
	return len(b), nil
}

// Validate runs the type-independent admission rules plus
// the per-variant metadata shape checks for each transaction type. It does not
// check sender balance, and neither does the chain store's admission path
// (Non-goal, preserved).
func Validate(tx *Transaction, now time.Time) error {
	if tx.Amount < 0 {
		return ErrNegativeAmount
	}

	size, err := metadataSize(tx.Metadata)
	if err != nil {
		return err
	}
	if size > MaxMetadataBytes {
		return ErrMetadataTooLarge
	}

	switch tx.Type {
	case Standard:
		return nil
	case MultiSig:
		return validateMultiSig(tx)
	case TimeLocked:
		return validateTimeLocked(tx, now)
	case AtomicSwap:
		return validateAtomicSwap(tx)
	case DataStorage:
		return validateDataStorage(tx)
	case SmartContract:
		return validateSmartContract(tx)
	default:
		return ErrUnknownType
	}
}

func validateMultiSig(tx *Transaction) error {
	required, ok := asInt(tx.Metadata["required_signatures"])
	if !ok || required < 1 {
		return ErrMultiSigShape
	}
	signatories, ok := tx.Metadata["signatories"].([]interface{})
	if !ok || len(signatories) < required {
		return ErrMultiSigShape
	}
	return nil
}

func validateTimeLocked(tx *Transaction, now time.Time) error {
	raw, present := tx.Metadata["unlock_time"]
	if !present {
		return ErrTimeLockMissing
	}
	unlock, ok := asFloat(raw)
	if !ok {
		return ErrTimeLockMissing
	}
	if unlock <= float64(now.UnixNano())/1e9 {
		return ErrTimeLockPast
	}
	return nil
}

func validateAtomicSwap(tx *Transaction) error {
	hash, ok1 := tx.Metadata["secret_hash"].(string)
	chain, ok2 := tx.Metadata["counterparty_chain"].(string)
	if !ok1 || hash == "" || !ok2 || chain == "" {
		return ErrAtomicSwapShape
	}
	return nil
}

func validateDataStorage(tx *Transaction) error {
	data, ok := tx.Metadata["stored_data"].(string)
	if !ok || data == "" {
		return ErrDataStorageShape
	}
	return nil
}

func validateSmartContract(tx *Transaction) error {
	code, ok := tx.Metadata["contract_code"].(string)
	if !ok || code == "" {
		return ErrSmartContractShape
	}
	return nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v interface{}) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Fee reads metadata.fee, defaulting to 0 when absent, used by the
// mempool's fee-descending ordering.
func (tx *Transaction) Fee() float64 {
	f, _ := asFloat(tx.Metadata["fee"])
	return f
}
