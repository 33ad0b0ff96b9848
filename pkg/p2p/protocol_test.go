package p2p

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"decoin/pkg/core/block"
	"decoin/pkg/core/transactions"
)

var errMockReject = errors.New("mock: rejected")
var errAdmitReject = errors.New("mock: admit rejected")

type fakeChain struct {
	length   int64
	replaced []*block.Block
	accepts  bool
	appended []*block.Block
}

func (f *fakeChain) Len() int64                  { return f.length }
func (f *fakeChain) Snapshot() []*block.Block     { return nil }
func (f *fakeChain) Blocks(int64, int) []*block.Block { return nil }
func (f *fakeChain) ReplaceChain(blocks []*block.Block) bool {
	if int64(len(blocks)) <= f.length {
		return false
	}
	f.replaced = blocks
	return true
}
func (f *fakeChain) AppendBlock(blk *block.Block) error {
	if !f.accepts {
		return errMockReject
	}
	f.appended = append(f.appended, blk)
	return nil
}

type fakeMempool struct {
	has map[string]bool
}

func (f *fakeMempool) Take(n int) []*transactions.Transaction { return nil }
func (f *fakeMempool) Has(txHash string) bool                 { return f.has[txHash] }

type fakeAdmitter struct {
	admitted []*transactions.Transaction
	fail     bool
}

func (f *fakeAdmitter) AppendTransaction(tx *transactions.Transaction) error {
	if f.fail {
		return errAdmitReject
	}
	f.admitted = append(f.admitted, tx)
	return nil
}

type fakeValidators struct {
	known      map[string]bool
	registered []string
}

func (f *fakeValidators) ListValidators() []ValidatorEntry { return nil }
func (f *fakeValidators) HasValidator(address string) bool { return f.known[address] }
func (f *fakeValidators) RegisterValidator(address string, stake float64) bool {
	if f.known[address] {
		return false
	}
	f.registered = append(f.registered, address)
	return true
}

func TestHandleChainAdoptsLongerChain(t *testing.T) {
	chain := &fakeChain{length: 1}
	d := &Dispatcher{NodeID: "n", Chain: chain, Peers: NewPeerSet()}

	blocks := []*block.Block{{Index: 0}, {Index: 1}}
	raw, _ := json.Marshal(blocks)
	env := &Envelope{Type: KindChain, Data: raw}

	d.handleChain(&Peer{Addr: "peer-1"}, env)
	require.Len(t, chain.replaced, 2)
}

func TestHandleNewTransactionDropsDuplicateSilently(t *testing.T) {
	tx := transactions.New(transactions.Standard, "a", "b", 1, 1, nil, "")
	mp := &fakeMempool{has: map[string]bool{tx.TxHash: true}}
	admitter := &fakeAdmitter{}
	d := &Dispatcher{NodeID: "n", Mempool: mp, Admitter: admitter, Peers: NewPeerSet()}

	raw, _ := json.Marshal(tx)
	env := &Envelope{Type: KindNewTransaction, Data: raw}
	d.handleNewTransaction(&Peer{Addr: "peer-1"}, env)

	require.Empty(t, admitter.admitted)
}

func TestHandleNewTransactionAdmitsAndRebroadcasts(t *testing.T) {
	tx := transactions.New(transactions.Standard, "a", "b", 1, 1, nil, "")
	mp := &fakeMempool{has: map[string]bool{}}
	admitter := &fakeAdmitter{}
	d := &Dispatcher{NodeID: "n", Mempool: mp, Admitter: admitter, Peers: NewPeerSet()}

	raw, _ := json.Marshal(tx)
	env := &Envelope{Type: KindNewTransaction, Data: raw}
	d.handleNewTransaction(&Peer{Addr: "peer-1"}, env)

	require.Len(t, admitter.admitted, 1)
	require.Equal(t, tx.TxHash, admitter.admitted[0].TxHash)
}

func TestHandleValidatorListSkipsKnownValidators(t *testing.T) {
	v := &fakeValidators{known: map[string]bool{"v1": true}}
	d := &Dispatcher{NodeID: "n", Validators: v, Peers: NewPeerSet()}

	payload := ValidatorListPayload{Validators: []ValidatorEntry{
		{Address: "v1", Stake: 1000},
		{Address: "v2", Stake: 2000},
	}}
	raw, _ := json.Marshal(payload)
	env := &Envelope{Type: KindValidatorList, Data: raw}
	d.handleValidatorList(&Peer{Addr: "peer-1"}, env)

	require.Equal(t, []string{"v2"}, v.registered)
}
