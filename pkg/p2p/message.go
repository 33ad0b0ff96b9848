// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package p2p is the gossip transport: WebSocket connections exchanging
// JSON envelopes, handshake, flood broadcast of new blocks and
// transactions, and periodic heartbeat/discovery.
package p2p

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Kind is one of the seventeen message taxonomy entries.
type Kind string

const (
	KindVersion           Kind = "version"
	KindVerack            Kind = "verack"
	KindPing              Kind = "ping"
	KindPong              Kind = "pong"
	KindGetPeers          Kind = "get_peers"
	KindPeers             Kind = "peers"
	KindGetBlocks         Kind = "get_blocks"
	KindBlocks            Kind = "blocks"
	KindNewBlock          Kind = "new_block"
	KindNewTransaction    Kind = "new_transaction"
	KindGetChain          Kind = "get_chain"
	KindChain             Kind = "chain"
	KindGetMempool        Kind = "get_mempool"
	KindMempool           Kind = "mempool"
	KindRegisterValidator Kind = "register_validator"
	KindValidatorList     Kind = "validator_list"
	KindGetValidators     Kind = "get_validators"
)

// Envelope is the wire message: {type, data, timestamp, sender}. data
// is kept as raw JSON so dispatch can decode it per-Kind.
type Envelope struct {
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp float64         `json:"timestamp"`
	Sender    string          `json:"sender"`
}

// NewEnvelope marshals data and stamps the envelope with the current
// wall clock and the local node identity.
func NewEnvelope(kind Kind, sender string, data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type:      kind,
		Data:      raw,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Sender:    sender,
	}, nil
}

// NodeID derives node_id as the first 16 hex characters of SHA-256 over
// "host:port".
func NodeID(hostPort string) string {
	sum := sha256.Sum256([]byte(hostPort))
	return hex.EncodeToString(sum[:])[:16]
}

// VersionPayload is the version message body.
type VersionPayload struct {
	Version     string `json:"version"`
	NodeID      string `json:"node_id"`
	ChainHeight int64  `json:"chain_height"`
	Services    string `json:"services"`
}

// VerackPayload is the verack message body.
type VerackPayload struct {
	Accepted bool `json:"accepted"`
}

// PingPayload / PongPayload echo a nonce so a pong can be matched to
// its ping.
type PingPayload struct {
	Nonce int64 `json:"nonce"`
}

type PongPayload struct {
	Nonce int64 `json:"nonce"`
}

// PeersPayload lists known peer addresses.
type PeersPayload struct {
	Peers []string `json:"peers"`
}

// GetBlocksPayload requests a range of blocks.
type GetBlocksPayload struct {
	StartIndex int64 `json:"start_index"`
	Count      int   `json:"count"`
}

// RegisterValidatorPayload is flooded to announce a new validator.
type RegisterValidatorPayload struct {
	Address string  `json:"address"`
	Stake   float64 `json:"stake"`
}

// ValidatorEntry is one row of a validator_list payload.
type ValidatorEntry struct {
	Address         string  `json:"address"`
	Stake           float64 `json:"stake"`
	Reputation      float64 `json:"reputation"`
	BlocksValidated int64   `json:"blocks_validated"`
}

// ValidatorListPayload is the get_validators response body.
type ValidatorListPayload struct {
	Validators []ValidatorEntry `json:"validators"`
}
