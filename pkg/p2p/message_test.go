package p2p

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeRoundTrips(t *testing.T) {
	env, err := NewEnvelope(KindPing, "node-a", PingPayload{Nonce: 7})
	require.NoError(t, err)
	require.Equal(t, KindPing, env.Type)
	require.Equal(t, "node-a", env.Sender)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))

	var payload PingPayload
	require.NoError(t, json.Unmarshal(decoded.Data, &payload))
	require.EqualValues(t, 7, payload.Nonce)
}

func TestNodeIDIsSixteenHexChars(t *testing.T) {
	id := NodeID("127.0.0.1:9000")
	require.Len(t, id, 16)

	id2 := NodeID("127.0.0.1:9000")
	require.Equal(t, id, id2)

	id3 := NodeID("127.0.0.1:9001")
	require.NotEqual(t, id, id3)
}

func TestUnknownTypeEnvelopeStillDecodes(t *testing.T) {
	raw := []byte(`{"type":"not_a_real_kind","data":{},"timestamp":1,"sender":"x"}`)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, Kind("not_a_real_kind"), env.Type)
}
