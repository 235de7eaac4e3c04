package gossip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/model"
)

func TestOpCount(t *testing.T) {
	d := model.Delta{
		Resources: []model.ResourceDelta{{ID: "r1"}, {ID: "r2"}},
		Claims:    []model.ClaimDelta{{ID: "c1"}},
	}
	assert.Equal(t, 3, opCount(d))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("shared-secret")
	env := Envelope{
		V:      EnvelopeVersion,
		Kind:   KindHello,
		Sender: "peer-a",
		HostID: "host-a",
		Ts:     clock.Timestamp{WallMs: 100, PeerID: "peer-a"},
		Body:   []byte(`{"peer_id":"peer-a"}`),
	}

	mac, err := sign(env, secret)
	require.NoError(t, err)
	env.HMAC = mac

	assert.True(t, verify(env, secret))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	env := Envelope{V: EnvelopeVersion, Kind: KindHello, Sender: "peer-a"}
	mac, err := sign(env, []byte("secret-one"))
	require.NoError(t, err)
	env.HMAC = mac

	assert.False(t, verify(env, []byte("secret-two")))
}

func TestVerifyRejectsTamperedField(t *testing.T) {
	secret := []byte("shared-secret")
	env := Envelope{V: EnvelopeVersion, Kind: KindHello, Sender: "peer-a"}
	mac, err := sign(env, secret)
	require.NoError(t, err)
	env.HMAC = mac

	env.Sender = "peer-b" // tamper after signing
	assert.False(t, verify(env, secret))
}
