package gossip

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// sign computes the envelope's HMAC over the canonical serialization of
// every field but the HMAC itself, per the wire protocol's authentication
// rule, and returns it base64-encoded.
func sign(env Envelope, secret []byte) (string, error) {
	env.HMAC = ""
	payload, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// verify checks env.HMAC against what sign would compute for the same
// secret, in constant time.
func verify(env Envelope, secret []byte) bool {
	want := env.HMAC
	got, err := sign(env, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(got))
}
