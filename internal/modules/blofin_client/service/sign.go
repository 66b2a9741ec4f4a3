package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// signPrehash: prehash = path + METHOD + timestamp + nonce + body,
// подпись = base64(hex(HMAC-SHA256(secret, prehash))). Именно hex-строка, а не сырые байты.
func signPrehash(secret, path, method, ts, nonce, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(path + method + ts + nonce + body))
	hexSig := hex.EncodeToString(mac.Sum(nil))
	return base64.StdEncoding.EncodeToString([]byte(hexSig))
}

func (c *Client) sign(path, method, ts, nonce, body string) string {
	return signPrehash(c.secret, path, method, ts, nonce, body)
}
