package crypto

import "crypto/sha256"

// Key derivation tags from RFC 4253 section 7.2. Client tags key the
// client-to-server direction, server tags the reverse.
const (
	KeyTagClientIV  = 'A'
	KeyTagServerIV  = 'B'
	KeyTagClientKey = 'C'
	KeyTagServerKey = 'D'
	KeyTagClientMAC = 'E'
	KeyTagServerMAC = 'F'
)

// DeriveKey produces length bytes of key material from the shared secret
// (already in mpint encoding), the exchange hash and the session
// identifier: HASH(K || H || tag || session_id), extended with
// HASH(K || H || output-so-far) as needed.
func DeriveKey(sharedSecret, exchangeHash, sessionID []byte, tag byte, length int) []byte {
	h := sha256.New()
	h.Write(sharedSecret)
	h.Write(exchangeHash)
	h.Write([]byte{tag})
	h.Write(sessionID)
	out := h.Sum(nil)

	for len(out) < length {
		h.Reset()
		h.Write(sharedSecret)
		h.Write(exchangeHash)
		h.Write(out)
		out = h.Sum(out)
	}
	return out[:length]
}

// DeriveDirectionKeys derives the IV, encryption key and integrity key
// for one direction of the stream.
func DeriveDirectionKeys(sharedSecret, exchangeHash, sessionID []byte, clientToServer bool, keySize, ivSize, macKeySize int) KeyMaterial {
	ivTag, keyTag, macTag := byte(KeyTagServerIV), byte(KeyTagServerKey), byte(KeyTagServerMAC)
	if clientToServer {
		ivTag, keyTag, macTag = KeyTagClientIV, KeyTagClientKey, KeyTagClientMAC
	}
	return KeyMaterial{
		IV:           DeriveKey(sharedSecret, exchangeHash, sessionID, ivTag, ivSize),
		Key:          DeriveKey(sharedSecret, exchangeHash, sessionID, keyTag, keySize),
		IntegrityKey: DeriveKey(sharedSecret, exchangeHash, sessionID, macTag, macKeySize),
	}
}
