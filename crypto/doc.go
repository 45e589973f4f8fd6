// Package crypto provides the cryptographic catalog consumed by the
// transport layer: packet ciphers (framing plus encryption and MAC for
// one direction of the stream), payload compressors, the key derivation
// function, host key handling and the key-exchange algorithms.
//
// The transport never touches primitives directly. It negotiates
// algorithm names, asks this package to construct the matching
// PacketCipher, Compressor and KexAlgorithm values, and drives them
// through their interfaces. That keeps a rekey to an atomic swap of the
// per-direction state.
//
// Supported suites: the "none" cipher (pre-kex plaintext framing),
// aes128-ctr and aes256-ctr with hmac-sha2-256; "none" and "zlib"
// compression; curve25519-sha256 key exchange with ssh-ed25519 host keys.
package crypto
