package wire

// Size limits enforced across the transport. These bound every
// length-prefixed read so a corrupt or hostile length field can never
// trigger an oversized allocation.
const (
	// MaxPacketSize is the largest accepted binary packet, including the
	// padding-length byte, payload and padding but excluding the MAC.
	MaxPacketSize = 256 * 1024

	// MinPaddingSize is the smallest padding RFC 4253 permits on a frame.
	MinPaddingSize = 4

	// MinBlockSize is the effective cipher block granularity for framing;
	// stream ciphers and the null cipher pad to this boundary.
	MinBlockSize = 8

	// MaxBannerLineSize bounds a single line of the pre-handshake version
	// exchange, identification string included.
	MaxBannerLineSize = 8192

	// MaxBannerLines bounds how many non-identification lines a server may
	// send before its identification string.
	MaxBannerLines = 1024
)
