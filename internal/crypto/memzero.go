package crypto

import "ciphera/internal/util/memzero"

// Wipe zeroes the provided buffer. Best-effort to prevent compiler elision;
// delegates to internal/util/memzero so the store layer and the protocol
// layer share one wiping primitive.
func Wipe(b []byte) {
	memzero.Zero(b)
}
