package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DomainBundle separates backup checksums from any other hash use.
const DomainBundle = "toolbox/bundle/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// BundleChecksum computes the checksum of b with its Checksum field cleared.
// encoding/json emits struct fields in declaration order, so the digest is
// stable for a given bundle.
func BundleChecksum(b Bundle) (string, error) {
	b.Checksum = ""
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("bundle checksum: %w", err)
	}
	return hashWithDomain(DomainBundle, data), nil
}
