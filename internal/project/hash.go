package project

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Digest - фиксированный 256 битный хеш (совместим с source.File.Hash)
type Digest [32]byte

// Hex returns the lowercase hex form of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// RootDigest identifies a project root independent of how it was spelled on the command line.
func RootDigest(root string) Digest {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return Digest(sha256.Sum256([]byte(filepath.ToSlash(filepath.Clean(abs)))))
}
