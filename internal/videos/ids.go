package videos

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	idLength   = 22
)

var alphabetSize = big.NewInt(int64(len(idAlphabet)))

// NewVideoID returns a random base62 identifier. Possession of the id grants read access,
// so it must be unguessable.
func NewVideoID() (string, error) {
	buf := make([]byte, idLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate video id: %w", err)
		}
		buf[i] = idAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// StorageKey is the blob key holding a video's bytes.
func StorageKey(ownerID, videoID string) string {
	return "videos/" + ownerID + "/" + videoID + ".webm"
}
