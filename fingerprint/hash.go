package fingerprint

import (
	"github.com/minio/highwayhash"
)

var key = []byte("entangle01234567entangle01234567")

// Hash computes the content fingerprint for the input data.
func Hash(data []byte) (uint64, error) {
	h, err := highwayhash.New64(key)
	if err != nil {
		return 0, err
	}
	_, err = h.Write(data)
	if err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// HashString computes the content fingerprint for a string.
func HashString(text string) (uint64, error) {
	return Hash([]byte(text))
}
