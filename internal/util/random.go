package util

import (
	"math/rand"
	"time"
)

// RandomSeed generates a non-negative seed from the clock, for runs where
// the caller did not fix one.
func RandomSeed() int64 {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return r.Int63()
}
