package security

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"time"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testKeyErr  error
)

// NewTestTokenProvider returns an RS256 TokenProvider over a process-wide throwaway key.
// For tests only: the key is generated at first use and never persisted.
func NewTestTokenProvider() (*TokenProvider, error) {
	testKeyOnce.Do(func() {
		testKey, testKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if testKeyErr != nil {
		return nil, testKeyErr
	}
	return NewTokenProvider(testKey, &testKey.PublicKey, "test-issuer", "test-audience", 15*time.Minute), nil
}
