// Package guard switches the process into test mode when imported by a test binary.
package guard

import (
	"os"
	"sync"
)

// JWTSecret signs tokens in tests that build a full router.
const JWTSecret = "guard-secret-for-tests-0123456789abcdef"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ODYSSEY_TEST_MODE") == "" {
			_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		}
	})
}
