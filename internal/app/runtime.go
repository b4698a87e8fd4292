package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv makes the binaries return before opening the store, redis or
// the remote client.
const TestModeEnv = "POS_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
})

// InTestMode reports whether POS_TEST_MODE holds a true value. The variable
// is read once per process.
func InTestMode() bool {
	return testMode()
}
