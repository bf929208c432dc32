package app

import (
	"os"
	"strconv"
)

// TestModeEnv, when true, makes the binaries return before they dial Redis,
// Postgres or the backend. Package tests set it through the testing package.
const TestModeEnv = "NEXUSRIDE_TEST_MODE"

// InTestMode reports whether TestModeEnv is set to a true value.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
