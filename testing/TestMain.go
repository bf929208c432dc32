// Package testing is blank-imported by handler tests. It switches the
// binaries into test mode and points them at unroutable defaults so nothing
// reaches a real Redis or backend by accident.
package testing

import (
	"os"
	stdtesting "testing"
)

var testDefaults = map[string]string{
	"NEXUSRIDE_TEST_MODE": "1",
	"BACKEND_URL":         "http://127.0.0.1:0",
	"CSRF_SECRET":         "test-csrf-secret",
}

func init() {
	for key, value := range testDefaults {
		if _, set := os.LookupEnv(key); !set {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs the package tests after init has applied the defaults.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
