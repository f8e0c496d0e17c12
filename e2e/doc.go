// Package e2e holds the end-to-end suites run against a live CRM org with
// "go test ./e2e/...". Every suite skips when its credentials, saved session
// state or a Chrome binary are missing.
package e2e
