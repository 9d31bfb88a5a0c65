// Package services implements the driving port interfaces.
// Services contain the retrieval, ranking, duplicate detection and
// job orchestration logic and call out only through driven ports.
//
// Services are pure Go with no CGO or provider-specific code.
package services
