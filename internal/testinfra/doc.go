// Package testinfra starts throwaway containers for integration tests.
//
// Tests using it are behind the integration build tag:
//
//	go test -tags integration ./...
//
// Docker is required; tests are skipped when it is not available.
package testinfra
