// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the stockpile project using Mage.
//
// Usage:
//
//	mage build       Compile the stockpile binary to bin/
//	mage test:all    Run all tests
//	mage test:unit   Run tests in short mode
//	mage test:race   Run all tests with the race detector
//	mage test:cover  Run all tests and write coverage.out
//	mage check       Run vet, the go.mod tidiness check, then golangci-lint
//	mage lint        Run golangci-lint
//	mage vet         Run go vet
//	mage tidy        Fail if go mod tidy would change go.mod
//	mage clean       Remove build artifacts
//	mage install     Install stockpile to GOPATH/bin
//	mage stats       Print source and test lines per package
package main
