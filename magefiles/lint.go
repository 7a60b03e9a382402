// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binLint = "golangci-lint"

// Check runs vet, the module tidiness check, and golangci-lint.
func Check() {
	mg.SerialDeps(Vet, Tidy, Lint)
}

// Lint runs golangci-lint over every package.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Vet runs go vet over every package.
func Vet() error {
	return sh.RunV(binGo, "vet", "./...")
}

// Tidy fails when go.mod or go.sum would change under go mod tidy.
func Tidy() error {
	diff, err := sh.Output(binGo, "mod", "tidy", "-diff")
	if err != nil {
		return fmt.Errorf("go.mod is not tidy:\n%s", diff)
	}
	return nil
}
