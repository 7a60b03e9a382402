// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo       = "go"
	binaryName  = "stockpile"
	binaryDir   = "bin"
	cmdPackage  = "./cmd/stockpile"
	revisionVar = "github.com/mesh-intelligence/stockpile/internal/cli.revision"
)

// binaryPath is where Build writes the stockpile executable.
func binaryPath() string {
	return filepath.Join(binaryDir, binaryName)
}

// ldflags stamps the short git revision into the version command. Outside a
// git checkout the revision stays empty.
func ldflags() string {
	rev, err := sh.Output("git", "rev-parse", "--short", "HEAD")
	if err != nil || strings.TrimSpace(rev) == "" {
		return ""
	}
	return "-X " + revisionVar + "=" + strings.TrimSpace(rev)
}

// Build compiles cmd/stockpile into bin/stockpile.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-o", binaryPath()}
	if flags := ldflags(); flags != "" {
		args = append(args, "-ldflags", flags)
	}
	return sh.RunV(binGo, append(args, cmdPackage)...)
}

// Install builds stockpile and copies it into $GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), binaryPath())
}

// Clean removes build and coverage output.
func Clean() error {
	for _, path := range []string{binaryDir, coverFile} {
		if err := sh.Rm(path); err != nil {
			return err
		}
	}
	return sh.RunV(binGo, "clean")
}
