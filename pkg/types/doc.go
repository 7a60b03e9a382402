// Package types defines the value types, extension contract, configuration,
// and standard errors for the stockpile item-container engine.
//
// Entries are keyed aggregates of a single item and its stacks. Containers
// hold entries sorted by EntryKey and route every mutation through a chain of
// extensions that can veto or observe it.
package types
