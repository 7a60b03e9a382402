// Command stockpile runs operation scripts against item containers and
// manages their snapshots.
package main

import "github.com/mesh-intelligence/stockpile/internal/cli"

func main() {
	cli.Execute()
}
