// Command memquery is a unified query layer over AI memory systems.
package main

import (
	"github.com/custodia-labs/memquery/internal/adapters/driving/cli"
)

func main() {
	cli.Main()
}
