// Entry point. All CLI wiring lives in cmd/root.go; this file only
// hands off to the root command.

package main

import (
	"github.com/sfc-sim/sfc-sim/cmd"
)

func main() {
	cmd.Execute()
}
