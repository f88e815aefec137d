// Tick is a minimal workflow runner.
//
// Tick reproduces a CI workflow outside of CI: it evaluates a trigger, checks
// out the source, installs pinned tool release binaries and runs them as
// independent jobs.
package main

import (
	"github.com/opnlabs/tick/cmd/tick"
)

func main() {
	tick.Execute()
}
