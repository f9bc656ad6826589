// ping-helper sends a single ICMP echo request and waits for the matching
// reply. It is the only privileged piece of the prober: install it with
// cap_net_raw (setcap cap_net_raw+ep ping-helper) so the engine itself can
// run unprivileged.
package main

import (
	"os"

	"github.com/hostpulsehq/prober/internal/helper"
)

func main() {
	os.Exit(helper.Run(os.Args[1:], os.Stdout, os.Stderr))
}
