package probe

import (
	"time"

	"github.com/hostpulsehq/prober/pkg/types"
)

// Request describes exactly one probe attempt. It is constructed by a worker
// and never mutated after construction.
type Request struct {
	Host     types.Host
	Timeout  time.Duration
	Sequence uint16
}
