package metrics

// ProbeRecorder receives per-probe accounting from workers.
type ProbeRecorder interface {
	IncProbesSent()
	ObserveSuccess(rttMs float64)
	ObserveTimeout()
	ObserveError()
	IncTicksSkipped()
}

type NoopProbeRecorder struct{}

func (NoopProbeRecorder) IncProbesSent()               {}
func (NoopProbeRecorder) ObserveSuccess(rttMs float64) {}
func (NoopProbeRecorder) ObserveTimeout()              {}
func (NoopProbeRecorder) ObserveError()                {}
func (NoopProbeRecorder) IncTicksSkipped()             {}
