package engine

import "time"

// runGC is the periodic cleanup task: a single goroutine ticking at a
// fixed interval until told to stop.
func (e *Engine) runGC() {
	defer close(e.gcDone)
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.gcStop:
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *Engine) sweep() {
	start := time.Now()
	cfg := e.config()

	staleAssemblies := e.reassembler.CleanupStale(cfg.ReassemblyTimeout)
	oldRequests := e.tr.CleanupOld(requestCleanupAge)

	e.metrics.GCSweepDuration.Observe(time.Since(start).Seconds())
	if staleAssemblies > 0 {
		e.metrics.GCStaleAssemblies.Add(float64(staleAssemblies))
	}
	if oldRequests > 0 {
		e.metrics.GCOldRequests.Add(float64(oldRequests))
	}
	e.metrics.TrackerSize.Set(float64(e.tr.Len()))
	e.metrics.AssembliesActive.Set(float64(e.reassembler.Len()))

	if staleAssemblies > 0 || oldRequests > 0 {
		e.logger.GCSweep(staleAssemblies, oldRequests)
	}
}
