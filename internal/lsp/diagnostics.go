package lsp

import (
	"sync"

	"go.uber.org/zap"
)

// schedulePass queues a diagnostic pass for a document. Passes are
// serialized per URI, and a pass that finishes after the document has
// moved on is discarded so stale results never overwrite newer ones.
func (s *Server) schedulePass(uri string) {
	go s.runPass(uri)
}

func (s *Server) passLock(uri string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.passLocks[uri]
	if !ok {
		lock = &sync.Mutex{}
		s.passLocks[uri] = lock
	}
	return lock
}

func (s *Server) runPass(uri string) {
	lock := s.passLock(uri)
	lock.Lock()
	defer lock.Unlock()

	// Snapshot after acquiring the lock: queued passes pick up the
	// newest text instead of the text they were scheduled for.
	text, version, ok := s.docs.Get(uri)
	if !ok {
		return
	}

	diagnostics, err := s.synth.Collect(s.baseCtx, text)
	if err != nil {
		// Structural parse failure: keep the previously published set.
		s.logger.Warn("diagnostic pass aborted",
			zap.String("uri", uri),
			zap.Error(err))
		return
	}

	// The document may have changed while fetches were in flight; the
	// pass for the newer version supersedes this one.
	if _, current, ok := s.docs.Get(uri); !ok || current != version {
		s.logger.Debug("discarding stale diagnostics",
			zap.String("uri", uri),
			zap.Int32("version", version))
		return
	}

	list := make([]lspDiagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		list = append(list, lspDiagnostic{
			Range:    d.Range,
			Severity: int(d.Severity),
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	if err := s.sendPublish(uri, list, &version); err != nil {
		s.logger.Warn("failed to publish diagnostics",
			zap.String("uri", uri),
			zap.Error(err))
	}
}
