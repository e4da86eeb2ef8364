package script

import (
	"io"
	"sync"
)

// lockedSink serialises writes from stdout and stderr of one evaluation and
// drops anything written after the run has been sealed.
type lockedSink struct {
	mu     sync.Mutex
	w      io.Writer
	sealed bool
	last   byte
}

func (s *lockedSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return len(p), nil
	}
	if len(p) > 0 {
		s.last = p[len(p)-1]
	}
	return s.w.Write(p)
}

// seal writes a final message, starting it on a fresh line, and discards
// every later write.
func (s *lockedSink) seal(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return
	}
	s.sealed = true
	if msg == "" {
		return
	}
	if s.last != 0 && s.last != '\n' {
		msg = "\n" + msg
	}
	_, _ = io.WriteString(s.w, msg+"\n")
}
