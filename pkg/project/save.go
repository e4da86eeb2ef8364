package project

import (
	"context"
	"time"

	"github.com/kmol-editor/kmol/pkg/domain"
)

// PendingSave is a background save started by SaveAsync.
type PendingSave struct {
	project  *Project
	nodes    int
	start    time.Time
	done     chan struct{}
	err      error
	finished bool
}

// Path returns the path being saved.
func (ps *PendingSave) Path() string { return ps.project.path }

// Done is closed when the background write has completed.
func (ps *PendingSave) Done() <-chan struct{} { return ps.done }

// SaveAsync writes a snapshot of the project on a background goroutine.
// Until Finish is called the project rejects mutations, saves and close
// with domain.ErrSaveInFlight.
func (s *Store) SaveAsync(ctx context.Context, path string) (*PendingSave, error) {
	p, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	if p.saving {
		return nil, domain.Errorf(domain.ErrSaveInFlight, "%s", p.path)
	}

	snapshot := p.tree.Clone()
	p.saving = true
	ps := &PendingSave{
		project: p,
		nodes:   snapshot.Len(),
		start:   time.Now(),
		done:    make(chan struct{}),
	}

	s.logger.Debug("background save started", "path", p.path)
	go func() {
		defer close(ps.done)
		ps.err = s.codec.Save(ctx, p.path, snapshot)
	}()
	return ps, nil
}

// Finish waits for a background save and applies its result: the saving
// flag is cleared and, when the write succeeded, so is the dirty flag.
// It must be called from the goroutine that drives the Store.
func (s *Store) Finish(ps *PendingSave) error {
	if ps.finished {
		return domain.Errorf(domain.ErrInvalidOperation, "save of %s already finished", ps.project.path)
	}
	<-ps.done
	ps.finished = true

	p := ps.project
	p.saving = false
	if s.hooks.OnSave != nil {
		s.hooks.OnSave(context.Background(), &domain.ProjectEvent{
			EventBase: domain.NewEventBase(domain.EventSave, p.path),
			Nodes:     ps.nodes,
			Duration:  time.Since(ps.start),
			Err:       ps.err,
		})
	}
	if ps.err != nil {
		s.logger.Warn("background save failed", "path", p.path, "error", ps.err)
		return ps.err
	}
	p.dirty = false
	s.logger.Info("project saved", "path", p.path, "nodes", ps.nodes)
	return nil
}
