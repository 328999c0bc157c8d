// Package taskstore owns the cached task list and reachable residences for
// one agent. The list is replaced wholesale on every load so joined fields
// never drift from the backend; a JSON snapshot lets the calendar render
// before the first reload completes.
package taskstore

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"conciera/internal/domain"
	"conciera/internal/repo"
)

type Store struct {
	repo repo.Repo
	log  zerolog.Logger

	mu                sync.Mutex
	gen               uint64
	tasks             []domain.Task
	residences        []domain.Residence
	selectedResidence string
	loading           bool
	errMsg            string

	snapshotPath string
}

// New builds a store over the repo. workspace enables snapshot persistence;
// pass "" to keep the store memory-only (tests).
func New(r repo.Repo, log zerolog.Logger, workspace string) *Store {
	s := &Store{
		repo:         r,
		log:          log.With().Str("component", "taskstore").Logger(),
		snapshotPath: snapshotPath(workspace),
	}
	s.restoreSnapshot()
	return s
}

// Load resolves the agent behind an auth identity and replaces the cached
// task list and residences. It fails softly: lookup errors set the error
// state and leave the caller able to render. Results of a load superseded
// by a newer one are discarded.
func (s *Store) Load(ctx context.Context, authID string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	agent, err := s.repo.GetUserByAuthID(ctx, authID)
	if err != nil {
		s.finishLoad(gen, nil, nil, "utilisateur non trouvé")
		s.log.Error().Err(err).Str("auth_id", authID).Msg("load tasks: user lookup failed")
		return
	}

	tasks, err := s.repo.ListTasksByAgent(ctx, agent.ID)
	if err != nil {
		s.finishLoad(gen, nil, nil, err.Error())
		s.log.Error().Err(err).Str("agent_id", agent.ID).Msg("load tasks failed")
		return
	}

	// Residence lookup failures are tolerated: the calendar still works
	// without the filter options.
	residences, err := s.repo.ListResidencesByZones(ctx, agent.ZoneIDs)
	if err != nil {
		s.log.Error().Err(err).Msg("load residences failed")
		residences = nil
	}

	s.finishLoad(gen, tasks, residences, "")
	s.log.Debug().Int("tasks", len(tasks)).Int("residences", len(residences)).Msg("tasks loaded")
}

func (s *Store) finishLoad(gen uint64, tasks []domain.Task, residences []domain.Residence, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// A newer load superseded this one; drop the result.
		return
	}
	s.loading = false
	s.errMsg = errMsg
	if errMsg != "" {
		return
	}
	s.tasks = tasks
	if residences != nil || len(s.residences) == 0 {
		s.residences = residences
	}
	s.persistSnapshotLocked()
}

// SetResidenceFilter is a pure local state change; empty means no filter.
func (s *Store) SetResidenceFilter(residenceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedResidence = residenceID
	s.persistSnapshotLocked()
}

func (s *Store) ResidenceFilter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedResidence
}

// UpdateTask writes the patch through the repo and, on success, merges the
// same fields into the cached copy. Joined relationship fields are never
// touched. On failure the cache is left unchanged.
func (s *Store) UpdateTask(ctx context.Context, id string, patch repo.TaskPatch) error {
	if err := s.repo.UpdateTask(ctx, id, patch); err != nil {
		s.log.Error().Err(err).Str("task_id", id).Msg("update task failed")
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			applyPatch(&s.tasks[i], patch)
			break
		}
	}
	s.persistSnapshotLocked()
	return nil
}

func applyPatch(t *domain.Task, p repo.TaskPatch) {
	if p.StartTime != nil {
		t.StartTime = p.StartTime
	} else if p.ClearStartTime {
		t.StartTime = nil
	}
	if p.EndTime != nil {
		t.EndTime = p.EndTime
	} else if p.ClearEndTime {
		t.EndTime = nil
	}
	if p.AgentComment != nil {
		t.AgentComment = p.AgentComment
	} else if p.ClearComment {
		t.AgentComment = nil
	}
	if p.AgentPhotos != nil {
		t.AgentPhotos = p.AgentPhotos
	} else if p.ClearPhotos {
		t.AgentPhotos = nil
	}
	if p.StatusID != nil {
		t.StatusID = *p.StatusID
	}
	if p.Problem != nil {
		t.Problem = *p.Problem
	}
	if p.AgentVerifiedAt != nil {
		t.AgentVerifiedAt = p.AgentVerifiedAt
	}
	t.UpdatedAt = p.UpdatedAt
}

// Tasks returns a copy of the cached list.
func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// FilteredTasks applies the residence filter.
func (s *Store) FilteredTasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedResidence == "" {
		out := make([]domain.Task, len(s.tasks))
		copy(out, s.tasks)
		return out
	}
	var out []domain.Task
	for _, t := range s.tasks {
		if t.Apartment != nil && t.Apartment.ResidenceID == s.selectedResidence {
			out = append(out, t)
		}
	}
	return out
}

// TasksForDay returns the cached tasks due on a calendar date (YYYY-MM-DD),
// residence filter applied.
func (s *Store) TasksForDay(date string) []domain.Task {
	var out []domain.Task
	for _, t := range s.FilteredTasks() {
		if t.DueDate == date {
			out = append(out, t)
		}
	}
	return out
}

// Task returns the cached task by id.
func (s *Store) Task(id string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

func (s *Store) Residences() []domain.Residence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Residence, len(s.residences))
	copy(out, s.residences)
	return out
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last load error message, "" when the last load succeeded.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}
