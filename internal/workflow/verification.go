// Package workflow implements the agent verification workflow: the entry
// form rules, the save state machine, and the problem notification path.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"conciera/internal/domain"
	"conciera/internal/events"
	"conciera/internal/repo"
	"conciera/internal/taskstore"
)

var (
	// ErrReadOnly is returned when a task validated by the concierge is
	// targeted by a mutation. That state is terminal for agents.
	ErrReadOnly = errors.New("task is validated and read-only")

	// ErrSaveInProgress is returned when a save for the same task is
	// already running.
	ErrSaveInProgress = errors.New("save already in progress")
)

// Entry is the agent's verification form for one task.
type Entry struct {
	StartTime string
	EndTime   string
	Comment   string
	Photos    []string
}

// HasProblem reports whether the entry flags a problem: any non-blank
// comment or at least one photo.
func (e Entry) HasProblem() bool {
	return strings.TrimSpace(e.Comment) != "" || len(e.Photos) > 0
}

// AddPhoto appends a photo reference to the entry.
func (e *Entry) AddPhoto(ref string) {
	e.Photos = append(e.Photos, ref)
}

// RemovePhoto drops the photo at index; out-of-range indexes are ignored.
func (e *Entry) RemovePhoto(i int) {
	if i < 0 || i >= len(e.Photos) {
		return
	}
	e.Photos = append(e.Photos[:i], e.Photos[i+1:]...)
}

// Engine runs verification saves. Now is injectable for tests.
type Engine struct {
	Repo   repo.Repo
	Tasks  *taskstore.Store
	Events events.Writer
	Log    zerolog.Logger
	Now    func() time.Time

	mu     sync.Mutex
	saving map[string]struct{}
}

func NewEngine(r repo.Repo, tasks *taskstore.Store, ev events.Writer, log zerolog.Logger) *Engine {
	return &Engine{
		Repo:   r,
		Tasks:  tasks,
		Events: ev,
		Log:    log.With().Str("component", "workflow").Logger(),
		Now:    time.Now,
		saving: make(map[string]struct{}),
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) beginSave(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving == nil {
		e.saving = make(map[string]struct{})
	}
	if _, busy := e.saving[taskID]; busy {
		return false
	}
	e.saving[taskID] = struct{}{}
	return true
}

func (e *Engine) endSave(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.saving, taskID)
}

// Save applies a verification entry to a task as the given agent. The
// status is derived from the entry: a problem flag routes the task to
// "probleme" and notifies the zone admin, otherwise it becomes
// "verifie-agent". The status reference is resolved before any write; a
// missing reference aborts the save with the task untouched. After the
// write, the agent's task list is reloaded wholesale.
func (e *Engine) Save(ctx context.Context, agent domain.User, taskID string, entry Entry) error {
	if !e.beginSave(taskID) {
		return ErrSaveInProgress
	}
	defer e.endSave(taskID)

	task, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.StatusCode() == domain.StatusConciergeValidated {
		return ErrReadOnly
	}

	hasProblem := entry.HasProblem()
	statusCode := domain.StatusAgentVerified
	if hasProblem {
		statusCode = domain.StatusProblem
	}
	status, err := e.Repo.GetValidationStatusByCode(ctx, statusCode)
	if err != nil {
		// Fail closed: never guess a status id.
		return fmt.Errorf("resolve status %q: %w", statusCode, err)
	}

	now := e.now()
	verifiedAt := now.Format("2006-01-02T15:04:05")
	comment := strings.TrimSpace(entry.Comment)

	patch := repo.TaskPatch{
		StatusID:        &status.ID,
		Problem:         &hasProblem,
		AgentVerifiedAt: &verifiedAt,
		UpdatedAt:       now.UTC().Format(time.RFC3339),
	}
	if entry.StartTime != "" {
		v := entry.StartTime
		patch.StartTime = &v
	} else {
		patch.ClearStartTime = true
	}
	if entry.EndTime != "" {
		v := entry.EndTime
		patch.EndTime = &v
	} else {
		patch.ClearEndTime = true
	}
	if comment != "" {
		patch.AgentComment = &comment
	} else {
		patch.ClearComment = true
	}
	if len(entry.Photos) > 0 {
		patch.AgentPhotos = entry.Photos
	} else {
		patch.ClearPhotos = true
	}

	if err := e.Tasks.UpdateTask(ctx, taskID, patch); err != nil {
		return err
	}

	evtType := "task.verified"
	if hasProblem {
		evtType = "problem.reported"
	}
	if err := e.Events.Append(ctx, evtType, "task", taskID, agent.ID, events.EventPayload{
		"status": statusCode,
		"photos": len(entry.Photos),
	}); err != nil {
		e.Log.Error().Err(err).Str("task_id", taskID).Msg("append event failed")
	}

	if hasProblem {
		// Notification failures never fail the save; the task is already
		// in "probleme" and supervisors can find it there.
		e.notifyProblem(ctx, agent, task, comment, len(entry.Photos), now)
	}

	e.Tasks.Load(ctx, agent.AuthID)
	return nil
}

// notifyProblem sends an urgent message to the first active admin assigned
// to the apartment's zone.
func (e *Engine) notifyProblem(ctx context.Context, agent domain.User, task domain.Task, comment string, photoCount int, now time.Time) {
	zoneID, aptName := e.taskZone(ctx, task)
	if zoneID == "" {
		e.Log.Warn().Str("task_id", task.ID).Msg("problem reported but zone unknown, no notification sent")
		return
	}
	admin, err := e.Repo.FindZoneAdmin(ctx, zoneID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			e.Log.Warn().Str("zone_id", zoneID).Str("task_id", task.ID).Msg("no admin for zone, problem not notified")
		} else {
			e.Log.Error().Err(err).Str("zone_id", zoneID).Msg("admin lookup failed")
		}
		return
	}

	subject := "⚠️ Problème signalé: " + aptName
	body := aptName + " - " + longFrenchDate(task.DueDate) + "\n\n" + comment
	if photoCount > 0 {
		if comment != "" {
			body += "\n\n"
		}
		body += fmt.Sprintf("📷 %d photo(s)", photoCount)
	}
	displayDate := now.Format("2006-01-02")

	msg := domain.Message{
		ID:          uuid.NewString(),
		SenderID:    agent.ID,
		RecipientID: admin.ID,
		Subject:     &subject,
		Body:        body,
		Priority:    domain.PriorityUrgent,
		DisplayDate: &displayDate,
		CreatedAt:   now.UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertMessage(ctx, msg); err != nil {
		e.Log.Error().Err(err).Str("admin_id", admin.ID).Msg("problem notification insert failed")
		return
	}
	e.Log.Info().Str("task_id", task.ID).Str("admin_id", admin.ID).Msg("problem notification sent")
}

// taskZone resolves the zone and apartment name for a task, falling back to
// a residence lookup when the join did not carry the zone.
func (e *Engine) taskZone(ctx context.Context, task domain.Task) (zoneID, aptName string) {
	apt := task.Apartment
	if apt == nil {
		return "", ""
	}
	aptName = apt.Name
	if apt.Residence != nil && apt.Residence.ZoneID != "" {
		return apt.Residence.ZoneID, aptName
	}
	res, err := e.Repo.GetResidence(ctx, apt.ResidenceID)
	if err != nil {
		e.Log.Error().Err(err).Str("residence_id", apt.ResidenceID).Msg("residence lookup failed")
		return "", aptName
	}
	return res.ZoneID, aptName
}

var frenchDays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}

var frenchMonths = [...]string{"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre"}

// longFrenchDate renders a YYYY-MM-DD date as "vendredi 29 août 2025".
// Unparsable dates pass through unchanged.
func longFrenchDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s %d %s %d", frenchDays[t.Weekday()], t.Day(), frenchMonths[t.Month()-1], t.Year())
}
