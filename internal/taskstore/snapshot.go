package taskstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"conciera/internal/domain"
)

const snapshotFile = "menage-data.json"

// snapshot mirrors the persisted slice of store state: the task list and
// the filter selection survive restarts, transient flags do not.
type snapshot struct {
	Tasks             []domain.Task      `json:"tasks"`
	Residences        []domain.Residence `json:"residences"`
	SelectedResidence string             `json:"selectedResidence"`
}

func snapshotPath(workspace string) string {
	if workspace == "" {
		return ""
	}
	return filepath.Join(workspace, ".conciera", snapshotFile)
}

func (s *Store) restoreSnapshot() {
	if s.snapshotPath == "" {
		return
	}
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt snapshot is discarded; the next load rewrites it.
		s.log.Warn().Err(err).Msg("discarding unreadable task snapshot")
		return
	}
	s.tasks = snap.Tasks
	s.residences = snap.Residences
	s.selectedResidence = snap.SelectedResidence
}

// persistSnapshotLocked writes the snapshot; callers hold s.mu. Failures
// are logged and ignored, persistence is best-effort.
func (s *Store) persistSnapshotLocked() {
	if s.snapshotPath == "" {
		return
	}
	snap := snapshot{
		Tasks:             s.tasks,
		Residences:        s.residences,
		SelectedResidence: s.selectedResidence,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("marshal task snapshot")
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o755); err != nil {
		s.log.Error().Err(err).Msg("write task snapshot")
		return
	}
	if err := os.WriteFile(s.snapshotPath, data, 0o644); err != nil {
		s.log.Error().Err(err).Msg("write task snapshot")
	}
}
