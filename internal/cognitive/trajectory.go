package cognitive

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"github.com/google/uuid"

	"github.com/noumenal/ckg/internal/ckgerr"
)

var trajectoriesBucket = []byte("trajectories")

// Feedback is a qualitative judgement a caller can translate into a
// numeric recordStep reward via RewardFor (spec.md §4.6 "Reward
// contract"). It has no bearing on endTrajectory's quality argument,
// which callers pass as a raw float directly (spec.md §6).
type Feedback string

const (
	FeedbackGood    Feedback = "good"
	FeedbackNeutral Feedback = "neutral"
	FeedbackBad     Feedback = "bad"
	// FeedbackIncorrect marks a step's conclusion as factually wrong;
	// RewardFor coerces it to <= -0.3 regardless of the usual good/
	// neutral/bad scale.
	FeedbackIncorrect Feedback = "incorrect"
)

// RewardFor maps a qualitative Feedback label to the numeric reward
// spec.md §4.6's reward contract assigns it, for callers that want to
// derive a recordStep reward from user feedback rather than supplying
// one directly.
func RewardFor(f Feedback) float64 {
	switch f {
	case FeedbackGood:
		return 1.0
	case FeedbackNeutral:
		return 0.5
	case FeedbackBad:
		return -0.5
	case FeedbackIncorrect:
		return -0.3
	default:
		return 0
	}
}

// Step is one recorded reasoning action within a trajectory. Ordinal
// is strictly increasing per trajectory (spec.md invariant 8).
type Step struct {
	Ordinal   int       `json:"ordinal"`
	Text      string    `json:"text"`
	Reward    float64   `json:"reward"` // [-1,1]
	CreatedAt time.Time `json:"createdAt"`
}

// Trajectory is an append-only record of one reasoning episode.
// Immutable once Completed is true.
type Trajectory struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Route     string    `json:"route,omitempty"`
	Steps     []Step    `json:"steps"`
	Quality   float64   `json:"quality"` // [0,1], set on completion
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
}

var (
	ErrTrajectoryNotFound = fmt.Errorf("trajectory: not found: %w", ckgerr.ErrNotFound)
	ErrTrajectoryComplete = fmt.Errorf("trajectory: already completed, cannot mutate: %w", ckgerr.ErrInvalidInput)
)

// TrajectoryRecorder persists trajectories to a dedicated bbolt
// bucket. It shares its db handle with whatever opened it; pkg/ckg.Open
// gives it a dedicated cognitive.db file at the storage root, separate
// from every collection's graph.db.
type TrajectoryRecorder struct {
	db *bolt.DB
}

// OpenTrajectoryRecorder opens (creating if absent) the trajectories
// bucket on an existing bbolt handle.
func OpenTrajectoryRecorder(db *bolt.DB) (*TrajectoryRecorder, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(trajectoriesBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("trajectory: open: %w", err)
	}
	return &TrajectoryRecorder{db: db}, nil
}

// Begin starts a new trajectory and returns its id.
func (r *TrajectoryRecorder) Begin(query, route string) (string, error) {
	t := Trajectory{
		ID:        uuid.NewString(),
		Query:     query,
		Route:     route,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.put(t); err != nil {
		return "", err
	}
	return t.ID, nil
}

// RecordStep appends a step to an in-progress trajectory.
func (r *TrajectoryRecorder) RecordStep(id, text string, reward float64) error {
	t, err := r.Get(id)
	if err != nil {
		return err
	}
	if t.Completed {
		return fmt.Errorf("trajectory %s: %w", id, ErrTrajectoryComplete)
	}
	t.Steps = append(t.Steps, Step{
		Ordinal:   len(t.Steps) + 1,
		Text:      text,
		Reward:    clamp(reward, -1, 1),
		CreatedAt: time.Now().UTC(),
	})
	return r.put(t)
}

// End marks a trajectory Completed with its overall quality (spec.md
// §6: endTrajectory(trajectoryId, quality), quality ∈ [0,1]).
func (r *TrajectoryRecorder) End(id string, quality float64) error {
	t, err := r.Get(id)
	if err != nil {
		return err
	}
	if t.Completed {
		return fmt.Errorf("trajectory %s: %w", id, ErrTrajectoryComplete)
	}
	t.Quality = clamp(quality, 0, 1)
	t.Completed = true
	t.EndedAt = time.Now().UTC()
	return r.put(t)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Get fetches a trajectory by id.
func (r *TrajectoryRecorder) Get(id string) (Trajectory, error) {
	var t Trajectory
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(trajectoriesBucket).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("trajectory %s: %w", id, ErrTrajectoryNotFound)
		}
		return json.Unmarshal(raw, &t)
	})
	return t, err
}

// ListCompleted returns all completed trajectories, used by the pattern bank.
func (r *TrajectoryRecorder) ListCompleted() ([]Trajectory, error) {
	var out []Trajectory
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(trajectoriesBucket).ForEach(func(_, raw []byte) error {
			var t Trajectory
			if err := json.Unmarshal(raw, &t); err != nil {
				return err
			}
			if t.Completed {
				out = append(out, t)
			}
			return nil
		})
	})
	return out, err
}

func (r *TrajectoryRecorder) put(t Trajectory) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(trajectoriesBucket).Put([]byte(t.ID), raw)
	})
}
