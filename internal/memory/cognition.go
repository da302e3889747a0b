package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noumenal/ckg/internal/cognitive"
)

// BeginTrajectory starts a new reasoning trajectory (spec.md §4.7
// "beginTrajectory"). Cognition is optional by config; callers that
// never configured a TrajectoryRecorder get ErrCognitionDisabled
// rather than a nil-pointer panic.
func (m *UnifiedMemory) BeginTrajectory(query, route string) (string, error) {
	if m.cognates == nil {
		return "", fmt.Errorf("beginTrajectory: %w", ErrCognitionDisabled)
	}
	id, err := m.cognates.Begin(query, route)
	if err != nil {
		return "", fmt.Errorf("beginTrajectory: %w", err)
	}
	return id, nil
}

// RecordStep appends a reasoning step to an in-progress trajectory
// (spec.md §4.7 "recordStep").
func (m *UnifiedMemory) RecordStep(trajectoryID, text string, reward float64) error {
	if m.cognates == nil {
		return fmt.Errorf("recordStep: %w", ErrCognitionDisabled)
	}
	if err := m.cognates.RecordStep(trajectoryID, text, reward); err != nil {
		return fmt.Errorf("recordStep %q: %w", trajectoryID, err)
	}
	return nil
}

// EndTrajectory completes a trajectory with its overall quality
// (spec.md §4.7/§6 "endTrajectory(trajectoryId, quality)", quality ∈
// [0,1]).
func (m *UnifiedMemory) EndTrajectory(trajectoryID string, quality float64) error {
	if m.cognates == nil {
		return fmt.Errorf("endTrajectory: %w", ErrCognitionDisabled)
	}
	if err := m.cognates.End(trajectoryID, quality); err != nil {
		return fmt.Errorf("endTrajectory %q: %w", trajectoryID, err)
	}
	m.logger.Info(context.Background(), "trajectory ended",
		zap.String("trajectory_id", trajectoryID), zap.Float64("quality", quality))
	return nil
}

// FindPatterns resolves a text query against completed trajectories'
// query text, then probes the pattern bank with the best match's
// reward-statistics feature vector (spec.md §4.7 "findPatterns").
// findPatterns' contract takes a text query, but PatternBank clusters
// in a 3-dimensional reward-statistics space derived from trajectory
// steps, not an embedding space -- there is no text-to-centroid path
// directly. The closest completed trajectory by substring match stands
// in as the probe.
func (m *UnifiedMemory) FindPatterns(query string, k int) ([]cognitive.Match, error) {
	if m.cognates == nil || m.patterns == nil {
		return nil, fmt.Errorf("findPatterns: %w", ErrCognitionDisabled)
	}

	completed, err := m.cognates.ListCompleted()
	if err != nil {
		return nil, fmt.Errorf("findPatterns: %w: %v", ErrRetrievalFailed, err)
	}

	best, ok := bestMatchingTrajectory(completed, query)
	if !ok {
		return nil, fmt.Errorf("findPatterns %q: %w", query, ErrNoMatchingTrajectory)
	}

	matches, err := m.patterns.FindPatterns(cognitive.TrajectoryVector(best), k)
	if err != nil {
		return nil, fmt.Errorf("findPatterns %q: %w: %v", query, ErrRetrievalFailed, err)
	}
	return matches, nil
}

// bestMatchingTrajectory picks the most recently completed trajectory
// whose query contains query as a substring (case-insensitive).
func bestMatchingTrajectory(trajectories []cognitive.Trajectory, query string) (cognitive.Trajectory, bool) {
	needle := strings.ToLower(query)
	var best cognitive.Trajectory
	found := false
	for _, t := range trajectories {
		if !strings.Contains(strings.ToLower(t.Query), needle) {
			continue
		}
		if !found || t.EndedAt.After(best.EndedAt) {
			best = t
			found = true
		}
	}
	return best, found
}
