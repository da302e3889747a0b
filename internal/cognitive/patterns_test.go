package cognitive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trajWithSteps(rewards []float64, quality float64) Trajectory {
	steps := make([]Step, len(rewards))
	for i, r := range rewards {
		steps[i] = Step{Ordinal: i + 1, Reward: r}
	}
	return Trajectory{Steps: steps, Quality: quality, Completed: true}
}

func TestPatternBank_FitAndFindNearest(t *testing.T) {
	good := []Trajectory{
		trajWithSteps([]float64{0.9, 0.8}, 1.0),
		trajWithSteps([]float64{0.85, 0.9}, 1.0),
	}
	bad := []Trajectory{
		trajWithSteps([]float64{-0.8, -0.6}, 0.0),
		trajWithSteps([]float64{-0.9, -0.7}, 0.0),
	}
	all := append(append([]Trajectory{}, good...), bad...)

	bank := NewPatternBank(2)
	require.NoError(t, bank.Fit(all))
	require.Len(t, bank.patterns, 2)

	query := TrajectoryVector(trajWithSteps([]float64{0.9, 0.85}, 1.0))
	matches, err := bank.FindPatterns(query, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Greater(t, matches[0].Pattern.AvgReward, 0.5)
}

func TestPatternBank_EmptyInputClearsPatterns(t *testing.T) {
	bank := NewPatternBank(3)
	require.NoError(t, bank.Fit(nil))
	_, err := bank.FindPatterns([]float64{0, 0, 0}, 1)
	assert.Error(t, err)
}

func TestPatternBank_KClampedToSampleSize(t *testing.T) {
	bank := NewPatternBank(5)
	require.NoError(t, bank.Fit([]Trajectory{trajWithSteps([]float64{0.5}, 0.5)}))
	assert.Len(t, bank.patterns, 1)
}

func TestTrajectoryVector_EmptyStepsUsesQualityOnly(t *testing.T) {
	v := TrajectoryVector(Trajectory{Quality: 0.7})
	assert.Equal(t, []float64{0, 0, 0.7}, v)
}

func TestPatternBank_Count(t *testing.T) {
	bank := NewPatternBank(2)
	assert.Equal(t, 0, bank.Count())
	require.NoError(t, bank.Fit([]Trajectory{
		trajWithSteps([]float64{0.9}, 1.0),
		trajWithSteps([]float64{-0.9}, 0.0),
	}))
	assert.Equal(t, 2, bank.Count())
}
