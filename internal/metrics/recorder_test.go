package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testRecorder struct {
	stageDurations map[string]int
	stageResults   map[string]map[ResultLabel]int
	buildOutcomes  map[string]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{stageDurations: map[string]int{}, stageResults: map[string]map[ResultLabel]int{}, buildOutcomes: map[string]int{}}
}

func (t *testRecorder) ObserveStageDuration(stage string, _ time.Duration) {
	t.stageDurations[stage]++
}
func (t *testRecorder) ObserveBuildDuration(time.Duration) {}
func (t *testRecorder) IncStageResult(stage string, result ResultLabel) {
	m, ok := t.stageResults[stage]
	if !ok {
		m = map[ResultLabel]int{}
		t.stageResults[stage] = m
	}
	m[result]++
}
func (t *testRecorder) IncBuildOutcome(outcome string)                    { t.buildOutcomes[outcome]++ }
func (t *testRecorder) ObserveSourceDuration(string, time.Duration, bool) {}
func (t *testRecorder) SetPackageSize(string, int64)                      {}

func TestRecorderInterfaceSatisfied(t *testing.T) {
	var recorders = []Recorder{NoopRecorder{}, newTestRecorder(), NewPrometheusRecorder(nil, "")}
	for _, r := range recorders {
		r.ObserveStageDuration("build", time.Millisecond)
		r.IncStageResult("build", ResultSuccess)
		r.IncBuildOutcome("done")
	}
	tr := recorders[1].(*testRecorder)
	assert.Equal(t, 1, tr.stageDurations["build"])
	assert.Equal(t, 1, tr.stageResults["build"][ResultSuccess])
	assert.Equal(t, 1, tr.buildOutcomes["done"])
}
