package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/schoolhub-client/internal/model"
)

func TestRecorder_Transition(t *testing.T) {
	t.Parallel()

	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.status.WithLabelValues("loading")))

	r.Transition(model.StatusLoading, model.StatusAuthenticated, "init")
	r.Transition(model.StatusLoading, model.StatusAuthenticated, "init")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.transitions.WithLabelValues("loading", "authenticated", "init")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.status.WithLabelValues("loading")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.status.WithLabelValues("authenticated")))
}

func TestRecorder_Counters(t *testing.T) {
	t.Parallel()

	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	r.RefreshOutcome("success")
	r.RefreshOutcome("failure")
	r.RefreshOutcome("failure")
	r.GuardDecision("role", "redirect")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.refreshes.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.refreshes.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("role", "redirect")))
}

func TestNewRecorder_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err)
}
