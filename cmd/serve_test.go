package main

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/runner"
)

type stubRunner struct {
	reqs []runner.Request
	run  *model.Run
	err  error
}

func (s *stubRunner) RunSync(_ context.Context, req runner.Request) (*model.Run, error) {
	s.reqs = append(s.reqs, req)
	return s.run, s.err
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestNewScheduler(t *testing.T) {
	c, err := newScheduler(context.Background(), "0 0 6 * * *", &stubRunner{})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := newScheduler(context.Background(), "every tuesday", &stubRunner{})
	assert.ErrorContains(t, err, "invalid f13.schedule")
}

func TestScheduledSync(t *testing.T) {
	tests := []struct {
		name string
		run  *model.Run
		err  error
		want string
	}{
		{"finished", &model.Run{ID: "r1", Status: model.RunStatusComplete}, nil, "scheduled 13F sync finished"},
		{"in progress", nil, runner.ErrRunInProgress, "scheduled 13F sync skipped: run in progress"},
		{"failed", &model.Run{ID: "r2", Status: model.RunStatusFailed}, eris.New("boom"), "scheduled 13F sync failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observeLogs(t)
			r := &stubRunner{run: tt.run, err: tt.err}

			scheduledSync(context.Background(), r)

			require.Len(t, r.reqs, 1)
			assert.Equal(t, runner.TriggerSchedule, r.reqs[0].Trigger)
			assert.Empty(t, r.reqs[0].Quarter)
			assert.Equal(t, 1, logs.FilterMessage(tt.want).Len())
		})
	}
}
