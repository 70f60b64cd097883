/*
 * Copyright 2019 The Sugarkube Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package rollout

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/printer"
)

func init() {
	log.ConfigureLogger("debug", false)
	printer.SetOutput(io.Discard)
}

var (
	progressing = gitops.ApplicationState{Sync: gitops.SyncStatusOutOfSync, Health: gitops.HealthStatusProgressing}
	ready       = gitops.ApplicationState{Sync: gitops.SyncStatusSynced, Health: gitops.HealthStatusHealthy}
	degraded    = gitops.ApplicationState{Sync: gitops.SyncStatusSynced, Health: gitops.HealthStatusDegraded}
)

type fakeClock struct {
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.sleeps++
	return nil
}

type call struct {
	op  string
	app string
}

// Scripted control plane. Each func receives the application name and how
// many times that operation has already been called for it.
type fakeClient struct {
	calls    []call
	counts   map[string]int
	exists   func(app string, n int) (bool, error)
	status   func(app string, n int) (gitops.ApplicationState, error)
	trigger  func(app string, n int) (bool, error)
	autoSync func(app string, n int) (bool, error)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		counts:   map[string]int{},
		exists:   func(string, int) (bool, error) { return true, nil },
		status:   func(string, int) (gitops.ApplicationState, error) { return ready, nil },
		trigger:  func(string, int) (bool, error) { return true, nil },
		autoSync: func(string, int) (bool, error) { return true, nil },
	}
}

func (f *fakeClient) record(op string, app gitops.ApplicationRef) int {
	f.calls = append(f.calls, call{op: op, app: app.Name})
	key := op + "/" + app.Name
	n := f.counts[key]
	f.counts[key] = n + 1
	return n
}

func (f *fakeClient) Exists(ctx context.Context, app gitops.ApplicationRef) (bool, error) {
	return f.exists(app.Name, f.record("exists", app))
}

func (f *fakeClient) GetStatus(ctx context.Context, app gitops.ApplicationRef) (gitops.ApplicationState, error) {
	return f.status(app.Name, f.record("status", app))
}

func (f *fakeClient) TriggerSync(ctx context.Context, app gitops.ApplicationRef) (bool, error) {
	return f.trigger(app.Name, f.record("sync", app))
}

func (f *fakeClient) EnableAutoSync(ctx context.Context, app gitops.ApplicationRef) (bool, error) {
	return f.autoSync(app.Name, f.record("autosync", app))
}

func (f *fakeClient) count(op string, app string) int {
	return f.counts[op+"/"+app]
}

// Returns true if any client call was made for the application
func (f *fakeClient) touched(app string) bool {
	for _, c := range f.calls {
		if c.app == app {
			return true
		}
	}
	return false
}

func stage(name string, timeout time.Duration) Stage {
	return Stage{
		App:              gitops.NewApplicationRef(name),
		ReadinessTimeout: timeout,
		EnableAutoSync:   true,
	}
}

func newTestOrchestrator(client *fakeClient, clock *fakeClock) *Orchestrator {
	return NewOrchestrator(client, client, client, Settings{
		PollInterval:     5 * time.Second,
		ExistenceRetries: 12,
		Clock:            clock,
	})
}

func TestRunTwoStagesSucceeds(t *testing.T) {
	client := newFakeClient()
	client.status = func(app string, n int) (gitops.ApplicationState, error) {
		if n < 3 {
			return progressing, nil
		}
		return ready, nil
	}

	clock := newFakeClock()
	plan := Plan{stage("ctrl", 300*time.Second), stage("providers", 600*time.Second)}

	result := newTestOrchestrator(client, clock).Run(context.Background(), plan)

	assert.True(t, result.Success)
	assert.Nil(t, result.AsError())
	assert.Len(t, result.Stages, 2)

	expected := []call{
		{"exists", "ctrl"}, {"sync", "ctrl"},
		{"status", "ctrl"}, {"status", "ctrl"}, {"status", "ctrl"}, {"status", "ctrl"},
		{"autosync", "ctrl"},
		{"exists", "providers"}, {"sync", "providers"},
		{"status", "providers"}, {"status", "providers"}, {"status", "providers"}, {"status", "providers"},
		{"autosync", "providers"},
	}
	assert.Equal(t, expected, client.calls)

	assert.Equal(t, 15*time.Second, result.Stages[0].Elapsed)
	assert.True(t, result.Stages[0].AutoSynced)
	assert.Equal(t, ready, result.Stages[1].LastState)
	assert.Equal(t, 30*time.Second, result.TotalElapsed)
}

func TestRunStopsPollingOnceReady(t *testing.T) {
	client := newFakeClient()
	clock := newFakeClock()

	result := newTestOrchestrator(client, clock).Run(context.Background(),
		Plan{stage("ctrl", 300*time.Second)})

	require.True(t, result.Success)
	assert.Equal(t, 1, client.count("status", "ctrl"))
	assert.Equal(t, 1, client.count("autosync", "ctrl"))
	assert.Equal(t, 0, clock.sleeps)
}

func TestRunNotFound(t *testing.T) {
	client := newFakeClient()
	client.exists = func(app string, n int) (bool, error) {
		return app != "infra", nil
	}

	clock := newFakeClock()
	plan := Plan{
		stage("ctrl", 300*time.Second),
		stage("infra", 900*time.Second),
		stage("app", 300*time.Second),
	}

	result := newTestOrchestrator(client, clock).Run(context.Background(), plan)

	assert.False(t, result.Success)
	assert.Equal(t, ReasonNotFound, result.Reason)
	assert.Equal(t, "infra", result.Stage)
	assert.Equal(t, 1, result.StageIndex)
	assert.Equal(t, 13, client.count("exists", "infra"))
	assert.Equal(t, 60*time.Second, result.Elapsed)
	assert.Equal(t, 0, client.count("sync", "infra"))
	assert.Equal(t, 0, client.count("status", "infra"))
	assert.False(t, client.touched("app"))

	var failure *Failure
	require.True(t, errors.As(result.AsError(), &failure))
	assert.Contains(t, failure.Error(), "Stage 'infra' (2 of 3) failed")
}

func TestRunWaitsForApplicationToAppear(t *testing.T) {
	client := newFakeClient()
	client.exists = func(app string, n int) (bool, error) {
		return n >= 4, nil
	}

	clock := newFakeClock()
	result := newTestOrchestrator(client, clock).Run(context.Background(),
		Plan{stage("ctrl", 300*time.Second)})

	assert.True(t, result.Success)
	assert.Equal(t, 5, client.count("exists", "ctrl"))
	assert.Equal(t, 20*time.Second, result.Stages[0].Elapsed)
}

func TestRunFirstStageFailureSkipsLaterStages(t *testing.T) {
	client := newFakeClient()
	client.exists = func(app string, n int) (bool, error) {
		return app != "a", nil
	}

	result := newTestOrchestrator(client, newFakeClock()).Run(context.Background(),
		Plan{stage("a", time.Minute), stage("b", time.Minute), stage("c", time.Minute)})

	assert.Equal(t, ReasonNotFound, result.Reason)
	assert.Equal(t, 0, result.StageIndex)
	assert.False(t, client.touched("b"))
	assert.False(t, client.touched("c"))
	assert.Len(t, result.Stages, 1)
}

func TestRunDegradedShortCircuits(t *testing.T) {
	client := newFakeClient()
	client.status = func(app string, n int) (gitops.ApplicationState, error) {
		if app == "infra" && n >= 1 {
			return degraded, nil
		}
		if app == "infra" {
			return progressing, nil
		}
		return ready, nil
	}

	plan := Plan{
		stage("ctrl", 300*time.Second),
		stage("infra", 900*time.Second),
		stage("app", 300*time.Second),
	}

	result := newTestOrchestrator(client, newFakeClock()).Run(context.Background(), plan)

	assert.False(t, result.Success)
	assert.Equal(t, ReasonDegraded, result.Reason)
	assert.Equal(t, "infra", result.Stage)
	assert.Equal(t, degraded, result.LastState)
	assert.Equal(t, 5*time.Second, result.Elapsed)
	assert.Equal(t, 2, client.count("status", "infra"))
	assert.Equal(t, 0, client.count("autosync", "infra"))
	assert.False(t, client.touched("app"))
	assert.Contains(t, result.Summary(), "Degraded")
}

func TestRunTimeout(t *testing.T) {
	client := newFakeClient()
	client.status = func(string, int) (gitops.ApplicationState, error) {
		return progressing, nil
	}

	result := newTestOrchestrator(client, newFakeClock()).Run(context.Background(),
		Plan{stage("ctrl", 30*time.Second), stage("next", 30*time.Second)})

	assert.Equal(t, ReasonTimeout, result.Reason)
	assert.Equal(t, 6, client.count("status", "ctrl"))
	assert.Equal(t, 30*time.Second, result.Elapsed)
	assert.Equal(t, progressing, result.LastState)
	assert.False(t, client.touched("next"))
	assert.Contains(t, result.Summary(), "timed out after 30s (sync: OutOfSync, health: Progressing)")
}

func TestRunSyncNotAcknowledgedIsNonFatal(t *testing.T) {
	client := newFakeClient()
	client.trigger = func(app string, n int) (bool, error) {
		if n == 0 {
			return false, nil
		}
		return false, errors.New("another operation is already in progress")
	}

	clock := newFakeClock()
	plan := Plan{stage("ctrl", time.Minute)}
	orchestrator := newTestOrchestrator(client, clock)

	first := orchestrator.Run(context.Background(), plan)
	second := orchestrator.Run(context.Background(), plan)

	assert.True(t, first.Success)
	assert.True(t, second.Success)
	assert.Equal(t, 2, client.count("sync", "ctrl"))
	assert.False(t, second.Stages[0].SyncAcked)
}

func TestRunStatusErrorsAreRetried(t *testing.T) {
	client := newFakeClient()
	client.status = func(app string, n int) (gitops.ApplicationState, error) {
		if n < 2 {
			return gitops.ApplicationState{}, errors.New("connection reset by peer")
		}
		return ready, nil
	}

	result := newTestOrchestrator(client, newFakeClock()).Run(context.Background(),
		Plan{stage("ctrl", time.Minute)})

	assert.True(t, result.Success)
	assert.Equal(t, 3, client.count("status", "ctrl"))
}

func TestRunExistenceErrorsCountAsAbsent(t *testing.T) {
	client := newFakeClient()
	client.exists = func(app string, n int) (bool, error) {
		return false, errors.New("i/o timeout")
	}

	result := newTestOrchestrator(client, newFakeClock()).Run(context.Background(),
		Plan{stage("ctrl", time.Minute)})

	assert.Equal(t, ReasonNotFound, result.Reason)
	assert.Equal(t, 13, client.count("exists", "ctrl"))
}

func TestRunSessionErrorAborts(t *testing.T) {
	sessionErr := fmt.Errorf("%w: 401 Unauthorized", gitops.ErrSession)

	tests := []struct {
		name   string
		modify func(c *fakeClient)
	}{
		{
			name: "exists",
			modify: func(c *fakeClient) {
				c.exists = func(string, int) (bool, error) { return false, sessionErr }
			},
		},
		{
			name: "sync",
			modify: func(c *fakeClient) {
				c.trigger = func(string, int) (bool, error) { return false, sessionErr }
			},
		},
		{
			name: "status",
			modify: func(c *fakeClient) {
				c.status = func(string, int) (gitops.ApplicationState, error) {
					return gitops.ApplicationState{}, sessionErr
				}
			},
		},
		{
			name: "autosync",
			modify: func(c *fakeClient) {
				c.autoSync = func(string, int) (bool, error) { return false, sessionErr }
			},
		},
	}

	for _, test := range tests {
		client := newFakeClient()
		test.modify(client)

		result := newTestOrchestrator(client, newFakeClock()).Run(context.Background(),
			Plan{stage("ctrl", time.Minute), stage("next", time.Minute)})

		assert.Equal(t, ReasonTransportError, result.Reason, test.name)
		assert.True(t, errors.Is(result.AsError(), gitops.ErrSession), test.name)
		assert.False(t, client.touched("next"), test.name)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeClient()
	client.status = func(app string, n int) (gitops.ApplicationState, error) {
		if n == 1 {
			cancel()
		}
		return progressing, nil
	}

	result := newTestOrchestrator(client, newFakeClock()).Run(ctx,
		Plan{stage("ctrl", time.Hour), stage("next", time.Minute)})

	assert.Equal(t, ReasonCancelled, result.Reason)
	assert.Equal(t, 2, client.count("status", "ctrl"))
	assert.False(t, client.touched("next"))
}

func TestRunAutoSyncFailureIsBestEffort(t *testing.T) {
	client := newFakeClient()
	client.autoSync = func(string, int) (bool, error) {
		return false, errors.New("403 Forbidden")
	}

	result := newTestOrchestrator(client, newFakeClock()).Run(context.Background(),
		Plan{stage("ctrl", time.Minute), stage("next", time.Minute)})

	assert.True(t, result.Success)
	assert.False(t, result.Stages[0].AutoSynced)
	assert.Equal(t, 1, client.count("autosync", "ctrl"))
	assert.True(t, client.touched("next"))
}

func TestRunAutoSyncDisabled(t *testing.T) {
	client := newFakeClient()
	s := stage("ctrl", time.Minute)
	s.EnableAutoSync = false

	result := newTestOrchestrator(client, newFakeClock()).Run(context.Background(), Plan{s})

	assert.True(t, result.Success)
	assert.Equal(t, 0, client.count("autosync", "ctrl"))
}

func TestNewOrchestratorDefaults(t *testing.T) {
	client := newFakeClient()
	o := NewOrchestrator(client, client, client, Settings{ExistenceRetries: -1})

	assert.Equal(t, DefaultPollInterval, o.pollInterval)
	assert.Equal(t, DefaultExistenceRetries, o.retries)
	assert.Equal(t, realClock{}, o.clock)
}

func TestRunZeroRetriesChecksExistenceOnce(t *testing.T) {
	client := newFakeClient()
	client.exists = func(string, int) (bool, error) { return false, nil }
	clock := newFakeClock()

	o := NewOrchestrator(client, client, client, Settings{
		PollInterval: 5 * time.Second,
		Clock:        clock,
	})
	require.Equal(t, 0, o.retries)

	result := o.Run(context.Background(), Plan{stage("ctrl", 300*time.Second)})

	require.False(t, result.Success)
	assert.Equal(t, ReasonNotFound, result.Reason)
	assert.Equal(t, "ctrl", result.Stage)
	assert.Equal(t, 1, client.count("exists", "ctrl"))
	assert.Equal(t, 0, clock.sleeps)
}
