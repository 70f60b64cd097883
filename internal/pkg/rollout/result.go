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
	"fmt"
	"strings"
	"time"

	"github.com/sugarkube/platformctl/internal/pkg/gitops"
)

// Why a stage failed
type Reason string

const (
	// the application was never registered
	ReasonNotFound Reason = "NotFound"
	// the application reported a Degraded health status
	ReasonDegraded Reason = "Degraded"
	// the application didn't become synced and healthy in time
	ReasonTimeout Reason = "Timeout"
	// no session could be established with the control plane
	ReasonTransportError Reason = "TransportError"
	// the rollout was aborted by the operator
	ReasonCancelled Reason = "Cancelled"
)

// Outcome of a single stage
type StageReport struct {
	Name       string
	Index      int
	Reason     Reason // empty if the stage succeeded
	Elapsed    time.Duration
	LastState  gitops.ApplicationState
	SyncAcked  bool
	AutoSynced bool
	Err        error
}

func (r StageReport) Succeeded() bool {
	return r.Reason == ""
}

// Outcome of a whole rollout. On failure the stage fields identify the stage
// that failed.
type Result struct {
	Success    bool
	Stage      string
	StageIndex int
	NumStages  int
	Reason     Reason
	// time spent in the failed stage
	Elapsed   time.Duration
	LastState gitops.ApplicationState
	Err       error
	// time spent in the whole rollout
	TotalElapsed time.Duration
	Stages       []StageReport
}

// Returns a one-line human readable description of the result
func (r *Result) Summary() string {
	if r.Success {
		return fmt.Sprintf("All %d applications synced successfully in %s",
			len(r.Stages), r.TotalElapsed.Round(time.Second))
	}

	prefix := fmt.Sprintf("Stage '%s' (%d of %d) failed", r.Stage, r.StageIndex+1, r.NumStages)

	switch r.Reason {
	case ReasonNotFound:
		return fmt.Sprintf("%s: application not found after waiting %s", prefix,
			r.Elapsed.Round(time.Second))
	case ReasonDegraded:
		return fmt.Sprintf("%s: application is Degraded after %s (%s)", prefix,
			r.Elapsed.Round(time.Second), r.LastState)
	case ReasonTimeout:
		return fmt.Sprintf("%s: timed out after %s (%s)", prefix,
			r.Elapsed.Round(time.Second), r.LastState)
	default:
		msg := fmt.Sprintf("%s: %s after %s", prefix, r.Reason, r.Elapsed.Round(time.Second))
		if r.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, r.Err)
		}
		return msg
	}
}

// Returns nil if the rollout succeeded, otherwise a *Failure wrapping the result
func (r *Result) AsError() error {
	if r.Success {
		return nil
	}
	return &Failure{Result: r}
}

// Error returned by a failed rollout
type Failure struct {
	Result *Result
}

func (f *Failure) Error() string {
	return f.Result.Summary()
}

func (f *Failure) Unwrap() error {
	return f.Result.Err
}

// Renders a table of stage outcomes for the operator
func (r *Result) Table() string {
	var b strings.Builder
	for _, stage := range r.Stages {
		status := "ok"
		if !stage.Succeeded() {
			status = string(stage.Reason)
		}
		autoSync := "-"
		if stage.AutoSynced {
			autoSync = "auto-sync"
		}
		fmt.Fprintf(&b, "%-40s %-15s %-10s %-10s %s\n", stage.Name, status,
			stage.Elapsed.Round(time.Second), autoSync, stage.LastState)
	}
	return b.String()
}
