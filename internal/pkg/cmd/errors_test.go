/*
 * Copyright 2018 The Sugarkube Authors
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

package cmd

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/sugarkube/platformctl/internal/pkg/rollout"
)

func TestReportExitCodes(t *testing.T) {
	failed := &rollout.Result{
		Stage:     "crossplane-dev",
		NumStages: 2,
		Reason:    rollout.ReasonDegraded,
	}

	tests := []struct {
		name string
		err  error
	}{
		{name: "plain error", err: errors.New("boom")},
		{name: "cancelled", err: errors.WithStack(context.Canceled)},
		{name: "rollout failure", err: errors.WithStack(failed.AsError())},
	}

	for _, test := range tests {
		assert.Equal(t, 1, report(test.err), test.name)
	}
}
