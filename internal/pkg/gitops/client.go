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

package gitops

import (
	"context"

	"github.com/pkg/errors"
)

// Wrapped by clients when a session with the control plane can't be
// established. Nothing can work without one so callers should abort.
var ErrSession = errors.New("failed to establish a session with the GitOps control plane")

// Reads the sync and health status of an application. A missing application
// must be reported as UnknownState rather than an error.
type StatusClient interface {
	GetStatus(ctx context.Context, app ApplicationRef) (ApplicationState, error)
}

// Mutates applications on the control plane
type ActionClient interface {
	// Requests a sync. Returns false without an error if an operation is
	// already in progress.
	TriggerSync(ctx context.Context, app ApplicationRef) (bool, error)
	// Enables automated prune and self-heal
	EnableAutoSync(ctx context.Context, app ApplicationRef) (bool, error)
}

// Reports whether an application has been registered yet
type ExistenceProber interface {
	Exists(ctx context.Context, app ApplicationRef) (bool, error)
}

type Client interface {
	StatusClient
	ActionClient
	ExistenceProber
}

// Returns true if the error means no session could be established
func IsSessionError(err error) bool {
	return errors.Is(err, ErrSession)
}
