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

package argocd

import (
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const operationPhaseRunning = "Running"

func applicationGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{
		Group:    "argoproj.io",
		Version:  "v1alpha1",
		Resource: "applications",
	}
}

// The parts of an Argo CD Application we read. Both transports decode into
// this, the REST API from JSON and the kube transport from unstructured.
type application struct {
	Metadata struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace"`
	} `json:"metadata"`
	Operation map[string]interface{} `json:"operation,omitempty"`
	Status    struct {
		Sync struct {
			Status string `json:"status"`
		} `json:"sync"`
		Health struct {
			Status string `json:"status"`
		} `json:"health"`
		OperationState *struct {
			Phase   string `json:"phase"`
			Message string `json:"message"`
		} `json:"operationState,omitempty"`
	} `json:"status"`
}

func (a *application) state() gitops.ApplicationState {
	return gitops.ApplicationState{
		Sync:   gitops.ParseSyncStatus(a.Status.Sync.Status),
		Health: gitops.ParseHealthStatus(a.Status.Health.Status),
	}
}

// Returns true if a sync has been requested or is still running
func (a *application) operationInProgress() bool {
	if len(a.Operation) > 0 {
		return true
	}

	return a.Status.OperationState != nil && a.Status.OperationState.Phase == operationPhaseRunning
}

// Body of a sync request. Prunes and never forces.
type syncRequest struct {
	Name         string        `json:"name,omitempty"`
	AppNamespace string        `json:"appNamespace,omitempty"`
	Prune        bool          `json:"prune"`
	Strategy     *syncStrategy `json:"strategy,omitempty"`
}

type syncStrategy struct {
	Apply *syncStrategyApply `json:"apply,omitempty"`
}

type syncStrategyApply struct {
	Force bool `json:"force"`
}

func newSyncRequest(app gitops.ApplicationRef) syncRequest {
	return syncRequest{
		Name:         app.Name,
		AppNamespace: app.Namespace,
		Prune:        true,
		Strategy: &syncStrategy{
			Apply: &syncStrategyApply{Force: false},
		},
	}
}

// Merge patch that turns on automated sync with pruning and self-healing
func autoSyncPatch() map[string]interface{} {
	return map[string]interface{}{
		"spec": map[string]interface{}{
			"syncPolicy": map[string]interface{}{
				"automated": map[string]interface{}{
					"prune":    true,
					"selfHeal": true,
				},
			},
		},
	}
}

// Merge patch that asks the application controller to run a sync, the same
// way `argocd app sync` does when talking to the cluster directly
func syncOperationPatch(initiatedBy string) map[string]interface{} {
	return map[string]interface{}{
		"operation": map[string]interface{}{
			"initiatedBy": map[string]interface{}{
				"username": initiatedBy,
			},
			"sync": map[string]interface{}{
				"prune": true,
				"syncStrategy": map[string]interface{}{
					"apply": map[string]interface{}{
						"force": false,
					},
				},
			},
		},
	}
}
