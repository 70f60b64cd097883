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
	"fmt"
)

// Namespace the GitOps controller and its Application resources live in
const DefaultNamespace = "argocd"

// Identifies one GitOps-managed application
type ApplicationRef struct {
	Name      string
	Namespace string
}

// Returns a ref to the named application in the default namespace
func NewApplicationRef(name string) ApplicationRef {
	return ApplicationRef{Name: name, Namespace: DefaultNamespace}
}

func (a ApplicationRef) String() string {
	return fmt.Sprintf("%s/%s", a.Namespace, a.Name)
}

type SyncStatus string

const (
	SyncStatusSynced    SyncStatus = "Synced"
	SyncStatusOutOfSync SyncStatus = "OutOfSync"
	SyncStatusUnknown   SyncStatus = "Unknown"
)

// Parses a sync status reported by the control plane. Anything unrecognised
// is Unknown.
func ParseSyncStatus(s string) SyncStatus {
	switch SyncStatus(s) {
	case SyncStatusSynced, SyncStatusOutOfSync:
		return SyncStatus(s)
	default:
		return SyncStatusUnknown
	}
}

type HealthStatus string

const (
	HealthStatusHealthy     HealthStatus = "Healthy"
	HealthStatusProgressing HealthStatus = "Progressing"
	HealthStatusDegraded    HealthStatus = "Degraded"
	HealthStatusSuspended   HealthStatus = "Suspended"
	HealthStatusMissing     HealthStatus = "Missing"
	HealthStatusUnknown     HealthStatus = "Unknown"
)

// Parses a health status reported by the control plane. Anything unrecognised
// is Unknown.
func ParseHealthStatus(s string) HealthStatus {
	switch HealthStatus(s) {
	case HealthStatusHealthy, HealthStatusProgressing, HealthStatusDegraded,
		HealthStatusSuspended, HealthStatusMissing:
		return HealthStatus(s)
	default:
		return HealthStatusUnknown
	}
}

// A single read of an application's status. Not persisted.
type ApplicationState struct {
	Sync   SyncStatus
	Health HealthStatus
}

var UnknownState = ApplicationState{Sync: SyncStatusUnknown, Health: HealthStatusUnknown}

// Returns true once the application is both synced and healthy
func (s ApplicationState) IsReady() bool {
	return s.Sync == SyncStatusSynced && s.Health == HealthStatusHealthy
}

func (s ApplicationState) IsDegraded() bool {
	return s.Health == HealthStatusDegraded
}

func (s ApplicationState) String() string {
	sync, health := s.Sync, s.Health
	if sync == "" {
		sync = SyncStatusUnknown
	}
	if health == "" {
		health = HealthStatusUnknown
	}
	return fmt.Sprintf("sync: %s, health: %s", sync, health)
}
