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

package clustersot

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
)

// A source of truth for whether a cluster can be used
type ClusterSot interface {
	// Whether the API server responds
	IsOnline(ctx context.Context) (bool, error)
	// Whether the system pods are all running
	IsReady(ctx context.Context) (bool, error)
}

// Implemented ClusterSot names
const Kubectl = "kubectl"

// What's been observed about a cluster so far. Once a cluster is seen online
// or ready it isn't checked again.
type Status struct {
	Online bool
	Ready  bool
}

// Factory that creates ClusterSots
func New(name string, kubeconfig string, kubeContext string) (ClusterSot, error) {
	if name == Kubectl || name == "" {
		return NewKubectlClusterSot(kubeconfig, kubeContext), nil
	}

	return nil, errors.New(fmt.Sprintf("ClusterSot '%s' doesn't exist", name))
}

// Uses an implementation to determine whether the cluster is reachable/online, but it
// may not be ready to use yet.
func IsOnline(ctx context.Context, c ClusterSot, status *Status) (bool, error) {
	if status.Online {
		return true, nil
	}

	online, err := c.IsOnline(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}

	if online {
		log.Logger.Info("Cluster is online. Updating cluster status.")
		status.Online = true
	}

	return online, nil
}

// Uses an implementation to determine whether the cluster is ready to install
// Argo CD into
func IsReady(ctx context.Context, c ClusterSot, status *Status) (bool, error) {
	if status.Ready {
		return true, nil
	}

	ready, err := c.IsReady(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}

	if ready {
		log.Logger.Info("Cluster is ready. Updating cluster status.")
		status.Ready = true
	}

	return ready, nil
}
