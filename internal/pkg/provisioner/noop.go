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

package provisioner

import (
	"context"

	"github.com/sugarkube/platformctl/internal/pkg/clustersot"
	"github.com/sugarkube/platformctl/internal/pkg/log"
)

const NoopProvisionerName = "none"

// A no-op provisioner for clusters that already exist and are already in the
// kubeconfig file
type NoopProvisioner struct {
	clusterSot clustersot.ClusterSot
}

func (p NoopProvisioner) Name() string {
	return NoopProvisionerName
}

func (p NoopProvisioner) ClusterSot() clustersot.ClusterSot {
	return p.clusterSot
}

// Always reports the cluster exists
func (p NoopProvisioner) ClusterExists(ctx context.Context) (bool, error) {
	log.Logger.Infof("Noop provisioner - pretending a cluster exists")
	return true, nil
}

func (p NoopProvisioner) Create(ctx context.Context, dryRun bool) (bool, error) {
	log.Logger.Infof("Noop provisioner - no cluster will be created")
	return false, nil
}

func (p NoopProvisioner) WriteKubeConfig(ctx context.Context, dryRun bool) error {
	log.Logger.Infof("Noop provisioner - using the existing kubeconfig")
	return nil
}
