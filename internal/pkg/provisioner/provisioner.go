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
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/clustersot"
	"github.com/sugarkube/platformctl/internal/pkg/environment"
	"github.com/sugarkube/platformctl/internal/pkg/log"
)

const shortSleepTime = 5 * time.Second

// Creates clusters and makes them reachable with kubectl
type Provisioner interface {
	Name() string
	// Returns whether the cluster exists, though it may not respond yet
	ClusterExists(ctx context.Context) (bool, error)
	// Creates the cluster unless it exists. Returns whether it was created.
	Create(ctx context.Context, dryRun bool) (bool, error)
	// Adds credentials for the cluster to the kubeconfig file
	WriteKubeConfig(ctx context.Context, dryRun bool) error
	ClusterSot() clustersot.ClusterSot
}

// Factory that creates provisioners
func New(env *environment.Environment, clusterSot clustersot.ClusterSot) (Provisioner, error) {
	if env == nil {
		return nil, errors.New("Environment parameter can't be nil")
	}

	switch env.Provisioner {
	case EksProvisionerName:
		eksProvisioner, err := newEksProvisioner(env, clusterSot)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return eksProvisioner, nil
	case NoopProvisionerName:
		return NoopProvisioner{clusterSot: clusterSot}, nil
	}

	return nil, errors.New(fmt.Sprintf("Provisioner '%s' doesn't exist", env.Provisioner))
}

// How long to wait and how often to check
type WaitOptions struct {
	Timeout time.Duration
	// zero means the default
	Interval time.Duration
	// sleep before checking readiness, if the cluster was created this run
	SleepBeforeReadyCheck time.Duration
	StartedThisRun        bool
}

// Wait for a cluster to come online, then to become ready.
func WaitForClusterReadiness(ctx context.Context, p Provisioner, opts WaitOptions) error {
	clusterSot := p.ClusterSot()
	status := &clustersot.Status{}

	interval := opts.Interval
	if interval <= 0 {
		interval = shortSleepTime
	}

	log.Logger.Infof("Checking whether the cluster is online... Will "+
		"try for %s", opts.Timeout)

	clusterWasOffline := false
	offlineInfoMessageShown := false

	timeoutTime := time.Now().Add(opts.Timeout)
	for time.Now().Before(timeoutTime) {
		online, err := clustersot.IsOnline(ctx, clusterSot, status)
		if err != nil {
			return errors.WithStack(err)
		}

		if online {
			log.Logger.Info("Cluster is online")
			break
		}

		clusterWasOffline = true

		// only show this info message once to avoid noisy logs
		if !offlineInfoMessageShown {
			log.Logger.Infof("Cluster isn't online. Will keep retrying "+
				"for %s...", opts.Timeout)
			offlineInfoMessageShown = true
		}

		log.Logger.Debug("Cluster isn't online. Sleeping...")
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}

	if !status.Online {
		return errors.New("Timed out waiting for the cluster to come online")
	}

	// only sleep before checking readiness if the cluster was initially offline
	if (clusterWasOffline || opts.StartedThisRun) && opts.SleepBeforeReadyCheck > 0 {
		log.Logger.Infof("Sleeping for %s before checking cluster readiness...",
			opts.SleepBeforeReadyCheck)
		if err := sleep(ctx, opts.SleepBeforeReadyCheck); err != nil {
			return err
		}
	}

	log.Logger.Infof("Checking whether the cluster is ready...")

	readinessTimeoutTime := time.Now().Add(opts.Timeout)
	for time.Now().Before(readinessTimeoutTime) {
		ready, err := clustersot.IsReady(ctx, clusterSot, status)
		if err != nil {
			return errors.WithStack(err)
		}

		if ready {
			log.Logger.Info("Cluster is ready")
			break
		}

		log.Logger.Info("Cluster isn't ready. Sleeping...")
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}

	if !status.Ready {
		return errors.New("Timed out waiting for the cluster to become ready")
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-timer.C:
		return nil
	}
}
