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
	"context"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	"github.com/sugarkube/platformctl/internal/pkg/log"
)

// Returned by transports when the application doesn't exist (yet)
var ErrNotFound = errors.New("application not found")

// Returned by transports when a sync can't be requested because another
// operation on the application hasn't finished
var ErrOperationInProgress = errors.New("another operation is already in progress")

// How a Client reaches Argo CD
type transport interface {
	getApplication(ctx context.Context, app gitops.ApplicationRef) (*application, error)
	sync(ctx context.Context, app gitops.ApplicationRef) error
	patchApplication(ctx context.Context, app gitops.ApplicationRef, patch map[string]interface{}) error
	close() error
}

// Argo CD implementation of gitops.Client
type Client struct {
	transport transport
}

func newClient(t transport) *Client {
	return &Client{transport: t}
}

func (c *Client) Exists(ctx context.Context, app gitops.ApplicationRef) (bool, error) {
	_, err := c.transport.getApplication(ctx, app)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	return false, err
}

func (c *Client) GetStatus(ctx context.Context, app gitops.ApplicationRef) (gitops.ApplicationState, error) {
	a, err := c.transport.getApplication(ctx, app)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return gitops.UnknownState, nil
		}
		return gitops.UnknownState, err
	}

	state := a.state()
	log.ForApp(app.Name).Debugf("Application is %s", state)

	return state, nil
}

func (c *Client) TriggerSync(ctx context.Context, app gitops.ApplicationRef) (bool, error) {
	err := c.transport.sync(ctx, app)
	if err == nil {
		log.ForApp(app.Name).Debug("Sync requested")
		return true, nil
	}

	if errors.Is(err, ErrOperationInProgress) {
		log.Logger.Infof("An operation is already in progress for %s, not "+
			"requesting another sync", app)
		return false, nil
	}

	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	return false, err
}

func (c *Client) EnableAutoSync(ctx context.Context, app gitops.ApplicationRef) (bool, error) {
	err := c.transport.patchApplication(ctx, app, autoSyncPatch())
	if err == nil {
		log.ForApp(app.Name).Debug("Enabled automated sync")
		return true, nil
	}

	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	return false, err
}

// Releases anything the transport holds open, e.g. a port-forward
func (c *Client) Close() error {
	return c.transport.close()
}
