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
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
)

// Recorded as the initiator of syncs requested through the kube transport
const initiatedBy = "platformctl"

// Reads and patches Application resources directly through the Kubernetes
// API. The application controller picks up requested operations itself, so
// this doesn't need the Argo CD API server.
type kubeTransport struct {
	// returns the dynamic client. Called on every request so the cluster
	// doesn't need to be reachable until it's first used
	dynamic func() (dynamic.Interface, error)
}

func newKubeTransport(dynamicFunc func() (dynamic.Interface, error)) *kubeTransport {
	return &kubeTransport{dynamic: dynamicFunc}
}

func (t *kubeTransport) resource(app gitops.ApplicationRef) (dynamic.ResourceInterface, error) {
	client, err := t.dynamic()
	if err != nil {
		return nil, sessionError(err)
	}

	return client.Resource(applicationGVR()).Namespace(app.Namespace), nil
}

func (t *kubeTransport) getApplication(ctx context.Context, app gitops.ApplicationRef) (*application, error) {
	resource, err := t.resource(app)
	if err != nil {
		return nil, err
	}

	obj, err := resource.Get(ctx, app.Name, metav1.GetOptions{})
	if err != nil {
		return nil, translateKubeError(err, app)
	}

	a := &application{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, a); err != nil {
		return nil, errors.Wrapf(err, "Error converting application %s", app)
	}

	return a, nil
}

func (t *kubeTransport) sync(ctx context.Context, app gitops.ApplicationRef) error {
	a, err := t.getApplication(ctx, app)
	if err != nil {
		return err
	}

	if a.operationInProgress() {
		return ErrOperationInProgress
	}

	log.Logger.Debugf("Requesting a sync operation on %s", app)

	return t.patchApplication(ctx, app, syncOperationPatch(initiatedBy))
}

func (t *kubeTransport) patchApplication(ctx context.Context, app gitops.ApplicationRef,
	patch map[string]interface{}) error {
	resource, err := t.resource(app)
	if err != nil {
		return err
	}

	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = resource.Patch(ctx, app.Name, types.MergePatchType, patchJSON, metav1.PatchOptions{})
	if err != nil {
		return translateKubeError(err, app)
	}

	return nil
}

func (t *kubeTransport) close() error {
	return nil
}

// Maps API errors onto the transport's sentinel errors
func translateKubeError(err error, app gitops.ApplicationRef) error {
	switch {
	case apierrors.IsNotFound(err):
		return ErrNotFound
	case apierrors.IsUnauthorized(err):
		return sessionError(err)
	default:
		return errors.Wrapf(err, "Error accessing application %s", app)
	}
}
