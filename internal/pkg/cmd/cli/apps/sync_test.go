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

package apps

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarkube/platformctl/internal/pkg/environment"
	"github.com/sugarkube/platformctl/internal/pkg/kube"
	"github.com/sugarkube/platformctl/internal/pkg/rollout"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/rest"
)

const testEnvironments = "../../../environment/testdata/environments.yaml"

var applicationsGVR = schema.GroupVersionResource{
	Group:    "argoproj.io",
	Version:  "v1alpha1",
	Resource: "applications",
}

func application(name string, health string) runtime.Object {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "argoproj.io/v1alpha1",
		"kind":       "Application",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": "argocd",
		},
		"status": map[string]interface{}{
			"sync":   map[string]interface{}{"status": "Synced"},
			"health": map[string]interface{}{"status": health},
		},
	}}
}

// Returns clients backed by a fake cluster holding the given applications
func fakeClients(objects ...runtime.Object) *kube.Clients {
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(),
		map[schema.GroupVersionResource]string{applicationsGVR: "ApplicationList"}, objects...)
	return kube.NewClientsFor(&rest.Config{}, nil, dyn)
}

func TestSyncThroughKubeTransport(t *testing.T) {
	env, err := environment.Load("dev", testEnvironments, nil)
	require.Nil(t, err)

	clients := fakeClients(
		application("crossplane-dev", "Healthy"),
		application("crossplane-providers-dev", "Healthy"),
		application("infrastructure-dev", "Healthy"),
		application("supabase-dev", "Healthy"),
	)

	var out bytes.Buffer
	err = Sync(context.Background(), &out, env, clients, false)
	require.Nil(t, err)
	assert.Contains(t, out.String(), "All 4 applications synced successfully")
}

func TestSyncStopsAtDegradedApplication(t *testing.T) {
	env, err := environment.Load("dev", testEnvironments, nil)
	require.Nil(t, err)

	clients := fakeClients(
		application("crossplane-dev", "Healthy"),
		application("crossplane-providers-dev", "Degraded"),
		application("infrastructure-dev", "Healthy"),
		application("supabase-dev", "Healthy"),
	)

	var out bytes.Buffer
	err = Sync(context.Background(), &out, env, clients, false)
	require.NotNil(t, err)

	var failure *rollout.Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, rollout.ReasonDegraded, failure.Result.Reason)
	assert.Equal(t, "crossplane-providers-dev", failure.Result.Stage)
	assert.Len(t, failure.Result.Stages, 2)
}
