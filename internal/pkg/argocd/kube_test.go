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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	dynamicfake "k8s.io/client-go/dynamic/fake"
)

func newApplicationObject(name string, status map[string]interface{}) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "argoproj.io/v1alpha1",
		"kind":       "Application",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": "argocd",
		},
		"spec": map[string]interface{}{
			"project": "default",
		},
	}}

	if status != nil {
		obj.Object["status"] = status
	}

	return obj
}

func newTestKubeClient(objects ...runtime.Object) (*Client, *dynamicfake.FakeDynamicClient) {
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(
		runtime.NewScheme(),
		map[schema.GroupVersionResource]string{applicationGVR(): "ApplicationList"},
		objects...,
	)

	client := newClient(newKubeTransport(func() (dynamic.Interface, error) {
		return dyn, nil
	}))

	return client, dyn
}

func getApplicationObject(t *testing.T, dyn dynamic.Interface, name string) *unstructured.Unstructured {
	obj, err := dyn.Resource(applicationGVR()).Namespace("argocd").Get(
		context.Background(), name, metav1.GetOptions{})
	require.Nil(t, err)
	return obj
}

func TestKubeGetStatus(t *testing.T) {
	client, _ := newTestKubeClient(newApplicationObject("infrastructure", map[string]interface{}{
		"sync":   map[string]interface{}{"status": "OutOfSync"},
		"health": map[string]interface{}{"status": "Progressing"},
	}))

	state, err := client.GetStatus(context.Background(), gitops.NewApplicationRef("infrastructure"))
	require.Nil(t, err)
	assert.Equal(t, gitops.SyncStatusOutOfSync, state.Sync)
	assert.Equal(t, gitops.HealthStatusProgressing, state.Health)
}

func TestKubeStatusWithoutStatusIsUnknown(t *testing.T) {
	client, _ := newTestKubeClient(newApplicationObject("infrastructure", nil))

	state, err := client.GetStatus(context.Background(), gitops.NewApplicationRef("infrastructure"))
	require.Nil(t, err)
	assert.Equal(t, gitops.UnknownState, state)
}

func TestKubeExists(t *testing.T) {
	client, _ := newTestKubeClient(newApplicationObject("infrastructure", nil))

	exists, err := client.Exists(context.Background(), gitops.NewApplicationRef("infrastructure"))
	require.Nil(t, err)
	assert.True(t, exists)

	exists, err = client.Exists(context.Background(), gitops.NewApplicationRef("supabase"))
	require.Nil(t, err)
	assert.False(t, exists)
}

func TestKubeTriggerSyncSetsOperation(t *testing.T) {
	client, dyn := newTestKubeClient(newApplicationObject("infrastructure", nil))

	acked, err := client.TriggerSync(context.Background(), gitops.NewApplicationRef("infrastructure"))
	require.Nil(t, err)
	assert.True(t, acked)

	obj := getApplicationObject(t, dyn, "infrastructure")
	prune, found, err := unstructured.NestedBool(obj.Object, "operation", "sync", "prune")
	require.Nil(t, err)
	assert.True(t, found)
	assert.True(t, prune)

	user, _, _ := unstructured.NestedString(obj.Object, "operation", "initiatedBy", "username")
	assert.Equal(t, initiatedBy, user)

	force, found, _ := unstructured.NestedBool(obj.Object, "operation", "sync", "syncStrategy", "apply", "force")
	assert.True(t, found)
	assert.False(t, force)

	// a second request is refused while the first is pending
	acked, err = client.TriggerSync(context.Background(), gitops.NewApplicationRef("infrastructure"))
	require.Nil(t, err)
	assert.False(t, acked)
}

func TestKubeTriggerSyncWhileRunning(t *testing.T) {
	client, _ := newTestKubeClient(newApplicationObject("infrastructure", map[string]interface{}{
		"operationState": map[string]interface{}{"phase": "Running"},
	}))

	acked, err := client.TriggerSync(context.Background(), gitops.NewApplicationRef("infrastructure"))
	require.Nil(t, err)
	assert.False(t, acked)
}

func TestKubeTriggerSyncMissingApplication(t *testing.T) {
	client, _ := newTestKubeClient()

	acked, err := client.TriggerSync(context.Background(), gitops.NewApplicationRef("supabase"))
	require.Nil(t, err)
	assert.False(t, acked)
}

func TestKubeEnableAutoSync(t *testing.T) {
	client, dyn := newTestKubeClient(newApplicationObject("supabase", nil))

	ok, err := client.EnableAutoSync(context.Background(), gitops.NewApplicationRef("supabase"))
	require.Nil(t, err)
	assert.True(t, ok)

	obj := getApplicationObject(t, dyn, "supabase")
	selfHeal, _, _ := unstructured.NestedBool(obj.Object, "spec", "syncPolicy", "automated", "selfHeal")
	prune, _, _ := unstructured.NestedBool(obj.Object, "spec", "syncPolicy", "automated", "prune")
	project, _, _ := unstructured.NestedString(obj.Object, "spec", "project")
	assert.True(t, selfHeal)
	assert.True(t, prune)
	assert.Equal(t, "default", project)
}

func TestKubeClientErrorsAreSessionErrors(t *testing.T) {
	client := newClient(newKubeTransport(func() (dynamic.Interface, error) {
		return nil, assert.AnError
	}))

	_, err := client.GetStatus(context.Background(), gitops.NewApplicationRef("supabase"))
	assert.True(t, gitops.IsSessionError(err))
	assert.Contains(t, err.Error(), assert.AnError.Error())
}
