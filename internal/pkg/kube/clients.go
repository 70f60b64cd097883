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

package kube

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Lazily built Kubernetes clients for one kubeconfig context. Nothing talks
// to the cluster until a client is first requested, so commands that create
// the cluster can be handed these before it exists.
type Clients struct {
	kubeconfig string
	context    string

	mu         sync.Mutex
	restConfig *rest.Config
	clientset  kubernetes.Interface
	dynamic    dynamic.Interface
}

// Returns clients for the given kubeconfig path and context. Empty values
// fall back to the usual kubeconfig loading rules and current context.
func NewClients(kubeconfig string, context string) *Clients {
	return &Clients{
		kubeconfig: kubeconfig,
		context:    context,
	}
}

// Returns clients that always return the given instances
func NewClientsFor(restConfig *rest.Config, clientset kubernetes.Interface,
	dynamicClient dynamic.Interface) *Clients {
	return &Clients{
		restConfig: restConfig,
		clientset:  clientset,
		dynamic:    dynamicClient,
	}
}

func (c *Clients) RESTConfig() (*rest.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loadRESTConfig()
}

func (c *Clients) Clientset() (kubernetes.Interface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clientset != nil {
		return c.clientset, nil
	}

	restConfig, err := c.loadRESTConfig()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "Error creating kubernetes client")
	}

	c.clientset = clientset
	return clientset, nil
}

func (c *Clients) Dynamic() (dynamic.Interface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dynamic != nil {
		return c.dynamic, nil
	}

	restConfig, err := c.loadRESTConfig()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "Error creating dynamic kubernetes client")
	}

	c.dynamic = dynamicClient
	return dynamicClient, nil
}

// must be called with the lock held
func (c *Clients) loadRESTConfig() (*rest.Config, error) {
	if c.restConfig != nil {
		return c.restConfig, nil
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if c.kubeconfig != "" {
		loadingRules.ExplicitPath = c.kubeconfig
	}

	overrides := &clientcmd.ConfigOverrides{}
	if c.context != "" {
		overrides.CurrentContext = c.context
	}

	log.Logger.Debugf("Loading kubeconfig (path='%s', context='%s')", c.kubeconfig, c.context)

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, errors.Wrapf(err, "Error loading kubeconfig for context '%s'", c.context)
	}

	c.restConfig = restConfig
	return restConfig, nil
}
