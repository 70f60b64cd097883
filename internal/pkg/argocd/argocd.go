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
	"time"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

const (
	TransportRest = "rest"
	TransportKube = "kube"

	defaultRequestTimeout = 30 * time.Second
)

// Provides clients for the cluster Argo CD runs in
type KubeSource interface {
	RESTConfig() (*rest.Config, error)
	Clientset() (kubernetes.Interface, error)
	Dynamic() (dynamic.Interface, error)
}

type Config struct {
	// 'rest' (the default) or 'kube'
	Transport string
	Namespace string
	// API server URL. If empty the REST transport port-forwards to the
	// argocd-server pod.
	Server   string
	Username string
	// if empty the initial admin password is read from the cluster
	Password       string
	Insecure       bool
	ServerPort     int
	RequestTimeout time.Duration
}

// Returns a client for the configured transport. Port-forwards are started
// here, so Close must be called on the returned client.
func New(ctx context.Context, cfg Config, kube KubeSource) (*Client, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = gitops.DefaultNamespace
	}

	switch cfg.Transport {
	case TransportKube:
		log.Logger.Debugf("Using the kubernetes API to manage applications in '%s'", cfg.Namespace)
		return newClient(newKubeTransport(kube.Dynamic)), nil
	case TransportRest, "":
		transport, err := newRestTransportFor(ctx, cfg, kube)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return newClient(transport), nil
	default:
		return nil, errors.Errorf("Unsupported Argo CD transport '%s'", cfg.Transport)
	}
}

func newRestTransportFor(ctx context.Context, cfg Config, kube KubeSource) (*restTransport, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	credentials := StaticCredentials(usernameOrDefault(cfg.Username), cfg.Password)
	if cfg.Password == "" {
		credentials = InitialAdminCredentials(cfg.Namespace, kube.Clientset)
	}

	server := cfg.Server
	insecure := cfg.Insecure
	var closer func() error

	if server == "" {
		restConfig, err := kube.RESTConfig()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		clientset, err := kube.Clientset()
		if err != nil {
			return nil, errors.WithStack(err)
		}

		forwarder := newPortForwarder(cfg.Namespace, cfg.ServerPort, restConfig, clientset)
		server, err = forwarder.Start(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		closer = func() error {
			forwarder.Stop()
			return nil
		}

		// the server uses a self-signed certificate
		insecure = true
	}

	log.Logger.Debugf("Using the Argo CD API server at %s", server)

	transport := newRestTransport(server, newHTTPClient(insecure, timeout), credentials)
	transport.closer = closer

	return transport, nil
}

func usernameOrDefault(username string) string {
	if username == "" {
		return DefaultUsername
	}
	return username
}
