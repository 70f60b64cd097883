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
	"fmt"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

const (
	serverSelector = "app.kubernetes.io/name=argocd-server"
	// port the argocd-server container listens on
	DefaultServerPort = 8080
)

// Forwards a local port to the Argo CD API server pod
type portForwarder struct {
	namespace  string
	remotePort int
	clientset  kubernetes.Interface
	restConfig *rest.Config

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan error
}

func newPortForwarder(namespace string, remotePort int, restConfig *rest.Config,
	clientset kubernetes.Interface) *portForwarder {
	if remotePort == 0 {
		remotePort = DefaultServerPort
	}

	return &portForwarder{
		namespace:  namespace,
		remotePort: remotePort,
		clientset:  clientset,
		restConfig: restConfig,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan error, 1),
	}
}

// Returns the name of a running API server pod
func (p *portForwarder) serverPod(ctx context.Context) (string, error) {
	pods, err := p.clientset.CoreV1().Pods(p.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: serverSelector,
	})
	if err != nil {
		return "", errors.Wrapf(err, "Error listing pods in namespace '%s'", p.namespace)
	}

	for _, pod := range pods.Items {
		if pod.Status.Phase == "Running" {
			return pod.Name, nil
		}
	}

	if len(pods.Items) > 0 {
		return pods.Items[0].Name, nil
	}

	return "", errors.Errorf("No argocd-server pod found in namespace '%s'", p.namespace)
}

// Starts forwarding and returns the base URL of the local end. Stop must be
// called to release the port.
func (p *portForwarder) Start(ctx context.Context) (string, error) {
	podName, err := p.serverPod(ctx)
	if err != nil {
		return "", errors.WithStack(err)
	}

	roundTripper, upgrader, err := spdy.RoundTripperFor(p.restConfig)
	if err != nil {
		return "", errors.Wrap(err, "Error creating port-forward transport")
	}

	request := p.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(p.namespace).
		Name(podName).
		SubResource("portforward")

	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: roundTripper},
		http.MethodPost, request.URL())

	readyCh := make(chan struct{})
	out := log.Logger.WriterLevel(logrus.DebugLevel)
	errOut := log.Logger.WriterLevel(logrus.WarnLevel)

	// port 0 picks a free local port
	forwarder, err := portforward.NewOnAddresses(dialer, []string{"127.0.0.1"},
		[]string{fmt.Sprintf("0:%d", p.remotePort)}, p.stopCh, readyCh, out, errOut)
	if err != nil {
		return "", errors.Wrap(err, "Error creating port-forwarder")
	}

	log.Logger.Debugf("Port-forwarding to pod %s/%s port %d", p.namespace, podName, p.remotePort)

	go func() {
		p.doneCh <- forwarder.ForwardPorts()
		_ = out.Close()
		_ = errOut.Close()
	}()

	select {
	case <-readyCh:
	case err := <-p.doneCh:
		if err == nil {
			return "", errors.Errorf("Port-forward to %s stopped before it was ready", podName)
		}
		return "", errors.Wrapf(err, "Port-forward to %s failed", podName)
	case <-ctx.Done():
		p.Stop()
		return "", ctx.Err()
	}

	ports, err := forwarder.GetPorts()
	if err != nil {
		p.Stop()
		return "", errors.Wrap(err, "Error getting forwarded port")
	}
	if len(ports) == 0 {
		p.Stop()
		return "", errors.New("No ports were forwarded")
	}

	return fmt.Sprintf("https://127.0.0.1:%d", ports[0].Local), nil
}

func (p *portForwarder) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
}
