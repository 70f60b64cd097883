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
	"strings"

	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	DefaultUsername    = "admin"
	initialAdminSecret = "argocd-initial-admin-secret"
	passwordKey        = "password"
)

// Returns a username and password to log in with
type CredentialsFunc func(ctx context.Context) (username string, password string, err error)

// Returns fixed credentials
func StaticCredentials(username string, password string) CredentialsFunc {
	return func(ctx context.Context) (string, string, error) {
		return username, password, nil
	}
}

// Returns the admin credentials Argo CD generates on installation
func InitialAdminCredentials(namespace string, clientset func() (kubernetes.Interface, error)) CredentialsFunc {
	return func(ctx context.Context) (string, string, error) {
		client, err := clientset()
		if err != nil {
			return "", "", errors.WithStack(err)
		}

		password, err := initialAdminPassword(ctx, client, namespace)
		if err != nil {
			return "", "", errors.WithStack(err)
		}

		return DefaultUsername, password, nil
	}
}

func initialAdminPassword(ctx context.Context, client kubernetes.Interface, namespace string) (string, error) {
	secret, err := client.CoreV1().Secrets(namespace).Get(ctx, initialAdminSecret, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "Error reading secret %s/%s", namespace, initialAdminSecret)
	}

	// the typed client has already base64-decoded secret data
	password, ok := secret.Data[passwordKey]
	if !ok || len(password) == 0 {
		return "", errors.Errorf("Secret %s/%s has no '%s' key", namespace,
			initialAdminSecret, passwordKey)
	}

	return strings.TrimSpace(string(password)), nil
}
