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
	"context"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"
)

const (
	ClusterInfoName      = "cluster-info"
	ClusterInfoNamespace = "crossplane-system"
)

// Facts about the cluster and its AWS account that Crossplane compositions
// read from the cluster-info ConfigMap
type ClusterInfo struct {
	AccountID         string
	Region            string
	Environment       string
	ClusterName       string
	VpcID             string
	OidcProvider      string
	OidcID            string
	CrossplaneRoleArn string
	// keyed by availability zone suffix, e.g. 'a'
	PrivateSubnets map[string]string
	PublicSubnets  map[string]string
	IgwID          string
	NatID          string
}

// Returns the ConfigMap data. Subnets for zones a-c are always present, empty
// if the VPC has none there.
func (c ClusterInfo) Data() map[string]string {
	data := map[string]string{
		"account_id":          c.AccountID,
		"region":              c.Region,
		"environment":         c.Environment,
		"cluster_name":        c.ClusterName,
		"vpc_id":              c.VpcID,
		"oidc_provider":       c.OidcProvider,
		"oidc_id":             c.OidcID,
		"crossplane_role_arn": c.CrossplaneRoleArn,
		"igw_id":              c.IgwID,
		"nat_id":              c.NatID,
	}

	for _, zone := range []string{"a", "b", "c"} {
		data["private_subnet_"+zone] = ""
		data["public_subnet_"+zone] = ""
	}

	for zone, id := range c.PrivateSubnets {
		data["private_subnet_"+zone] = id
	}
	for zone, id := range c.PublicSubnets {
		data["public_subnet_"+zone] = id
	}

	return data
}

func (c ClusterInfo) ConfigMap() *corev1.ConfigMap {
	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "ConfigMap",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      ClusterInfoName,
			Namespace: ClusterInfoNamespace,
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": "platformctl",
			},
		},
		Data: c.Data(),
	}
}

// Creates or updates the cluster-info ConfigMap. The namespace must exist.
func UpsertClusterInfo(ctx context.Context, clientset kubernetes.Interface, info ClusterInfo) error {
	desired := info.ConfigMap()
	configMaps := clientset.CoreV1().ConfigMaps(desired.Namespace)

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		existing, err := configMaps.Get(ctx, desired.Name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			log.Logger.Debugf("Creating ConfigMap %s/%s", desired.Namespace, desired.Name)
			_, err = configMaps.Create(ctx, desired, metav1.CreateOptions{})
			return err
		}
		if err != nil {
			return err
		}

		log.Logger.Debugf("Updating ConfigMap %s/%s", desired.Namespace, desired.Name)
		existing.Data = desired.Data
		if existing.Labels == nil {
			existing.Labels = map[string]string{}
		}
		for k, v := range desired.Labels {
			existing.Labels[k] = v
		}

		_, err = configMaps.Update(ctx, existing, metav1.UpdateOptions{})
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "Error writing ConfigMap %s/%s", desired.Namespace, desired.Name)
	}

	return nil
}
