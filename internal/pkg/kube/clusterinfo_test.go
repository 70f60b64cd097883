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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sfake "k8s.io/client-go/kubernetes/fake"
)

func testClusterInfo() ClusterInfo {
	return ClusterInfo{
		AccountID:         "123456789012",
		Region:            "us-east-1",
		Environment:       "dev",
		ClusterName:       "stack-test",
		VpcID:             "vpc-1",
		OidcProvider:      "oidc.eks.us-east-1.amazonaws.com/id/ABCDEF",
		OidcID:            "ABCDEF",
		CrossplaneRoleArn: "arn:aws:iam::123456789012:role/crossplane-provider-aws",
		PrivateSubnets:    map[string]string{"a": "subnet-pa", "b": "subnet-pb"},
		PublicSubnets:     map[string]string{"a": "subnet-ua", "d": "subnet-ud"},
		IgwID:             "igw-1",
		NatID:             "nat-1",
	}
}

func TestClusterInfoData(t *testing.T) {
	data := testClusterInfo().Data()

	assert.Equal(t, "123456789012", data["account_id"])
	assert.Equal(t, "ABCDEF", data["oidc_id"])
	assert.Equal(t, "subnet-pa", data["private_subnet_a"])
	assert.Equal(t, "subnet-pb", data["private_subnet_b"])
	assert.Equal(t, "", data["private_subnet_c"])
	assert.Equal(t, "subnet-ua", data["public_subnet_a"])
	assert.Equal(t, "subnet-ud", data["public_subnet_d"])

	_, ok := data["public_subnet_c"]
	assert.True(t, ok)
}

func TestUpsertClusterInfoCreates(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset()

	err := UpsertClusterInfo(context.Background(), clientset, testClusterInfo())
	require.Nil(t, err)

	cm, err := clientset.CoreV1().ConfigMaps(ClusterInfoNamespace).Get(
		context.Background(), ClusterInfoName, metav1.GetOptions{})
	require.Nil(t, err)
	assert.Equal(t, "vpc-1", cm.Data["vpc_id"])
	assert.Equal(t, "platformctl", cm.Labels["app.kubernetes.io/managed-by"])
}

func TestUpsertClusterInfoUpdates(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ClusterInfoName,
			Namespace: ClusterInfoNamespace,
			Labels:    map[string]string{"team": "platform"},
		},
		Data: map[string]string{"vpc_id": "vpc-old", "stale": "value"},
	})

	err := UpsertClusterInfo(context.Background(), clientset, testClusterInfo())
	require.Nil(t, err)

	cm, err := clientset.CoreV1().ConfigMaps(ClusterInfoNamespace).Get(
		context.Background(), ClusterInfoName, metav1.GetOptions{})
	require.Nil(t, err)
	assert.Equal(t, "vpc-1", cm.Data["vpc_id"])
	assert.NotContains(t, cm.Data, "stale")
	assert.Equal(t, "platform", cm.Labels["team"])
}
