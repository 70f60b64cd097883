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

package aws

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/eks"
	"github.com/aws/aws-sdk-go/service/eks/eksiface"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/kube"
	"github.com/sugarkube/platformctl/internal/pkg/log"
)

// Reads and creates the AWS resources a platform cluster needs
type Service struct {
	region string
	sts    stsiface.STSAPI
	eks    eksiface.EKSAPI
	ec2    ec2iface.EC2API
	iam    iamiface.IAMAPI
}

// Details of an EKS cluster
type Cluster struct {
	Name  string
	VpcID string
	// issuer URL without the scheme, e.g. oidc.eks.us-east-1.amazonaws.com/id/ABC
	OidcProvider string
	OidcID       string
}

// Returns a service using the default credential chain
func NewService(region string) (*Service, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(region)},
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Error creating AWS session")
	}

	return NewServiceWith(region, sts.New(sess), eks.New(sess), ec2.New(sess), iam.New(sess)), nil
}

// Returns a service using the given clients
func NewServiceWith(region string, stsClient stsiface.STSAPI, eksClient eksiface.EKSAPI,
	ec2Client ec2iface.EC2API, iamClient iamiface.IAMAPI) *Service {
	return &Service{
		region: region,
		sts:    stsClient,
		eks:    eksClient,
		ec2:    ec2Client,
		iam:    iamClient,
	}
}

func (s *Service) Region() string {
	return s.region
}

// Returns the ID of the account the credentials belong to
func (s *Service) AccountID(ctx context.Context) (string, error) {
	out, err := s.sts.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", errors.Wrap(err, "Error getting the caller identity")
	}

	return aws.StringValue(out.Account), nil
}

func (s *Service) ClusterInfo(ctx context.Context, name string) (*Cluster, error) {
	out, err := s.eks.DescribeClusterWithContext(ctx, &eks.DescribeClusterInput{
		Name: aws.String(name),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Error describing EKS cluster '%s'", name)
	}

	cluster := &Cluster{Name: name}

	if out.Cluster.ResourcesVpcConfig != nil {
		cluster.VpcID = aws.StringValue(out.Cluster.ResourcesVpcConfig.VpcId)
	}

	if out.Cluster.Identity != nil && out.Cluster.Identity.Oidc != nil {
		issuer := aws.StringValue(out.Cluster.Identity.Oidc.Issuer)
		cluster.OidcProvider = strings.TrimPrefix(issuer, "https://")
		parts := strings.Split(cluster.OidcProvider, "/")
		cluster.OidcID = parts[len(parts)-1]
	}

	if cluster.VpcID == "" {
		return nil, errors.Errorf("EKS cluster '%s' has no VPC", name)
	}

	log.Logger.Debugf("EKS cluster '%s': %#v", name, cluster)

	return cluster, nil
}

// Returns the VPC's private and public subnet IDs keyed by the suffix of
// their availability zone. Subnets that map public IPs on launch are public.
func (s *Service) Subnets(ctx context.Context, vpcID string) (map[string]string, map[string]string, error) {
	private := map[string]string{}
	public := map[string]string{}

	err := s.ec2.DescribeSubnetsPagesWithContext(ctx, &ec2.DescribeSubnetsInput{
		Filters: []*ec2.Filter{vpcFilter("vpc-id", vpcID)},
	}, func(page *ec2.DescribeSubnetsOutput, lastPage bool) bool {
		for _, subnet := range page.Subnets {
			az := aws.StringValue(subnet.AvailabilityZone)
			if az == "" {
				continue
			}
			suffix := az[len(az)-1:]

			if aws.BoolValue(subnet.MapPublicIpOnLaunch) {
				public[suffix] = aws.StringValue(subnet.SubnetId)
			} else {
				private[suffix] = aws.StringValue(subnet.SubnetId)
			}
		}
		return true
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Error describing subnets in VPC '%s'", vpcID)
	}

	return private, public, nil
}

// Returns the ID of the internet gateway attached to the VPC, or an empty
// string if there isn't one
func (s *Service) InternetGateway(ctx context.Context, vpcID string) (string, error) {
	out, err := s.ec2.DescribeInternetGatewaysWithContext(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []*ec2.Filter{vpcFilter("attachment.vpc-id", vpcID)},
	})
	if err != nil {
		return "", errors.Wrapf(err, "Error describing internet gateways in VPC '%s'", vpcID)
	}

	if len(out.InternetGateways) == 0 {
		return "", nil
	}

	return aws.StringValue(out.InternetGateways[0].InternetGatewayId), nil
}

// Returns the ID of an available NAT gateway in the VPC, or an empty string
// if there isn't one
func (s *Service) NatGateway(ctx context.Context, vpcID string) (string, error) {
	out, err := s.ec2.DescribeNatGatewaysWithContext(ctx, &ec2.DescribeNatGatewaysInput{
		Filter: []*ec2.Filter{
			vpcFilter("vpc-id", vpcID),
			{Name: aws.String("state"), Values: aws.StringSlice([]string{ec2.NatGatewayStateAvailable})},
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "Error describing NAT gateways in VPC '%s'", vpcID)
	}

	if len(out.NatGateways) == 0 {
		return "", nil
	}

	return aws.StringValue(out.NatGateways[0].NatGatewayId), nil
}

// Fills in the account and network details of the cluster named in info
func (s *Service) PopulateClusterInfo(ctx context.Context, info *kube.ClusterInfo) error {
	accountID, err := s.AccountID(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	info.AccountID = accountID
	info.Region = s.region
	info.CrossplaneRoleArn = CrossplaneRoleArn(accountID)

	cluster, err := s.ClusterInfo(ctx, info.ClusterName)
	if err != nil {
		return errors.WithStack(err)
	}
	info.VpcID = cluster.VpcID
	info.OidcProvider = cluster.OidcProvider
	info.OidcID = cluster.OidcID

	info.PrivateSubnets, info.PublicSubnets, err = s.Subnets(ctx, cluster.VpcID)
	if err != nil {
		return errors.WithStack(err)
	}

	info.IgwID, err = s.InternetGateway(ctx, cluster.VpcID)
	if err != nil {
		return errors.WithStack(err)
	}

	info.NatID, err = s.NatGateway(ctx, cluster.VpcID)
	if err != nil {
		return errors.WithStack(err)
	}

	log.Logger.Infof("Populated cluster info for '%s' in account %s", info.ClusterName, accountID)

	return nil
}

func vpcFilter(name string, vpcID string) *ec2.Filter {
	return &ec2.Filter{
		Name:   aws.String(name),
		Values: aws.StringSlice([]string{vpcID}),
	}
}
