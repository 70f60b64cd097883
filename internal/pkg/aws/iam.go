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
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/log"
	"github.com/sugarkube/platformctl/internal/pkg/printer"
)

const (
	CrossplaneRoleName     = "crossplane-provider-aws"
	PermissionBoundaryName = "crossplaneBoundary"

	administratorAccessArn = "arn:aws:iam::aws:policy/AdministratorAccess"
	// service accounts the AWS providers run as
	crossplaneServiceAccounts = "system:serviceaccount:crossplane-system:provider-aws-*"
)

func CrossplaneRoleArn(accountID string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, CrossplaneRoleName)
}

func PermissionBoundaryArn(accountID string) string {
	return fmt.Sprintf("arn:aws:iam::%s:policy/%s", accountID, PermissionBoundaryName)
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string                       `json:"Effect"`
	Principal map[string]string            `json:"Principal,omitempty"`
	Action    string                       `json:"Action"`
	Condition map[string]map[string]string `json:"Condition,omitempty"`
}

// Returns a trust policy letting the Crossplane AWS providers assume a role
// through the cluster's OIDC provider
func crossplaneTrustPolicy(accountID string, oidcProvider string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect: "Allow",
				Principal: map[string]string{
					"Federated": fmt.Sprintf("arn:aws:iam::%s:oidc-provider/%s", accountID, oidcProvider),
				},
				Action: "sts:AssumeRoleWithWebIdentity",
				Condition: map[string]map[string]string{
					"StringLike": {
						oidcProvider + ":sub": crossplaneServiceAccounts,
					},
				},
			},
		},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return string(data), nil
}

func isNoSuchEntity(err error) bool {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		return awsErr.Code() == iam.ErrCodeNoSuchEntityException
	}
	return false
}

func (s *Service) PolicyExists(ctx context.Context, policyArn string) (bool, error) {
	_, err := s.iam.GetPolicyWithContext(ctx, &iam.GetPolicyInput{
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		if isNoSuchEntity(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "Error getting IAM policy '%s'", policyArn)
	}

	return true, nil
}

func (s *Service) RoleExists(ctx context.Context, roleName string) (bool, error) {
	_, err := s.iam.GetRoleWithContext(ctx, &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if isNoSuchEntity(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "Error getting IAM role '%s'", roleName)
	}

	return true, nil
}

// Creates the permission boundary policy from a JSON document unless it
// exists. Returns whether it was created.
func (s *Service) EnsurePermissionBoundary(ctx context.Context, accountID string,
	documentPath string) (bool, error) {
	exists, err := s.PolicyExists(ctx, PermissionBoundaryArn(accountID))
	if err != nil {
		return false, errors.WithStack(err)
	}

	if exists {
		_, err = printer.Fprintf("[yellow]Permission boundary %s already exists\n",
			PermissionBoundaryName)
		return false, errors.WithStack(err)
	}

	document, err := os.ReadFile(documentPath)
	if err != nil {
		return false, errors.Wrapf(err, "Error reading permission boundary '%s'", documentPath)
	}

	if !json.Valid(document) {
		return false, errors.Errorf("Permission boundary '%s' isn't valid JSON", documentPath)
	}

	_, err = s.iam.CreatePolicyWithContext(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(PermissionBoundaryName),
		PolicyDocument: aws.String(string(document)),
	})
	if err != nil {
		return false, errors.Wrapf(err, "Error creating IAM policy '%s'", PermissionBoundaryName)
	}

	_, err = printer.Fprintf("[green]Created permission boundary %s\n", PermissionBoundaryName)
	return true, errors.WithStack(err)
}

// Creates the role the Crossplane AWS providers assume unless it exists.
// Returns whether it was created.
func (s *Service) EnsureCrossplaneRole(ctx context.Context, accountID string,
	oidcProvider string) (bool, error) {
	exists, err := s.RoleExists(ctx, CrossplaneRoleName)
	if err != nil {
		return false, errors.WithStack(err)
	}

	if exists {
		_, err = printer.Fprintf("[yellow]Crossplane role %s already exists\n", CrossplaneRoleName)
		return false, errors.WithStack(err)
	}

	if oidcProvider == "" {
		return false, errors.New("The cluster's OIDC provider is required to create the Crossplane role")
	}

	trustPolicy, err := crossplaneTrustPolicy(accountID, oidcProvider)
	if err != nil {
		return false, errors.WithStack(err)
	}

	log.Logger.Debugf("Creating role %s with trust policy: %s", CrossplaneRoleName, trustPolicy)

	_, err = s.iam.CreateRoleWithContext(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(CrossplaneRoleName),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
		PermissionsBoundary:      aws.String(PermissionBoundaryArn(accountID)),
	})
	if err != nil {
		return false, errors.Wrapf(err, "Error creating IAM role '%s'", CrossplaneRoleName)
	}

	_, err = s.iam.AttachRolePolicyWithContext(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(CrossplaneRoleName),
		PolicyArn: aws.String(administratorAccessArn),
	})
	if err != nil {
		return false, errors.Wrapf(err, "Error attaching policy to IAM role '%s'", CrossplaneRoleName)
	}

	_, err = printer.Fprintf("[green]Created Crossplane role %s\n", CrossplaneRoleName)
	return true, errors.WithStack(err)
}
