// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"context"
	"errors"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	smv2 "github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/tidwall/gjson"
)

// ErrSecretField is returned when the secret JSON lacks the requested field.
var ErrSecretField = errors.New("secret field not found")

// SecretField fetches a JSON secret and returns the named top-level field.
func SecretField(ctx context.Context, api SecretsAPI, secretID, field string) (string, error) {
	out, err := api.GetSecretValue(ctx, &smv2.GetSecretValueInput{
		SecretId: awsv2.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", secretID, err)
	}

	body := awsv2.ToString(out.SecretString)
	if body == "" && len(out.SecretBinary) > 0 {
		body = string(out.SecretBinary)
	}
	if !gjson.Valid(body) {
		return "", fmt.Errorf("secret %s is not JSON", secretID)
	}

	v := gjson.Get(body, gjson.Escape(field))
	if !v.Exists() {
		return "", fmt.Errorf("%w: %s in %s", ErrSecretField, field, secretID)
	}
	return v.String(), nil
}

// SecretPassword returns the "password" field of a database credential
// secret as written by RDS and Redshift managed secrets.
func SecretPassword(ctx context.Context, api SecretsAPI, secretID string) (string, error) {
	return SecretField(ctx, api, secretID, "password")
}
