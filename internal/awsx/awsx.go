// Package awsx builds AWS service clients from environment credentials.
// Credentials are never read from project configuration files; they come
// from the environment (optionally seeded by the project's .env file).
package awsx

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/codeartifact"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// CredentialsFromEnv builds a static credentials provider from
// AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY (and optional AWS_SESSION_TOKEN).
func CredentialsFromEnv() (aws.CredentialsProvider, error) {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return credentials.NewStaticCredentialsProvider(accessKey, secretKey, os.Getenv("AWS_SESSION_TOKEN")), nil
}

// Region resolves the effective region: the explicit value when set,
// otherwise AWS_REGION from the environment.
func Region(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region, nil
	}
	return "", fmt.Errorf("no AWS region configured and AWS_REGION is not set")
}

// NewS3Client creates an S3 client for the doc host.
func NewS3Client(region string) (*s3.Client, error) {
	region, err := Region(region)
	if err != nil {
		return nil, err
	}
	creds, err := CredentialsFromEnv()
	if err != nil {
		return nil, err
	}
	return s3.New(s3.Options{Region: region, Credentials: creds}), nil
}

// NewCodeArtifactClient creates a client for the artifact registry.
func NewCodeArtifactClient(region string) (*codeartifact.Client, error) {
	region, err := Region(region)
	if err != nil {
		return nil, err
	}
	creds, err := CredentialsFromEnv()
	if err != nil {
		return nil, err
	}
	return codeartifact.New(codeartifact.Options{Region: region, Credentials: creds}), nil
}
