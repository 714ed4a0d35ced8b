package publish

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codeartifact"
	catypes "github.com/aws/aws-sdk-go-v2/service/codeartifact/types"
	"github.com/aws/smithy-go"

	"github.com/projops/projops/internal/config"
)

// Registry abstracts the artifact registry so the publisher can be tested
// without AWS. Implementations map remote failures onto ErrAuth, ErrConflict
// and ErrNotFound.
type Registry interface {
	Exists(ctx context.Context, version string) (bool, error)
	Publish(ctx context.Context, version, assetName, assetSHA256 string, asset io.Reader) error
	Remove(ctx context.Context, version string) error
}

// caAPI is the CodeArtifact client surface the registry needs.
type caAPI interface {
	DescribePackageVersion(ctx context.Context, in *codeartifact.DescribePackageVersionInput, opts ...func(*codeartifact.Options)) (*codeartifact.DescribePackageVersionOutput, error)
	PublishPackageVersion(ctx context.Context, in *codeartifact.PublishPackageVersionInput, opts ...func(*codeartifact.Options)) (*codeartifact.PublishPackageVersionOutput, error)
	DeletePackageVersions(ctx context.Context, in *codeartifact.DeletePackageVersionsInput, opts ...func(*codeartifact.Options)) (*codeartifact.DeletePackageVersionsOutput, error)
}

// CodeArtifactRegistry publishes generic-format packages to AWS CodeArtifact.
type CodeArtifactRegistry struct {
	client caAPI
	cfg    config.RegistryConfig
	pkg    string
}

// NewCodeArtifactRegistry creates a registry bound to one package.
func NewCodeArtifactRegistry(client caAPI, cfg config.RegistryConfig, pkg string) *CodeArtifactRegistry {
	return &CodeArtifactRegistry{client: client, cfg: cfg, pkg: pkg}
}

// Exists reports whether the version is already published.
func (r *CodeArtifactRegistry) Exists(ctx context.Context, version string) (bool, error) {
	_, err := r.client.DescribePackageVersion(ctx, &codeartifact.DescribePackageVersionInput{
		Domain:         aws.String(r.cfg.Domain),
		Repository:     aws.String(r.cfg.Repository),
		Format:         catypes.PackageFormatGeneric,
		Namespace:      aws.String(r.cfg.Namespace),
		Package:        aws.String(r.pkg),
		PackageVersion: aws.String(version),
	})
	if err != nil {
		mapped := mapAPIError(err)
		if errors.Is(mapped, ErrNotFound) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

// Publish uploads the artifact as the sole asset of a new package version.
func (r *CodeArtifactRegistry) Publish(ctx context.Context, version, assetName, assetSHA256 string, asset io.Reader) error {
	_, err := r.client.PublishPackageVersion(ctx, &codeartifact.PublishPackageVersionInput{
		Domain:         aws.String(r.cfg.Domain),
		Repository:     aws.String(r.cfg.Repository),
		Format:         catypes.PackageFormatGeneric,
		Namespace:      aws.String(r.cfg.Namespace),
		Package:        aws.String(r.pkg),
		PackageVersion: aws.String(version),
		AssetName:      aws.String(assetName),
		AssetSHA256:    aws.String(assetSHA256),
		AssetContent:   asset,
	})
	return mapAPIError(err)
}

// Remove deletes one published version. Removing an absent version is
// ErrNotFound and leaves the registry untouched.
func (r *CodeArtifactRegistry) Remove(ctx context.Context, version string) error {
	out, err := r.client.DeletePackageVersions(ctx, &codeartifact.DeletePackageVersionsInput{
		Domain:     aws.String(r.cfg.Domain),
		Repository: aws.String(r.cfg.Repository),
		Format:     catypes.PackageFormatGeneric,
		Namespace:  aws.String(r.cfg.Namespace),
		Package:    aws.String(r.pkg),
		Versions:   []string{version},
	})
	if err != nil {
		return mapAPIError(err)
	}
	if fail, ok := out.FailedVersions[version]; ok {
		if fail.ErrorCode == catypes.PackageVersionErrorCodeNotFound {
			return fmt.Errorf("%w: %s %s", ErrNotFound, r.pkg, version)
		}
		return fmt.Errorf("deleting %s %s: %s", r.pkg, version, aws.ToString(fail.ErrorMessage))
	}
	if _, ok := out.SuccessfulVersions[version]; !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, r.pkg, version)
	}
	return nil
}

// mapAPIError folds CodeArtifact error codes into the package sentinels so
// callers never match on AWS types.
func mapAPIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnauthorizedException":
			return fmt.Errorf("%w: %s", ErrAuth, apiErr.ErrorMessage())
		case "ConflictException":
			return fmt.Errorf("%w: %s", ErrConflict, apiErr.ErrorMessage())
		case "ResourceNotFoundException":
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.ErrorMessage())
		}
	}
	return err
}
