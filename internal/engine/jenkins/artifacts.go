package jenkins

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"

	"buildflow/internal/engine"
)

// Artifacts lists the artifacts archived by a build.
func (c *Client) Artifacts(ctx context.Context, jobName string, number int) ([]engine.Artifact, error) {
	info, err := c.BuildDetails(ctx, jobName, number)
	if err != nil {
		return nil, err
	}
	return info.Artifacts, nil
}

// FetchArtifact returns the bytes of one artifact of a build. namePattern is
// matched against artifact file names, first as an exact name and then as a
// regular expression; the first match wins.
func (c *Client) FetchArtifact(ctx context.Context, jobName string, number int, namePattern string) ([]byte, error) {
	if namePattern == "" {
		return nil, fmt.Errorf("artifact name cannot be empty")
	}

	artifacts, err := c.Artifacts(ctx, jobName, number)
	if err != nil {
		return nil, err
	}

	artifact, err := matchArtifact(artifacts, namePattern)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/%d/artifact/%s", jobPath(jobName), number, escapeArtifactPath(artifact.RelativePath))
	return c.get(ctx, path)
}

// SaveArtifact fetches one artifact and writes it to outputPath.
func (c *Client) SaveArtifact(ctx context.Context, jobName string, number int, namePattern, outputPath string) error {
	data, err := c.FetchArtifact(ctx, jobName, number, namePattern)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// matchArtifact picks the artifact matching namePattern. Exact file-name
// matches take priority so a literal name never loses to a looser regexp
// interpretation of itself.
func matchArtifact(artifacts []engine.Artifact, namePattern string) (engine.Artifact, error) {
	for _, a := range artifacts {
		if a.FileName == namePattern {
			return a, nil
		}
	}

	re, err := regexp.Compile(namePattern)
	if err != nil {
		return engine.Artifact{}, fmt.Errorf("no artifact named %q and pattern does not compile: %v", namePattern, err)
	}
	for _, a := range artifacts {
		if re.MatchString(a.FileName) {
			return a, nil
		}
	}

	return engine.Artifact{}, fmt.Errorf("no artifact matching %q", namePattern)
}

// escapeArtifactPath escapes each segment of a relative artifact path while
// keeping the separators.
func escapeArtifactPath(relativePath string) string {
	u := &url.URL{Path: relativePath}
	return u.EscapedPath()
}
