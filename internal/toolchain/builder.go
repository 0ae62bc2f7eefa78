package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/security"
)

// CommandBuilder satisfies the worker's Builder interface by running the
// profile's build command through "sh -c". Stdout and stderr are captured
// into one buffer and returned as the build logs, on failure too.
type CommandBuilder struct {
	config      *Config
	artifactDir string
}

// NewCommandBuilder returns a builder that writes artifacts under
// artifactDir. A nil config falls back to Default().
func NewCommandBuilder(config *Config, artifactDir string) *CommandBuilder {
	if config == nil {
		config = Default()
	}
	if artifactDir == "" {
		artifactDir = os.TempDir()
	}
	return &CommandBuilder{config: config, artifactDir: artifactDir}
}

// Build runs the platform profile for the app and stats the produced
// artifact. Missing profiles and invalid package names fail permanently;
// command failures are left retryable with the captured output attached.
func (b *CommandBuilder) Build(ctx context.Context, app *core.App, job *core.BuildJob) (*core.BuildResult, error) {
	profile, ok := b.config.Profiles[app.Platform]
	if !ok {
		return nil, core.NoRetry(fmt.Errorf("no toolchain profile for platform %q", app.Platform))
	}
	if err := security.ValidatePackageName(app.PackageName); err != nil {
		return nil, core.NoRetry(fmt.Errorf("package name %q: %w", app.PackageName, err))
	}

	version := app.VersionCode + 1
	artifact := filepath.Join(b.artifactDir, render(profile.Artifact, app, version, ""))
	if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", render(profile.Build, app, version, artifact))
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return &core.BuildResult{Logs: out.String()}, fmt.Errorf("build command: %w", err)
	}

	info, err := os.Stat(artifact)
	if err != nil {
		return &core.BuildResult{Logs: out.String()}, fmt.Errorf("build produced no artifact at %s: %w", artifact, err)
	}

	return &core.BuildResult{
		PackageName:  app.PackageName,
		VersionCode:  version,
		ArtifactPath: artifact,
		ArtifactMime: profile.Mime,
		ArtifactSize: info.Size(),
		Logs:         out.String(),
	}, nil
}

func render(tmpl string, app *core.App, version int, artifact string) string {
	r := strings.NewReplacer(
		"{{app}}", app.ID,
		"{{package}}", app.PackageName,
		"{{version}}", strconv.Itoa(version),
		"{{artifact}}", artifact,
	)
	return r.Replace(tmpl)
}
