package builtin

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// VersionInfo contains version information about the CLI.
type VersionInfo struct {
	ClientVersion string    `json:"client_version" yaml:"client_version"`
	CMSAPI        string    `json:"cms_api,omitempty" yaml:"cms_api,omitempty"`
	Built         time.Time `json:"built,omitempty" yaml:"built,omitempty"`
	GoVersion     string    `json:"go_version" yaml:"go_version"`
	Platform      string    `json:"platform" yaml:"platform"`
	Compiler      string    `json:"compiler" yaml:"compiler"`
}

// VersionOptions configures the version command behavior.
type VersionOptions struct {
	Version   string
	BuildTime time.Time
	// CMSAPI returns the configured API root, empty when unknown.
	CMSAPI       func() string
	OutputFormat string
}

// NewVersionCommand creates a new version command.
func NewVersionCommand(opts *VersionOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version information of the cmsctl binary.

The version command shows:
- the client version
- the configured CMS API, when known
- build information (build time, Go version, platform)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.OutputFormat, "format", "text", "Output format (text|json|yaml)")
	_ = cmd.RegisterFlagCompletionFunc("format", FixedCompletion("text", "json", "yaml"))

	return cmd
}

// runVersion executes the version command.
func runVersion(opts *VersionOptions, w io.Writer) error {
	info := &VersionInfo{
		ClientVersion: opts.Version,
		GoVersion:     runtime.Version(),
		Platform:      fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Compiler:      runtime.Compiler,
		Built:         opts.BuildTime,
	}
	if opts.CMSAPI != nil {
		info.CMSAPI = opts.CMSAPI()
	}

	switch opts.OutputFormat {
	case "json":
		return formatVersionJSON(info, w)
	case "yaml":
		return formatVersionYAML(info, w)
	case "text", "":
		return formatVersionText(info, w)
	default:
		return fmt.Errorf("unsupported format %q", opts.OutputFormat)
	}
}

// formatVersionText formats version info as human-readable text.
func formatVersionText(info *VersionInfo, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "Client Version: %s\n", info.ClientVersion)

	if info.CMSAPI != "" {
		_, _ = fmt.Fprintf(w, "CMS API: %s\n", info.CMSAPI)
	}

	if !info.Built.IsZero() {
		_, _ = fmt.Fprintf(w, "Built: %s\n", info.Built.Format(time.RFC3339))
	}

	_, _ = fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
	_, _ = fmt.Fprintf(w, "Platform: %s\n", info.Platform)
	_, _ = fmt.Fprintf(w, "Compiler: %s\n", info.Compiler)

	return nil
}

// formatVersionJSON formats version info as JSON.
func formatVersionJSON(info *VersionInfo, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatVersionYAML formats version info as YAML.
func formatVersionYAML(info *VersionInfo, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(info); err != nil {
		return err
	}
	return encoder.Close()
}

// VersionShort returns a short version string suitable for the --version flag.
func VersionShort(version string, built time.Time) string {
	if built.IsZero() {
		return version
	}
	return fmt.Sprintf("%s (built %s)", version, built.Format("2006-01-02"))
}
