package builtin

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// completionShells are the shells a completion script can be generated for.
var completionShells = []string{"bash", "zsh", "fish", "powershell"}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand(env *Env, rootCmd *cobra.Command) *cobra.Command {
	name := env.CLIName
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: fmt.Sprintf(`Generate shell completion scripts for %s.

Completion covers commands, flags, provider names and the title, book and
notification IDs used recently.

Installation:

Bash:
  $ %s completion bash > ~/.local/share/bash-completion/completions/%s

Zsh:
  $ %s completion zsh > ~/.zsh/completion/_%s
  Then add the following to ~/.zshrc:
  fpath=(~/.zsh/completion $fpath)
  autoload -Uz compinit && compinit

Fish:
  $ %s completion fish > ~/.config/fish/completions/%s.fish

PowerShell:
  $ %s completion powershell > %s.ps1
  Then add to your PowerShell profile`, name,
			name, name,
			name, name,
			name, name,
			name, name),
		ValidArgs:             completionShells,
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompletion(rootCmd, args[0], cmd.OutOrStdout())
		},
	}

	return cmd
}

// runCompletion generates the completion script for the specified shell.
func runCompletion(rootCmd *cobra.Command, shell string, w io.Writer) error {
	switch shell {
	case "bash":
		return rootCmd.GenBashCompletionV2(w, true)
	case "zsh":
		return rootCmd.GenZshCompletion(w)
	case "fish":
		return rootCmd.GenFishCompletion(w, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell: %s", shell)
	}
}

// SetupCompletionFunctions registers completion of the root persistent flags.
func SetupCompletionFunctions(cmd *cobra.Command, formats []string) {
	_ = cmd.RegisterFlagCompletionFunc("output", FixedCompletion(formats...))
	_ = cmd.RegisterFlagCompletionFunc("provider", FixedCompletion("local", "oauth"))
}

// CompletionFunc is a helper type for dynamic completion functions.
type CompletionFunc func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective)

// NoFileCompletion returns a completion function that disables file completion.
func NoFileCompletion() CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}

// FixedCompletion returns a completion function with fixed values.
func FixedCompletion(values ...string) CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}
