// Package interactive prompts the user for login details and choices.
//
// On a terminal the prompts are pterm interactive widgets. When input is not
// a terminal, or interactivity is disabled, answers are read line by line
// from the configured input, so that credentials can be piped:
//
//	printf 'alice\nsecret\n' | cmsctl auth login --provider local
package interactive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// ErrNoInput is returned when input ends before an answer is read.
var ErrNoInput = errors.New("no input available")

// Prompter handles interactive user prompts.
type Prompter struct {
	reader *bufio.Reader
	output io.Writer
	// DisableInteractive reads answers from the input instead of pterm widgets.
	DisableInteractive bool
}

// PrompterConfig configures the Prompter.
type PrompterConfig struct {
	Input              io.Reader
	Output             io.Writer
	DisableInteractive bool
}

// NewPrompter creates a new Prompter with the given configuration.
// If config is nil, uses stdin and stderr, interactive only on a terminal.
func NewPrompter(config *PrompterConfig) *Prompter {
	if config == nil {
		config = &PrompterConfig{
			Input:              os.Stdin,
			Output:             os.Stderr,
			DisableInteractive: !isatty.IsTerminal(os.Stdin.Fd()),
		}
	}

	input := config.Input
	if input == nil {
		input = os.Stdin
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	return &Prompter{
		reader:             bufio.NewReader(input),
		output:             output,
		DisableInteractive: config.DisableInteractive,
	}
}

// TextPromptOptions configures a text prompt.
type TextPromptOptions struct {
	Message  string
	Default  string
	Required bool
	// Mask hides the typed characters.
	Mask bool
}

// Text prompts for text input.
func (p *Prompter) Text(opts *TextPromptOptions) (string, error) {
	if opts == nil {
		return "", fmt.Errorf("options cannot be nil")
	}

	message := opts.Message
	if opts.Default != "" {
		message = fmt.Sprintf("%s (default: %s)", message, opts.Default)
	}

	for {
		var (
			result string
			err    error
		)
		if p.DisableInteractive {
			result, err = p.readLine(message)
		} else {
			input := pterm.DefaultInteractiveTextInput.WithMultiLine(false)
			if opts.Mask {
				input = input.WithMask("*")
			}
			result, err = input.Show(message)
		}
		if err != nil {
			return "", err
		}

		result = strings.TrimSpace(result)
		if result == "" {
			result = opts.Default
		}
		if result == "" && opts.Required {
			if p.DisableInteractive {
				return "", fmt.Errorf("%s is required", strings.ToLower(opts.Message))
			}
			pterm.Error.Println("This field is required")
			continue
		}
		return result, nil
	}
}

// Password prompts for a secret.
func (p *Prompter) Password(message string) (string, error) {
	return p.Text(&TextPromptOptions{Message: message, Required: true, Mask: true})
}

// SelectPromptOptions configures a select prompt.
type SelectPromptOptions struct {
	Message string
	Options []string
	Default string
}

// Select prompts for selection from a list of options. Without a terminal
// the answer is either an option or its 1-based index.
func (p *Prompter) Select(opts *SelectPromptOptions) (string, error) {
	if opts == nil {
		return "", fmt.Errorf("options cannot be nil")
	}
	if len(opts.Options) == 0 {
		return "", fmt.Errorf("options list cannot be empty")
	}

	defaultOption := opts.Options[0]
	for _, opt := range opts.Options {
		if opt == opts.Default {
			defaultOption = opt
			break
		}
	}

	if !p.DisableInteractive {
		result, err := pterm.DefaultInteractiveSelect.
			WithOptions(opts.Options).
			WithDefaultOption(defaultOption).
			Show(opts.Message)
		if err != nil {
			return "", fmt.Errorf("failed to read selection: %w", err)
		}
		return result, nil
	}

	for i, opt := range opts.Options {
		_, _ = fmt.Fprintf(p.output, "  %d) %s\n", i+1, opt)
	}
	answer, err := p.readLine(fmt.Sprintf("%s (default: %s)", opts.Message, defaultOption))
	if err != nil {
		return "", err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultOption, nil
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(opts.Options) {
		return opts.Options[n-1], nil
	}
	for _, opt := range opts.Options {
		if opt == answer {
			return opt, nil
		}
	}
	return "", fmt.Errorf("invalid choice %q", answer)
}

// ConfirmPromptOptions configures a confirmation prompt.
type ConfirmPromptOptions struct {
	Message string
	Default bool
}

// Confirm prompts for yes/no confirmation.
func (p *Prompter) Confirm(opts *ConfirmPromptOptions) (bool, error) {
	if opts == nil {
		return false, fmt.Errorf("options cannot be nil")
	}

	if !p.DisableInteractive {
		result, err := pterm.DefaultInteractiveConfirm.
			WithDefaultValue(opts.Default).
			Show(opts.Message)
		if err != nil {
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		}
		return result, nil
	}

	hint := "y/N"
	if opts.Default {
		hint = "Y/n"
	}
	answer, err := p.readLine(fmt.Sprintf("%s [%s]", opts.Message, hint))
	if err != nil {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return opts.Default, nil
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid answer %q", answer)
	}
}

// readLine prints message and reads one line. A final line without newline
// is accepted.
func (p *Prompter) readLine(message string) (string, error) {
	_, _ = fmt.Fprintf(p.output, "%s: ", message)

	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
