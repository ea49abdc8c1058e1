package output

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var (
	expressionPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	variablePattern   = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_\.]*)\}`)
)

// TemplateEngine renders confirmation messages. It supports simple variables
// such as {name} or {title.name} and expr expressions such as {{len(paths)}}.
type TemplateEngine struct {
	mu           sync.Mutex
	programCache map[string]*vm.Program
}

// NewTemplateEngine creates a new template engine.
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		programCache: make(map[string]*vm.Program),
	}
}

// Render renders a template string with the given data.
func (t *TemplateEngine) Render(template string, data map[string]interface{}) (string, error) {
	if template == "" {
		return "", nil
	}
	if data == nil {
		data = make(map[string]interface{})
	}

	var lastErr error
	result := expressionPattern.ReplaceAllStringFunc(template, func(match string) string {
		expression := strings.TrimSpace(match[2 : len(match)-2])
		value, err := t.evaluate(expression, data)
		if err != nil {
			lastErr = err
			return match
		}
		return fmt.Sprint(value)
	})
	if lastErr != nil {
		return "", fmt.Errorf("failed to evaluate expression: %w", lastErr)
	}

	result = variablePattern.ReplaceAllStringFunc(result, func(match string) string {
		path := match[1 : len(match)-1]
		value := lookup(data, path)
		if value == nil {
			lastErr = fmt.Errorf("variable '%s' not found", path)
			return match
		}
		return formatValue(value)
	})
	if lastErr != nil {
		return "", lastErr
	}

	return result, nil
}

func (t *TemplateEngine) evaluate(expression string, data map[string]interface{}) (interface{}, error) {
	t.mu.Lock()
	program, ok := t.programCache[expression]
	t.mu.Unlock()

	if !ok {
		var err error
		program, err = expr.Compile(expression, expr.Env(data), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression '%s': %w", expression, err)
		}
		t.mu.Lock()
		t.programCache[expression] = program
		t.mu.Unlock()
	}

	result, err := expr.Run(program, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute expression '%s': %w", expression, err)
	}
	return result, nil
}

// Messages shown after successful commands.
const (
	CreatedTemplate  = "{kind} '{name}' created with ID {id}"
	NotFoundTemplate = "{kind} '{name}' not found"
)

var defaultEngine = NewTemplateEngine()

// RenderCreated renders a creation confirmation.
func RenderCreated(kind, name, id string) string {
	msg, _ := defaultEngine.Render(CreatedTemplate, map[string]interface{}{
		"kind": kind,
		"name": name,
		"id":   id,
	})
	return msg
}

// RenderNotFound renders a missing record message.
func RenderNotFound(kind, name string) string {
	msg, _ := defaultEngine.Render(NotFoundTemplate, map[string]interface{}{
		"kind": kind,
		"name": name,
	})
	return msg
}
