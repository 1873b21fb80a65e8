package workflow

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Parameter values starting with "=" are expressions. Every {{ ... }} block
// inside is evaluated against the current item:
//
//	={{ $json.url }}                       -> typed result of the block
//	=https://cdn.example.com/{{ $json.k }} -> string with the block interpolated
//	=plain                                 -> "plain"
//
// Available variables: $json (current item), $parameter (raw node
// parameters), $itemIndex.

var templateBlock = regexp.MustCompile(`\{\{(.+?)\}\}`)

var variableAliases = strings.NewReplacer(
	"$json", "json",
	"$parameter", "parameter",
	"$itemIndex", "itemIndex",
)

// Evaluator resolves parameter expressions. Compiled programs are cached.
//
// Evaluator is safe for concurrent use.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEvaluator creates an expression evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

// IsExpression reports whether v is an expression string.
func IsExpression(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, "=")
}

// Resolve evaluates v if it is an expression, recursing into maps and
// slices. Non-expression values are returned unchanged.
func (e *Evaluator) Resolve(v any, env map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		if !strings.HasPrefix(val, "=") {
			return val, nil
		}
		return e.evalTemplate(strings.TrimPrefix(val, "="), env)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			resolved, err := e.Resolve(item, env)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := e.Resolve(item, env)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func (e *Evaluator) evalTemplate(body string, env map[string]any) (any, error) {
	matches := templateBlock.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body, nil
	}

	// A single block spanning the whole body keeps its native type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(body) {
		return e.eval(body[matches[0][2]:matches[0][3]], env)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(body[last:m[0]])
		v, err := e.eval(body[m[2]:m[3]], env)
		if err != nil {
			return nil, err
		}
		if v != nil {
			b.WriteString(fmt.Sprint(v))
		}
		last = m[1]
	}
	b.WriteString(body[last:])
	return b.String(), nil
}

func (e *Evaluator) eval(code string, env map[string]any) (any, error) {
	code = strings.TrimSpace(variableAliases.Replace(code))

	program, err := e.compile(code)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", code, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", code, err)
	}
	return out, nil
}

func (e *Evaluator) compile(code string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.cache[code]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	prog, err := expr.Compile(code, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[code] = prog
	e.mu.Unlock()
	return prog, nil
}
