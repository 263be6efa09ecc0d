package packer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// evalTimeout bounds a single sandboxed evaluation.
const evalTimeout = 2 * time.Second

// ErrNotPacked is returned by Evaluate when source has no packer signature.
var ErrNotPacked = errors.New("script is not packed")

// Evaluate runs a packed script in a fresh goja runtime with eval replaced by
// a capture function, and returns the string the packer would have executed.
// It handles wrappers Detect rejects, such as base-62 dictionaries.
func Evaluate(ctx context.Context, source string) (string, error) {
	start := strings.Index(source, Signature)
	if start < 0 {
		return "", ErrNotPacked
	}
	script := "__capture(" + strings.TrimPrefix(source[start:], "eval(")

	vm := goja.New()
	var captured string
	var seen bool
	if err := vm.Set("__capture", func(code string) {
		if !seen {
			captured, seen = code, true
		}
	}); err != nil {
		return "", fmt.Errorf("installing capture: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	if _, err := vm.RunString(script); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return "", fmt.Errorf("evaluating packed script: %w", ctx.Err())
		}
		// A runtime error after the capture fired is ignored.
		if !seen {
			return "", fmt.Errorf("evaluating packed script: %w", err)
		}
	}
	if !seen {
		return "", fmt.Errorf("packed script never reached eval")
	}
	return captured, nil
}
