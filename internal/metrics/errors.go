package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/torosent/nioload/internal/bridge"
	"github.com/torosent/nioload/internal/executor"
	"github.com/torosent/nioload/internal/framer"
	"github.com/torosent/nioload/internal/runner"
	"github.com/torosent/nioload/internal/transport"
	"github.com/torosent/nioload/internal/validate"
)

var friendlyAliases = map[string]string{
	"*executor.HTTPError":            "HTTP error response",
	"*runner.ValidationError":        "Validation failed",
	"*net.OpError":                   "Network error",
	"*context.deadlineExceededError": "Context deadline exceeded",
	"context.deadlineExceededError":  "Context deadline exceeded",
}

// classes maps sentinel errors to report labels. Order matters: the more
// specific sentinel comes first where one wraps another.
var classes = []struct {
	target error
	label  string
}{
	{context.DeadlineExceeded, "Timeout"},
	{bridge.ErrCancelled, "Cancelled"},
	{bridge.ErrDoubleResolution, "Double resolution"},
	{framer.ErrTruncated, "Truncated response"},
	{framer.ErrExcessBody, "Excess body bytes"},
	{framer.ErrBodyTooLarge, "Body too large"},
	{framer.ErrHeaderTooLarge, "Header too large"},
	{framer.ErrFraming, "Framing error"},
	{transport.ErrConnect, "Connection error"},
	{transport.ErrWrite, "Write error"},
	{transport.ErrRead, "Read error"},
	{transport.ErrClosed, "Connection closed"},
	{validate.ErrMismatch, "Validation failed"},
	{context.Canceled, "Cancelled"},
}

// Classify returns the report label for err.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var verr *runner.ValidationError
	if errors.As(err, &verr) {
		return "Validation failed"
	}
	var herr *executor.HTTPError
	if errors.As(err, &herr) {
		return fmt.Sprintf("HTTP %d", herr.StatusCode)
	}
	for _, c := range classes {
		if errors.Is(err, c.target) {
			return c.label
		}
	}
	// Unwrap attribution wrappers so the label names the cause.
	var uerr *runner.UnitError
	if errors.As(err, &uerr) && uerr.Err != nil {
		err = uerr.Err
	}
	return FriendlyErrorName(fmt.Sprintf("%T", err))
}

// FriendlyErrorName returns a human-friendly label for a Go error type.
func FriendlyErrorName(typeName string) string {
	cleaned := strings.TrimSpace(typeName)
	if cleaned == "" {
		return "Unknown error"
	}

	if alias, ok := friendlyAliases[cleaned]; ok {
		return alias
	}

	cleaned = strings.TrimPrefix(cleaned, "*")
	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}

	pkg := ""
	name := cleaned
	if idx := strings.Index(name, "."); idx != -1 {
		pkg = name[:idx]
		name = name[idx+1:]
	}

	pretty := humanizeTypeName(name)
	if pretty == "" {
		pretty = name
	}

	// errors.New and fmt.Errorf carry no useful type name.
	switch pkg + "." + name {
	case "errors.errorString", "fmt.wrapError", "fmt.wrapErrors":
		return "Error"
	}

	if pkg != "" && pkg != "main" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

func humanizeTypeName(name string) string {
	if name == "" {
		return ""
	}

	var words []string
	var current []rune
	runes := []rune(name)

	appendWord := func() {
		if len(current) == 0 {
			return
		}
		word := string(current)
		if isAllUpper(word) {
			words = append(words, word)
		} else {
			words = append(words, capitalize(word))
		}
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)) {
				appendWord()
			} else if unicode.IsDigit(r) && !unicode.IsDigit(prev) {
				appendWord()
			}
		}
		current = append(current, r)
	}
	appendWord()

	return strings.Join(words, " ")
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	runes := []rune(lower)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
