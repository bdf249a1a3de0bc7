package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/torosent/nioload/internal/validate"
)

type TransportKind string

const (
	TransportTCP  TransportKind = "tcp"
	TransportHTTP TransportKind = "http"
)

type Config struct {
	Target       string            `mapstructure:"target"`
	Path         string            `mapstructure:"path"`
	Method       string            `mapstructure:"method"`
	Headers      map[string]string `mapstructure:"headers"`
	Body         string            `mapstructure:"body"`
	BodyFile     string            `mapstructure:"body_file"`
	Transport    TransportKind     `mapstructure:"transport"`
	Parallelism  int               `mapstructure:"parallelism"`
	Repetitions  int               `mapstructure:"repetitions"`
	Workers      int               `mapstructure:"workers"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	Rate         int               `mapstructure:"rate"`
	FailFast     bool              `mapstructure:"fail_fast"`
	RejectStatus bool              `mapstructure:"reject_status"`
	ReadBuffer   int64             `mapstructure:"read_buffer"`
	MaxBody      int64             `mapstructure:"max_body"`
	MaxHeader    int64             `mapstructure:"max_header"`
	Expect       validate.Rule     `mapstructure:"expect"`
	Output       string            `mapstructure:"output"`
	Progress     bool              `mapstructure:"progress"`
	LogLevel     string            `mapstructure:"log_level"`
	LogFormat    string            `mapstructure:"log_format"`
	Thresholds   []string          `mapstructure:"thresholds"`
	Tracing      TracingConfig     `mapstructure:"tracing"`
	ConfigFile   string            `mapstructure:"-"`
}

// TracingConfig selects the OTLP exporter. An empty Endpoint disables export
// unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// ShouldPropagate reports whether trace context goes into outgoing requests.
// Unset means yes.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate == nil || *t.Propagate
}

// Expected is the counter value a fully successful run reaches.
func (c Config) Expected() int64 {
	return int64(c.Parallelism) * int64(c.Repetitions)
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Warnings lists settings that are valid but aggressive enough to deserve a
// word before the run starts.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("High rate limit configured (%d RPS). Ensure you have authorization to test the target system.", c.Rate))
	}
	if c.Parallelism > 500 {
		warnings = append(warnings, fmt.Sprintf("High parallelism configured (%d units). Ensure you have authorization to test the target system.", c.Parallelism))
	}
	return warnings
}

func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.Target)
	if target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if _, _, err := net.SplitHostPort(target); err != nil {
		issues = append(issues, fmt.Sprintf("target must be host:port: %v", err))
	}
	if !strings.HasPrefix(c.Path, "/") {
		issues = append(issues, "path must start with /")
	}
	if strings.TrimSpace(c.Method) == "" {
		issues = append(issues, "method is required")
	}

	if c.Parallelism < 1 {
		issues = append(issues, "parallelism must be >= 1")
	}
	if c.Repetitions < 1 {
		issues = append(issues, "repetitions must be >= 1")
	}
	if c.Workers < 1 {
		issues = append(issues, "workers must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.ReadBuffer < 1 {
		issues = append(issues, "read_buffer must be >= 1 byte")
	}
	if c.MaxBody < 0 {
		issues = append(issues, "max_body must be >= 0")
	}
	if c.MaxHeader < 0 {
		issues = append(issues, "max_header must be >= 0")
	}
	if strings.TrimSpace(c.Body) != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and bodyFile are mutually exclusive")
	}

	switch c.Transport {
	case TransportTCP, TransportHTTP:
	default:
		issues = append(issues, fmt.Sprintf("transport: must be 'tcp' or 'http', got %q", c.Transport))
	}
	switch c.Output {
	case "text", "json", "yaml":
	default:
		issues = append(issues, fmt.Sprintf("output: must be 'text', 'json' or 'yaml', got %q", c.Output))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log_format: must be 'console' or 'json', got %q", c.LogFormat))
	}

	if _, err := validate.Compile(c.Expect); err != nil {
		issues = append(issues, fmt.Sprintf("expect: %v", err))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch t.Protocol {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0 and 1")
	}
	return issues
}
