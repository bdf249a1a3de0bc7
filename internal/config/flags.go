package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nioload",
		Short:         "Drive parallel request cycles against a Content-Length framed endpoint",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Request
	flags.String("target", "", "Target address in host:port form")
	flags.String("path", "/", "Request path")
	flags.String("method", http.MethodGet, "Request method")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload")
	flags.String("body-file", "", "Path to file containing the request body")
	flags.String("transport", string(TransportTCP), "Connection transport: 'tcp' (raw socket) or 'http' (pooled client)")

	// Load shape
	flags.IntP("parallelism", "p", 1, "Number of concurrent execution units")
	flags.IntP("repetitions", "n", 1, "Sequential request cycles per unit")
	flags.Int("workers", 1, "Completion callback workers shared by all connections")
	flags.Duration("timeout", defaultTimeout, "Per-step deadline for open, write and each read (0 disables)")
	flags.IntP("rate", "r", 0, "Requests per second limit across all units (0 means unlimited)")
	flags.Bool("fail-fast", false, "Cancel remaining units after the first failure")
	flags.Bool("reject-status", false, "Treat status codes >= 400 as failures")

	// Framing
	flags.String("read-buffer", fmt.Sprint(defaultReadBuffer), "Read size hint per receive (e.g. 256, 4KB)")
	flags.String("max-body", "10MB", "Largest accepted Content-Length (0 means unlimited)")
	flags.String("max-header", "64KB", "Largest accepted header block (0 means unlimited)")

	// Validation
	flags.String("expect-equals", "", "Require the response body to equal this value")
	flags.String("expect-contains", "", "Require the response body to contain this value")
	flags.String("expect-regex", "", "Require the response body to match this regular expression")
	flags.String("expect-json-path", "", "Require this JSON path to exist in the body (e.g. $.user.id)")
	flags.String("expect-json-value", "", "Value expected at --expect-json-path")

	// Output
	flags.String("output", "text", "Report format: text, json or yaml")
	flags.Bool("progress", false, "Print a progress line to stderr while running")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log encoding: console or json")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'req_duration:p95 < 500')")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (empty disables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "service.name resource attribute")
	flags.Float64("tracing-sample-rate", 1, "Fraction of request spans sampled (0 to 1)")
	flags.Bool("tracing-insecure", false, "Disable TLS to the collector")
	flags.Bool("tracing-propagate", true, "Send a traceparent header with each request")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"target", &cfg.Target},
		{"path", &cfg.Path},
		{"method", &cfg.Method},
		{"output", &cfg.Output},
		{"log-level", &cfg.LogLevel},
		{"log-format", &cfg.LogFormat},
		{"expect-equals", &cfg.Expect.Equals},
		{"expect-contains", &cfg.Expect.Contains},
		{"expect-regex", &cfg.Expect.Regex},
		{"expect-json-path", &cfg.Expect.JSONPath},
		{"expect-json-value", &cfg.Expect.JSONValue},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	}
	for _, s := range strs {
		if !fs.Changed(s.name) {
			continue
		}
		val, err := fs.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = val
	}

	if fs.Changed("transport") {
		val, err := fs.GetString("transport")
		if err != nil {
			return err
		}
		cfg.Transport = TransportKind(val)
	}
	if fs.Changed("body") {
		val, err := fs.GetString("body")
		if err != nil {
			return err
		}
		cfg.Body = val
		cfg.BodyFile = ""
	}
	if fs.Changed("body-file") {
		val, err := fs.GetString("body-file")
		if err != nil {
			return err
		}
		cfg.BodyFile = val
		cfg.Body = ""
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"parallelism", &cfg.Parallelism},
		{"repetitions", &cfg.Repetitions},
		{"workers", &cfg.Workers},
		{"rate", &cfg.Rate},
	}
	for _, n := range ints {
		if !fs.Changed(n.name) {
			continue
		}
		val, err := fs.GetInt(n.name)
		if err != nil {
			return err
		}
		*n.dst = val
	}

	sizes := []struct {
		name string
		dst  *int64
	}{
		{"read-buffer", &cfg.ReadBuffer},
		{"max-body", &cfg.MaxBody},
		{"max-header", &cfg.MaxHeader},
	}
	for _, sz := range sizes {
		if !fs.Changed(sz.name) {
			continue
		}
		raw, err := fs.GetString(sz.name)
		if err != nil {
			return err
		}
		val, err := asSize(raw)
		if err != nil {
			return fmt.Errorf("--%s: %w", sz.name, err)
		}
		*sz.dst = val
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"fail-fast", &cfg.FailFast},
		{"reject-status", &cfg.RejectStatus},
		{"progress", &cfg.Progress},
		{"tracing-insecure", &cfg.Tracing.Insecure},
	}
	for _, b := range bools {
		if !fs.Changed(b.name) {
			continue
		}
		val, err := fs.GetBool(b.name)
		if err != nil {
			return err
		}
		*b.dst = val
	}

	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 && cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	for _, entry := range vals {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("header must be in key=value format: %s", entry)
		}
		key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
		if key == "" {
			return fmt.Errorf("header key cannot be empty")
		}
		cfg.Headers[key] = strings.TrimSpace(parts[1])
	}

	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	return nil
}
