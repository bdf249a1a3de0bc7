package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/torosent/nioload/internal/validate"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

const (
	defaultTimeout    = 30 * time.Second
	defaultReadBuffer = 256
	defaultMaxBody    = int64(10 * datasize.MB)
	defaultMaxHeader  = int64(64 * datasize.KB)
)

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used before any file or flag applies.
func Defaults() *Config {
	return &Config{
		Path:        "/",
		Method:      http.MethodGet,
		Headers:     map[string]string{},
		Transport:   TransportTCP,
		Parallelism: 1,
		Repetitions: 1,
		Workers:     1,
		Timeout:     defaultTimeout,
		ReadBuffer:  defaultReadBuffer,
		MaxBody:     defaultMaxBody,
		MaxHeader:   defaultMaxHeader,
		Output:      "text",
		LogLevel:    "info",
		LogFormat:   "console",
		Tracing:     TracingConfig{Protocol: "grpc", SampleRate: 1},
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.Target = strings.TrimSpace(cfg.Target)
	cfg.BodyFile = strings.TrimSpace(cfg.BodyFile)
	cfg.Transport = TransportKind(strings.ToLower(strings.TrimSpace(string(cfg.Transport))))
	cfg.Output = strings.ToLower(strings.TrimSpace(cfg.Output))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(cfg.Tracing.Protocol))
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"target"}, &cfg.Target},
		{[]string{"path"}, &cfg.Path},
		{[]string{"method"}, &cfg.Method},
		{[]string{"body"}, &cfg.Body},
		{[]string{"body_file", "bodyfile", "body-file"}, &cfg.BodyFile},
		{[]string{"output"}, &cfg.Output},
		{[]string{"log_level", "loglevel", "log-level"}, &cfg.LogLevel},
		{[]string{"log_format", "logformat", "log-format"}, &cfg.LogFormat},
	}
	for _, s := range strs {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = val
	}

	if raw, ok := lookupSetting(settings, "transport"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("transport: %w", err)
		}
		cfg.Transport = TransportKind(val)
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"parallelism"}, &cfg.Parallelism},
		{[]string{"repetitions"}, &cfg.Repetitions},
		{[]string{"workers"}, &cfg.Workers},
		{[]string{"rate"}, &cfg.Rate},
	}
	for _, n := range ints {
		raw, ok := lookupSetting(settings, n.keys...)
		if !ok {
			continue
		}
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", n.keys[0], err)
		}
		*n.dst = val
	}

	sizes := []struct {
		keys []string
		dst  *int64
	}{
		{[]string{"read_buffer", "readbuffer", "read-buffer"}, &cfg.ReadBuffer},
		{[]string{"max_body", "maxbody", "max-body"}, &cfg.MaxBody},
		{[]string{"max_header", "maxheader", "max-header"}, &cfg.MaxHeader},
	}
	for _, sz := range sizes {
		raw, ok := lookupSetting(settings, sz.keys...)
		if !ok {
			continue
		}
		val, err := asSize(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", sz.keys[0], err)
		}
		*sz.dst = val
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"fail_fast", "failfast", "fail-fast"}, &cfg.FailFast},
		{[]string{"reject_status", "rejectstatus", "reject-status"}, &cfg.RejectStatus},
		{[]string{"progress"}, &cfg.Progress},
	}
	for _, b := range bools {
		raw, ok := lookupSetting(settings, b.keys...)
		if !ok {
			continue
		}
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", b.keys[0], err)
		}
		*b.dst = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "expect"); ok {
		rule, err := parseExpect(raw)
		if err != nil {
			return fmt.Errorf("expect: %w", err)
		}
		cfg.Expect = rule
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func parseExpect(value interface{}) (rule validate.Rule, err error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return rule, err
	}
	fields := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"equals"}, &rule.Equals},
		{[]string{"contains"}, &rule.Contains},
		{[]string{"regex"}, &rule.Regex},
		{[]string{"json_path", "jsonpath", "json-path"}, &rule.JSONPath},
		{[]string{"json_value", "jsonvalue", "json-value"}, &rule.JSONValue},
	}
	for _, f := range fields {
		raw, ok := lookupSetting(settings, f.keys...)
		if !ok {
			continue
		}
		if *f.dst, err = asString(raw); err != nil {
			return rule, fmt.Errorf("%s: %w", f.keys[0], err)
		}
	}
	return rule, nil
}

func applyTracingSettings(tc *TracingConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		if tc.Endpoint, err = asString(raw); err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		if tc.Protocol, err = asString(raw); err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "service_name", "servicename", "service-name"); ok {
		if tc.ServiceName, err = asString(raw); err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate", "sample-rate"); ok {
		if tc.SampleRate, err = asFloat64(raw); err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		if tc.Insecure, err = asBool(raw); err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &val
	}
	return nil
}
