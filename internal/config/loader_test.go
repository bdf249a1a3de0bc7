package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{" 7 ", 7},
		{int64(789), 789},
		{uint16(12), 12},
		{float64(10.0), 10},
		{nil, 0},
		{"", 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}

	if _, err := asInt("ten"); err == nil {
		t.Error("asInt(\"ten\") should fail")
	}
	if _, err := asInt([]int{1}); err == nil {
		t.Error("asInt([]int) should fail")
	}
}

func TestAsFloat64(t *testing.T) {
	tests := []struct {
		input interface{}
		want  float64
	}{
		{0.25, 0.25},
		{float32(0.5), 0.5},
		{1, 1},
		{"0.1", 0.1},
		{nil, 0},
	}
	for _, tt := range tests {
		got, err := asFloat64(tt.input)
		if err != nil {
			t.Errorf("asFloat64(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asFloat64(%v) = %g, want %g", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := asBool(1); err == nil {
		t.Error("asBool(1) should fail")
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsSize(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int64
	}{
		{"256", 256},
		{"4KB", 4 << 10},
		{"1MB", 1 << 20},
		{"10mb", 10 << 20},
		{512, 512},
		{float64(1024), 1024},
		{nil, 0},
		{"", 0},
	}
	for _, tt := range tests {
		got, err := asSize(tt.input)
		if err != nil {
			t.Errorf("asSize(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asSize(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}

	if _, err := asSize("lots"); err == nil {
		t.Error("asSize(\"lots\") should fail")
	}
}

func TestAsStringMapAndSlice(t *testing.T) {
	m, err := asStringMap(map[interface{}]interface{}{"X-Id": 7})
	if err != nil || m["X-Id"] != "7" {
		t.Errorf("asStringMap() = %v, %v", m, err)
	}
	if _, err := asStringMap(map[interface{}]interface{}{" ": "v"}); err == nil {
		t.Error("empty header key should fail")
	}
	if _, err := asStringMap("nope"); err == nil {
		t.Error("asStringMap(string) should fail")
	}

	s, err := asStringSlice([]interface{}{"a", 2})
	if err != nil || len(s) != 2 || s[1] != "2" {
		t.Errorf("asStringSlice() = %v, %v", s, err)
	}
	s, err = asStringSlice("single")
	if err != nil || len(s) != 1 {
		t.Errorf("asStringSlice(single) = %v, %v", s, err)
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Defaults()
	settings := map[string]interface{}{
		"target":      "127.0.0.1:9000",
		"path":        "/delay5s",
		"method":      "POST",
		"transport":   "http",
		"parallelism": 100,
		"repetitions": "2",
		"timeout":     "5s",
		"read_buffer": "1KB",
		"max_body":    "2MB",
		"fail_fast":   true,
		"headers": map[string]interface{}{
			"content-type": "application/json",
		},
		"expect": map[string]interface{}{
			"equals":    "hello",
			"json_path": "$.ok",
		},
		"tracing": map[string]interface{}{
			"endpoint":    "localhost:4317",
			"sample_rate": 0.5,
			"propagate":   false,
		},
		"thresholds": []interface{}{"requests:count == 200"},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.Target != "127.0.0.1:9000" || cfg.Path != "/delay5s" || cfg.Method != "POST" {
		t.Errorf("request = %s %s %s", cfg.Method, cfg.Target, cfg.Path)
	}
	if cfg.Transport != TransportHTTP {
		t.Errorf("Transport = %q, want http", cfg.Transport)
	}
	if cfg.Parallelism != 100 || cfg.Repetitions != 2 {
		t.Errorf("shape = %d x %d, want 100 x 2", cfg.Parallelism, cfg.Repetitions)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.ReadBuffer != 1024 || cfg.MaxBody != 2<<20 {
		t.Errorf("sizes = %d/%d", cfg.ReadBuffer, cfg.MaxBody)
	}
	if !cfg.FailFast {
		t.Error("FailFast = false")
	}
	if cfg.Headers["Content-Type"] != "application/json" {
		t.Errorf("Headers[Content-Type] = %q, want application/json", cfg.Headers["Content-Type"])
	}
	if cfg.Expect.Equals != "hello" || cfg.Expect.JSONPath != "$.ok" {
		t.Errorf("Expect = %+v", cfg.Expect)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.SampleRate != 0.5 || cfg.Tracing.ShouldPropagate() {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	// untouched keys keep their defaults
	if cfg.Workers != 1 || cfg.MaxHeader != defaultMaxHeader {
		t.Errorf("defaults lost: workers=%d max_header=%d", cfg.Workers, cfg.MaxHeader)
	}
}

func TestApplyConfigSettingsErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
	}{
		{"bad int", map[string]interface{}{"parallelism": "many"}},
		{"bad size", map[string]interface{}{"max_body": "huge"}},
		{"bad bool", map[string]interface{}{"fail_fast": "sometimes"}},
		{"bad duration", map[string]interface{}{"timeout": "soon"}},
		{"expect not a map", map[string]interface{}{"expect": "hello"}},
		{"tracing not a map", map[string]interface{}{"tracing": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := applyConfigSettings(Defaults(), tt.settings); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := &Config{
		Parallelism: 1,
		Method:      "GET",
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"-p", "5",
		"-n=3",
		"--method=PUT",
		"--header=X-Test=123",
		"--max-body=1KB",
		"--expect-contains=ell",
		"--tracing-propagate=false",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.Parallelism != 5 || cfg.Repetitions != 3 {
		t.Errorf("shape = %d x %d, want 5 x 3", cfg.Parallelism, cfg.Repetitions)
	}
	if cfg.Method != "PUT" {
		t.Errorf("Method = %q, want PUT", cfg.Method)
	}
	if cfg.Headers["X-Test"] != "123" {
		t.Errorf("Headers[X-Test] = %q, want 123", cfg.Headers["X-Test"])
	}
	if cfg.MaxBody != 1024 {
		t.Errorf("MaxBody = %d, want 1024", cfg.MaxBody)
	}
	if cfg.Expect.Contains != "ell" {
		t.Errorf("Expect.Contains = %q", cfg.Expect.Contains)
	}
	if cfg.Tracing.ShouldPropagate() {
		t.Error("propagation should be disabled")
	}
}

func TestApplyFlagOverridesRejectsBadInput(t *testing.T) {
	for _, arg := range []string{"--header=novalue", "--header==v", "--read-buffer=big"} {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		configureFlags(fs)
		if err := fs.Parse([]string{arg}); err != nil {
			t.Fatalf("Parse(%s) error = %v", arg, err)
		}
		if err := applyFlagOverrides(Defaults(), fs); err == nil {
			t.Errorf("%s: expected error", arg)
		}
	}
}

func TestLoader_Load(t *testing.T) {
	loader := NewLoader()
	args := []string{
		"--target=127.0.0.1:8080",
		"--parallelism=2",
		"--transport=HTTP",
		"--output=JSON",
	}

	cfg, err := loader.Load(args)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Target != "127.0.0.1:8080" {
		t.Errorf("Target = %q, want 127.0.0.1:8080", cfg.Target)
	}
	if cfg.Parallelism != 2 {
		t.Errorf("Parallelism = %d, want 2", cfg.Parallelism)
	}
	if cfg.Transport != TransportHTTP || cfg.Output != "json" {
		t.Errorf("normalization failed: transport=%q output=%q", cfg.Transport, cfg.Output)
	}
}
