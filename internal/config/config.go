// Package config parses the gqlstream command line.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jacoelho/gqlstream/internal/exit"
	"github.com/jacoelho/gqlstream/internal/httpclient"
)

const (
	// DefaultTimeout bounds the wait for response headers.
	DefaultTimeout = 30 * time.Second

	OutputText = "text"
	OutputJSON = "json"
)

var (
	ErrNoArguments           = errors.New("no arguments provided")
	ErrNoOperationFiles      = errors.New("no operation files specified")
	ErrInvalidHeaderFormat   = errors.New("header must be in format 'Name: value'")
	ErrEmptyHeaderName       = errors.New("header name cannot be empty")
	ErrInvalidSecretFormat   = errors.New("secret must be in format name=value")
	ErrEmptySecretName       = errors.New("secret name cannot be empty")
	ErrInvalidVariableFormat = errors.New("variable must be in format name=value")
	ErrEmptyVariableName     = errors.New("variable name cannot be empty")
	ErrInvalidOutput         = errors.New("output must be text or json")
	ErrInvalidMaxBuffered    = errors.New("max-buffered cannot be negative")
)

// Config represents the complete configuration for the gqlstream tool.
type Config struct {
	OperationFiles []string
	Debug          bool
	Repeat         int // Additional iterations after first run (negative = infinite)

	// HTTP client configuration
	Insecure       bool
	CACertFile     string
	RequestTimeout time.Duration
	RateLimit      float64 // Requests per second (0 = unlimited)
	Headers        http.Header

	// GraphQL variables; secrets are variables that are also redacted from debug output
	Secrets      map[string]any
	Variables    map[string]any
	VariableFile string

	// Output
	Select      string
	FinalOnly   bool
	Output      string
	MaxBuffered int
	MetricsAddr string
}

// TLSConfig returns a TLS configuration based on the config settings.
func (c *Config) TLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.Insecure,
	}

	if c.CACertFile != "" {
		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}

		caCert, err := os.ReadFile(c.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", c.CACertFile, err)
		}

		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", c.CACertFile)
		}

		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}

// HTTPClient creates an HTTP client configured with the settings from this Config.
func (c *Config) HTTPClient() (*http.Client, error) {
	tlsConfig, err := c.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
	}

	return httpclient.New(tlsConfig, c.RequestTimeout), nil
}

// AllVariables returns the GraphQL variables sent with every operation.
// Secrets take priority over variables when keys conflict.
func (c *Config) AllVariables() map[string]any {
	combined := make(map[string]any, len(c.Variables)+len(c.Secrets))
	maps.Copy(combined, c.Variables)
	maps.Copy(combined, c.Secrets)
	return combined
}

// SecretValues returns the values to redact from debug output, in stable order.
func (c *Config) SecretValues() []string {
	values := make([]string, 0, len(c.Secrets))
	for _, name := range slices.Sorted(maps.Keys(c.Secrets)) {
		if s, ok := c.Secrets[name].(string); ok && s != "" {
			values = append(values, s)
		}
	}
	return values
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if len(c.OperationFiles) == 0 {
		return ErrNoOperationFiles
	}

	for _, file := range c.OperationFiles {
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("operation file %s not found: %w", file, err)
		}
	}

	if c.CACertFile != "" {
		if _, err := os.Stat(c.CACertFile); err != nil {
			return fmt.Errorf("CA certificate file %s not found: %w", c.CACertFile, err)
		}
	}

	if c.Output != OutputText && c.Output != OutputJSON {
		return fmt.Errorf("%w, got: %s", ErrInvalidOutput, c.Output)
	}

	if c.MaxBuffered < 0 {
		return ErrInvalidMaxBuffered
	}

	return nil
}

// keyValueFlag implements flag.Value for repeatable name=value flags.
type keyValueFlag struct {
	values       map[string]any
	errFormat    error
	errEmptyName error
}

func (f *keyValueFlag) String() string {
	if f == nil {
		return ""
	}
	pairs := make([]string, 0, len(f.values))
	for _, k := range slices.Sorted(maps.Keys(f.values)) {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, f.values[k]))
	}
	return strings.Join(pairs, ",")
}

func (f *keyValueFlag) Set(value string) error {
	name, val, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("%w, got: %s", f.errFormat, value)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return f.errEmptyName
	}

	f.values[name] = val
	return nil
}

// headerFlag implements flag.Value for repeatable "Name: value" flags.
type headerFlag http.Header

func (h headerFlag) String() string {
	pairs := make([]string, 0, len(h))
	for _, k := range slices.Sorted(maps.Keys(h)) {
		for _, v := range h[k] {
			pairs = append(pairs, k+": "+v)
		}
	}
	return strings.Join(pairs, ",")
}

func (h headerFlag) Set(value string) error {
	name, val, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("%w, got: %s", ErrInvalidHeaderFormat, value)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyHeaderName
	}

	http.Header(h).Add(name, strings.TrimSpace(val))
	return nil
}

// Parse parses command-line arguments and returns a validated Config.
// If parsing fails or help is requested, returns nil config and exit result.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoArguments, Usage())
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)

	// Suppress the default usage output since we handle it ourselves
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)

	var (
		debug        = fs.Bool("debug", false, "Log transport events and dump requests with secrets redacted")
		repeat       = fs.Int("repeat", 0, "Number of additional times to run the operations after the first run (negative for infinite loop)")
		insecure     = fs.Bool("insecure", false, "Skip TLS certificate verification")
		caCertFile   = fs.String("cacert", "", "Path to CA certificate file for TLS verification")
		timeout      = fs.Duration("timeout", DefaultTimeout, "Time to wait for response headers")
		rateLimit    = fs.Float64("rate-limit", 0, "Rate limit in requests per second (0 for unlimited)")
		variableFile = fs.String("variable-file", "", "Path to key=value file containing GraphQL variables")
		selectPath   = fs.String("select", "", "JSONPath expression applied to every printed result")
		finalOnly    = fs.Bool("final", false, "Print only the final result of each operation")
		output       = fs.String("output", OutputText, "Output format: text or json")
		maxBuffered  = fs.Int("max-buffered", 0, "Maximum snapshots buffered for the printer (0 for unlimited)")
		metricsAddr  = fs.String("metrics-addr", "", "Address to serve Prometheus metrics on, e.g. :9090")
		headers      = make(headerFlag)
		secrets      = &keyValueFlag{values: map[string]any{}, errFormat: ErrInvalidSecretFormat, errEmptyName: ErrEmptySecretName}
		variables    = &keyValueFlag{values: map[string]any{}, errFormat: ErrInvalidVariableFormat, errEmptyName: ErrEmptyVariableName}
	)

	fs.Var(headers, "header", "Request header in format 'Name: value' (can be used multiple times)")
	fs.Var(secrets, "secret", "Secret variable in format name=value (can be used multiple times)")
	fs.Var(variables, "variable", "Variable in format name=value (can be used multiple times)")

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Errorf("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	files := fs.Args()
	if len(files) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoOperationFiles, Usage())
	}

	// Command-line variables take precedence over file variables
	var finalVariables map[string]any
	if *variableFile != "" {
		fileVariables, err := loadVariableFile(*variableFile)
		if err != nil {
			return nil, exit.Errorf("Error: failed to load variable file: %v\n\n%s", err, Usage())
		}
		finalVariables = fileVariables
	}
	if len(variables.values) > 0 {
		if finalVariables == nil {
			finalVariables = make(map[string]any)
		}
		maps.Copy(finalVariables, variables.values)
	}

	config := &Config{
		OperationFiles: files,
		Debug:          *debug,
		Repeat:         *repeat,
		Insecure:       *insecure,
		CACertFile:     *caCertFile,
		RequestTimeout: *timeout,
		RateLimit:      *rateLimit,
		Headers:        http.Header(headers),
		Secrets:        secrets.values,
		Variables:      finalVariables,
		VariableFile:   *variableFile,
		Select:         *selectPath,
		FinalOnly:      *finalOnly,
		Output:         *output,
		MaxBuffered:    *maxBuffered,
		MetricsAddr:    *metricsAddr,
	}

	if err := config.Validate(); err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	return config, nil
}

// loadVariableFile loads variables from a key=value format file.
// It supports comments (lines starting with #) and empty lines.
func loadVariableFile(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	variables := make(map[string]any)
	for lineNum, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid format at line %d: %s (expected key=value)", lineNum+1, line)
		}

		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("empty key at line %d: %s", lineNum+1, line)
		}

		variables[key] = strings.TrimSpace(value)
	}

	return variables, nil
}

// Usage returns a usage string for the CLI tool.
func Usage() string {
	return `gqlstream - GraphQL incremental delivery client

Usage: gqlstream [options] <file1> [file2] ...

Each file is a YAML list of operations:

  - name: feed
    url: https://api.example.com/graphql
    query: |
      query Feed { feed @stream(initialCount: 1) { id } }

Options:
  --debug                 Log transport events and dump requests with secrets redacted
  --repeat N              Number of additional times to run after the first run (negative for infinite)
  --insecure              Skip TLS certificate verification
  --cacert FILE           Path to CA certificate file for TLS verification
  --timeout DURATION      Time to wait for response headers (default: 30s)
  --rate-limit N          Rate limit in requests per second (0 for unlimited)
  --header 'NAME: VALUE'  Request header (can be used multiple times)
  --secret NAME=VALUE     Secret variable, redacted from debug output (can be used multiple times)
  --variable NAME=VALUE   GraphQL variable (can be used multiple times)
  --variable-file FILE    Path to key=value file containing GraphQL variables
  --select JSONPATH       Print only the values selected from each result
  --final                 Print only the final result of each operation
  --output FORMAT         Output format: text or json (default: text)
  --max-buffered N        Keep at most N unprinted snapshots, dropping the oldest (0 for unlimited)
  --metrics-addr ADDR     Serve Prometheus metrics on ADDR
  -h, --help              Show this help message

Examples:
  gqlstream ops.yaml                                # Run every operation once
  gqlstream ops.yaml --debug                        # Log each merged payload
  gqlstream ops.yaml --final --output json          # Print only final results as JSON
  gqlstream ops.yaml --select '$.data.feed[*].id'   # Print selected values from each snapshot
  gqlstream ops.yaml --header 'Authorization: Bearer t' --secret token=t
  gqlstream ops.yaml --repeat -1 --rate-limit 2     # Run forever, two requests per second`
}
