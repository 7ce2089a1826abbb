package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel orders log severities from most to least verbose.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a configured level name to a LogLevel.
// Unknown names fall back to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// DefaultLogComponent is the component reported by loggers that have not
// been scoped with WithComponent.
const DefaultLogComponent = "kindreg/core"

// ProductionLogger writes structured log lines in JSON (production,
// Kubernetes) or human-readable text (local development).
//
// Every line carries the service name and, when set, the component path
// so that output from the registry, the monitor and the HTTP layer can be
// told apart in a shared log stream.
type ProductionLogger struct {
	level       LogLevel
	serviceName string
	component   string
	format      string
	timeFormat  string
	output      io.Writer
	mu          *sync.Mutex
}

// NewProductionLogger creates a logger from the logging and development
// configuration. Development debug logging forces the debug level.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	level := ParseLogLevel(logging.Level)
	if dev.DebugLogging {
		level = LogLevelDebug
	}

	format := logging.Format
	if dev.PrettyLogs {
		format = "text"
	}
	if format != "json" && format != "text" {
		format = "json"
	}

	timeFormat := logging.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}

	var output io.Writer = os.Stdout
	if strings.EqualFold(logging.Output, "stderr") {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:       level,
		serviceName: serviceName,
		component:   DefaultLogComponent,
		format:      format,
		timeFormat:  timeFormat,
		output:      output,
		mu:          &sync.Mutex{},
	}
}

// NewLoggerWithOutput creates a ProductionLogger writing to w. Mostly
// useful in tests and in CLI commands that log to stderr.
func NewLoggerWithOutput(w io.Writer, level, format, serviceName string) *ProductionLogger {
	if format != "text" {
		format = "json"
	}
	return &ProductionLogger{
		level:       ParseLogLevel(level),
		serviceName: serviceName,
		component:   DefaultLogComponent,
		format:      format,
		timeFormat:  time.RFC3339Nano,
		output:      w,
		mu:          &sync.Mutex{},
	}
}

// WithComponent returns a child logger that shares output and level but
// reports the given component.
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		level:       p.level,
		serviceName: p.serviceName,
		component:   component,
		format:      p.format,
		timeFormat:  p.timeFormat,
		output:      p.output,
		mu:          p.mu,
	}
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.log(LogLevelInfo, msg, fields)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.log(LogLevelError, msg, fields)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.log(LogLevelWarn, msg, fields)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	p.log(LogLevelDebug, msg, fields)
}

func (p *ProductionLogger) log(level LogLevel, msg string, fields map[string]interface{}) {
	if level < p.level {
		return
	}

	timestamp := time.Now().Format(p.timeFormat)

	var line string
	if p.format == "json" {
		line = p.formatJSON(timestamp, level, msg, fields)
	} else {
		line = p.formatText(timestamp, level, msg, fields)
	}

	if p.mu != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
	}
	_, _ = fmt.Fprintln(p.output, line)
}

func (p *ProductionLogger) formatJSON(timestamp string, level LogLevel, msg string, fields map[string]interface{}) string {
	entry := map[string]interface{}{
		"timestamp": timestamp,
		"level":     level.String(),
		"service":   p.serviceName,
		"message":   msg,
	}
	if p.component != "" {
		entry["component"] = p.component
	}

	for k, v := range fields {
		// Avoid overwriting core fields
		if _, reserved := entry[k]; reserved {
			continue
		}
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[k] = v
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"timestamp":%q,"level":"ERROR","message":"failed to encode log entry","error":%q}`, timestamp, err.Error())
	}
	return string(data)
}

func (p *ProductionLogger) formatText(timestamp string, level LogLevel, msg string, fields map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(timestamp)
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("]")
	if p.component != "" {
		b.WriteString(" [")
		b.WriteString(p.component)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(msg)

	// Sorted keys keep text output stable between runs
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}
