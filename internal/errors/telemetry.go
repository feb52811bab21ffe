// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// InitSentry configures the sentry client and installs a reporter for it.
// An empty DSN leaves telemetry disabled.
func InitSentry(dsn, release string) error {
	if dsn == "" {
		SetTelemetryReporter(nil)
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: false,
		SendDefaultPII:   false,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with privacy protection
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))

	sentry.WithScope(func(scope *sentry.Scope) {
		title := generateErrorTitle(ee)

		scope.SetTag("error_title", title)
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))

		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		level := getErrorLevel(ee.Category)
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.GetComponent(), string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}

		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// generateErrorTitle builds "<Component> <Category> <Operation>" for grouping
func generateErrorTitle(ee *EnhancedError) string {
	var parts []string

	if c := ee.GetComponent(); c != "" && c != ComponentUnknown {
		parts = append(parts, titleCase(c))
	}
	if cat := formatCategoryForTitle(ee.Category); cat != "" {
		parts = append(parts, cat)
	}
	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		words := strings.Fields(strings.ReplaceAll(op, "_", " "))
		for i, w := range words {
			words[i] = titleCase(w)
		}
		parts = append(parts, strings.Join(words, " "))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

func formatCategoryForTitle(category ErrorCategory) string {
	switch category {
	case CategoryTransportConnect:
		return "Connect Error"
	case CategoryTransportLost:
		return "Connection Lost"
	case CategoryFramingViolation:
		return "Framing Violation"
	case CategoryClassifierUnavailable:
		return "Classifier Unavailable"
	case CategoryModelInit:
		return "Model Initialization Error"
	case CategoryModelLoad:
		return "Model Loading Error"
	case CategoryValidation:
		return "Validation Error"
	case CategoryConfiguration:
		return "Configuration Error"
	default:
		return string(category)
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// getErrorLevel returns the Sentry level for a category
func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryFramingViolation, CategoryModelInit, CategoryModelLoad, CategoryClassifierUnavailable:
		return sentry.LevelError
	case CategoryTransportConnect, CategoryTransportLost, CategoryNetwork, CategoryMQTTConnect, CategoryMQTTPublish:
		return sentry.LevelWarning // usually transient
	case CategoryFeatureDegenerate:
		return sentry.LevelInfo
	default:
		return sentry.LevelError
	}
}

var (
	telemetryMu             sync.RWMutex
	globalTelemetryReporter TelemetryReporter
)

// SetTelemetryReporter sets the global telemetry reporter; nil disables reporting
func SetTelemetryReporter(reporter TelemetryReporter) {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	telemetryMu.RLock()
	defer telemetryMu.RUnlock()
	return globalTelemetryReporter
}

func reportToTelemetry(ee *EnhancedError) {
	if r := GetTelemetryReporter(); r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
}

var (
	urlQueryRegex = regexp.MustCompile(`(\w+://[^?\s]+)\?\S*`)
	credRegex     = regexp.MustCompile(`(\w+://)[^:@/\s]+:[^@/\s]+@`)
	secretRegex   = regexp.MustCompile(`(?i)(password|token|secret|api[_-]?key)[=:]\S+`)
)

// scrubMessage removes credentials, query strings and secrets from a message
func scrubMessage(message string) string {
	scrubbed := credRegex.ReplaceAllString(message, "$1[REDACTED]@")
	scrubbed = urlQueryRegex.ReplaceAllString(scrubbed, "$1?[REDACTED]")
	return secretRegex.ReplaceAllString(scrubbed, "$1=[REDACTED]")
}

// FlushTelemetry waits up to timeout for queued reports to be sent.
func FlushTelemetry(timeout time.Duration) bool {
	if r := GetTelemetryReporter(); r == nil || !r.IsEnabled() {
		return true
	}
	return sentry.Flush(timeout)
}
