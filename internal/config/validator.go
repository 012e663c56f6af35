package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "consent.timeout_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateConsent()...)
	errors = append(errors, c.validateSpool()...)
	errors = append(errors, c.validateCollector()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateConsent validates the ConsentConfig
func (c *Config) validateConsent() []ValidationError {
	var errors []ValidationError

	if c.Consent.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "consent.timeout_seconds",
			Value:   c.Consent.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

// validateSpool validates the SpoolConfig
func (c *Config) validateSpool() []ValidationError {
	var errors []ValidationError

	if c.Spool.RetentionHours < 0 {
		errors = append(errors, ValidationError{
			Field:   "spool.retention_hours",
			Value:   c.Spool.RetentionHours,
			Message: "must be non-negative (0 keeps entries forever)",
		})
	}

	return errors
}

// validateCollector validates the CollectorConfig
func (c *Config) validateCollector() []ValidationError {
	var errors []ValidationError

	if c.Collector.EstimatedReportMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "collector.estimated_report_mb",
			Value:   c.Collector.EstimatedReportMB,
			Message: "must be non-negative (0 disables file-growth progress)",
		})
	}

	// Args without a command configured will never be used
	if c.Collector.Command == "" && len(c.Collector.Args) > 0 {
		errors = append(errors, ValidationError{
			Field:   "collector.args",
			Value:   c.Collector.Args,
			Message: "collector.command must be set when args are configured",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
