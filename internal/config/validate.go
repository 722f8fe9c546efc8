package config

import (
	"errors"
	"fmt"

	"github.com/hellej/hope-graph-updater/internal/model"
)

// ValidationError is a single problem found in a configuration file.
type ValidationError struct {
	// Field is the dotted path of the offending field (e.g. "variants.dev.tags").
	Field string

	// Message describes what is wrong with the field value.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks cfg and returns every problem found. An empty slice
// means the configuration is usable.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Repository == "" {
		errs = append(errs, ValidationError{Field: "repository", Message: "must not be empty"})
	}

	for v, vc := range cfg.Variants {
		field := "variants." + v.String()
		if !v.IsValid() {
			errs = append(errs, ValidationError{Field: field, Message: "unknown variant (valid: prod, dev)"})
			continue
		}
		if vc.Dockerfile == "" {
			errs = append(errs, ValidationError{Field: field + ".dockerfile", Message: "must not be empty"})
		}
		if len(vc.Tags) == 0 {
			errs = append(errs, ValidationError{Field: field + ".tags", Message: "at least one tag is required"})
		}
		for _, tag := range vc.Tags {
			if err := model.ValidateTag(tag); err != nil {
				errs = append(errs, ValidationError{Field: field + ".tags", Message: err.Error()})
			}
		}
	}

	if len(cfg.App.Command) == 0 || cfg.App.Command[0] == "" {
		errs = append(errs, ValidationError{Field: "app.command", Message: "must name a program"})
	}

	if cfg.Updater.PollInterval.Duration <= 0 {
		errs = append(errs, ValidationError{Field: "updater.pollInterval", Message: "must be positive"})
	}
	if cfg.Updater.RetryDelay.Duration < 0 {
		errs = append(errs, ValidationError{Field: "updater.retryDelay", Message: "must not be negative"})
	}
	if cfg.Updater.MinNodataCount < 0 {
		errs = append(errs, ValidationError{Field: "updater.minNodataCount", Message: "must not be negative"})
	}

	return errs
}

func joinValidationErrors(errs []ValidationError) error {
	joined := make([]error, 0, len(errs))
	for i := range errs {
		joined = append(joined, &errs[i])
	}
	return errors.Join(joined...)
}
