package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errs = append(errs, err)
	}

	if err := validateReconcile(cfg.Reconcile); err != nil {
		errs = append(errs, err)
	}

	if err := validateIngest(cfg.Ingest); err != nil {
		errs = append(errs, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "postgres host is required",
		}
	}
	return nil
}

func validateReconcile(cfg ReconcileConfig) error {
	if cfg.BatchSize < 1 {
		return &ValidationError{
			Field:   "reconcile.batch_size",
			Message: fmt.Sprintf("batch size must be at least 1, got %d", cfg.BatchSize),
		}
	}
	if cfg.ContextBookings < 0 {
		return &ValidationError{
			Field:   "reconcile.context_bookings",
			Message: "context bookings cannot be negative",
		}
	}
	return nil
}

func validateIngest(cfg IngestConfig) error {
	switch cfg.Fallback.OnError {
	case "", "allow", "deny":
		return nil
	}
	return &ValidationError{
		Field:   "ingest.fallback.on_error",
		Message: fmt.Sprintf("must be 'allow' or 'deny', got %q", cfg.Fallback.OnError),
	}
}

func validateBroker(cfg BrokerConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one broker is required when the broker is enabled",
		}
	}
	if cfg.Kafka.EventTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.event_topic",
			Message: "event topic is required when the broker is enabled",
		}
	}
	return nil
}
