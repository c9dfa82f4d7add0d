package orders

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

// RetryConfig задаёт повтор единицы работы при конфликте версий.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  5 * time.Millisecond,
		MaxDelay:      200 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = def.BackoffFactor
	}
	return c
}

// withRetry повторяет fn только при ErrVersionConflict; бизнес-ошибки возвращаются сразу.
func (e *Engine) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	delay := e.retry.InitialDelay

	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				e.logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Debug("operation succeeded after version conflict")
			}
			return nil
		}
		if !domain.IsVersionConflict(err) {
			return err
		}

		lastErr = err
		e.metrics.IncVersionConflict(operation)
		if attempt == e.retry.MaxAttempts {
			break
		}

		e.logger.WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay,
		}).Debug("version conflict, retrying unit of work")

		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		delay = time.Duration(float64(delay) * e.retry.BackoffFactor)
		if delay > e.retry.MaxDelay {
			delay = e.retry.MaxDelay
		}
	}

	return fmt.Errorf("%w: %s gave up after %d attempts: %w",
		domain.ErrConcurrentModification, operation, e.retry.MaxAttempts, lastErr)
}
