package app

import (
	"fmt"

	"golang.org/x/time/rate"

	emailHTTP "github.com/allisson/maildispatch/internal/email/http"
	"github.com/allisson/maildispatch/internal/email/provider"
	emailRepository "github.com/allisson/maildispatch/internal/email/repository"
	emailUseCase "github.com/allisson/maildispatch/internal/email/usecase"
)

// EmailRepository returns the email record repository based on database driver.
func (c *Container) EmailRepository() (emailUseCase.EmailRepository, error) {
	var err error
	c.emailRepositoryInit.Do(func() {
		c.emailRepository, err = c.initEmailRepository()
		if err != nil {
			c.initErrors["emailRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["emailRepository"]; exists {
		return nil, storedErr
	}
	return c.emailRepository, nil
}

// DeliveryAttemptRepository returns the delivery attempt repository based on database driver.
func (c *Container) DeliveryAttemptRepository() (emailUseCase.DeliveryAttemptRepository, error) {
	var err error
	c.deliveryAttemptRepositoryInit.Do(func() {
		c.deliveryAttemptRepository, err = c.initDeliveryAttemptRepository()
		if err != nil {
			c.initErrors["deliveryAttemptRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deliveryAttemptRepository"]; exists {
		return nil, storedErr
	}
	return c.deliveryAttemptRepository, nil
}

// ProviderChain returns the ordered provider fallback chain.
func (c *Container) ProviderChain() (*provider.Chain, error) {
	var err error
	c.providerChainInit.Do(func() {
		c.providerChain, err = c.initProviderChain()
		if err != nil {
			c.initErrors["providerChain"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["providerChain"]; exists {
		return nil, storedErr
	}
	return c.providerChain, nil
}

// DeliveryUseCase returns the delivery orchestrator.
func (c *Container) DeliveryUseCase() (emailUseCase.DeliveryUseCase, error) {
	var err error
	c.deliveryUseCaseInit.Do(func() {
		c.deliveryUseCase, err = c.initDeliveryUseCase()
		if err != nil {
			c.initErrors["deliveryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deliveryUseCase"]; exists {
		return nil, storedErr
	}
	return c.deliveryUseCase, nil
}

// EmailUseCase returns the producer and inspection use case.
func (c *Container) EmailUseCase() (emailUseCase.EmailUseCase, error) {
	var err error
	c.emailUseCaseInit.Do(func() {
		c.emailUseCase, err = c.initEmailUseCase()
		if err != nil {
			c.initErrors["emailUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["emailUseCase"]; exists {
		return nil, storedErr
	}
	return c.emailUseCase, nil
}

// BatchHandler returns the HTTP handler for the batch trigger.
func (c *Container) BatchHandler() (*emailHTTP.BatchHandler, error) {
	var err error
	c.batchHandlerInit.Do(func() {
		c.batchHandler, err = c.initBatchHandler()
		if err != nil {
			c.initErrors["batchHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["batchHandler"]; exists {
		return nil, storedErr
	}
	return c.batchHandler, nil
}

// EmailHandler returns the HTTP handler for enqueueing and inspecting emails.
func (c *Container) EmailHandler() (*emailHTTP.EmailHandler, error) {
	var err error
	c.emailHandlerInit.Do(func() {
		c.emailHandler, err = c.initEmailHandler()
		if err != nil {
			c.initErrors["emailHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["emailHandler"]; exists {
		return nil, storedErr
	}
	return c.emailHandler, nil
}

// Worker returns the periodic batch worker.
func (c *Container) Worker() (*emailUseCase.Worker, error) {
	var err error
	c.workerInit.Do(func() {
		c.worker, err = c.initWorker()
		if err != nil {
			c.initErrors["worker"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["worker"]; exists {
		return nil, storedErr
	}
	return c.worker, nil
}

// initEmailRepository creates the email repository based on the database driver.
func (c *Container) initEmailRepository() (emailUseCase.EmailRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for email repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres", "pgx":
		return emailRepository.NewPostgreSQLEmailRepository(db), nil
	case "mysql":
		return emailRepository.NewMySQLEmailRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initDeliveryAttemptRepository creates the delivery attempt repository based on the database driver.
func (c *Container) initDeliveryAttemptRepository() (emailUseCase.DeliveryAttemptRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for delivery attempt repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres", "pgx":
		return emailRepository.NewPostgreSQLDeliveryAttemptRepository(db), nil
	case "mysql":
		return emailRepository.NewMySQLDeliveryAttemptRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initProviderChain builds every enabled provider and arranges them in fallback order.
func (c *Container) initProviderChain() (*provider.Chain, error) {
	if err := c.ResolveCredentials(); err != nil {
		return nil, err
	}

	cfg := c.config
	logger := c.Logger()
	enabled := make(map[string]provider.Provider)

	if cfg.SMTPEnabled {
		p, err := provider.NewSMTP(provider.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			From:        cfg.FromHeader(),
			ImplicitTLS: cfg.SMTPImplicitTLS,
			Timeout:     cfg.EmailProviderTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		enabled[provider.NameSMTP] = p
	}

	if cfg.ResendEnabled {
		p, err := provider.NewResend(provider.ResendConfig{
			APIKey:  cfg.ResendAPIKey,
			BaseURL: cfg.ResendBaseURL,
			From:    cfg.FromHeader(),
			Timeout: cfg.EmailProviderTimeout,
		})
		if err != nil {
			return nil, err
		}
		enabled[provider.NameResend] = p
	}

	if cfg.SendGridEnabled {
		p, err := provider.NewSendGrid(provider.SendGridConfig{
			APIKey:  cfg.SendGridAPIKey,
			BaseURL: cfg.SendGridBaseURL,
			From:    cfg.FromHeader(),
			Timeout: cfg.EmailProviderTimeout,
		})
		if err != nil {
			return nil, err
		}
		enabled[provider.NameSendGrid] = p
	}

	if cfg.SupabaseEnabled {
		p, err := provider.NewSupabase(provider.SupabaseConfig{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseServiceRoleKey,
			RedirectURL:    cfg.SupabaseRedirectURL,
			Timeout:        cfg.EmailProviderTimeout,
		})
		if err != nil {
			return nil, err
		}
		enabled[provider.NameSupabase] = p
	}

	if cfg.EmailLogProviderEnabled {
		enabled[provider.NameLog] = provider.NewLog(logger)
	}

	if cfg.EmailProviderRatePerSec > 0 {
		for name, p := range enabled {
			limiter := rate.NewLimiter(rate.Limit(cfg.EmailProviderRatePerSec), max(cfg.EmailProviderRateBurst, 1))
			enabled[name] = provider.RateLimited(p, limiter, cfg.EmailProviderTimeout)
		}
	}

	chain, err := provider.Arrange(enabled, cfg.EmailProviderOrder)
	if err != nil {
		return nil, err
	}

	logger.Info("email provider chain configured", "providers", chain.Names())
	return chain, nil
}

// initDeliveryUseCase creates the delivery orchestrator with all its dependencies.
func (c *Container) initDeliveryUseCase() (emailUseCase.DeliveryUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for delivery use case: %w", err)
	}

	emailRepo, err := c.EmailRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get email repository for delivery use case: %w", err)
	}

	attemptRepo, err := c.DeliveryAttemptRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery attempt repository for delivery use case: %w", err)
	}

	chain, err := c.ProviderChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get provider chain for delivery use case: %w", err)
	}

	deliveryMetrics, err := c.DeliveryMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery metrics for delivery use case: %w", err)
	}

	baseUseCase := emailUseCase.NewDeliveryUseCase(
		emailUseCase.Config{
			BatchSize:      c.config.EmailBatchSize,
			MaxBatchSize:   c.config.EmailMaxBatchSize,
			RecordDelay:    c.config.EmailRecordDelay,
			RetryBaseDelay: c.config.EmailRetryBaseDelay,
			RetryMaxDelay:  c.config.EmailRetryMaxDelay,
		},
		txManager,
		emailRepo,
		attemptRepo,
		chain,
		c.Logger(),
		emailUseCase.WithDeliveryMetrics(deliveryMetrics),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for delivery use case: %w", err)
		}
		return emailUseCase.NewDeliveryUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initEmailUseCase creates the email use case with all its dependencies.
func (c *Container) initEmailUseCase() (emailUseCase.EmailUseCase, error) {
	emailRepo, err := c.EmailRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get email repository for email use case: %w", err)
	}

	attemptRepo, err := c.DeliveryAttemptRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery attempt repository for email use case: %w", err)
	}

	baseUseCase := emailUseCase.NewEmailUseCase(emailRepo, attemptRepo, c.config.EmailDefaultMaxAttempts)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for email use case: %w", err)
		}
		return emailUseCase.NewEmailUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initBatchHandler creates the batch trigger HTTP handler.
func (c *Container) initBatchHandler() (*emailHTTP.BatchHandler, error) {
	deliveryUseCase, err := c.DeliveryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery use case for batch handler: %w", err)
	}
	return emailHTTP.NewBatchHandler(deliveryUseCase, c.Logger()), nil
}

// initEmailHandler creates the email HTTP handler.
func (c *Container) initEmailHandler() (*emailHTTP.EmailHandler, error) {
	emailUC, err := c.EmailUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get email use case for email handler: %w", err)
	}
	return emailHTTP.NewEmailHandler(emailUC, c.Logger()), nil
}

// initWorker creates the periodic batch worker.
func (c *Container) initWorker() (*emailUseCase.Worker, error) {
	deliveryUseCase, err := c.DeliveryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery use case for worker: %w", err)
	}

	return emailUseCase.NewWorker(emailUseCase.WorkerConfig{
		Interval:   c.config.EmailWorkerInterval,
		BatchSize:  c.config.EmailBatchSize,
		StaleAfter: c.config.EmailStaleAfter,
	}, deliveryUseCase, c.Logger()), nil
}
