package app

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/client/httpclient"
	"github.com/joeltadeu/pact-shopping-api/internal/domain"
	"github.com/joeltadeu/pact-shopping-api/internal/metrics"
	"github.com/joeltadeu/pact-shopping-api/internal/service/lookup"
)

// errMockIntegrationsDisabled возвращается, если URL справочника не задан,
// а встроенные заглушки запрещены.
var errMockIntegrationsDisabled = errors.New("upstream url is not configured and mock integrations are disabled")

type lookups struct {
	customers domain.CustomerLookup
	products  domain.ProductLookup
	prices    domain.PriceLookup
	// mocked перечисляет порты, которые обслуживаются заглушками.
	mocked []string
}

// initLookups собирает порты справочников: HTTP-клиент для заданного URL,
// иначе общая демонстрационная заглушка. Каждый порт оборачивается retry и breaker.
func initLookups(cfg Config, orderMetrics *metrics.OrderMetrics, logger *log.Entry) (lookups, error) {
	var (
		out       lookups
		customers *lookup.StubCustomers
		products  *lookup.StubProducts
		prices    *lookup.StubPrices
	)
	stubs := func(port string) error {
		if !cfg.AllowMockIntegrations {
			return fmt.Errorf("%s: %w", port, errMockIntegrationsDisabled)
		}
		if customers == nil {
			customers, products, prices = lookup.NewStubCustomers(), lookup.NewStubProducts(), lookup.NewStubPrices()
			lookup.SeedDemoCatalog(customers, products, prices)
		}
		out.mocked = append(out.mocked, port)
		return nil
	}

	clientOpts := []httpclient.Option{
		httpclient.WithTimeout(cfg.UpstreamTimeout),
		httpclient.WithLogger(logger.WithField("layer", "httpclient")),
	}

	var customerPort domain.CustomerLookup
	if cfg.CustomerServiceURL != "" {
		customerPort = httpclient.NewCustomerClient(cfg.CustomerServiceURL, clientOpts...)
	} else {
		if err := stubs(lookup.PortCustomer); err != nil {
			return lookups{}, err
		}
		customerPort = customers
	}

	var productPort domain.ProductLookup
	if cfg.ProductServiceURL != "" {
		productPort = httpclient.NewProductClient(cfg.ProductServiceURL, clientOpts...)
	} else {
		if err := stubs(lookup.PortProduct); err != nil {
			return lookups{}, err
		}
		productPort = products
	}

	var pricePort domain.PriceLookup
	if cfg.PriceServiceURL != "" {
		pricePort = httpclient.NewPriceClient(cfg.PriceServiceURL, clientOpts...)
	} else {
		if err := stubs(lookup.PortPrice); err != nil {
			return lookups{}, err
		}
		pricePort = prices
	}

	policy := lookupPolicy(cfg, orderMetrics, logger)
	out.customers = lookup.WithResilienceCustomers(customerPort, policy)
	out.products = lookup.WithResilienceProducts(productPort, policy)
	out.prices = lookup.WithResiliencePrices(pricePort, policy)

	if len(out.mocked) > 0 {
		logger.WithField("ports", out.mocked).Warn("using in-process mock integrations")
	}
	return out, nil
}

func lookupPolicy(cfg Config, orderMetrics *metrics.OrderMetrics, logger *log.Entry) lookup.Policy {
	policy := lookup.DefaultPolicy()
	if cfg.UpstreamRetryAttempts > 0 {
		policy.Retry.MaxAttempts = cfg.UpstreamRetryAttempts
	}
	if cfg.UpstreamRetryDelay > 0 {
		policy.Retry.InitialDelay = cfg.UpstreamRetryDelay
	}
	if cfg.UpstreamTimeout > 0 {
		policy.Retry.AttemptTimeout = cfg.UpstreamTimeout
	}
	if cfg.BreakerMaxFailures > 0 {
		policy.BreakerFailures = cfg.BreakerMaxFailures
	}
	if cfg.BreakerResetTimeout > 0 {
		policy.BreakerReset = cfg.BreakerResetTimeout
	}
	policy.Logger = logger.WithField("layer", "lookup")
	policy.Metrics = orderMetrics
	return policy
}
