package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Callback hash modes for PayWay pushback verification.
const (
	HashModeOff     = "off"
	HashModeLog     = "log"
	HashModeEnforce = "enforce"
)

// PayWay holds the merchant credentials and redirect targets sent with every purchase.
type PayWay struct {
	MerchantID         string
	APIKey             string
	PurchaseEndpoint   string
	ReturnURL          string
	CancelURL          string
	ContinueSuccessURL string
	ReturnDeeplink     string
	CallbackHashMode   string
	Timeout            time.Duration
}

type Config struct {
	GinMode      string
	Port         string
	DatabaseURL  string
	StoreDriver  string
	RedisURL     string
	KafkaBrokers string
	NatsURL      string
	EventsDriver string
	FrontendURL  string
	OTLPEndpoint string
	PayWay       PayWay
}

// Release reports whether the service runs in gin release mode.
func (c *Config) Release() bool {
	return c.GinMode == "release"
}

func Load() (*Config, error) {
	getEnv := func(key string, required bool) (string, error) {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" && required {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg := &Config{
		GinMode:      withDefault(os.Getenv("GIN_MODE"), "debug"),
		Port:         withDefault(os.Getenv("PORT"), "8081"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StoreDriver:  withDefault(os.Getenv("STORE_DRIVER"), "postgres"),
		RedisURL:     os.Getenv("REDIS_URL"),
		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		NatsURL:      os.Getenv("NATS_URL"),
		EventsDriver: withDefault(os.Getenv("EVENTS_DRIVER"), "none"),
		FrontendURL:  os.Getenv("FRONTEND_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	pw := &cfg.PayWay
	if pw.MerchantID, err = getEnv("ABA_MERCHANT_ID", true); err != nil {
		return nil, err
	}
	if pw.APIKey, err = getEnv("ABA_API_KEY", true); err != nil {
		return nil, err
	}
	if pw.PurchaseEndpoint, err = getEnv("ABA_PURCHASE_ENDPOINT", true); err != nil {
		return nil, err
	}
	if pw.ReturnURL, err = getEnv("ABA_RETURN_URL", true); err != nil {
		return nil, err
	}
	pw.CancelURL, _ = getEnv("ABA_CANCEL_URL", false)
	pw.ContinueSuccessURL, _ = getEnv("ABA_CONTINUE_SUCCESS_URL", false)
	pw.ReturnDeeplink = withDefault(os.Getenv("ABA_RETURN_DEEPLINK"), "myapp://payment")

	pw.CallbackHashMode = strings.ToLower(withDefault(os.Getenv("PAYWAY_CALLBACK_HASH_MODE"), HashModeLog))
	switch pw.CallbackHashMode {
	case HashModeOff, HashModeLog, HashModeEnforce:
	default:
		return nil, fmt.Errorf("invalid PAYWAY_CALLBACK_HASH_MODE %q: want off, log or enforce", pw.CallbackHashMode)
	}

	pw.Timeout = 30 * time.Second
	if raw := os.Getenv("PAYWAY_TIMEOUT"); raw != "" {
		if pw.Timeout, err = time.ParseDuration(raw); err != nil || pw.Timeout <= 0 {
			return nil, fmt.Errorf("invalid PAYWAY_TIMEOUT %q", raw)
		}
	}

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("missing required environment variable: DATABASE_URL")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want postgres or memory", cfg.StoreDriver)
	}

	switch cfg.EventsDriver {
	case "kafka":
		if cfg.KafkaBrokers == "" {
			return nil, fmt.Errorf("EVENTS_DRIVER=kafka requires KAFKA_BROKERS")
		}
	case "nats":
		if cfg.NatsURL == "" {
			return nil, fmt.Errorf("EVENTS_DRIVER=nats requires NATS_URL")
		}
	case "none":
	default:
		return nil, fmt.Errorf("invalid EVENTS_DRIVER %q: want kafka, nats or none", cfg.EventsDriver)
	}

	return cfg, nil
}

func withDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
