package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the delivery platform services.
type Config struct {
	Database      DatabaseConfig
	RabbitMQ      RabbitMQConfig
	Services      ServicesConfig
	Orchestration OrchestrationConfig
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// RabbitMQConfig holds RabbitMQ connection configuration for the
// status-notification publisher.
type RabbitMQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// ServicesConfig holds the base URLs of the collaborator services. They are
// read once at startup and injected into the clients; nothing reads them
// ambiently at call time.
type ServicesConfig struct {
	UserURL       string
	RestaurantURL string
	PaymentURL    string
	DriverURL     string
	OrderURL      string
}

// OrchestrationConfig holds the order-service timing knobs.
type OrchestrationConfig struct {
	ClientTimeoutSeconds     int // per collaborator call
	DeliveryETAMinutes       int // estimated_delivery_time = now + this
	AutoDispatchSeconds      int // simulated preparation delay
	ReconcileIntervalSeconds int // saga reconciler scan period, 0 disables
}

// Load reads configuration from a YAML file.
func Load(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := defaults()
	scanner := bufio.NewScanner(file)

	var currentSection string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Section headers
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			currentSection = strings.TrimSuffix(line, ":")
			continue
		}

		// Key-value pairs
		if strings.Contains(line, ":") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

			if err := config.setValue(currentSection, key, value); err != nil {
				return nil, fmt.Errorf("failed to set config value %s.%s: %w", currentSection, key, err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Orchestration: OrchestrationConfig{
			ClientTimeoutSeconds:     5,
			DeliveryETAMinutes:       30,
			AutoDispatchSeconds:      60,
			ReconcileIntervalSeconds: 0,
		},
	}
}

// setValue sets a configuration value based on section and key.
func (c *Config) setValue(section, key, value string) error {
	switch section {
	case "database":
		return c.setDatabaseValue(key, value)
	case "rabbitmq":
		return c.setRabbitMQValue(key, value)
	case "services":
		return c.setServicesValue(key, value)
	case "orchestration":
		return c.setOrchestrationValue(key, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) setDatabaseValue(key, value string) error {
	switch key {
	case "host":
		c.Database.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.Database.Port = port
	case "user":
		c.Database.User = value
	case "password":
		c.Database.Password = value
	case "database":
		c.Database.Database = value
	default:
		return fmt.Errorf("unknown database key: %s", key)
	}
	return nil
}

func (c *Config) setRabbitMQValue(key, value string) error {
	switch key {
	case "host":
		c.RabbitMQ.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.RabbitMQ.Port = port
	case "user":
		c.RabbitMQ.User = value
	case "password":
		c.RabbitMQ.Password = value
	default:
		return fmt.Errorf("unknown rabbitmq key: %s", key)
	}
	return nil
}

func (c *Config) setServicesValue(key, value string) error {
	switch key {
	case "user_url":
		c.Services.UserURL = value
	case "restaurant_url":
		c.Services.RestaurantURL = value
	case "payment_url":
		c.Services.PaymentURL = value
	case "driver_url":
		c.Services.DriverURL = value
	case "order_url":
		c.Services.OrderURL = value
	default:
		return fmt.Errorf("unknown services key: %s", key)
	}
	return nil
}

func (c *Config) setOrchestrationValue(key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	switch key {
	case "client_timeout_seconds":
		c.Orchestration.ClientTimeoutSeconds = n
	case "delivery_eta_minutes":
		c.Orchestration.DeliveryETAMinutes = n
	case "auto_dispatch_seconds":
		c.Orchestration.AutoDispatchSeconds = n
	case "reconcile_interval_seconds":
		c.Orchestration.ReconcileIntervalSeconds = n
	default:
		return fmt.Errorf("unknown orchestration key: %s", key)
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL.
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
