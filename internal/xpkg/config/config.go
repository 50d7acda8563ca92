package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "ROUTER"

type Config struct {
	DB         *Postgres   `mapstructure:"database"`
	RMQ        *RabbitMQ   `mapstructure:"rabbitmq"`
	AutoAssign *AutoAssign `mapstructure:"autoassign"`
}

type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN builds the postgres connection url. Credentials are escaped.
func (p *Postgres) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}
	return u.String()
}

type RabbitMQ struct {
	Enabled  bool   `mapstructure:"enabled"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	VHost    string `mapstructure:"vhost"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

// URL builds the amqp connection url. Credentials and vhost are escaped.
func (r *RabbitMQ) URL() string {
	u := url.URL{
		Scheme:  "amqp",
		User:    url.UserPassword(r.User, r.Password),
		Host:    net.JoinHostPort(r.Host, r.Port),
		Path:    "/" + r.VHost,
		RawPath: "/" + url.PathEscape(r.VHost),
	}
	return u.String()
}

type AutoAssign struct {
	Schedule string `mapstructure:"schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "order_router")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", "5672")
	v.SetDefault("rabbitmq.vhost", "")
	v.SetDefault("rabbitmq.exchange", "order_notifications")
	v.SetDefault("rabbitmq.queue", "order_notifications_queue")

	v.SetDefault("autoassign.schedule", "@every 1m")
}

// LoadConfig reads the yaml file at configPath. Every key can be overridden
// from the environment, e.g. ROUTER_DATABASE_HOST. A missing file is not an
// error when configPath is empty.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cnf := &Config{}
	if err := v.Unmarshal(cnf); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cnf.validate(); err != nil {
		return nil, err
	}
	return cnf, nil
}

func (c *Config) validate() error {
	if c.DB.Host == "" || c.DB.Database == "" {
		return fmt.Errorf("database host and name are required")
	}
	if c.DB.MaxConns <= 0 {
		return fmt.Errorf("database max_conns must be positive: %d", c.DB.MaxConns)
	}
	if c.RMQ.Enabled && (c.RMQ.Host == "" || c.RMQ.Exchange == "") {
		return fmt.Errorf("rabbitmq host and exchange are required when enabled")
	}
	if c.AutoAssign.Schedule == "" {
		return fmt.Errorf("autoassign schedule is required")
	}
	return nil
}
