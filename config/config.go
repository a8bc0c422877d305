package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR,default=:8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h"`
	SiteURL   string        `env:"SITE_URL,default=http://localhost:8080"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM,default=noreply@afro-artisanat.com"`
	AdminEmail   string `env:"ADMIN_EMAIL,default=admin@afro-artisanat.com"`

	CORSOrigins    string  `env:"CORS_ORIGINS"`
	TrustedProxies string  `env:"TRUSTED_PROXIES"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=10"`

	TaxRate          float64 `env:"TAX_RATE,default=0.20"`
	ShippingFlat     string  `env:"SHIPPING_FLAT,default=5.00"`
	FreeShippingOver string  `env:"FREE_SHIPPING_OVER,default=100.00"`
	DeliveryDays     int     `env:"DELIVERY_DAYS,default=5"`
	Workers          int     `env:"ORDER_WORKERS,default=2"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
	DevMode  bool   `env:"DEV_MODE,default=false"`

	CompanyName    string `env:"COMPANY_NAME,default=Afro Artisanat"`
	CompanyAddress string `env:"COMPANY_ADDRESS,default=12 rue des Artisans 75011 Paris"`
	CompanyLegal   string `env:"COMPANY_LEGAL,default=SIRET 000 000 000 00000"`
	SupportContact string `env:"SUPPORT_CONTACT,default=contact@afro-artisanat.com"`
}

// Load reads an optional .env file and decodes the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing .env is fine, the process environment still applies
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if !c.DevMode {
			return errors.New("JWT_SECRET is required outside development mode")
		}
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.TaxRate < 0 || c.TaxRate > 1 {
		return fmt.Errorf("TAX_RATE must be within [0,1], got %v", c.TaxRate)
	}
	if _, err := decimal.NewFromString(c.ShippingFlat); err != nil {
		return fmt.Errorf("SHIPPING_FLAT: %w", err)
	}
	if _, err := decimal.NewFromString(c.FreeShippingOver); err != nil {
		return fmt.Errorf("FREE_SHIPPING_OVER: %w", err)
	}
	if c.DeliveryDays < 0 {
		return errors.New("DELIVERY_DAYS must not be negative")
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return nil
}

// Origins lists the browser origins allowed to call the API. It defaults to
// SITE_URL.
func (c *Config) Origins() []string {
	out := splitList(c.CORSOrigins)
	if len(out) == 0 && c.SiteURL != "" {
		out = []string{strings.TrimRight(c.SiteURL, "/")}
	}
	return out
}

// Proxies lists the CIDRs whose X-Forwarded-For header is believed.
func (c *Config) Proxies() []string { return splitList(c.TrustedProxies) }

func splitList(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) TaxRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TaxRate)
}

func (c *Config) ShippingFlatDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.ShippingFlat)
	return d
}

func (c *Config) FreeShippingOverDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.FreeShippingOver)
	return d
}

func (c *Config) MailEnabled() bool { return c.SMTPHost != "" }
