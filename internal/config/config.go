package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ModeSandbox = "sandbox"
	ModeLive    = "live"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string

	// Public base URL of the shop, used to build provider return/notify URLs.
	SiteURL     string
	ThankYouURL string
	ShopName    string

	PayPalClientID         string
	PayPalClientSecret     string
	PayPalMode             string
	PayPalReceiverEmail    string
	PayPalPDTIdentityToken string
	PayPalWebhookID        string

	SendOrderMailOnPayment bool

	KafkaBroker string

	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    getEnv("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),

		TrustedProxies: getList("TRUSTED_PROXIES"),

		SiteURL:     strings.TrimRight(os.Getenv("SITE_URL"), "/"),
		ThankYouURL: getEnv("THANK_YOU_URL", "/thank-you/"),
		ShopName:    getEnv("SHOP_NAME", "Shop"),

		PayPalClientID:         os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret:     os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalMode:             getEnv("PAYPAL_MODE", ModeSandbox),
		PayPalReceiverEmail:    os.Getenv("PAYPAL_RECEIVER_EMAIL"),
		PayPalPDTIdentityToken: os.Getenv("PAYPAL_PDT_IDENTITY_TOKEN"),
		PayPalWebhookID:        os.Getenv("PAYPAL_WEBHOOK_ID"),

		SendOrderMailOnPayment: getBool("SEND_ORDER_MAIL_ON_PAYMENT"),

		KafkaBroker: os.Getenv("KAFKA_BROKER"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// Sandbox reports whether provider calls should go to the PayPal sandbox.
func (c *Config) Sandbox() bool {
	return c.PayPalMode != ModeLive
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
