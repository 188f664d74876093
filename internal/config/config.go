package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type AppConfig struct {
	Port string

	JWTSecret     []byte
	AdminUser     string
	AdminPassHash []byte

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MercadoPagoToken string

	PartnerBaseURL   string
	PartnerSellerKey string
	PartnerAdminKey  string

	AllowedOrigins []string
}

var Cfg *AppConfig

// LoadConfig reads the environment into Cfg. Secrets have no fallback
// values: startup fails when any of them is missing.
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	Cfg = &AppConfig{
		Port:             os.Getenv("SERVER_PORT"),
		JWTSecret:        []byte(mustGetenv("JWT_SECRET")),
		AdminUser:        mustGetenv("ADMIN_USER"),
		RedisAddr:        mustGetenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		MercadoPagoToken: mustGetenv("MERCADO_PAGO_ACCESS_TOKEN"),
		PartnerBaseURL:   mustGetenv("PARTNER_API_URL"),
		PartnerSellerKey: mustGetenv("PARTNER_SELLER_KEY"),
		PartnerAdminKey:  mustGetenv("PARTNER_ADMIN_KEY"),
	}

	// The plaintext admin password never leaves this function. Hashing it
	// once at startup gives every login a constant-time comparison.
	hash, err := bcrypt.GenerateFromPassword([]byte(mustGetenv("ADMIN_PASS")), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("could not hash admin password")
	}
	Cfg.AdminPassHash = hash

	if db := os.Getenv("REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			log.Fatal().Str("REDIS_DB", db).Msg("REDIS_DB must be an integer")
		}
		Cfg.RedisDB = n
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		Cfg.AllowedOrigins = strings.Split(origins, ",")
	} else {
		Cfg.AllowedOrigins = []string{"*"}
	}

	if Cfg.Port == "" {
		Cfg.Port = ":8080"
	}
}

func mustGetenv(name string) string {
	v := os.Getenv(name)
	if v == "" {
		log.Fatal().Str("var", name).Msg("required environment variable is not set")
	}
	return v
}
