package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/phillip/newvision-backend/store"
	"github.com/phillip/newvision-backend/utils"
)

type Config struct {
	Port           string
	GinMode        string
	StoreDriver    string
	MongoURI       string
	DBName         string
	Transactions   bool
	JWTSecret      []byte
	JWTTTL         time.Duration
	CORSOrigins    []string
	RequestTimeout time.Duration
	Location       *time.Location
	AdminEmail     string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	Store  store.Store
	Assets utils.AssetStore
	Mailer utils.Notifier
}

const devJWTSecret = "newvision-dev-secret"

func defaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("STORE_DRIVER", "mongo")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "newvision")
	v.SetDefault("MONGO_TRANSACTIONS", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Second)
	v.SetDefault("TIMEZONE", "Asia/Kathmandu")
	v.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	v.SetDefault("CLOUDINARY_API_KEY", "")
	v.SetDefault("CLOUDINARY_API_SECRET", "")
	v.SetDefault("ZEPTO_API_URL", "")
	v.SetDefault("ZEPTO_API_KEY", "")
	v.SetDefault("EMAIL_FROM", "")
	v.SetDefault("ADMIN_NOTIFY_EMAIL", "")
}

// Load reads settings from the environment, after loading .env if it
// exists. It does not open any connection.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("config.godotenv: %w", err)
		}
	}
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("config: TIMEZONE: %w", err)
	}

	cfg := &Config{
		Port:                v.GetString("PORT"),
		GinMode:             v.GetString("GIN_MODE"),
		StoreDriver:         strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:            v.GetString("MONGO_URI"),
		DBName:              v.GetString("MONGO_DB"),
		Transactions:        v.GetBool("MONGO_TRANSACTIONS"),
		JWTSecret:           []byte(v.GetString("JWT_SECRET")),
		JWTTTL:              v.GetDuration("JWT_TTL"),
		RequestTimeout:      v.GetDuration("REQUEST_TIMEOUT"),
		Location:            loc,
		AdminEmail:          v.GetString("ADMIN_NOTIFY_EMAIL"),
		CloudinaryCloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    v.GetString("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: v.GetString("CLOUDINARY_API_SECRET"),
		Mailer: &utils.Mailer{
			APIURL:   v.GetString("ZEPTO_API_URL"),
			APIKey:   v.GetString("ZEPTO_API_KEY"),
			From:     v.GetString("EMAIL_FROM"),
			FromName: "New Vision",
		},
	}
	for _, o := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if len(cfg.JWTSecret) == 0 {
		if cfg.GinMode != "debug" && cfg.GinMode != "test" {
			return nil, fmt.Errorf("config: JWT_SECRET is required in %s mode", cfg.GinMode)
		}
		log.Println("[config] JWT_SECRET not set, using the development secret")
		cfg.JWTSecret = []byte(devJWTSecret)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return cfg, nil
}

// Open connects the document store and the asset store.
func (cfg *Config) Open(ctx context.Context) error {
	st, err := store.Open(ctx, store.Options{
		Driver:       cfg.StoreDriver,
		URI:          cfg.MongoURI,
		Database:     cfg.DBName,
		Transactions: cfg.Transactions,
	})
	if err != nil {
		return err
	}
	cfg.Store = st

	assets, err := utils.NewAssetStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, "newvision")
	if err != nil {
		return err
	}
	if _, disabled := assets.(utils.DisabledAssets); disabled {
		log.Println("[config] cloudinary credentials missing, uploads are disabled")
	}
	cfg.Assets = assets
	return nil
}

// Timeout bounds the store work of one request.
func (cfg *Config) Timeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, cfg.RequestTimeout)
}
