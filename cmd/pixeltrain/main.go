package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"pixeltrain/platform/auth"
	"pixeltrain/platform/config"
	"pixeltrain/platform/deploy"
	"pixeltrain/platform/lifecycle"
	"pixeltrain/platform/schema"
	"pixeltrain/platform/services"
	"pixeltrain/platform/storage"
	"pixeltrain/platform/trainer"
	"pixeltrain/utils/logging"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type platformEnv struct {
	DatabaseUri string `env:"DATABASE_URI,required"`
	PublicUrl   string `env:"PUBLIC_URL,required"`
	JwtSecret   string `env:"JWT_SECRET,required"`
	LogPath     string `env:"LOG_PATH" envDefault:"pixeltrain.log"`
	AuditLog    string `env:"AUDIT_LOG_PATH" envDefault:"audit.log"`

	AdminUsername string `env:"ADMIN_USERNAME,required"`
	AdminEmail    string `env:"ADMIN_EMAIL,required"`
	AdminPassword string `env:"ADMIN_PASSWORD,required"`

	TrainingEndpoint string `env:"TRAINING_ENDPOINT,required"`
	TrainingApiKey   string `env:"TRAINING_API_KEY,required"`
	WebhookSecret    string `env:"WEBHOOK_SECRET,required"`

	StorageEndpoint  string `env:"STORAGE_ENDPOINT,required"`
	StorageBucket    string `env:"STORAGE_BUCKET,required"`
	StorageAccessKey string `env:"STORAGE_ACCESS_KEY,required"`
	StorageSecretKey string `env:"STORAGE_SECRET_KEY,required"`

	DeployWorkflowUrl string `env:"DEPLOY_WORKFLOW_URL"`
	DeployWorkflowRef string `env:"DEPLOY_WORKFLOW_REF" envDefault:"main"`
	DeployToken       string `env:"DEPLOY_TOKEN"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	PresetsPath string `env:"PRESETS_PATH"`
}

func (e *platformEnv) postgresDsn() string {
	parts, err := url.Parse(e.DatabaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(
		&schema.User{}, &schema.Dataset{}, &schema.Model{},
		&schema.UserAPIKey{}, &schema.Payment{},
	)
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("error loading .env file '%v': %v", *envFile, err)
		}
	}

	cfg := &platformEnv{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("error parsing environment: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Fatalf("error initializing logging: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(cfg.AuditLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	db := initDb(cfg.postgresDsn())

	store, err := storage.NewS3Store(context.Background(), storage.S3StoreArgs{
		Endpoint:  cfg.StorageEndpoint,
		Bucket:    cfg.StorageBucket,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
	})
	if err != nil {
		log.Fatalf("error creating object store: %v", err)
	}

	trainerClient := trainer.NewHttpClient(cfg.TrainingEndpoint, cfg.TrainingApiKey)

	var deployer deploy.Trigger
	if cfg.DeployWorkflowUrl != "" {
		deployer = deploy.NewWorkflowTrigger(cfg.DeployWorkflowUrl, cfg.DeployWorkflowRef, cfg.DeployToken)
	} else {
		deployer = &deploy.NoopTrigger{}
	}

	presets := config.DefaultPresets()
	if cfg.PresetsPath != "" {
		presets, err = config.LoadPresets(cfg.PresetsPath)
		if err != nil {
			log.Fatalf("error loading presets: %v", err)
		}
	}

	identityProvider, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(auditLog),
		auth.BasicProviderArgs{
			Secret:        []byte(cfg.JwtSecret),
			AdminUsername: cfg.AdminUsername,
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
		},
	)
	if err != nil {
		log.Fatalf("error creating identity provider: %v", err)
	}

	controller := lifecycle.NewController(
		db, trainerClient, store, deployer,
		cfg.StorageBucket,
		strings.TrimSuffix(cfg.PublicUrl, "/")+"/api/v1/webhooks",
	)

	platform := services.NewPlatform(db, controller, store, identityProvider, presets, services.Variables{
		Bucket:              cfg.StorageBucket,
		WebhookSecret:       cfg.WebhookSecret,
		StripeSecretKey:     cfg.StripeSecretKey,
		StripeWebhookSecret: cfg.StripeWebhookSecret,
		CheckoutSuccessUrl:  cfg.PublicUrl + "/billing?status=success",
		CheckoutCancelUrl:   cfg.PublicUrl + "/billing?status=cancelled",
	})

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.PublicUrl},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", platform.Routes())

	slog.Info("starting server", "port", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
