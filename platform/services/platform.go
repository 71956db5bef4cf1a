package services

import (
	"log"
	"net/http"
	"os"

	"pixeltrain/platform/auth"
	"pixeltrain/platform/config"
	"pixeltrain/platform/lifecycle"
	"pixeltrain/platform/storage"
	"pixeltrain/utils"
	"pixeltrain/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type Platform struct {
	user     UserService
	dataset  DatasetService
	model    ModelService
	train    TrainService
	generate GenerateService
	apiKey   APIKeyService
	billing  BillingService
	webhook  WebhookService
}

func NewPlatform(
	db *gorm.DB,
	controller *lifecycle.Controller,
	store storage.ObjectStore,
	userAuth auth.IdentityProvider,
	presets config.Presets,
	variables Variables,
) Platform {
	return Platform{
		user: UserService{db: db, userAuth: userAuth},
		dataset: DatasetService{
			db:        db,
			store:     store,
			userAuth:  userAuth,
			variables: variables,
		},
		model: ModelService{
			db:         db,
			controller: controller,
			userAuth:   userAuth,
		},
		train: TrainService{
			db:         db,
			controller: controller,
			userAuth:   userAuth,
			presets:    presets,
		},
		generate: GenerateService{
			db:       db,
			userAuth: userAuth,
			presets:  presets,
		},
		apiKey: APIKeyService{
			db:       db,
			userAuth: userAuth,
		},
		billing: BillingService{
			db:        db,
			userAuth:  userAuth,
			variables: variables,
		},
		webhook: WebhookService{
			controller: controller,
			variables:  variables,
		},
	}
}

func (p *Platform) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))
	r.Use(logging.RequestIdMiddleware)

	r.Mount("/user", p.user.Routes())
	r.Mount("/datasets", p.dataset.Routes())
	r.Mount("/models", p.model.Routes())
	r.Mount("/train", p.train.Routes())
	r.Mount("/generate", p.generate.Routes())
	r.Mount("/api-keys", p.apiKey.Routes())
	r.Mount("/billing", p.billing.Routes())
	r.Mount("/webhooks", p.webhook.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
