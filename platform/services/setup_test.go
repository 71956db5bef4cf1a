package services

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"pixeltrain/platform/auth"
	"pixeltrain/platform/config"
	"pixeltrain/platform/lifecycle"
	"pixeltrain/platform/schema"
	"pixeltrain/platform/trainer"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"

	testBucket          = "test-bucket"
	webhookSecret       = "hook-secret-02ai249"
	stripeWebhookSecret = "whsec_290zcv02ai249"

	callbackBase = "http://platform.test/api/v1/webhooks"
)

type testEnv struct {
	db       *gorm.DB
	api      chi.Router
	store    *memoryStore
	trainer  *trainerStub
	deployer *deployStub
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(
		&schema.User{}, &schema.Dataset{}, &schema.Model{},
		&schema.UserAPIKey{}, &schema.Payment{},
	)
	if err != nil {
		t.Fatal(err)
	}

	store := newMemoryStore()
	trainerStub := newTrainerStub()
	deployer := &deployStub{}

	userAuth, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicProviderArgs{
			Secret:        []byte("290zcv02ai249"),
			AdminUsername: adminUsername,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	controller := lifecycle.NewController(db, trainerStub, store, deployer, testBucket, callbackBase)

	platform := NewPlatform(db, controller, store, userAuth, config.DefaultPresets(), Variables{
		Bucket:              testBucket,
		WebhookSecret:       webhookSecret,
		StripeWebhookSecret: stripeWebhookSecret,
	})

	return &testEnv{
		db:       db,
		api:      platform.Routes(),
		store:    store,
		trainer:  trainerStub,
		deployer: deployer,
	}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) newUser(username string) (client, error) {
	c := t.newClient()
	login, err := c.signup(username, username+"@mail.com", username+"_password")
	if err != nil {
		return client{}, err
	}

	err = c.login(login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

func (t *testEnv) getModel(tt *testing.T, modelId string) schema.Model {
	var model schema.Model
	if err := t.db.First(&model, "id = ?", modelId).Error; err != nil {
		tt.Fatalf("error loading model %v: %v", modelId, err)
	}
	return model
}

type trainerStub struct {
	mu sync.Mutex

	nextJob  int
	jobs     map[string]string
	progress trainer.JobProgress

	requests  []trainer.TrainingRequest
	cancelled []string

	failStart  bool
	failCancel bool
}

func newTrainerStub() *trainerStub {
	return &trainerStub{jobs: map[string]string{}}
}

func (s *trainerStub) StartTraining(req trainer.TrainingRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failStart {
		return "", fmt.Errorf("provider rejected job")
	}

	s.nextJob++
	jobId := fmt.Sprintf("job-%d", s.nextJob)
	s.jobs[jobId] = "IN_PROGRESS"
	s.requests = append(s.requests, req)

	return jobId, nil
}

func (s *trainerStub) JobStatus(jobId string) (trainer.JobStatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.jobs[jobId]
	if !ok {
		return trainer.JobStatusResponse{}, trainer.ErrJobNotFound
	}

	return trainer.JobStatusResponse{State: trainer.ParseJobState(status), Progress: s.progress}, nil
}

func (s *trainerStub) CancelJob(jobId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelled = append(s.cancelled, jobId)
	if s.failCancel {
		return fmt.Errorf("provider could not cancel job")
	}

	if _, ok := s.jobs[jobId]; ok {
		s.jobs[jobId] = "CANCELLED"
	}

	return nil
}

func (s *trainerStub) setJobStatus(jobId, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobId] = status
}

func (s *trainerStub) archiveJob(jobId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobId)
}
