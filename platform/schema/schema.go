package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Model struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"size:100;not null"`
	Description string `gorm:"size:500"`
	Type        string `gorm:"size:100;not null"`

	Resolution    int `gorm:"not null"`
	TrainingSteps int `gorm:"not null"`
	EstimatedTime int

	Status string `gorm:"size:100;not null;default:'pending'"`

	// Write-once fields. TrainingRunId is assigned when the provider job is
	// started, ArtifactUri by the training-finished webhook, EndpointUri by
	// the deployment-finished webhook.
	TrainingRunId string `gorm:"size:100"`
	ArtifactUri   string `gorm:"size:500"`
	EndpointUri   string `gorm:"size:500"`

	Thumbnail string `gorm:"size:500"`

	CreatedAt time.Time
	// Set when the model leaves the active pipeline, i.e. on entering
	// completed, failed, or cancelled.
	CompletedAt *time.Time

	DatasetId uuid.UUID `gorm:"type:uuid;not null"`
	Dataset   *Dataset

	UserId uuid.UUID `gorm:"type:uuid;not null"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE"`
}

type Dataset struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name       string `gorm:"size:100;not null"`
	ArchiveUri string `gorm:"size:500;not null"`
	ImageCount int    `gorm:"not null"`

	CreatedAt time.Time

	UserId uuid.UUID `gorm:"type:uuid;not null"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE"`
}

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	IsAdmin bool `gorm:"not null;default:false"`

	BalanceCents int64 `gorm:"not null;default:0"`

	Models   []Model
	Datasets []Dataset
}

type UserAPIKey struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name    string `gorm:"size:100;not null"`
	HashKey string `gorm:"column:hashkey;unique;size:500;not null;index"`
	// Last characters of the secret, shown in listings so users can tell
	// keys apart without the platform storing the secret itself.
	Preview string `gorm:"size:10;not null"`

	CreatedAt  time.Time
	LastUsedAt *time.Time
	ExpiryTime *time.Time

	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`
	User      User      `gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE;"`
}

type Payment struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	SessionId   string `gorm:"unique;size:255;not null"`
	AmountCents int64  `gorm:"not null"`
	Status      string `gorm:"size:50;not null"`

	CreatedAt time.Time

	UserId uuid.UUID `gorm:"type:uuid;not null"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE"`
}

func (m *Model) ArtifactFilename() string {
	return fmt.Sprintf("model-%v.safetensors", m.Id)
}

func (m *Model) TrainingLogFilename() string {
	return fmt.Sprintf("training-%v.log", m.Id)
}

func (d *Dataset) ArchiveFilename() string {
	return fmt.Sprintf("%v.zip", d.Id)
}
