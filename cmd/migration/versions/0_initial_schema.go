package versions

import (
	"pixeltrain/platform/schema"

	"gorm.io/gorm"
)

// Migration_0_initial_schema creates the base tables. Later migrations must
// never edit this one; schema changes get a new version.
func Migration_0_initial_schema(txn *gorm.DB) error {
	return txn.AutoMigrate(
		&schema.User{},
		&schema.Dataset{},
		&schema.Model{},
		&schema.UserAPIKey{},
		&schema.Payment{},
	)
}

func Rollback_0_initial_schema(txn *gorm.DB) error {
	return txn.Migrator().DropTable(
		&schema.Payment{},
		&schema.UserAPIKey{},
		&schema.Model{},
		&schema.Dataset{},
		&schema.User{},
	)
}
