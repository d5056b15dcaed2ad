package migrasafe

import (
	"github.com/hashicorp/go-hclog"
	"github.com/shepherrrd/migrasafe/internal/migrations"
)

type MigrationManager = migrations.MigrationManager

func NewMigrationManager(ctx *DbContext, logger hclog.Logger) *MigrationManager {
	return migrations.NewMigrationManager(ctx, logger)
}
