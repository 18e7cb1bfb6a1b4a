// Package tasks implements scheduled maintenance and audit jobs for chatguard.
package tasks

import (
	"log/slog"

	"github.com/edgard/chatguard/internal/config"
	"github.com/edgard/chatguard/internal/database"
)

// TaskDeps contains the dependencies shared by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
