package main

import (
	"log"
	"time"

	"github.com/gluk-w/clawlink/internal/config"
	"github.com/gluk-w/clawlink/internal/store"
)

// pruneConnectionLog deletes connection-log rows older than the
// configured retention window. Retention of zero or less disables
// pruning.
func pruneConnectionLog() {
	days := config.Cfg.EventRetentionDays
	if days <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	pruned, err := store.PruneConnectionLogs(cutoff)
	if err != nil {
		log.Printf("WARNING: connection log prune: %v", err)
		return
	}
	if pruned > 0 {
		log.Printf("Pruned %d connection log rows older than %d days", pruned, days)
	}
}
