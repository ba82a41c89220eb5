package controllers

import (
	"net/http"

	"github.com/Killerbeez7/print-dungeon-backend/api/responses"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/config"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/db"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PrintDungeon-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when both backing stores answer a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("X-PrintDungeon-Env", cfg.App.Env)

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
