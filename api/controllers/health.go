package controllers

import (
	"net/http"

	"github.com/sandaruwanb/lankamart-backend/api/responses"
	"github.com/sandaruwanb/lankamart-backend/pkg/config"
	"github.com/sandaruwanb/lankamart-backend/pkg/db"
	pkgerrors "github.com/sandaruwanb/lankamart-backend/pkg/errors"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
	"github.com/sandaruwanb/lankamart-backend/pkg/redis"
)

// HealthLive answers as soon as the process is serving requests.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "ok", "env": cfg.App.Env})
	}
}

// HealthReady checks the backing stores before reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger db.Pinger, redisPinger redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}

		if dbPinger != nil {
			if err := dbPinger.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
			checks["database"] = "ok"
		}
		if redisPinger != nil {
			if err := redisPinger.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
			checks["redis"] = "ok"
		}

		checks["status"] = "ready"
		checks["env"] = cfg.App.Env
		responses.WriteSuccess(w, checks)
	}
}
