package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/assignment-engine-go/pkg/auth"
	"github.com/arnavshah/assignment-engine-go/pkg/config"
	"github.com/arnavshah/assignment-engine-go/pkg/database"
	"github.com/arnavshah/assignment-engine-go/pkg/handlers"
	"github.com/arnavshah/assignment-engine-go/pkg/logger"
	"github.com/arnavshah/assignment-engine-go/pkg/metrics"
)

var r http.Handler

func init() {
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		panic(err)
	}
	authenticator := auth.New(cfg)
	_ = authenticator.EnsureAdminExists(context.Background(), db, cfg.Admin, log)

	r = handlers.NewRouter(handlers.New(db, authenticator, cfg, log, metrics.New()))
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
