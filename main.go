package main

import (
	"github.com/cppla/blog/config"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/routes"
	"github.com/cppla/blog/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.InitDatabase(cfg, &models.User{}, &models.Post{})
	if err != nil {
		utils.Sugar.Fatalf("database init failed: %v", err)
	}

	rc := utils.NewRedis(cfg)
	if rc != nil {
		defer rc.Close()
	}

	svc := routes.NewServices(cfg, db, rc, utils.NewSMTPMailer(cfg))
	r, err := routes.SetupRouter(cfg, svc)
	if err != nil {
		utils.Sugar.Fatalf("router setup failed: %v", err)
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
