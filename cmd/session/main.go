package main

import (
	"context"
	"log"

	"github.com/aussiebroadwan/portal/internal/session/app"
)

func main() {
	cfg := app.LoadConfig()

	oidcCfg, err := app.LoadOIDCConfig()
	if err != nil {
		log.Fatalf("failed to load oidc configuration: %v", err)
	}

	application, err := app.New(context.Background(), cfg, oidcCfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
