// Command function serves the profile service as a Cloud Functions HTTP
// function. The same engine as the standalone server handles every route.
package main

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/studentdocs/profile-service/internal/config"
	"github.com/studentdocs/profile-service/internal/server"
	"github.com/studentdocs/profile-service/pkg/logger"
)

var (
	engine  http.Handler
	once    sync.Once
	initErr error
)

func init() {
	// "ProfileService" is the entry point name configured in GCP.
	functions.HTTP("ProfileService", handleProfileService)
}

// main runs the function locally; in GCP the framework provides its own main.
func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := funcframework.Start(port); err != nil {
		logger.Fatalf("funcframework.Start: %v", err)
	}
}

func handleProfileService(w http.ResponseWriter, r *http.Request) {
	// clients are built on the first request and reused by warm instances
	once.Do(func() {
		logger.Init(os.Getenv("LOG_LEVEL"))
		cfg, err := config.LoadConfig()
		if err != nil {
			initErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			logger.Warnf("incomplete configuration: %v", err)
		}
		components := server.Build(context.Background(), cfg, server.Options{})
		engine = server.NewEngine(components, server.Options{})
	})
	if initErr != nil {
		logger.Errorf("profile service initialization failed: %v", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	engine.ServeHTTP(w, r)
}
