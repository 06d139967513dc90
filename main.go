package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/stratlab/backtest-service/src/api"
	"github.com/stratlab/backtest-service/src/data"
	"github.com/stratlab/backtest-service/src/store"
	"github.com/stratlab/backtest-service/src/utils"
)

func main() {
	if err := utils.InitEnvironmentVariables(); err != nil {
		log.Fatalf("failed to initialize environment variables: %v", err)
	}

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		level, err := log.ParseLevel(levelStr)
		if err != nil {
			log.Fatalf("invalid LOG_LEVEL %q: %v", levelStr, err)
		}

		log.SetLevel(level)
	}

	storeDir := os.Getenv("STORE_DIR")
	if storeDir == "" {
		storeDir = "store-data"
	}

	st, err := store.NewFileStore(storeDir)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}

	var provider data.Provider
	if apiKey := os.Getenv("POLYGON_API_KEY"); apiKey != "" {
		log.Info("using polygon market data provider")
		provider = data.NewPolygonProvider(apiKey)
	} else {
		dataDir := os.Getenv("DATA_DIR")
		if dataDir == "" {
			dataDir = "data"
		}

		log.Infof("using csv market data provider with directory %s", dataDir)
		provider = data.NewCSVProvider(dataDir)
	}

	router := mux.NewRouter()
	api.SetupHandler(router.PathPrefix("/api").Subrouter(), api.NewService(st, provider))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	log.Infof("listening on :%s", port)

	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
