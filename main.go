package main

import (
	"log"

	"github.com/rohanthewiz/logger"

	"planroom/models"
	"planroom/web"
)

func main() {
	// Initialize logger
	logger.SetLogLevel("info")

	cfg, err := models.LoadConfig()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	// Initialize database
	if err := models.InitDB(cfg.DBPath); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer models.CloseDB()

	// Initialize JWT signing
	if err := models.InitJWT(); err != nil {
		log.Fatal("Failed to initialize JWT:", err)
	}

	// Start hub server
	srv := web.NewServer(cfg)
	logger.Info("Starting Planroom hub", "address", cfg.Address)
	log.Fatal(web.Run(srv))
}
