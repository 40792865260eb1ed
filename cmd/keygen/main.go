package main

import (
	"fmt"
	"os"

	"github.com/arnavshah/assignment-engine-go/pkg/auth"
	"github.com/arnavshah/assignment-engine-go/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <congregationID>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	if cfg.APIMasterSecret == "" {
		fmt.Println("Error: API_MASTER_SECRET not found in environment or .env")
		os.Exit(1)
	}

	congregation := os.Args[1]
	apiKey := auth.New(cfg).GenerateHMACKey(congregation)
	fmt.Printf("Generated Key for %s:\n%s\n", congregation, apiKey)
}
