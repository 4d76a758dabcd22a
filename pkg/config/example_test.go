package config_test

import (
	"fmt"

	"github.com/wonny/pipeline-metrics/backend/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Store timezone: %s\n", cfg.Location())
	fmt.Printf("DB Max Connections: %d\n", cfg.Database.MaxConns)
}
