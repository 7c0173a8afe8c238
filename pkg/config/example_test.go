package config_test

import (
	"fmt"

	"github.com/wonny/aiqdata/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Calendar: %s\n", cfg.Data.CalendarPath())
	fmt.Printf("Workers: %d\n", cfg.Harness.Workers)
	fmt.Printf("Database enabled: %v\n", cfg.Database.Enabled())
}
