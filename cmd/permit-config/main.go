package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/permit"
	"github.com/oarkflow/permit/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "convert":
		handleConvert()
	case "apply":
		handleApply()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("permit-config - Configuration tool for permit rule files")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  permit-config validate <file>         Check a rule file for structural errors")
	fmt.Println("  permit-config stats <file>            Summarize a rule file")
	fmt.Println("  permit-config convert <in> <out>      Convert between yaml and json")
	fmt.Println("  permit-config apply <file> <db-path>  Write a rule file into a sqlite rule store")
}

func loadConfig(path string) *permit.Config {
	cfg, err := permit.NewConfigLoader().LoadFile(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func handleValidate() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: %d policies, %d permissions\n", len(cfg.Policies), len(cfg.Permissions))
}

func handleStats() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])

	tenants := make(map[string]int)
	statements := 0
	inactive := 0
	for _, p := range cfg.Policies {
		tenants[p.TenantID]++
		statements += len(p.Statements)
		if !p.IsActive {
			inactive++
		}
	}
	denies := 0
	for _, p := range cfg.Permissions {
		tenants[p.TenantID]++
		if p.Effect == permit.EffectDeny {
			denies++
		}
	}

	fmt.Printf("Policies:    %d (%d statements, %d inactive)\n", len(cfg.Policies), statements, inactive)
	fmt.Printf("Permissions: %d (%d deny)\n", len(cfg.Permissions), denies)
	fmt.Printf("Tenants:     %d\n", len(tenants))
	for t, n := range tenants {
		if t == "" {
			t = "(global)"
		}
		fmt.Printf("  %s: %d rules\n", t, n)
	}
}

func handleConvert() {
	if len(os.Args) < 4 {
		printUsage()
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	out := os.Args[3]

	f, err := os.Create(out)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	loader := permit.NewConfigLoader()
	switch {
	case strings.HasSuffix(out, ".yaml"), strings.HasSuffix(out, ".yml"):
		err = loader.ExportYAML(f, cfg)
	case strings.HasSuffix(out, ".json"):
		err = loader.ExportJSON(f, cfg)
	default:
		err = fmt.Errorf("unsupported output format: %s", out)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", out)
}

func handleApply() {
	if len(os.Args) < 4 {
		printUsage()
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := sql.Open("sqlite", os.Args[3])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	db := squealx.NewDb(sqlDB, "sqlite", "permit")

	if err := stores.Migrate(db); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store := stores.NewSQLRuleStore(db)
	for _, p := range cfg.Policies {
		if err := store.SavePolicy(ctx, p); err != nil {
			fmt.Printf("Error: save policy %s: %v\n", p.ID, err)
			os.Exit(1)
		}
	}
	for _, p := range cfg.Permissions {
		if err := store.SavePermission(ctx, p); err != nil {
			fmt.Printf("Error: save permission %s: %v\n", p.ID, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Applied %d policies and %d permissions\n", len(cfg.Policies), len(cfg.Permissions))
}
