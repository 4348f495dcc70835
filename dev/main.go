// Command dev bootstraps a local development environment: a starter
// config.json5 and telemetry.json5 in the repository root, the keychain
// database, and optionally a real instagram credential collected
// interactively and written to .env for the server to seed from.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	keychaindb "socialscope-backend/services/keychain/db"

	"github.com/tcnksm/go-input"

	_ "modernc.org/sqlite"
)

const defaultConfig = `{
	port: 8000,
	keychain: {
		file: "dev/.state/keychain.db",
	},
	acquisition: {
		cache_size: 4096,
		complete_ttl_seconds: 3600,
		degraded_ttl_seconds: 600,
		negative_ttl_seconds: 300,
		admission_wait_seconds: 15,
		rate_limits: {
			instagram: { capacity: 30, window_seconds: 60 },
			twitter: { capacity: 30, window_seconds: 60 },
			reddit: { capacity: 60, window_seconds: 60 },
			facebook: { capacity: 30, window_seconds: 60 },
		},
	},
	instagram: {},
}
`

const defaultTelemetry = `{
	otlp: {
		traces: {
			http_endpoint: "http://localhost:4318/v1/traces",
		},
		metrics: {
			http_endpoint: "http://localhost:4318/v1/metrics",
		},
	},
}
`

func writeIfAbsent(path, contents string) error {
	_, err := os.Stat(path)
	if err == nil {
		slog.Info("already exists, leaving it alone", "file", path)
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	slog.Info("writing starter file", "file", path)
	return os.WriteFile(path, []byte(contents), 0644)
}

func createKeychainDB() error {
	db, err := sql.Open("sqlite", "dev/.state/keychain.db")
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(keychaindb.Schema)
	return err
}

func askInstagramCredential() error {
	_, err := os.Stat(".env")
	if err == nil {
		slog.Info("a .env already exists, skipping credential setup")
		return nil
	}

	ui := input.DefaultUI()
	opts := &input.Options{
		Default: "",
		Mask:    false,
		Loop:    false,
	}

	accessToken, err := ui.Ask("instagram access token (empty to skip):", opts)
	if err != nil {
		return err
	}
	if accessToken == "" {
		return nil
	}
	businessId, err := ui.Ask("instagram business account id (empty if none):", opts)
	if err != nil {
		return err
	}

	env := fmt.Sprintf("INSTAGRAM_ACCESS_TOKEN=%s\n", accessToken)
	if businessId != "" {
		env += fmt.Sprintf("INSTAGRAM_EXTRA_BUSINESS_ACCOUNT_ID=%s\n", businessId)
	}
	return os.WriteFile(".env", []byte(env), 0600)
}

func create(recreate bool) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll("dev/.state")
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	err = os.MkdirAll("dev/.state", 0777)
	if err != nil && !os.IsExist(err) {
		return err
	}

	err = writeIfAbsent("config.json5", defaultConfig)
	if err != nil {
		return err
	}
	err = writeIfAbsent("telemetry.json5", defaultTelemetry)
	if err != nil {
		return err
	}
	err = createKeychainDB()
	if err != nil {
		return err
	}
	return askInstagramCredential()
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	flag.Parse()

	err := create(*recreate)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}

	slog.Info("dev environment created successfully!")
}
