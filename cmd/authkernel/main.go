package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env opcional: conveniencia para desarrollo local.
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:           "authkernel",
		Short:         "Servidor de autorización OAuth2/OIDC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("CONFIG_PATH", "config.yaml"), "ruta del config YAML")

	var seedPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, seedPath)
		},
	}
	serve.Flags().StringVar(&seedPath, "seed", envOr("SEED_PATH", ""), "archivo YAML con clients/users/scopes para seedear (dev)")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), configPath)
		},
	}

	keygen := &cobra.Command{
		Use:   "keygen",
		Short: "Genera un signing seed Ed25519 (base64url, 32 bytes)",
		RunE: func(*cobra.Command, []string) error {
			var seed [32]byte
			if _, err := rand.Read(seed[:]); err != nil {
				return err
			}
			fmt.Println(base64.RawURLEncoding.EncodeToString(seed[:]))
			return nil
		},
	}

	root.AddCommand(serve, migrate, keygen)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
