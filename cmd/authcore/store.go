package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/sqlstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the SQL user table",
	Long:  `Creates the users table in the database named by [store] sql_dialect and sql_dsn. Existing tables are left alone.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var useraddCmd = &cobra.Command{
	Use:   "useradd <email>",
	Short: "Create a SQL user with a password read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE:  runUseradd,
}

var noPassword bool

func init() {
	useraddCmd.Flags().BoolVar(&noPassword, "no-password", false, "create the user without a password credential")
}

func openStore(cfg authcore.Config) (*sqlstore.Store, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Store.SQLDialect)
	if err != nil {
		return nil, err
	}
	return sqlstore.Open(dialect, cfg.Store.SQLDSN)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Infow("schema ready", "dialect", cfg.Store.SQLDialect)
	return nil
}

func runUseradd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var hashed *password.Hashed
	if !noPassword {
		raw, err := readSecret(cmd.InOrStdin())
		if err != nil {
			return err
		}
		h, err := hashFor(cfg, raw, args[0])
		if err != nil {
			return err
		}
		hashed = &h
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	user, err := store.CreateUser(ctx, args[0], hashed)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), user.ID)
	return nil
}

func hashFor(cfg authcore.Config, raw, email string) (password.Hashed, error) {
	valid, err := cfg.Validator().Validate(raw, []string{email})
	if err != nil {
		return password.Hashed{}, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return password.Hashed{}, err
	}
	return reg.Hash(valid)
}
