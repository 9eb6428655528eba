// Command authcore is the operator tool for authcore deployments: it hashes
// and checks passwords with the configured algorithms and prepares the SQL
// user table.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore"
)

var log = logging.Logger("authcore/cli")

var rootCmd = &cobra.Command{
	Use:   "authcore",
	Short: "Password and user store tooling for authcore",
	Long: `authcore hashes and verifies passwords with the algorithms configured for a
deployment, scores password strength, and creates the SQL user table.

Passwords are read from the first line of standard input so they never
appear in the process list or shell history.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if debug {
			level = "debug"
		}
		return authcore.SetLogLevel(level)
	},
}

var (
	configPath string
	debug      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(useraddCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (authcore.Config, error) {
	if configPath == "" {
		return authcore.DefaultConfig(), nil
	}
	cfg, err := authcore.LoadConfigFile(configPath)
	if err != nil {
		return authcore.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// readSecret returns the first line of r without its line ending.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password on standard input")
	}
	return line, nil
}
