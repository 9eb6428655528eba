package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore/password"
)

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Hash a password read from stdin",
	Long: `Validates the password against the configured policy and prints its hash
in storage form, produced by the configured primary algorithm.`,
	Args: cobra.NoArgs,
	RunE: runHash,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <hash>",
	Short: "Check a password read from stdin against a stored hash",
	Long: `Prints "ok" and exits 0 when the password matches. When the hash was made
by an older algorithm or weaker parameters, "ok (rehash)" is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Score the strength of a password read from stdin",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var checkInputs []string

func init() {
	checkCmd.Flags().StringSliceVar(&checkInputs, "input", nil, "user-specific words (email, name) that weaken the password")
}

func runHash(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	raw, err := readSecret(cmd.InOrStdin())
	if err != nil {
		return err
	}

	valid, err := cfg.Validator().Validate(raw, nil)
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	hashed, err := reg.Hash(valid)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	log.Debugw("hashed password", "algorithm", hashed.Algorithm())
	fmt.Fprintln(cmd.OutOrStdout(), hashed.Encoded())
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	hashed, err := password.Parse(args[0])
	if err != nil {
		return err
	}
	raw, err := readSecret(cmd.InOrStdin())
	if err != nil {
		return err
	}

	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	if _, ok := reg.Verify(hashed, raw); !ok {
		return errors.New("password does not match")
	}

	if reg.NeedsRehash(hashed) {
		fmt.Fprintln(cmd.OutOrStdout(), "ok (rehash)")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	raw, err := readSecret(cmd.InOrStdin())
	if err != nil {
		return err
	}

	score := password.ZxcvbnEstimator{}.Score(raw, checkInputs)
	fmt.Fprintf(cmd.OutOrStdout(), "score: %d/4\n", score)

	if _, err := cfg.Validator().Validate(raw, checkInputs); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "accepted")
	return nil
}
