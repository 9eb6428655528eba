package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the security posture of the configuration",
	Long: `Prints the effective password, throttling, session and cookie settings and
lists the settings a production deployment should revisit. Throttling is
reported as per process because the report does not connect to Redis.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var strictReport bool

func init() {
	reportCmd.Flags().BoolVar(&strictReport, "strict", false, "exit non-zero when there are warnings")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	r, err := cfg.SecurityReport()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "production mode\t%t\n", r.ProductionMode)
	fmt.Fprintf(w, "password algorithm\t%s (m=%d t=%d p=%d)\n", r.Argon2.Algorithm, r.Argon2.Memory, r.Argon2.Time, r.Argon2.Parallelism)
	fmt.Fprintf(w, "accepted hashes\t%v\n", r.Argon2.Verifiers)
	fmt.Fprintf(w, "upgrade on login\t%t\n", r.UpgradeOnLogin)
	fmt.Fprintf(w, "strength check\t%t (min score %d)\n", r.StrengthCheckActive, r.MinStrengthScore)
	fmt.Fprintf(w, "login throttling\t%t (ip %t)\n", r.RateLimitingActive, r.IPThrottleActive)
	fmt.Fprintf(w, "revoke on password change\t%t\n", r.SessionRevocationActive)
	fmt.Fprintf(w, "idle ttl\t%s (sliding %t)\n", r.IdleTTL, r.SlidingExpiration)
	fmt.Fprintf(w, "absolute lifetime\t%s\n", r.AbsoluteLifetime)
	fmt.Fprintf(w, "cookie\tsecure=%t httponly=%t samesite=%s\n", r.CookieSecure, r.CookieHTTPOnly, r.CookieSameSite)
	fmt.Fprintf(w, "audit\t%t\n", r.AuditActive)
	if err := w.Flush(); err != nil {
		return err
	}

	for _, warning := range r.Warnings {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", warning)
	}
	if strictReport && len(r.Warnings) > 0 {
		return fmt.Errorf("%d security warnings", len(r.Warnings))
	}
	return nil
}
