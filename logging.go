package authcore

import (
	"fmt"
	"strings"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("authcore")

// SetLogLevel sets level on every authcore logger ("authcore" and
// "authcore/..."). An empty level leaves the loggers untouched.
func SetLogLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl := strings.ToLower(level)
	if _, err := logging.LevelFromString(lvl); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	if err := logging.SetLogLevelRegex(`^authcore(/.*)?$`, lvl); err != nil {
		return fmt.Errorf("set log level: %w", err)
	}
	return nil
}
