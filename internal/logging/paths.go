package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns $DEWEY_HOME/logs, falling back to a temp
// directory if neither DEWEY_HOME nor the user's home directory can
// be resolved.
func DefaultLogDir() string {
	if home := os.Getenv("DEWEY_HOME"); home != "" {
		return filepath.Join(home, "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".dewey", "logs")
	}
	return filepath.Join(home, ".dewey", "logs")
}

// DefaultLogPath returns the default dewey log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "dewey.log")
}

// FindLogFile locates the log file to view: an explicit path if
// given, else the default log path.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found. Run a command with --debug first.\nExpected at: %s", path)
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
