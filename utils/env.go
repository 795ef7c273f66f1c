package utils

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads the given env files (default .env) into the process
// environment without overriding variables that are already set. It
// reports whether any file was found.
func LoadEnv(files ...string) (bool, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
	}
	if len(present) == 0 {
		return false, nil
	}
	return true, godotenv.Load(present...)
}

// GetDatabaseURL returns DATABASE_URL, or "" when unset.
func GetDatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}
