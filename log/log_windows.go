//go:build windows

package log

import (
	"os"
	"path/filepath"
)

const appName = "skinscan"

func getDefaultDir() (string, error) {
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		cfg, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		base = cfg
	}
	return filepath.Join(base, appName, "logs"), nil
}
