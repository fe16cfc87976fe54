package convert

import (
	"os"
	"os/exec"

	"docmcp/internal/domain"
)

// LocateEngine resolves the headless engine binary. Order: explicit
// configuration, the environment override, then the platform candidate
// list.
func LocateEngine(configured string) (string, error) {
	if configured != "" {
		return exec.LookPath(configured)
	}
	if override := os.Getenv(domain.EngineExecutableEnv); override != "" {
		return exec.LookPath(override)
	}
	for _, candidate := range domain.EngineExecutableCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", domain.ErrExecutableNotFound
}
