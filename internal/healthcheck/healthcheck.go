// Package healthcheck inspects the tool's environment for the doctor
// command: which config file is in effect, whether it validates, and
// whether the report cache is usable.
package healthcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nnfission/go-gemm-partition/internal/config"
)

// CheckStatus is the outcome of a single environment check.
type CheckStatus struct {
	Name   string // What was checked
	Status string // "ok", "warning", or "error"
	Detail string
}

// Result contains the full doctor output for display.
type Result struct {
	ConfigPath  string // Config file in effect, empty when running on defaults
	ConfigScope string // "global", "project", or "defaults"
	Checks      []CheckStatus
}

// Healthy reports whether no check failed. Warnings do not count as failures.
func (r *Result) Healthy() bool {
	for _, c := range r.Checks {
		if c.Status == "error" {
			return false
		}
	}
	return true
}

// Check runs all environment checks. graphPath is the graph file the user
// intends to partition; empty means no graph check.
func Check(graphPath string) *Result {
	result := &Result{}

	result.ConfigPath, result.ConfigScope = effectiveConfig()
	result.Checks = append(result.Checks, checkConfig())
	result.Checks = append(result.Checks, checkCacheDir())
	if graphPath != "" {
		result.Checks = append(result.Checks, checkGraphFile(graphPath))
	}
	return result
}

// effectiveConfig reports the config file the loader will use, following the
// project-over-global priority.
func effectiveConfig() (path, scope string) {
	if _, err := os.Stat(".ggp/config.yaml"); err == nil {
		return ".ggp/config.yaml", "project"
	}
	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, ".ggp", "config.yaml")
		if _, err := os.Stat(global); err == nil {
			return global, "global"
		}
	}
	return "", "defaults"
}

func checkConfig() CheckStatus {
	status := CheckStatus{Name: "configuration"}

	cfg, err := config.Load()
	if err != nil {
		status.Status = "error"
		status.Detail = err.Error()
		return status
	}

	status.Status = "ok"
	status.Detail = fmt.Sprintf("precisions: %s; operators: %s",
		strings.Join(cfg.EnabledPrecisions, ", "),
		strings.Join(cfg.Operators, ", "))
	if len(cfg.Operators) == 0 {
		status.Status = "warning"
		status.Detail = "no operators enabled, nothing will be partitioned"
	}
	return status
}

// checkCacheDir verifies the report cache directory can be written. A
// read-only directory degrades runs to uncached, so it is a warning.
func checkCacheDir() CheckStatus {
	status := CheckStatus{Name: "report cache"}

	dir := filepath.Join(".ggp", "cache")
	if err := os.MkdirAll(dir, 0755); err != nil {
		status.Status = "warning"
		status.Detail = fmt.Sprintf("cache directory is not writable: %v", err)
		return status
	}

	probe := filepath.Join(dir, ".probe")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		status.Status = "warning"
		status.Detail = fmt.Sprintf("cache directory is not writable: %v", err)
		return status
	}
	os.Remove(probe)

	status.Status = "ok"
	status.Detail = dir
	return status
}

func checkGraphFile(path string) CheckStatus {
	status := CheckStatus{Name: "graph file"}

	info, err := os.Stat(path)
	switch {
	case err != nil:
		status.Status = "error"
		status.Detail = fmt.Sprintf("cannot read %s: %v", path, err)
	case info.IsDir():
		status.Status = "error"
		status.Detail = fmt.Sprintf("%s is a directory", path)
	case info.Size() == 0:
		status.Status = "error"
		status.Detail = fmt.Sprintf("%s is empty", path)
	default:
		status.Status = "ok"
		status.Detail = fmt.Sprintf("%s (%d bytes)", path, info.Size())
	}
	return status
}
