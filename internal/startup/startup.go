// Package startup runs preflight diagnostics before the pipeline starts.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"kerneural/internal/config"
	"kerneural/internal/logging"
	"kerneural/internal/rules"
)

// DiagnosticResult represents the result of a diagnostic check
type DiagnosticResult struct {
	Name    string
	Status  Status
	Message string
	Details map[string]string
}

// Status represents the status of a diagnostic check
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusError:
		return "ERROR"
	case StatusSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// Diagnostics runs the preflight checks.
type Diagnostics struct {
	cfg        *config.Config
	configPath string
	results    []DiagnosticResult
	logger     *slog.Logger

	lookPath func(string) (string, error)
}

// NewDiagnostics creates a new diagnostics runner. configPath is the file
// the configuration was read from, or "" when defaults were used.
func NewDiagnostics(cfg *config.Config, configPath string, logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnostics{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		lookPath:   exec.LookPath,
	}
}

// RunAll runs all diagnostic checks
func (d *Diagnostics) RunAll(ctx context.Context) []DiagnosticResult {
	d.logger.Info("running startup diagnostics")

	d.checkSystem()
	d.checkConfiguration()
	d.checkDirectories()
	d.checkRuleStore()
	d.checkReloadCommand()
	d.checkLLM()
	d.checkListener()
	d.checkIntegrations()

	d.printSummary()
	return d.results
}

func (d *Diagnostics) addResult(result DiagnosticResult) {
	d.results = append(d.results, result)

	attrs := []any{
		"check", result.Name,
		"status", result.Status.String(),
	}
	if result.Message != "" {
		attrs = append(attrs, "message", result.Message)
	}
	for k, v := range result.Details {
		attrs = append(attrs, k, v)
	}

	switch result.Status {
	case StatusOK:
		d.logger.Info("diagnostic check passed", attrs...)
	case StatusWarning:
		d.logger.Warn("diagnostic check warning", attrs...)
	case StatusError:
		d.logger.Error("diagnostic check failed", attrs...)
	case StatusSkipped:
		d.logger.Debug("diagnostic check skipped", attrs...)
	}
}

func (d *Diagnostics) checkSystem() {
	d.addResult(DiagnosticResult{
		Name:    "runtime",
		Status:  StatusOK,
		Message: "Go runtime detected",
		Details: map[string]string{
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"cpus":       fmt.Sprintf("%d", runtime.NumCPU()),
		},
	})
}

func (d *Diagnostics) checkConfiguration() {
	switch {
	case d.configPath == "":
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusWarning,
			Message: "Config file not found, using defaults",
		})
	case fileExists(d.configPath):
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusOK,
			Message: "Config file found",
			Details: map[string]string{"path": d.configPath},
		})
	default:
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusWarning,
			Message: "Config file not found, using defaults",
			Details: map[string]string{"path": d.configPath},
		})
	}

	if err := d.cfg.Validate(); err != nil {
		d.addResult(DiagnosticResult{
			Name:    "config_validation",
			Status:  StatusError,
			Message: fmt.Sprintf("Configuration validation failed: %s", err),
		})
		return
	}
	d.addResult(DiagnosticResult{
		Name:    "config_validation",
		Status:  StatusOK,
		Message: "Configuration is valid",
	})
}

// checkDirectories ensures the parent directories of the event stream and
// the rule store exist, creating them when missing.
func (d *Diagnostics) checkDirectories() {
	dirs := []struct {
		name string
		path string
	}{
		{"events", filepath.Dir(d.cfg.Events.Path)},
		{"rule_store", filepath.Dir(d.cfg.Rules.StorePath)},
	}

	for _, dir := range dirs {
		name := "directory_" + dir.name
		info, err := os.Stat(dir.path)
		switch {
		case os.IsNotExist(err):
			if err := os.MkdirAll(dir.path, 0o750); err != nil {
				d.addResult(DiagnosticResult{
					Name:    name,
					Status:  StatusError,
					Message: fmt.Sprintf("Failed to create directory: %s", err),
					Details: map[string]string{"path": dir.path},
				})
				continue
			}
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusOK,
				Message: "Directory created",
				Details: map[string]string{"path": dir.path},
			})
		case err != nil:
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusError,
				Message: fmt.Sprintf("Error checking directory: %s", err),
				Details: map[string]string{"path": dir.path},
			})
		case !info.IsDir():
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusError,
				Message: "Path exists but is not a directory",
				Details: map[string]string{"path": dir.path},
			})
		default:
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusOK,
				Message: "Directory exists",
				Details: map[string]string{"path": dir.path},
			})
		}
	}
}

// checkRuleStore parses the existing store. An unparseable store would make
// every later engine reload fail, so it is reported as an error.
func (d *Diagnostics) checkRuleStore() {
	path := d.cfg.Rules.StorePath
	if !fileExists(path) {
		d.addResult(DiagnosticResult{
			Name:    "rule_store",
			Status:  StatusOK,
			Message: "Rule store will be created on first accepted rule",
			Details: map[string]string{"path": path},
		})
		return
	}

	defs, err := rules.NewStore(path).Load()
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "rule_store",
			Status:  StatusError,
			Message: fmt.Sprintf("Rule store is not loadable: %s", err),
			Details: map[string]string{"path": path},
		})
		return
	}
	d.addResult(DiagnosticResult{
		Name:    "rule_store",
		Status:  StatusOK,
		Message: "Rule store loaded",
		Details: map[string]string{"path": path, "rules": fmt.Sprintf("%d", len(defs))},
	})
}

func (d *Diagnostics) checkReloadCommand() {
	argv := d.cfg.Engine.ReloadCommand
	if len(argv) == 0 {
		d.addResult(DiagnosticResult{
			Name:    "reload_command",
			Status:  StatusError,
			Message: "No reload command configured",
		})
		return
	}

	resolved, err := d.lookPath(argv[0])
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "reload_command",
			Status:  StatusWarning,
			Message: fmt.Sprintf("Reload binary not found, accepted rules will not take effect: %s", err),
			Details: map[string]string{"command": strings.Join(argv, " ")},
		})
		return
	}
	d.addResult(DiagnosticResult{
		Name:    "reload_command",
		Status:  StatusOK,
		Message: "Reload binary found",
		Details: map[string]string{"command": strings.Join(argv, " "), "path": resolved},
	})
}

func (d *Diagnostics) checkLLM() {
	details := map[string]string{
		"base_url": d.cfg.LLM.BaseURL,
		"model":    d.cfg.LLM.Model,
	}
	if d.cfg.LLM.APIKey == "" {
		d.addResult(DiagnosticResult{
			Name:    "llm_credentials",
			Status:  StatusWarning,
			Message: "No API key configured; set KERNEURAL_LLM_API_KEY or GEMINI_API_KEY",
			Details: details,
		})
		return
	}
	details["api_key"] = logging.MaskAPIKey(d.cfg.LLM.APIKey)
	d.addResult(DiagnosticResult{
		Name:    "llm_credentials",
		Status:  StatusOK,
		Message: "API key configured",
		Details: details,
	})
}

func (d *Diagnostics) checkListener() {
	if !d.cfg.Server.Enabled {
		d.addResult(DiagnosticResult{
			Name:    "status_server",
			Status:  StatusSkipped,
			Message: "Status server disabled",
		})
		return
	}

	listener, err := net.Listen("tcp", d.cfg.Server.Addr)
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "status_server",
			Status:  StatusError,
			Message: fmt.Sprintf("Address %s is not available: %s", d.cfg.Server.Addr, err),
		})
		return
	}
	listener.Close()
	d.addResult(DiagnosticResult{
		Name:    "status_server",
		Status:  StatusOK,
		Message: fmt.Sprintf("Address %s is available", d.cfg.Server.Addr),
	})
}

func (d *Diagnostics) checkIntegrations() {
	integrations := []struct {
		name    string
		enabled bool
		target  string
	}{
		{"cooldown_redis", d.cfg.Cooldown.Backend == "redis", d.cfg.Cooldown.Redis.Addr},
		{"audit_kafka", d.cfg.Audit.KafkaEnabled, kafkaTarget(d.cfg)},
		{"archive_s3", d.cfg.Archive.Enabled, s3Target(d.cfg)},
	}

	for _, in := range integrations {
		if !in.enabled {
			d.addResult(DiagnosticResult{
				Name:    in.name,
				Status:  StatusSkipped,
				Message: "Integration disabled",
			})
			continue
		}
		d.addResult(DiagnosticResult{
			Name:    in.name,
			Status:  StatusOK,
			Message: "Integration enabled",
			Details: map[string]string{"target": in.target},
		})
	}
}

func kafkaTarget(cfg *config.Config) string {
	if cfg.Audit.Kafka == nil {
		return ""
	}
	return strings.Join(cfg.Audit.Kafka.Brokers, ",") + "/" + cfg.Audit.Kafka.Topic
}

func s3Target(cfg *config.Config) string {
	if cfg.Archive.S3 == nil {
		return ""
	}
	return "s3://" + cfg.Archive.S3.Bucket + "/" + cfg.Archive.S3.Prefix
}

func (d *Diagnostics) printSummary() {
	var ok, warnings, errors, skipped int
	for _, r := range d.results {
		switch r.Status {
		case StatusOK:
			ok++
		case StatusWarning:
			warnings++
		case StatusError:
			errors++
		case StatusSkipped:
			skipped++
		}
	}

	d.logger.Info("diagnostics summary",
		"passed", ok,
		"warnings", warnings,
		"errors", errors,
		"skipped", skipped,
	)

	if errors > 0 {
		d.logger.Error("startup diagnostics found critical errors")
	} else if warnings > 0 {
		d.logger.Warn("startup diagnostics found warnings")
	}
}

// HasErrors returns true if any diagnostic check failed
func (d *Diagnostics) HasErrors() bool {
	for _, r := range d.results {
		if r.Status == StatusError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any diagnostic check has warnings
func (d *Diagnostics) HasWarnings() bool {
	for _, r := range d.results {
		if r.Status == StatusWarning {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// PrintBanner prints the startup banner
func PrintBanner(version string) {
	fmt.Println(`
  _                                      _
 | | _____ _ __ _ __   ___ _   _ _ __ __ _| |
 | |/ / _ \ '__| '_ \ / _ \ | | | '__/ _' | |
 |   <  __/ |  | | | |  __/ |_| | | | (_| | |
 |_|\_\___|_|  |_| |_|\___|\__,_|_|  \__,_|_|

   Falco alerts in, validated rules out`)
	fmt.Printf("   Version: %s\n\n", version)
}
