// Package main provides a CLI for checking rule candidates and listing the
// generated rule store.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"kerneural/internal/config"
	"kerneural/internal/logging"
	"kerneural/internal/rules"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidateCmd(os.Args[2:])
	case "list":
		runListCmd(os.Args[2:])
	case "-version", "--version", "-v":
		fmt.Printf("kerneural-rules %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: kerneural-rules <command> [flags] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  validate  Check rule candidates the way the pipeline does (use - for stdin)\n")
	fmt.Fprintf(os.Stderr, "  list      List rules in the generated rule store\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	fmt.Fprintf(os.Stderr, "  -version  Show version and exit\n")
}

func runValidateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Print the cleaned rules")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one path is required\n")
		fmt.Fprintf(os.Stderr, "Usage: kerneural-rules validate [--verbose] <path|-> [<path>...]\n")
		os.Exit(1)
	}

	os.Exit(runValidate(os.Stdout, paths, *verbose))
}

func runListCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	storePath := fs.String("store", "", "Rule store path (default from config)")
	fs.Parse(args)

	path := *storePath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		path = cfg.Rules.StorePath
	}

	os.Exit(runList(os.Stdout, path))
}

func runValidate(out io.Writer, paths []string, verbose bool) int {
	// Fixes are reported below, not through the logger.
	validator := rules.NewValidator(logging.New(io.Discard, "error", "text"))

	var checked, valid int
	for _, path := range paths {
		checked++
		if validateFile(out, validator, path, verbose) {
			valid++
		}
	}

	fmt.Fprintf(out, "\nResults: %d checked, %d valid, %d invalid\n", checked, valid, checked-valid)
	if valid != checked {
		return 1
	}
	return 0
}

func validateFile(out io.Writer, validator *rules.Validator, path string, verbose bool) bool {
	data, err := readInput(path)
	if err != nil {
		fmt.Fprintf(out, "  FAIL  %s: %v\n", path, err)
		return false
	}

	report, err := validator.Validate(string(data))
	if err != nil {
		var rej *rules.Rejection
		if errors.As(err, &rej) {
			fmt.Fprintf(out, "  FAIL  %s: [%s] %s\n", path, rej.Kind, rej.Error())
		} else {
			fmt.Fprintf(out, "  FAIL  %s: %v\n", path, err)
		}
		return false
	}

	fmt.Fprintf(out, "  OK    %s (%d rule(s): %s)\n", path, len(report.Rules), strings.Join(rules.Names(report.Rules), ", "))
	for _, fix := range report.Fixes {
		fmt.Fprintf(out, "        fixed rule #%d %s: %s\n", fix.Index+1, fix.Field, fix.Message)
	}

	if verbose {
		encoded, err := rules.Encode(report.Rules)
		if err != nil {
			fmt.Fprintf(out, "  FAIL  %s: %v\n", path, err)
			return false
		}
		out.Write(encoded)
	}
	return true
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(filepath.Clean(path))
}

func runList(out io.Writer, path string) int {
	defs, err := rules.NewStore(path).Load()
	if err != nil {
		slog.Error("failed to load rule store", "path", path, "error", err)
		return 1
	}
	if len(defs) == 0 {
		fmt.Fprintf(out, "No rules in %s\n", path)
		return 0
	}
	for _, d := range defs {
		fmt.Fprintf(out, "%-10s  %s\n", d.Priority, d.Rule)
	}
	fmt.Fprintf(out, "\n%d rule(s) in %s\n", len(defs), path)
	return 0
}
