// Package main implements the gofhir-validator CLI tool.
// This CLI is designed to be comparable with the HL7 FHIR Validator.
package main

import (
	gocontext "context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	fv "github.com/fhirschema/go-fhirschema"
	fhircontext "github.com/fhirschema/go-fhirschema/context"
	"github.com/fhirschema/go-fhirschema/engine"
)

const (
	version = "0.1.0"
	usage   = `gofhir-validator - FHIR Resource Validator

Usage:
  gofhir-validator [options] <file>...
  gofhir-validator [options] -           (read from stdin)
  cat resource.json | gofhir-validator - (pipe input)

Examples:
  gofhir-validator patient.json
  gofhir-validator -version r4 patient.json
  gofhir-validator -ig http://hl7.org/fhir/us/core/StructureDefinition/us-core-patient patient.json
  gofhir-validator -output json patient.json
  gofhir-validator -tx n/a patient.json
  gofhir-validator *.json
  cat patient.json | gofhir-validator -

Options:
`
)

// OutputFormat specifies the output format.
type OutputFormat string

// Output format constants.
const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Config holds CLI configuration
type Config struct {
	Version       string
	Profiles      []string
	Packages      []string
	PackageDirs   []string
	Output        OutputFormat
	Strict        bool
	NoTerminology bool
	Quiet         bool
	Verbose       bool
	ShowVersion   bool
	Help          bool
	Files         []string
}

// ValidationOutput represents the JSON output structure
type ValidationOutput struct {
	Resource string        `json:"resource"`
	Valid    bool          `json:"valid"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
	Issues   []IssueOutput `json:"issues,omitempty"`
	Duration string        `json:"duration"`
}

// IssueOutput represents a single issue in JSON output
type IssueOutput struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics"`
	Expression  []string `json:"expression,omitempty"`
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("gofhir-validator v%s\n", version)
		os.Exit(0)
	}

	if config.Help || len(config.Files) == 0 {
		flag.Usage()
		os.Exit(0)
	}

	exitCode := run(config)
	os.Exit(exitCode)
}

func parseFlags() *Config {
	config := &Config{
		Version: "4.0.1",
		Output:  OutputText,
	}

	// Define flags compatible with HL7 validator
	var profiles, packages, packageDirs string
	var output string

	flag.StringVar(&config.Version, "version", "4.0.1", "FHIR version (4.0.1, 4.3.0, 5.0.0)")
	flag.StringVar(&profiles, "ig", "", "Profile URL(s) to validate against (comma-separated)")
	flag.StringVar(&packages, "package", "", "Additional FHIR package(s) to load from the registry (e.g., hl7.fhir.us.core@6.1.0)")
	flag.StringVar(&packageDirs, "package-dir", "", "Local unpacked IG directory/directories to load (comma-separated)")
	flag.StringVar(&output, "output", "text", "Output format: text, json")
	flag.BoolVar(&config.Strict, "strict", false, "Treat warnings as errors")
	flag.BoolVar(&config.NoTerminology, "tx", false, "Disable terminology validation (use '-tx n/a')")
	flag.BoolVar(&config.Quiet, "quiet", false, "Only show errors and warnings")
	flag.BoolVar(&config.Verbose, "verbose", false, "Show detailed output")
	flag.BoolVar(&config.ShowVersion, "v", false, "Show version")
	flag.BoolVar(&config.Help, "help", false, "Show help")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}

	flag.Parse()

	if profiles != "" {
		config.Profiles = strings.Split(profiles, ",")
	}

	if packages != "" {
		config.Packages = strings.Split(packages, ",")
	}

	if packageDirs != "" {
		config.PackageDirs = strings.Split(packageDirs, ",")
	}

	switch strings.ToLower(output) {
	case "json":
		config.Output = OutputJSON
	default:
		config.Output = OutputText
	}

	// Handle -tx n/a style flag
	for _, arg := range os.Args {
		if arg == "n/a" {
			config.NoTerminology = true
		}
	}

	// "-tx" is a boolean flag, so the "n/a" after it is left among the
	// positional arguments; it is not a file.
	for _, arg := range flag.Args() {
		if arg != "n/a" {
			config.Files = append(config.Files, arg)
		}
	}

	return config
}

// parseVersion maps the HL7-validator-style version strings ("4.0.1", "r4",
// "4.3.0", ...) onto the fv.FHIRVersion the rest of the engine understands.
func parseVersion(s string) (fv.FHIRVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "4.0", "4.0.0", "4.0.1", "r4":
		return fv.R4, nil
	case "4.3", "4.3.0", "r4b":
		return fv.R4B, nil
	case "5.0", "5.0.0", "r5":
		return fv.R5, nil
	default:
		return "", fmt.Errorf("unsupported FHIR version %q", s)
	}
}

func run(config *Config) int {
	ctx := gocontext.Background()

	fhirVersion, err := parseVersion(config.Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if !config.Quiet {
		fmt.Fprintf(os.Stderr, "Initializing FHIR Validator (version %s)...\n", config.Version)
	}

	specOpts := fhircontext.DefaultOptions()
	specOpts.LoadTerminology = !config.NoTerminology
	specOpts.AdditionalPackages = config.Packages

	sc, err := fhircontext.New(ctx, fhirVersion, specOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to initialize FHIR spec context: %v\n", err)
		return 1
	}

	for _, dir := range config.PackageDirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		n, err := sc.LoadIG(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to load IG from %s: %v\n", dir, err)
			return 1
		}
		if !config.Quiet {
			fmt.Fprintf(os.Stderr, "Loaded %d structure definitions from %s\n", n, dir)
		}
	}

	var engineOpts []fv.Option
	engineOpts = append(engineOpts, fv.WithStrictMode(config.Strict))
	engineOpts = append(engineOpts, fv.WithTerminology(!config.NoTerminology && sc.HasTerminology()))

	v, err := engine.New(ctx, fhirVersion, engineOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to initialize validator: %v\n", err)
		return 1
	}
	v.SetProfileService(sc.Profiles)
	if sc.HasTerminology() {
		v.SetTerminologyService(sc.Terminology)
	}

	if !config.Quiet {
		fmt.Fprintf(os.Stderr, "Validator ready. Processing %d file(s)...\n\n", len(config.Files))
	}

	hasErrors := false
	outputs := make([]ValidationOutput, 0, len(config.Files))

	for _, file := range config.Files {
		var data []byte
		var name string

		if file == "-" {
			name = "stdin"
			data, err = io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
				hasErrors = true
				continue
			}
		} else {
			matches, globErr := filepath.Glob(file)
			if globErr != nil {
				fmt.Fprintf(os.Stderr, "Error with pattern '%s': %v\n", file, globErr)
				hasErrors = true
				continue
			}

			if len(matches) == 0 {
				fmt.Fprintf(os.Stderr, "No files match pattern: %s\n", file)
				hasErrors = true
				continue
			}

			for _, match := range matches {
				output, fileHasErrors := validateFile(ctx, v, match, config)
				outputs = append(outputs, output)
				if fileHasErrors {
					hasErrors = true
				}
			}
			continue
		}

		output, fileHasErrors := validateData(ctx, v, data, name, config)
		outputs = append(outputs, output)
		if fileHasErrors {
			hasErrors = true
		}
	}

	if config.Output == OutputJSON {
		jsonOutput, _ := json.MarshalIndent(outputs, "", "  ")
		fmt.Println(string(jsonOutput))
	}

	if hasErrors {
		return 1
	}
	return 0
}

func validateFile(ctx gocontext.Context, v *engine.Validator, path string, config *Config) (ValidationOutput, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		output := ValidationOutput{
			Resource: path,
			Valid:    false,
			Errors:   1,
			Issues: []IssueOutput{{
				Severity:    "error",
				Code:        "exception",
				Diagnostics: fmt.Sprintf("Failed to read file: %v", err),
			}},
		}
		if config.Output == OutputText {
			fmt.Printf("Error reading %s: %v\n", path, err)
		}
		return output, true
	}

	return validateData(ctx, v, data, path, config)
}

func validateData(ctx gocontext.Context, v *engine.Validator, data []byte, name string, config *Config) (ValidationOutput, bool) {
	startTime := time.Now()

	var result *fv.Result
	var err error
	if len(config.Profiles) > 0 {
		result, err = v.ValidateWithProfiles(ctx, data, config.Profiles...)
	} else {
		result, err = v.Validate(ctx, data)
	}
	duration := time.Since(startTime)

	if err != nil {
		output := ValidationOutput{
			Resource: name,
			Valid:    false,
			Errors:   1,
			Duration: duration.String(),
			Issues: []IssueOutput{{
				Severity:    "error",
				Code:        "exception",
				Diagnostics: fmt.Sprintf("Validation failed: %v", err),
			}},
		}
		if config.Output == OutputText {
			fmt.Printf("Error validating %s: %v\n", name, err)
		}
		return output, true
	}

	output := ValidationOutput{
		Resource: name,
		Valid:    !result.HasErrors(),
		Errors:   result.ErrorCount(),
		Warnings: result.WarningCount(),
		Duration: duration.Round(time.Microsecond).String(),
	}

	for _, iss := range result.Issues {
		output.Issues = append(output.Issues, IssueOutput{
			Severity:    string(iss.Severity),
			Code:        string(iss.Code),
			Diagnostics: iss.Diagnostics,
			Expression:  iss.Expression,
		})
	}

	if config.Output == OutputText {
		printTextResult(name, result, duration, config)
	}

	return output, result.HasErrors()
}

func printTextResult(name string, result *fv.Result, duration time.Duration, config *Config) {
	status := "VALID"
	if result.HasErrors() {
		status = "INVALID"
	}

	fmt.Printf("== %s ==\n", name)
	fmt.Printf("Status: %s\n", status)
	fmt.Printf("Errors: %d, Warnings: %d\n", result.ErrorCount(), result.WarningCount())

	if result.ResourceType != "" {
		fmt.Printf("Resource type: %s\n", result.ResourceType)
	}
	if len(result.ProfileURLs) > 0 {
		fmt.Printf("Profiles: %s\n", strings.Join(result.ProfileURLs, ", "))
	}
	fmt.Printf("Duration: %s\n", duration.Round(time.Microsecond))

	if len(result.Issues) > 0 {
		fmt.Println("\nIssues:")
		for _, iss := range result.Issues {
			if config.Quiet && iss.Severity == fv.SeverityInformation {
				continue
			}

			severityIcon := getSeverityIcon(iss.Severity)
			location := ""
			if len(iss.Expression) > 0 {
				location = fmt.Sprintf(" @ %s", strings.Join(iss.Expression, ", "))
			}

			fmt.Printf("  %s [%s] %s%s\n", severityIcon, iss.Code, iss.Diagnostics, location)
		}
	}

	fmt.Println()
}

func getSeverityIcon(severity fv.IssueSeverity) string {
	switch severity {
	case fv.SeverityError, fv.SeverityFatal:
		return "ERROR"
	case fv.SeverityWarning:
		return "WARN "
	case fv.SeverityInformation:
		return "INFO "
	default:
		return "     "
	}
}
