// Package config loads the flat key-value configuration that drives a
// covergen run, plus the nested LLM/repair/logging blocks a complete
// implementation needs on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LLMConfig configures the chat-completion backend used by the LLM Gateway.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	Endpoint    string  `mapstructure:"endpoint"`
	Temperature float64 `mapstructure:"temperature"`
}

// RepairConfig configures the repair loop.
type RepairConfig struct {
	// Rounds is the number of repair rounds attempted per iteration.
	// 0 disables repair even if EnableFixing is set on the flat schema.
	Rounds int `mapstructure:"rounds"`

	// UseMCTSPrompt switches the repair prompt variant from the plain
	// failed-test-feedback template to the MCTS-flavored one that also
	// asks the model to enumerate candidate fixes and commit to one.
	UseMCTSPrompt bool `mapstructure:"use_mcts_prompt"`
}

// TimeoutsConfig bounds the external operations a run suspends on.
type TimeoutsConfig struct {
	GenerationCommandSeconds int `mapstructure:"generation_command_seconds"`
	AnalysisCommandSeconds   int `mapstructure:"analysis_command_seconds"`
	PathEnumerationSeconds   int `mapstructure:"path_enumeration_seconds"`
}

// PathSelectorConfig configures the explore/exploit selection policy.
type PathSelectorConfig struct {
	MaxVisit int     `mapstructure:"max_visit"`
	Alpha    float64 `mapstructure:"alpha"`
}

// Config is the full configuration for one covergen run over one class
// under test. The top-level fields form a flat key-value schema, so a
// config.ini-style flat file loads directly onto this struct; the nested
// blocks tune the engine internals.
type Config struct {
	ProjectDirectory             string `mapstructure:"project_directory"`
	SourceCodeFile               string `mapstructure:"source_code_file"`
	TestCodeFile                 string `mapstructure:"test_code_file"`
	TestFileOutputPath           string `mapstructure:"test_file_output_path"`
	CodeCoverageReportPath       string `mapstructure:"code_coverage_report_path"`
	TestExecutionCommand         string `mapstructure:"test_execution_command"`
	TestDependencyCommand        string `mapstructure:"test_dependency_command"`
	TestCodeCommandDir           string `mapstructure:"test_code_command_dir"`
	IncludedFiles                string `mapstructure:"included_files"`
	JUnitVersion                 int    `mapstructure:"junit_version"`
	Model                        string `mapstructure:"model"`
	CoverageType                 string `mapstructure:"coverage_type"`
	ReportFilepath               string `mapstructure:"report_filepath"`
	TargetCoverage               int    `mapstructure:"target_coverage"`
	MaximumIterations            int    `mapstructure:"maximum_iterations"`
	NoCoverageIncreaseIterations int    `mapstructure:"no_coverage_increase_iterations"`
	EnableFixing                 int    `mapstructure:"enable_fixing"`
	RunSymprompt                 bool   `mapstructure:"run_symprompt"`
	PromptType                   string `mapstructure:"prompt_type"`
	PickTwoPaths                 bool   `mapstructure:"pick_two_paths"`
	AdditionalInstructions       string `mapstructure:"additional_instructions"`

	LogLevel string `mapstructure:"log_level"`
	LogDir   string `mapstructure:"log_dir"`

	LLM          LLMConfig          `mapstructure:"llm"`
	Repair       RepairConfig       `mapstructure:"repair"`
	Timeouts     TimeoutsConfig     `mapstructure:"timeouts"`
	PathSelector PathSelectorConfig `mapstructure:"path_selector"`
}

// envVarPattern matches environment variable placeholders: ${VAR_NAME} or $VAR_NAME
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// resolveEnvVars replaces environment variable placeholders in a string with
// their values. Unset variables are left as-is.
func resolveEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match
		if strings.HasPrefix(match, "${") && strings.HasSuffix(match, "}") {
			varName = match[2 : len(match)-1]
		} else if strings.HasPrefix(match, "$") {
			varName = match[1:]
		}
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match
	})
}

// LoadEnvFromDotEnv loads KEY=value pairs from a .env file in dir, if present.
func LoadEnvFromDotEnv(dir string) error {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(envPath)
	if err != nil {
		return fmt.Errorf("failed to read .env file: %w", err)
	}

	for lineNum, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			return fmt.Errorf("invalid line in .env file at line %d: missing '='", lineNum+1)
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if len(value) >= 2 && (value[0] == '"' && value[len(value)-1] == '"' || value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return nil
}

func applyEnvResolution(v *viper.Viper) {
	resolveInMap(v.AllSettings())
}

func resolveInMap(m map[string]interface{}) {
	for k, val := range m {
		switch typed := val.(type) {
		case string:
			if resolved := resolveEnvVars(typed); resolved != typed {
				m[k] = resolved
			}
		case map[string]interface{}:
			resolveInMap(typed)
		case []interface{}:
			resolveInSlice(typed)
		}
	}
}

func resolveInSlice(s []interface{}) {
	for i, val := range s {
		switch typed := val.(type) {
		case string:
			s[i] = resolveEnvVars(typed)
		case map[string]interface{}:
			resolveInMap(typed)
		}
	}
}

// Load reads a flat or nested config document (YAML/TOML/INI/JSON, whatever
// viper's format sniffing accepts) from path into a fresh Config, applying
// environment-variable resolution and defaults.
func Load(path string) (*Config, error) {
	if err := LoadEnvFromDotEnv(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	applyEnvResolution(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("junit_version", 4)
	v.SetDefault("coverage_type", "jacoco")
	v.SetDefault("target_coverage", 80)
	v.SetDefault("maximum_iterations", 10)
	v.SetDefault("no_coverage_increase_iterations", 3)
	v.SetDefault("enable_fixing", 3)
	v.SetDefault("prompt_type", "coverage")
	v.SetDefault("pick_two_paths", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("timeouts.generation_command_seconds", 60)
	v.SetDefault("timeouts.analysis_command_seconds", 10)
	v.SetDefault("timeouts.path_enumeration_seconds", 5)
	v.SetDefault("path_selector.max_visit", 10)
	v.SetDefault("path_selector.alpha", 0.7)
	v.SetDefault("repair.rounds", 3)
}

// applyDefaults fills in any zero-valued numeric field viper's own defaults
// didn't reach (e.g. because the config document set the key to 0 explicitly
// vs. omitted it — viper can't tell those apart after Unmarshal).
func applyDefaults(cfg *Config) {
	if cfg.Timeouts.GenerationCommandSeconds == 0 {
		cfg.Timeouts.GenerationCommandSeconds = 60
	}
	if cfg.Timeouts.AnalysisCommandSeconds == 0 {
		cfg.Timeouts.AnalysisCommandSeconds = 10
	}
	if cfg.Timeouts.PathEnumerationSeconds == 0 {
		cfg.Timeouts.PathEnumerationSeconds = 5
	}
	if cfg.PathSelector.MaxVisit == 0 {
		cfg.PathSelector.MaxVisit = 10
	}
	if cfg.PathSelector.Alpha == 0 {
		cfg.PathSelector.Alpha = 0.7
	}
	if cfg.JUnitVersion == 0 {
		cfg.JUnitVersion = 4
	}
	if cfg.CoverageType == "" {
		cfg.CoverageType = "jacoco"
	}
}

// Validate checks the recognized-option constraints.
func Validate(cfg *Config) error {
	if cfg.SourceCodeFile == "" {
		return fmt.Errorf("config: source_code_file is required")
	}
	if cfg.TestCodeFile == "" {
		return fmt.Errorf("config: test_code_file is required")
	}
	if cfg.TestExecutionCommand == "" {
		return fmt.Errorf("config: test_execution_command is required")
	}
	switch cfg.JUnitVersion {
	case 3, 4, 5:
	default:
		return fmt.Errorf("config: junit_version must be one of {3,4,5}, got %d", cfg.JUnitVersion)
	}
	switch cfg.CoverageType {
	case "jacoco", "pycov":
	default:
		return fmt.Errorf("config: coverage_type must be one of {jacoco,pycov}, got %q", cfg.CoverageType)
	}
	switch cfg.PromptType {
	case "baseline", "coverage", "control", "symprompt", "":
	default:
		return fmt.Errorf("config: prompt_type must be one of {baseline,coverage,control,symprompt}, got %q", cfg.PromptType)
	}
	if cfg.TargetCoverage < 0 || cfg.TargetCoverage > 100 {
		return fmt.Errorf("config: target_coverage must be in [0,100], got %d", cfg.TargetCoverage)
	}
	return nil
}
