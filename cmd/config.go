package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gitwatch"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage gitwatch configuration.

Running bare 'gitwatch config' is the same as 'gitwatch config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# gitwatch configuration
# See: gitwatch config show (for effective values and sources)

# SQLite database path (default: ~/.config/gitwatch/gitwatch.db)
# db_path: {{ .DBPath }}

sync:
  # Global sync interval for repos without their own (default: 5m)
  default_interval: "{{ .DefaultInterval }}"

  # Timeout for each git fetch (default: 30s)
  fetch_timeout: "{{ .FetchTimeout }}"

notify:
  # Master switch for all alerts (default: true)
  enabled: {{ .NotifyEnabled }}

  # Alert when a tracking branch falls behind (default: true)
  on_changes: {{ .NotifyOnChanges }}

  # Alert when a sync cycle fails (default: true)
  on_errors: {{ .NotifyOnErrors }}

  # Minimum gap between identical alerts per repo (default: 60s)
  cooldown: "{{ .NotifyCooldown }}"

git:
  # Extra directories prepended to PATH for git subprocesses, e.g. for
  # credential helpers. Entries must be absolute ("~" is expanded).
  extra_paths: []

watch:
  # Address for the status HTTP API ("" = disabled)
  listen: "{{ .WatchListen }}"

  # Watcher log file ("" = stderr). Rotated at 10MB, 3 backups.
  log_file: "{{ .WatchLogFile }}"
`

type configTemplateData struct {
	DBPath          string
	DefaultInterval string
	FetchTimeout    string
	NotifyEnabled   bool
	NotifyOnChanges bool
	NotifyOnErrors  bool
	NotifyCooldown  string
	WatchListen     string
	WatchLogFile    string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	data := configTemplateData{
		DBPath:          viper.GetString("db_path"),
		DefaultInterval: viper.GetDuration("sync.default_interval").String(),
		FetchTimeout:    viper.GetDuration("sync.fetch_timeout").String(),
		NotifyEnabled:   viper.GetBool("notify.enabled"),
		NotifyOnChanges: viper.GetBool("notify.on_changes"),
		NotifyOnErrors:  viper.GetBool("notify.on_errors"),
		NotifyCooldown:  viper.GetDuration("notify.cooldown").String(),
		WatchListen:     viper.GetString("watch.listen"),
		WatchLogFile:    viper.GetString("watch.log_file"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "db_path", EnvVar: "GITWATCH_DB_PATH"},
	{Key: "sync.default_interval", EnvVar: "GITWATCH_SYNC_DEFAULT_INTERVAL"},
	{Key: "sync.fetch_timeout", EnvVar: "GITWATCH_SYNC_FETCH_TIMEOUT"},
	{Key: "notify.enabled", EnvVar: "GITWATCH_NOTIFY_ENABLED"},
	{Key: "notify.on_changes", EnvVar: "GITWATCH_NOTIFY_ON_CHANGES"},
	{Key: "notify.on_errors", EnvVar: "GITWATCH_NOTIFY_ON_ERRORS"},
	{Key: "notify.cooldown", EnvVar: "GITWATCH_NOTIFY_COOLDOWN"},
	{Key: "git.extra_paths", EnvVar: "GITWATCH_GIT_EXTRA_PATHS"},
	{Key: "watch.listen", EnvVar: "GITWATCH_WATCH_LISTEN"},
	{Key: "watch.log_file", EnvVar: "GITWATCH_WATCH_LOG_FILE"},
	{Key: "watch.pid_file", EnvVar: "GITWATCH_WATCH_PID_FILE"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-24s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set — set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'gitwatch config init' first)", cfgPath)
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
