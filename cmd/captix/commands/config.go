package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/captix/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CaptiX configuration",
	Long: `Show the effective configuration, including flag overrides, and
change individual settings. Keys are the dotted YAML paths shown by
'config show', e.g. recording.fps.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective CaptiX configuration.`,
	Example: `  # Show configuration as YAML (default)
  captix config show

  # Show configuration as JSON
  captix config show --format json`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long:  `Set a specific configuration value and save it to the config file.`,
	Example: `  # Record at 60 frames per second
  captix config set recording.fps 60

  # Stop copying screenshots to the clipboard
  captix config set screenshot.copy_to_clipboard false`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Long:  `Get a specific configuration value.`,
	Example: `  # Get the screenshot directory
  captix config get screenshot.directory`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := configMgr.Get()

	switch formatFlag {
	case "json":
		return printJSON(cfg)
	case "yaml":
		fmt.Printf("# %s\n", configMgr.GetConfigPath())
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	// Reload from disk so flag overrides are not persisted.
	mgr, err := config.NewManager(configMgr.GetConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := setConfigValue(mgr, key, value); err != nil {
		return err
	}

	fmt.Printf("Configuration updated: %s = %s\n", key, value)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	v, err := getConfigValue(configMgr.Get(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(configMgr.GetConfigPath())
	return nil
}


var validLogLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}

// configValues returns cfg as its YAML key tree.
func configValues(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return values, nil
}

// lookupConfigKey resolves a dotted key to the map holding its leaf value.
func lookupConfigKey(values map[string]any, key string) (map[string]any, string, error) {
	parts := strings.Split(key, ".")
	node := values
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("configuration key not found: %s", key)
		}
		node = next
	}

	leaf := parts[len(parts)-1]
	v, ok := node[leaf]
	if !ok {
		return nil, "", fmt.Errorf("configuration key not found: %s", key)
	}
	if _, section := v.(map[string]any); section {
		return nil, "", fmt.Errorf("%s is a section, use one of its keys", key)
	}
	return node, leaf, nil
}

func getConfigValue(cfg *config.Config, key string) (any, error) {
	values, err := configValues(cfg)
	if err != nil {
		return nil, err
	}
	node, leaf, err := lookupConfigKey(values, key)
	if err != nil {
		return nil, err
	}
	return node[leaf], nil
}

// setConfigValue parses value as the type the key already holds, applies
// it and saves the file.
func setConfigValue(mgr *config.Manager, key, value string) error {
	cfg := mgr.Get()
	values, err := configValues(cfg)
	if err != nil {
		return err
	}
	node, leaf, err := lookupConfigKey(values, key)
	if err != nil {
		return err
	}

	switch node[leaf].(type) {
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		node[leaf] = n
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		node[leaf] = b
	default:
		if key == "log_level" && !validLogLevels[strings.ToLower(value)] {
			return fmt.Errorf("invalid log level: %s (use: trace, debug, info, warn, error)", value)
		}
		node[leaf] = value
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to apply %s: %w", key, err)
	}
	mgr.Update(func(c *config.Config) { *c = *cfg })

	if err := mgr.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
