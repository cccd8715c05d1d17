package cli

import (
	"github.com/dl-alexandre/ghimg/internal/config"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect and change the ghimg configuration file.

The file lives in $GHIMG_CONFIG_DIR (default ~/.ghimg) as config.json, or
config.yaml when only that exists. GHIMG_* environment variables override
file values; 'config show' prints the merged result.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Display the configuration after environment overrides. Secrets are redacted.",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set one key and save the file. The whole configuration is validated
before it is written. Lists such as excludePatterns take comma separated
values. Use 'config keys' to see available keys.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys accepted by 'config set'",
	RunE:  runConfigKeys,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE:  runConfigPath,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	RunE:  runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configKeysCmd, configPathCmd, configResetCmd)
	rootCmd.AddCommand(configCmd)
}

// configError wraps a config package error as an invalid argument
func configError(err error) error {
	return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build(), err)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd)

	cfg, err := config.Load(GetGlobalFlags().Config)
	if err != nil {
		return handleError(out, "config.show", nil, configError(err))
	}
	return out.WriteSuccess("config.show", cfg.Redacted())
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := GetGlobalFlags().Config
	out := newOutput(cmd)
	key, value := args[0], args[1]

	cfg, err := config.Load(path)
	if err != nil {
		return handleError(out, "config.set", nil, configError(err))
	}
	if err := cfg.Set(key, value); err != nil {
		return handleError(out, "config.set", nil, configError(err))
	}
	if err := cfg.Save(path); err != nil {
		return handleError(out, "config.set", nil, configError(err))
	}

	out.Log("Configuration updated: %s = %s", key, value)
	return out.WriteSuccess("config.set", map[string]interface{}{
		"key":   key,
		"value": value,
	})
}

func runConfigKeys(cmd *cobra.Command, args []string) error {
	return newOutput(cmd).WriteSuccess("config.keys", map[string]interface{}{"keys": config.Keys()})
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd)

	path, err := config.ResolvePath(GetGlobalFlags().Config)
	if err != nil {
		return handleError(out, "config.path", nil, configError(err))
	}
	return out.WriteSuccess("config.path", map[string]interface{}{
		"path":      path,
		"directory": getConfigDir(),
	})
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	path := GetGlobalFlags().Config
	out := newOutput(cmd)

	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		return handleError(out, "config.reset", nil,
			utils.WrapAppError(utils.NewCLIError(utils.ErrCodeUnknown, "failed to reset configuration: "+err.Error()).Build(), err))
	}

	out.Log("Configuration reset to defaults")
	return out.WriteSuccess("config.reset", cfg)
}
