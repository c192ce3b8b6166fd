package cmds

import (
	"context"
	"fmt"
	"io"
	"kvguard/internal/backends/memory"
	"kvguard/internal/ports"
	"kvguard/internal/types"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Reads and writes the configuration source",
	}
	configGetCmd = &cobra.Command{
		Use:   "get [namespace]",
		Short: "Prints every entry of a namespace as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return GetConfig(ctx, cmd.OutOrStdout(), source, viper.GetString("environment"), args[0])
		},
	}
	configPutCmd = &cobra.Command{
		Use:   "put [file]",
		Short: "Loads a YAML seed file into the configuration source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := PutConfig(ctx, source, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config loaded")
			return nil
		},
	}
)

func init() {
	configCmd.AddCommand(configGetCmd, configPutCmd)
}

// PutConfig validates every entry of the YAML seed file at path and writes
// them to the source. Nothing is written if any entry is invalid.
func PutConfig(ctx context.Context, src ports.ConfigSource, path string) error {
	entries, err := memory.LoadYAML(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := src.PutConfig(ctx, e); err != nil {
			return fmt.Errorf("put %s: %w", e.Key(), err)
		}
	}
	return nil
}

// GetConfig writes the entries of one namespace to w in seed-file form.
func GetConfig(ctx context.Context, w io.Writer, src ports.ConfigSource, environment, namespace string) error {
	if namespace == "" {
		return types.NullArgument("namespace")
	}
	entries, err := src.ListConfig(ctx, environment, namespace)
	if err != nil {
		return err
	}
	doc := struct {
		Environment string              `yaml:"environment"`
		Entries     []types.ConfigEntry `yaml:"entries"`
	}{Environment: environment, Entries: entries}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
