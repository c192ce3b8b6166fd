package cmds

import (
	"fmt"
	"kvguard/internal/types"
	"strings"

	"github.com/spf13/cobra"
)

var (
	indexCmd = &cobra.Command{
		Use:   "index",
		Short: "Secondary index operations",
	}
	indexAddCmd = &cobra.Command{
		Use:   "add [name] [field=value]...",
		Short: "Adds or overwrites fields of an index",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args[1:])
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := getService(ctx)
			if err != nil {
				return err
			}
			ok, err := s.Store.AddIndexes(ctx, []types.Index{{Name: args[0], Fields: fields}})
			if err != nil {
				return err
			}
			return report(cmd, ok, "index updated", "index update failed")
		},
	}
	indexGetCmd = &cobra.Command{
		Use:   "get [name]",
		Short: "Prints the fields of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := getService(ctx)
			if err != nil {
				return err
			}
			idx, err := s.Store.GetIndex(ctx, args[0])
			if err != nil {
				return err
			}
			if idx == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "index=%s, found=false\n", args[0])
				return nil
			}
			for _, f := range idx.Fields {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", f.Name, f.Value)
			}
			return nil
		},
	}
	indexDelCmd = &cobra.Command{
		Use:   "del [name] [field]...",
		Short: "Removes fields from an index",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := getService(ctx)
			if err != nil {
				return err
			}
			removed, err := s.Store.DeleteIndexColumns(ctx, args[0], args[1:]...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index=%s, removed=%v\n", args[0], removed)
			return nil
		},
	}
)

func init() {
	indexCmd.AddCommand(indexAddCmd, indexGetCmd, indexDelCmd)
}

// parseFields turns "name=value" arguments into index fields.
func parseFields(args []string) ([]types.Field, error) {
	fields := make([]types.Field, 0, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q, expected name=value", a)
		}
		fields = append(fields, types.Field{Name: name, Value: value})
	}
	return fields, nil
}
