package cmds

import (
	"fmt"
	"kvguard/internal/store"

	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]...",
		Short: "Reads the values for one or more keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := getService(ctx)
			if err != nil {
				return err
			}
			// Keys are read concurrently and reported in argument order.
			pending := make([]<-chan store.Outcome[string], len(args))
			for i, key := range args {
				pending[i] = store.GetAsync[string](ctx, s.Store, key)
			}
			for i, ch := range pending {
				got := <-ch
				if got.Err != nil {
					return got.Err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "key=%s, found=%v, value=%s\n", args[i], got.OK, got.Value)
			}
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := getService(ctx)
			if err != nil {
				return err
			}
			ttl, err := cmd.Flags().GetDuration("ttl")
			if err != nil {
				return err
			}
			ok, err := s.Store.Set(ctx, args[0], args[1], ttl)
			if err != nil {
				return err
			}
			return report(cmd, ok, "set successfully", "set failed")
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := getService(ctx)
			if err != nil {
				return err
			}
			deleted, err := s.Store.Delete(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, deleted=%v\n", args[0], deleted)
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [key]",
		Short: "Counts the fields of a hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := getService(ctx)
			if err != nil {
				return err
			}
			n, err := s.Store.Count(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, count=%d\n", args[0], n)
			return nil
		},
	}
	probeCmd = &cobra.Command{
		Use:   "probe",
		Short: "Checks the store with a write and read round trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := getService(ctx)
			if err != nil {
				return err
			}
			return report(cmd, s.Store.IsConnected(ctx), "store is reachable", "store is not reachable")
		},
	}
)

func init() {
	setCmd.Flags().Duration("ttl", 0, "expiry of the key, 0 keeps it forever")
}

// report prints success or returns an error so that the exit code reflects ok.
func report(cmd *cobra.Command, ok bool, success, failure string) error {
	if !ok {
		return fmt.Errorf("%s (see log for details)", failure)
	}
	fmt.Fprintln(cmd.OutOrStdout(), success)
	return nil
}
