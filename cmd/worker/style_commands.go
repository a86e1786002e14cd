package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/style"
)

func newStyleCommand(ctx *commandContext) *cobra.Command {
	styleCmd := &cobra.Command{
		Use:   "style",
		Short: "Inspect and update the subtitle style",
	}

	styleCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current style",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.styleStore()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStyle(store.Load()))
			return nil
		},
	})

	styleCmd.AddCommand(&cobra.Command{
		Use:   "set key=value...",
		Short: "Change one or more style keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.styleStore()
			if err != nil {
				return err
			}

			cfg, err := applyStyleArgs(store.Load(), args)
			if err != nil {
				return err
			}
			if err := store.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStyle(cfg))
			return nil
		},
	})

	styleCmd.AddCommand(&cobra.Command{
		Use:   "font <file>",
		Short: "Install a custom font and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.styleStore()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			path, err := store.SaveCustomFont(f, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			cfg := store.Load()
			cfg.FontStyle = style.FontCustomUpload
			if err := store.Save(cfg); err != nil {
				return err
			}
			family, _ := store.ResolveFont(style.FontCustomUpload)
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s (family %s)\n", path, family)
			return nil
		},
	})

	return styleCmd
}

func applyStyleArgs(cfg style.Config, args []string) (style.Config, error) {
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return cfg, fmt.Errorf("expected key=value, got %q", arg)
		}
		if err := cfg.Set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func renderStyle(cfg style.Config) string {
	keys := style.Keys()
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		value, _ := cfg.Get(key)
		rows = append(rows, []string{key, value})
	}
	return renderTable([]string{"Key", "Value"}, rows, nil)
}
