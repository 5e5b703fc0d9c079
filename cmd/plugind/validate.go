package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/plugind/internal/manifest"
	"github.com/fyrsmithlabs/plugind/internal/plugin"
)

var validateCmd = &cobra.Command{
	Use:   "validate <manifest>...",
	Short: "Validate plugin manifests without running them",
	Long: `Parse each manifest, resolve its symbols against the built-in
binder, and run full descriptor validation.

Examples:
  # Validate one manifest
  plugind validate plugins.yaml

  # Validate a whole directory's worth
  plugind validate manifests/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	binder := newBinder()

	failures := 0
	for _, path := range args {
		descriptors, err := manifest.LoadFile(path, binder)
		if err != nil {
			failures++
			fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", path, err)
			continue
		}
		for _, desc := range descriptors {
			if err := plugin.Validate(desc); err != nil {
				failures++
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s (%s): %v\n", path, desc.Name, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK   %s (%s %s, category %s)\n",
				path, desc.Name, desc.Version, desc.Category)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d manifest entries failed validation", failures)
	}
	return nil
}
