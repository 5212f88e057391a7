package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jgivc/tagsync/internal/app"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "List asset files not referenced by the exported inventory",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a := app.New(cfgFileName)
	if err := a.Init(); err != nil {
		return err
	}
	defer a.Stop()

	extra, err := a.Validate(ctx)
	if err != nil {
		return err
	}

	if outputJSON {
		if extra == nil {
			extra = []string{}
		}

		return json.NewEncoder(os.Stdout).Encode(extra)
	}

	if len(extra) == 0 {
		fmt.Println("No extra files.")

		return nil
	}

	fmt.Printf("Extra files (%d):\n", len(extra))
	for _, name := range extra {
		fmt.Println("  " + name)
	}

	return nil
}
