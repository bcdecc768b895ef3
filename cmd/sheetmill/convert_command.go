package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sheetmill/internal/convert"
)

// newConvertCommand exposes the conversion engine directly. The worker loop
// invokes this subcommand as a subprocess, so it must run without any
// configuration file present.
func newConvertCommand() *cobra.Command {
	var sheetIndex int
	var jsonLines bool

	cmd := &cobra.Command{
		Use:         "convert INPUT OUTPUT",
		Short:       "Convert one worksheet to JSON Lines or a new workbook",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := convert.Run(cmd.Context(), args[0], args[1], convert.Options{
				SheetIndex: sheetIndex,
				JSONLines:  jsonLines,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Converted sheet %q (%d rows) to %s\n", res.SheetName, res.Rows, args[1])
			return nil
		},
	}

	cmd.Flags().IntVar(&sheetIndex, "sheet", 1, "1-based worksheet index to convert")
	cmd.Flags().BoolVar(&jsonLines, "jsonl", false, "Emit JSON Lines instead of an xlsx workbook")
	return cmd
}
