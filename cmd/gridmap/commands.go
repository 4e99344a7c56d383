package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/output"
)

func sheetArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

func (a *app) layoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout [type]",
		Short: "Print the cell layout of a type, or list the declared types",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.printJSON(a.reg.Names())
			}
			t, err := a.reg.Describe(args[0])
			if err != nil {
				return err
			}
			return a.printJSON(output.LayoutOf(t))
		},
	}
}

func (a *app) readCmd() *cobra.Command {
	var outputPath, gridsDir string
	cmd := &cobra.Command{
		Use:   "read <type> [sheet]",
		Short: "Read an object from the workbook and print it as JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.mapper.Read(cmd.Context(), args[0], sheetArg(args))
			if err != nil {
				return fmt.Errorf("read failed: %w", err)
			}
			for _, issue := range res.Issues {
				fmt.Fprintf(a.stderr, "warning: %v\n", issue)
			}

			if gridsDir != "" {
				if err := writeGridFiles(res.Grids, gridsDir, a.cfg.GetBool(cfgKeyPretty)); err != nil {
					return fmt.Errorf("failed to write grid files: %w", err)
				}
			}
			if outputPath == "" {
				return a.printJSON(res.Object)
			}
			data, err := output.ToJSON(res.Object, a.cfg.GetBool(cfgKeyPretty))
			if err != nil {
				return fmt.Errorf("serialization failed: %w", err)
			}
			if err := os.WriteFile(outputPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: stdout)")
	cmd.Flags().StringVar(&gridsDir, "grids-dir", "", "directory for per-sheet grid dumps")
	return cmd
}

func (a *app) writeCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:   "write <type> [sheet]",
		Short: "Write a JSON object into the workbook",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := readInput(inputPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			res, err := a.mapper.Write(cmd.Context(), args[0], sheetArg(args), obj)
			if err != nil {
				return fmt.Errorf("write failed: %w", err)
			}
			fmt.Fprintf(a.stdout, "wrote %s cells in %d grids (%d sheets created)\n",
				humanize.Comma(int64(res.Cells)), len(res.Grids), len(res.Created))
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "JSON input file (- for stdin)")
	return cmd
}

func readInput(path string, stdin io.Reader) (models.Object, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	obj, err := output.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	return obj, nil
}

func (a *app) sheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "sheets",
		Short:       "List the sheets of the workbook",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoSchema: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			book := filepath.Base(a.cfg.GetString(cfgKeyBook))
			sheets, err := a.gw.ListSheets(cmd.Context(), book)
			if err != nil {
				return err
			}
			if sheets == nil {
				sheets = []string{}
			}
			return a.printJSON(sheets)
		},
	}
}

func writeGridFiles(grids []*models.Grid, dir string, pretty bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	for sheetName, views := range output.GridsOf(grids) {
		data, err := output.ToJSON(views, pretty)
		if err != nil {
			return err
		}

		filename := filepath.Join(dir, sheetName+".json")
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return err
		}
	}
	return nil
}
