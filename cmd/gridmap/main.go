// Package main provides the CLI entry point for gridmap-go.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ukaji3/gridmap-go/pkg/gridmap"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/backend"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/backend/xlsx"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/output"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/schema"
)

// annotationNoSchema marks subcommands that work on the workbook alone and
// skip loading the schema.
const annotationNoSchema = "gridmap/no-schema"

// app holds the state shared by the subcommands of one invocation.
type app struct {
	configPath string
	cfg        *viper.Viper
	log        *logrus.Logger
	reg        *schema.Registry
	gw         backend.Gateway
	mapper     *gridmap.Mapper
	stdout     io.Writer
	stderr     io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "gridmap",
		Short: "Map typed objects onto spreadsheet workbooks",
		Long: `gridmap-go stores objects of schema-declared types in xlsx workbooks,
one block per sheet, and reads them back as JSON.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.mapper != nil {
				return a.mapper.Close()
			}
			return nil
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: ./gridmap.yaml)")
	flags.String("book", defaultBook, "workbook file")
	flags.String("schema", defaultSchema, "schema file (YAML)")
	flags.Int("max-elements", 0, "cap for free-size collections (default 100)")
	flags.Int("retries", -1, "retry budget for transient read failures")
	flags.Bool("queue", false, "send backend calls through a single-worker queue")
	flags.Bool("pretty", false, "pretty-print JSON output")
	flags.BoolP("verbose", "v", false, "log backend calls")

	rootCmd.AddCommand(a.layoutCmd())
	rootCmd.AddCommand(a.readCmd())
	rootCmd.AddCommand(a.writeCmd())
	rootCmd.AddCommand(a.sheetsCmd())
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" {
		return nil
	}
	cfg, err := loadConfig(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logrus.New()
	a.log.SetOutput(a.stderr)
	a.log.SetLevel(logrus.WarnLevel)
	if cfg.GetBool(cfgKeyVerbose) {
		a.log.SetLevel(logrus.DebugLevel)
	}

	book := cfg.GetString(cfgKeyBook)
	a.gw = xlsx.New(filepath.Dir(book), a.log)
	if cmd.Annotations[annotationNoSchema] != "" {
		return nil
	}

	reg, err := loadSchema(cfg.GetString(cfgKeySchema), cfg.GetInt(cfgKeyMaxElements))
	if err != nil {
		return err
	}
	a.reg = reg

	retries := cfg.GetInt(cfgKeyRetries)
	opts := gridmap.DefaultOptions()
	opts.Document = filepath.Base(book)
	opts.Logger = a.log
	opts.Serialize = cfg.GetBool(cfgKeyQueue)
	if retries >= 0 {
		opts.MaxRetries = &retries
	}
	a.mapper = gridmap.New(a.gw, reg, opts)
	return nil
}

func loadSchema(path string, maxElements int) (*schema.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()

	defs, err := schema.LoadYAML(f)
	if err != nil {
		return nil, err
	}
	reg := schema.NewRegistry(schema.WithMaxElements(maxElements))
	if err := reg.Register(defs...); err != nil {
		return nil, err
	}
	return reg, nil
}

func (a *app) printJSON(v any) error {
	data, err := output.ToJSON(v, a.cfg.GetBool(cfgKeyPretty))
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	_, err = fmt.Fprintln(a.stdout, string(data))
	return err
}
