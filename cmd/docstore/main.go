package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/autom8ter/docstore"
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/query"
	"github.com/autom8ter/docstore/util"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type globalFlags struct {
	address  string
	config   string
	logLevel string
	template string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "docstore",
		Short:         "query and manage document collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.address, "address", "", "backend address, ex: mem://, badger:///tmp/docstore, mongodb://localhost:27017/library (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.config, "config", "", "path to a yaml or json config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.template, "template", "", "go template (with sprig functions) used to render each result")
	cmd.AddCommand(
		insertCmd(flags),
		findCmd(flags),
		updateCmd(flags),
		deleteCmd(flags),
		aggregateCmd(flags),
		indexCmd(flags),
		validatorCmd(flags),
		collectionsCmd(flags),
		dropCmd(flags),
		seedCmd(flags),
	)
	return cmd
}

// withClient connects using the config file, environment and flags and closes the client after fn returns
func withClient(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, client *docstore.Client) error) error {
	cfg, err := docstore.LoadConfig(flags.config)
	if err != nil {
		return err
	}
	if flags.address != "" {
		cfg.Address = flags.address
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := docstore.ConnectConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(ctx)
	return fn(ctx, client)
}

// readInput returns the inline value, or the file contents when the value starts with @. @- reads stdin.
func readInput(cmd *cobra.Command, value string) ([]byte, error) {
	if !strings.HasPrefix(value, "@") {
		return []byte(value), nil
	}
	path := strings.TrimPrefix(value, "@")
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	bits, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to read %s", path)
	}
	return bits, nil
}

// parseFilter decodes a json or yaml filter expression. An empty value matches everything.
func parseFilter(cmd *cobra.Command, value string) (query.Filter, error) {
	if value == "" {
		return query.All(), nil
	}
	content, err := readInput(cmd, value)
	if err != nil {
		return nil, err
	}
	var expr query.Expr
	if err := util.UnmarshalYAML(content, &expr); err != nil {
		return nil, errors.Wrap(err, errors.InvalidExpression, "invalid filter")
	}
	return query.BuildFilter(expr)
}

// printer renders results as json lines or with the user's template
type printer struct {
	out  io.Writer
	tmpl *template.Template
}

func newPrinter(cmd *cobra.Command, flags *globalFlags) (*printer, error) {
	p := &printer{out: cmd.OutOrStdout()}
	if flags.template != "" {
		tmpl, err := template.New("output").Funcs(sprig.TxtFuncMap()).Parse(flags.template)
		if err != nil {
			return nil, errors.Wrap(err, errors.Validation, "invalid template")
		}
		p.tmpl = tmpl
	}
	return p, nil
}

func (p *printer) print(value any) error {
	if p.tmpl != nil {
		if err := p.tmpl.Execute(p.out, value); err != nil {
			return errors.Wrap(err, errors.Validation, "failed to render template")
		}
		_, err := fmt.Fprintln(p.out)
		return err
	}
	bits, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.Internal, "failed to encode output")
	}
	_, err = fmt.Fprintln(p.out, string(bits))
	return err
}

func (p *printer) printDoc(doc *model.Document) error {
	if p.tmpl != nil {
		return p.print(doc.Value())
	}
	_, err := fmt.Fprintln(p.out, doc.String())
	return err
}
