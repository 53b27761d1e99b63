package main

import (
	"context"
	"strings"

	"github.com/autom8ter/docstore"
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/pipeline"
	"github.com/autom8ter/docstore/query"
	"github.com/autom8ter/docstore/util"
	"github.com/spf13/cobra"
)

// parseDocuments decodes a json or yaml document or list of documents
func parseDocuments(content []byte) (model.Documents, error) {
	var raw any
	if err := util.UnmarshalYAML(content, &raw); err != nil {
		return nil, err
	}
	var values []any
	switch raw := raw.(type) {
	case []any:
		values = raw
	case map[string]any:
		values = []any{raw}
	default:
		return nil, errors.New(errors.Validation, "expected a document or a list of documents")
	}
	docs := make(model.Documents, 0, len(values))
	for _, v := range values {
		doc, err := model.NewDocumentFrom(v)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func insertCmd(flags *globalFlags) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:     "insert <collection>",
		Short:   "insert documents and print their ids",
		Example: `docstore insert books --data '[{"title": "1984", "year": 1949}]'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, data)
			if err != nil {
				return err
			}
			docs, err := parseDocuments(content)
			if err != nil {
				return err
			}
			out, err := newPrinter(cmd, flags)
			if err != nil {
				return err
			}
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				ids, err := client.InsertMany(ctx, args[0], docs)
				if err != nil {
					return err
				}
				return out.print(map[string]any{"ids": ids})
			})
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "@-", "json or yaml document(s), @file or @- for stdin")
	return cmd
}

func findCmd(flags *globalFlags) *cobra.Command {
	var (
		filter  string
		sortBy  []string
		include []string
		exclude []string
		skip    int
		limit   int
		one     bool
	)
	cmd := &cobra.Command{
		Use:     "find <collection>",
		Short:   "print the documents matching a filter",
		Example: `docstore find books --filter '{"op": "gt", "field": "price", "value": 9}' --sort price:desc --include title,price --exclude _id`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(cmd, filter)
			if err != nil {
				return err
			}
			s, err := parseSort(sortBy)
			if err != nil {
				return err
			}
			projection, err := query.BuildProjection(include, exclude)
			if err != nil {
				return err
			}
			out, err := newPrinter(cmd, flags)
			if err != nil {
				return err
			}
			opts := []docstore.FindOption{
				docstore.WithSort(s),
				docstore.WithProjection(projection),
				docstore.WithSkip(skip),
				docstore.WithLimit(limit),
			}
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				if one {
					doc, err := client.FindOne(ctx, args[0], f, opts...)
					if err != nil {
						return err
					}
					return out.printDoc(doc)
				}
				return client.ForEach(ctx, args[0], f, func(doc *model.Document) (bool, error) {
					return true, out.printDoc(doc)
				}, opts...)
			})
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "json or yaml filter expression, @file or @- for stdin")
	cmd.Flags().StringSliceVar(&sortBy, "sort", nil, "sort fields, ex: genre,price:desc")
	cmd.Flags().StringSliceVar(&include, "include", nil, "fields to include")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "fields to exclude")
	cmd.Flags().IntVar(&skip, "skip", 0, "number of documents to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of documents (0 for no limit)")
	cmd.Flags().BoolVar(&one, "one", false, "print the first match only and fail if nothing matches")
	return cmd
}

// parseSort parses field[:asc|desc] pairs
func parseSort(values []string) (query.Sort, error) {
	var fields []query.SortField
	for _, v := range values {
		field, direction, _ := strings.Cut(v, ":")
		switch strings.ToLower(direction) {
		case "", "asc", "1":
			fields = append(fields, query.Asc(field))
		case "desc", "-1":
			fields = append(fields, query.Desc(field))
		default:
			return nil, errors.New(errors.InvalidExpression, "invalid sort direction: '%s'", v)
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return query.BuildSort(fields...)
}

func updateCmd(flags *globalFlags) *cobra.Command {
	var (
		filter string
		patch  string
	)
	cmd := &cobra.Command{
		Use:     "update <collection>",
		Short:   "patch the documents matching a filter",
		Example: `docstore update books --filter '{"op": "eq", "field": "genre", "value": "Fiction"}' --patch '{"$mul": {"price": 1.1}}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(cmd, filter)
			if err != nil {
				return err
			}
			content, err := readInput(cmd, patch)
			if err != nil {
				return err
			}
			var update map[string]any
			if err := util.UnmarshalYAML(content, &update); err != nil {
				return err
			}
			p, err := query.PatchFromMap(update)
			if err != nil {
				return err
			}
			out, err := newPrinter(cmd, flags)
			if err != nil {
				return err
			}
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				modified, err := client.UpdateMany(ctx, args[0], f, p)
				if err != nil {
					return err
				}
				return out.print(map[string]any{"modified": modified})
			})
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "json or yaml filter expression, @file or @- for stdin")
	cmd.Flags().StringVarP(&patch, "patch", "p", "", "update document with $set, $mul, $inc or $unset")
	cmd.MarkFlagRequired("patch")
	return cmd
}

func deleteCmd(flags *globalFlags) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:     "delete <collection>",
		Short:   "remove the documents matching a filter",
		Example: `docstore delete books --filter '{"op": "lt", "field": "year", "value": 1950}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(cmd, filter)
			if err != nil {
				return err
			}
			out, err := newPrinter(cmd, flags)
			if err != nil {
				return err
			}
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				removed, err := client.DeleteMany(ctx, args[0], f)
				if err != nil {
					return err
				}
				return out.print(map[string]any{"deleted": removed})
			})
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "json or yaml filter expression, @file or @- for stdin")
	return cmd
}

func aggregateCmd(flags *globalFlags) *cobra.Command {
	var stages string
	cmd := &cobra.Command{
		Use:     "aggregate <collection>",
		Short:   "run an aggregation pipeline",
		Example: `docstore aggregate books --pipeline '[{"$group": {"key": "genre", "aggregates": {"avg_price": {"op": "$avg", "field": "price"}}}}]'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, stages)
			if err != nil {
				return err
			}
			p, err := pipeline.Parse(content)
			if err != nil {
				return err
			}
			out, err := newPrinter(cmd, flags)
			if err != nil {
				return err
			}
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				results, err := client.Aggregate(ctx, args[0], p)
				if err != nil {
					return err
				}
				for _, doc := range results {
					if err := out.printDoc(doc); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&stages, "pipeline", "p", "@-", "json or yaml list of stages, @file or @- for stdin")
	return cmd
}
