package main

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/autom8ter/docstore"
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/testutil"
	"github.com/autom8ter/docstore/util"
	"github.com/spf13/cobra"
)

func indexCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "manage collection indexes",
	}
	cmd.AddCommand(indexCreateCmd(flags), indexListCmd(flags), indexDropCmd(flags))
	return cmd
}

// parseIndexKeys parses field[:1|-1] pairs
func parseIndexKeys(values []string) ([]model.IndexKey, error) {
	var keys []model.IndexKey
	for _, v := range values {
		field, direction, ok := strings.Cut(v, ":")
		key := model.IndexKey{Field: field, Direction: 1}
		if ok {
			d, err := strconv.Atoi(direction)
			if err != nil {
				return nil, errors.Wrap(err, errors.Validation, "invalid index direction: '%s'", v)
			}
			key.Direction = d
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func indexCreateCmd(flags *globalFlags) *cobra.Command {
	var (
		keys   []string
		name   string
		unique bool
	)
	cmd := &cobra.Command{
		Use:     "create <collection>",
		Short:   "create an index and print its name",
		Example: `docstore index create books --keys genre:1,price:-1`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexKeys, err := parseIndexKeys(keys)
			if err != nil {
				return err
			}
			index := model.Index{Name: name, Keys: indexKeys, Unique: unique}
			out, err := newPrinter(cmd, flags)
			if err != nil {
				return err
			}
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				created, err := client.CreateIndex(ctx, args[0], index)
				if err != nil {
					return err
				}
				return out.print(map[string]any{"name": created})
			})
		},
	}
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "indexed fields with an optional direction, ex: year:1,genre:-1")
	cmd.Flags().StringVar(&name, "name", "", "index name (derived from the keys when empty)")
	cmd.Flags().BoolVar(&unique, "unique", false, "enforce unique values")
	cmd.MarkFlagRequired("keys")
	return cmd
}

func indexListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection>",
		Short: "print the collection's indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newPrinter(cmd, flags)
			if err != nil {
				return err
			}
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				indexes, err := client.ListIndexes(ctx, args[0])
				if err != nil {
					return err
				}
				names := make([]string, 0, len(indexes))
				for name := range indexes {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					if err := out.print(indexes[name]); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func indexDropCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <collection> <name>",
		Short: "drop an index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				return client.DropIndex(ctx, args[0], args[1])
			})
		},
	}
}

func validatorCmd(flags *globalFlags) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:     "validator <collection> [schema]",
		Short:   "attach a json schema to a collection",
		Example: `docstore validator books @schema/book.json`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schema []byte
			if !remove {
				if len(args) != 2 {
					return errors.New(errors.Validation, "a schema is required unless --remove is set")
				}
				content, err := readInput(cmd, args[1])
				if err != nil {
					return err
				}
				if schema, err = util.YAMLToJSON(content); err != nil {
					return errors.Wrap(err, errors.Validation, "invalid schema")
				}
			}
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				return client.SetValidator(ctx, args[0], schema)
			})
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the collection's validator")
	return cmd
}

func collectionsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "print the collection names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newPrinter(cmd, flags)
			if err != nil {
				return err
			}
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				names, err := client.ListCollections(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					if err := out.print(map[string]any{"name": name}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func dropCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <collection>",
		Short: "drop a collection with its documents and indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				return client.DropCollection(ctx, args[0])
			})
		},
	}
}

func seedCmd(flags *globalFlags) *cobra.Command {
	var (
		collection string
		random     int
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "insert the four fixture books and optionally random ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := testutil.Books()
			for i := 0; i < random; i++ {
				docs = append(docs, testutil.NewBook())
			}
			out, err := newPrinter(cmd, flags)
			if err != nil {
				return err
			}
			return withClient(cmd, flags, func(ctx context.Context, client *docstore.Client) error {
				ids, err := client.InsertMany(ctx, collection, docs)
				if err != nil {
					return err
				}
				return out.print(map[string]any{"ids": ids})
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", testutil.BookCollection, "collection to seed")
	cmd.Flags().IntVar(&random, "random", 0, "number of random books to add")
	return cmd
}
