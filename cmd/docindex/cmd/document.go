package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/docid"
)

func newIndexCmd(e *env) *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "index <uri> [file|-]",
		Short: "Index a document's text",
		Long: `Stores text as the content of the document identified by uri,
replacing earlier content. The text comes from --text, from the named
file, or from stdin when the file is "-".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readText(cmd, text, args[1:])
			if err != nil {
				return err
			}
			return e.withIndex(cmd.Context(), func(ix *indexer.Indexer) error {
				if err := ix.IndexDocument(docid.URI(args[0]), body); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "document text")
	return cmd
}

func readText(cmd *cobra.Command, text string, args []string) (string, error) {
	switch {
	case text != "":
		return text, nil
	case len(args) == 0:
		return "", errors.New("no text: pass --text, a file, or - for stdin")
	case args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", args[0], err)
		}
		return string(data), nil
	}
}

func newRemoveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <uri>...",
		Short: "Remove documents from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withIndex(cmd.Context(), func(ix *indexer.Indexer) error {
				for _, uri := range args {
					if err := ix.RemoveDocument(docid.URI(uri)); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", uri)
				}
				return nil
			})
		},
	}
}

func newPropsCmd(e *env) *cobra.Command {
	var set []string
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "props <uri>",
		Short: "Show or replace a document's properties",
		Long: `Without flags, prints the properties of uri as JSON. --set key=value
(repeatable) replaces the whole property set; values that parse as
integers, floats or booleans are stored as such. --clear removes it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := docid.URI(args[0])
			return e.withIndex(cmd.Context(), func(ix *indexer.Indexer) error {
				switch {
				case clearAll:
					return ix.SetDocumentProperties(id, nil)
				case len(set) > 0:
					props, err := parseProps(set)
					if err != nil {
						return err
					}
					return ix.SetDocumentProperties(id, props)
				}
				props, ok, err := ix.DocumentProperties(id)
				if err != nil {
					return err
				}
				if !ok {
					props = nil
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(props)
			})
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "property as key=value")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove all properties")
	cmd.MarkFlagsMutuallyExclusive("set", "clear")
	return cmd
}

func parseProps(pairs []string) (map[string]any, error) {
	props := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("property %q is not key=value", pair)
		}
		props[key] = parseValue(value)
	}
	return props, nil
}

func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
