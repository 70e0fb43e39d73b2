package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/anisahjamin/CPC357-Assignment2/internal/app"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store"
)

func newDumpCmd() *cobra.Command {
	var (
		limit      int
		collection string
		since      string
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the newest documents of a collection as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := fromCmd(cmd)
			from, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			if collection == "" {
				collection = c.cfg.Collection
			}

			st, err := app.OpenStore(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			q := store.Query{Limit: limit, Since: from}
			docs, err := st.Find(cmd.Context(), collection, q)
			if err != nil {
				return err
			}
			return writeJSONLines(cmd, docs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum documents to print (0 = all)")
	cmd.Flags().StringVar(&collection, "collection", "", "collection to read (default STORE_COLLECTION)")
	cmd.Flags().StringVar(&since, "since", "", "only documents at or after this RFC3339 instant, or within this age (e.g. 1h)")
	return cmd
}

// parseSince reads an RFC3339 instant or a positive age relative to now.
// Empty means no lower bound.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return time.Time{}, fmt.Errorf("invalid --since %q (expected RFC3339 or a positive duration)", s)
	}
	return now.UTC().Add(-d), nil
}

// writeJSONLines prints one object per document with its id under "_id".
func writeJSONLines(cmd *cobra.Command, docs []store.Document) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, d := range docs {
		line := make(map[string]any, len(d.Fields)+1)
		for k, v := range d.Fields {
			line[k] = v
		}
		line["_id"] = d.ID
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
