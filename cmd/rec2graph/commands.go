package main

import (
	"github.com/OFFIS-RIT/recgraph/internal/util"
	"github.com/OFFIS-RIT/recgraph/pkg/graph"

	"github.com/spf13/cobra"
)

var (
	opts buildOptions

	rootCmd = &cobra.Command{
		Use:   "rec2graph",
		Short: "Turn recommendation logs into weighted co-recommendation graphs",
		Long: `rec2graph reads recommendation events (JSON, JSON lines or CSV) and
builds a directed graph from every clicked item or user to the items
recommended for it, weighted by the recommender's predicted scores.`,
		SilenceUsage: true,
	}

	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build a graph from an event file and export it",
		Example: `  rec2graph build --input events.jsonl --output graph.gexf --topN 10
  rec2graph build --input s3://logs/run1.csv --output graph.graphml --mode user-item
  rec2graph build --input events.json --output graph.json --unweighted --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), opts)
		},
	}
)

func init() {
	flags := buildCmd.Flags()
	flags.StringVarP(&opts.Input, "input", "i", "", "event file path or s3://bucket/key")
	flags.StringVarP(&opts.Output, "output", "o", "", "export path; the extension selects gexf, graphml or json")
	flags.StringVar(&opts.Format, "format", "", "input format (json, jsonl, csv); derived from the extension when empty")
	flags.IntVar(&opts.TopN, "topN", util.GetEnvInt("GRAPH_TOP_N", 5), "leading recommendations kept per event")
	flags.StringVar(&opts.Mode, "mode", string(graph.ModeItem), "graph mode: item or user-item")
	flags.BoolVar(&opts.Unweighted, "unweighted", false, "count co-recommendations instead of summing scores")
	flags.IntVar(&opts.Parallel, "parallel", util.GetEnvInt("GRAPH_PARALLEL_SHARDS", 1), "number of event shards built concurrently")
	flags.BoolVar(&opts.Save, "save", false, "also store the graph in the database at DATABASE_URL")
	flags.StringVar(&opts.Name, "name", "", "graph name stored with --save")

	_ = buildCmd.MarkFlagRequired("input")
	_ = buildCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(buildCmd)
}
