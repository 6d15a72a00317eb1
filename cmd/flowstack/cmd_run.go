package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flowstack-ai/flowstack/internal/workflow"
)

var (
	runGraphFile string
	runDocIDs    []string
	runVerbose   bool
)

func init() {
	runCmd.Flags().StringVarP(&runGraphFile, "graph", "g", "", "workflow graph file (json or yaml)")
	runCmd.Flags().StringSliceVar(&runDocIDs, "docs", nil, "document ids available to knowledge-base nodes")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "print the execution log")
	_ = runCmd.MarkFlagRequired("graph")
}

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Execute a workflow graph once against a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, err := loadGraph(runGraphFile)
		if err != nil {
			return err
		}

		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		result, err := rt.executor.Execute(cmd.Context(), workflow.Request{
			Graph:       graph,
			Query:       args[0],
			DocumentIDs: runDocIDs,
		})
		if err != nil {
			return err
		}

		fmt.Println(result.Response)
		if runVerbose {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result.ExecutionLog); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "execution time: %.2fs\n", result.ExecutionTime)
		}
		return nil
	},
}

func loadGraph(path string) (*workflow.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		var graph workflow.Graph
		if err := yaml.Unmarshal(data, &graph); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := graph.Validate(); err != nil {
			return nil, err
		}
		return &graph, nil
	default:
		return workflow.ParseGraph(data)
	}
}
