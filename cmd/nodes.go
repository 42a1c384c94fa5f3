package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/chew-z/llm-nodes/internal/nodes"
	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes [name]",
	Short: "Print node schemas",
	Long: `Print the declared inputs and outputs of every node, or of a single node, as JSON.
With --names, print the node name to display name mapping instead.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runNodes,
}

func init() {
	rootCmd.AddCommand(nodesCmd)

	nodesCmd.Flags().Bool("names", false, "Print node display names only")
}

func runNodes(cmd *cobra.Command, args []string) {
	names, _ := cmd.Flags().GetBool("names")
	out, err := nodesOutput(args, names)
	if err != nil {
		log.Fatal(err)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode node schemas: %v", err)
	}
	fmt.Println(string(data))
}

// nodesOutput picks what the nodes command prints.
func nodesOutput(args []string, names bool) (any, error) {
	if len(args) == 0 {
		if names {
			return nodes.DisplayNames(), nil
		}
		return nodes.Catalog, nil
	}
	n, ok := nodes.Lookup(args[0])
	if !ok {
		return nil, fmt.Errorf("unknown node: %s. Known nodes: %s, %s", args[0], nodes.CaptionNodeName, nodes.ResponseNodeName)
	}
	if names {
		return map[string]string{n.Name: n.DisplayName}, nil
	}
	return n, nil
}
