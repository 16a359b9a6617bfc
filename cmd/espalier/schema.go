package main

import (
	"fmt"
	"os"

	"github.com/espalierhq/espalier/pkg/catalog"
	"github.com/espalierhq/espalier/pkg/schema"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schemas for the wire types",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := schema.MarshalAll()
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the node types in the built-in catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, name := range catalog.Default().Names() {
			fmt.Fprintln(os.Stdout, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(nodesCmd)
}
