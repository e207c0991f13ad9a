/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/exampletech/platformctl/pkg/discovery"
)

// groupsCmd prints the API groups platformctl looks for.
var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Print the platform API groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, group := range discovery.GroupFilter() {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), group); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}
