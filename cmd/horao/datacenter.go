package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var datacenterCmd = &cobra.Command{
	Use:   "datacenter",
	Short: "Manage datacenter records",
}

var datacenterCreateCmd = &cobra.Command{
	Use:   "create ID",
	Short: "Create or replace a datacenter's name and location",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatacenterCreate,
}

func init() {
	datacenterCreateCmd.Flags().String("name", "", "display name (required)")
	datacenterCreateCmd.Flags().String("location", "", "free-form location string")
	_ = datacenterCreateCmd.MarkFlagRequired("name")

	datacenterCmd.AddCommand(datacenterCreateCmd)
}

func runDatacenterCreate(cmd *cobra.Command, args []string) error {
	h, err := openLocal(cmd)
	if err != nil {
		return err
	}
	defer h.close()

	name, _ := cmd.Flags().GetString("name")
	location, _ := cmd.Flags().GetString("location")

	id := args[0]
	ts := h.clock.Now()
	h.model.CreateDatacenter(id, name, location, ts)
	if err := h.commit(ts); err != nil {
		return err
	}
	fmt.Printf("created datacenter %s (%s)\n", id, name)
	return nil
}
