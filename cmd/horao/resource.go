package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/witlox/horao/pkg/model"
)

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage resource inventory",
}

var resourceUpsertCmd = &cobra.Command{
	Use:   "upsert ID",
	Short: "Create or replace a resource's kind, capacity, and attributes",
	Args:  cobra.ExactArgs(1),
	RunE:  runResourceUpsert,
}

func init() {
	resourceUpsertCmd.Flags().String("kind", "", "compute, network, or storage (required)")
	resourceUpsertCmd.Flags().StringToString("capacity", nil, "capacity vector, e.g. cpu=4,memory=16")
	resourceUpsertCmd.Flags().StringToString("attrs", nil, "attribute map, e.g. az=a,rack=r1")
	resourceUpsertCmd.Flags().String("state", string(model.ResourceStateActive), "active, draining, offline, or degraded")
	_ = resourceUpsertCmd.MarkFlagRequired("kind")

	resourceCmd.AddCommand(resourceUpsertCmd)
}

func runResourceUpsert(cmd *cobra.Command, args []string) error {
	h, err := openLocal(cmd)
	if err != nil {
		return err
	}
	defer h.close()

	kind, _ := cmd.Flags().GetString("kind")
	capacityFlag, _ := cmd.Flags().GetStringToString("capacity")
	attrs, _ := cmd.Flags().GetStringToString("attrs")
	state, _ := cmd.Flags().GetString("state")

	capacity := make(model.CapacityVector, len(capacityFlag))
	for k, v := range capacityFlag {
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
			return fmt.Errorf("invalid capacity value for %q: %w", k, err)
		}
		capacity[k] = f
	}

	id := args[0]
	ts := h.clock.Now()
	if err := h.model.UpsertResource(id, model.ResourceKind(kind), capacity, attrs, ts); err != nil {
		return err
	}
	if err := h.model.SetResourceState(id, model.ResourceState(state), ts); err != nil {
		return err
	}
	if err := h.commit(ts); err != nil {
		return err
	}
	fmt.Printf("upserted resource %s (kind=%s, state=%s)\n", id, kind, state)
	return nil
}
