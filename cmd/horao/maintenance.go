package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/witlox/horao/pkg/model"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Schedule maintenance windows",
}

var maintenanceScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Submit a maintenance-kind claim, removing resources from tenant availability for a window",
	Long: `A maintenance event is a claim like any other, but tagged
ClaimKindMaintenance: it consumes no tenant's fair share, and its
placements make resources unavailable to every tenant claim for the
window's duration. Target which resources it can land on with --attrs,
matched the same way a tenant claim's required_attrs would be.`,
	RunE: runMaintenanceSchedule,
}

func init() {
	maintenanceScheduleCmd.Flags().String("id", "", "maintenance event id (generated if empty)")
	maintenanceScheduleCmd.Flags().String("kind", string(model.ResourceKindCompute), "compute, network, or storage")
	maintenanceScheduleCmd.Flags().Int("quantity", 1, "how many matching resources this maintenance window occupies")
	maintenanceScheduleCmd.Flags().StringToString("attrs", nil, "required attribute match, e.g. rack=r1")
	maintenanceScheduleCmd.Flags().Int64("start-ms", 0, "window start, epoch milliseconds")
	maintenanceScheduleCmd.Flags().Int64("end-ms", 0, "window end, epoch milliseconds")

	maintenanceCmd.AddCommand(maintenanceScheduleCmd)
}

func runMaintenanceSchedule(cmd *cobra.Command, _ []string) error {
	h, err := openLocal(cmd)
	if err != nil {
		return err
	}
	defer h.close()

	id, _ := cmd.Flags().GetString("id")
	kind, _ := cmd.Flags().GetString("kind")
	quantity, _ := cmd.Flags().GetInt("quantity")
	attrs, _ := cmd.Flags().GetStringToString("attrs")
	startMs, _ := cmd.Flags().GetInt64("start-ms")
	endMs, _ := cmd.Flags().GetInt64("end-ms")

	ts := h.clock.Now()
	claim := h.model.SubmitClaim(model.ClaimRequest{
		ID:     id,
		Tenant: "maintenance",
		Kind:   model.ClaimKindMaintenance,
		Window: model.Window{StartMs: startMs, EndMs: endMs},
		Profiles: []model.ResourceProfile{
			{Kind: model.ResourceKind(kind), Quantity: quantity, RequiredAttrs: attrs},
		},
	}, ts)

	if err := h.commit(ts); err != nil {
		return err
	}
	fmt.Printf("scheduled maintenance %s (status=%s)\n", claim.ID, claim.Status)
	return nil
}
