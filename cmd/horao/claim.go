package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/witlox/horao/pkg/model"
	"github.com/witlox/horao/pkg/scheduler"
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Submit, withdraw, or preview tenant claims",
}

var claimSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a pending claim from a profiles JSON file",
	Long: `Reads a JSON-encoded array of resource profiles from --profiles and
submits a claim against the local peer's store. A profile file looks
like:

  [{"kind": "compute", "quantity": 2, "required_attrs": {"az": "a"}}]
`,
	RunE: runClaimSubmit,
}

var claimWithdrawCmd = &cobra.Command{
	Use:   "withdraw ID",
	Short: "Withdraw a claim, releasing its profiles",
	Args:  cobra.ExactArgs(1),
	RunE:  runClaimWithdraw,
}

var claimPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Run the availability oracle against current state without submitting a claim",
	RunE:  runClaimPreview,
}

func init() {
	claimSubmitCmd.Flags().String("id", "", "claim id (generated if empty)")
	claimSubmitCmd.Flags().String("tenant", "", "tenant name (required)")
	claimSubmitCmd.Flags().String("kind", string(model.ClaimKindTenant), "tenant or maintenance")
	claimSubmitCmd.Flags().Int("priority", 0, "claim priority")
	claimSubmitCmd.Flags().Int64("start-ms", 0, "window start, epoch milliseconds")
	claimSubmitCmd.Flags().Int64("end-ms", 0, "window end, epoch milliseconds")
	claimSubmitCmd.Flags().String("profiles", "", "path to a JSON file of resource profiles (required)")
	_ = claimSubmitCmd.MarkFlagRequired("tenant")
	_ = claimSubmitCmd.MarkFlagRequired("profiles")

	claimPreviewCmd.Flags().String("kind", string(model.ResourceKindCompute), "compute, network, or storage")
	claimPreviewCmd.Flags().Int("quantity", 1, "requested quantity")
	claimPreviewCmd.Flags().Int64("start-ms", 0, "window start, epoch milliseconds")
	claimPreviewCmd.Flags().Int64("end-ms", 0, "window end, epoch milliseconds")

	claimCmd.AddCommand(claimSubmitCmd, claimWithdrawCmd, claimPreviewCmd)
}

type profileSpec struct {
	ID            string             `json:"id"`
	Kind          model.ResourceKind `json:"kind"`
	Quantity      int                `json:"quantity"`
	RequiredAttrs map[string]string  `json:"required_attrs"`
	Preferences   map[string]string  `json:"preferences"`
	Duration      int64              `json:"duration_ms"`
}

func runClaimSubmit(cmd *cobra.Command, _ []string) error {
	h, err := openLocal(cmd)
	if err != nil {
		return err
	}
	defer h.close()

	profilesPath, _ := cmd.Flags().GetString("profiles")
	raw, err := os.ReadFile(profilesPath)
	if err != nil {
		return fmt.Errorf("failed to read profiles file: %w", err)
	}
	var specs []profileSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return fmt.Errorf("failed to parse profiles file: %w", err)
	}
	profiles := make([]model.ResourceProfile, len(specs))
	for i, s := range specs {
		profiles[i] = model.ResourceProfile{
			ID:            s.ID,
			Kind:          s.Kind,
			Quantity:      s.Quantity,
			RequiredAttrs: s.RequiredAttrs,
			Preferences:   s.Preferences,
			Duration:      s.Duration,
		}
	}

	id, _ := cmd.Flags().GetString("id")
	tenant, _ := cmd.Flags().GetString("tenant")
	kind, _ := cmd.Flags().GetString("kind")
	priority, _ := cmd.Flags().GetInt("priority")
	startMs, _ := cmd.Flags().GetInt64("start-ms")
	endMs, _ := cmd.Flags().GetInt64("end-ms")

	ts := h.clock.Now()
	claim := h.model.SubmitClaim(model.ClaimRequest{
		ID:       id,
		Tenant:   tenant,
		Kind:     model.ClaimKind(kind),
		Priority: priority,
		Window:   model.Window{StartMs: startMs, EndMs: endMs},
		Profiles: profiles,
	}, ts)

	if err := h.commit(ts); err != nil {
		return err
	}
	fmt.Printf("submitted claim %s (status=%s)\n", claim.ID, claim.Status)
	return nil
}

func runClaimWithdraw(cmd *cobra.Command, args []string) error {
	h, err := openLocal(cmd)
	if err != nil {
		return err
	}
	defer h.close()

	ts := h.clock.Now()
	if err := h.model.WithdrawClaim(args[0], ts); err != nil {
		return err
	}
	if err := h.commit(ts); err != nil {
		return err
	}
	fmt.Printf("withdrew claim %s\n", args[0])
	return nil
}

func runClaimPreview(cmd *cobra.Command, _ []string) error {
	h, err := openLocal(cmd)
	if err != nil {
		return err
	}
	defer h.close()

	kind, _ := cmd.Flags().GetString("kind")
	quantity, _ := cmd.Flags().GetInt("quantity")
	startMs, _ := cmd.Flags().GetInt64("start-ms")
	endMs, _ := cmd.Flags().GetInt64("end-ms")

	results := scheduler.Preview(h.model, []scheduler.PreviewRequest{
		{
			Kind:     model.ResourceKind(kind),
			Window:   model.Window{StartMs: startMs, EndMs: endMs},
			Quantity: quantity,
		},
	})
	r := results[0]
	fmt.Printf("achievable=%d satisfied=%t first_start_ms=%d\n", r.Achievable, r.Satisfied, r.FirstStart)
	return nil
}
