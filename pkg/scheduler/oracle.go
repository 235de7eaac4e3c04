package scheduler

import "github.com/witlox/horao/pkg/model"

// PreviewRequest describes one profile line of a hypothetical claim for
// Preview to evaluate against current occupancy.
type PreviewRequest struct {
	Kind          model.ResourceKind
	RequiredAttrs map[string]string
	Window        model.Window
	Quantity      int
}

// PreviewResult is Preview's verdict for a single PreviewRequest.
type PreviewResult struct {
	Achievable int
	FirstStart int64
	Satisfied  bool
}

// Preview runs the availability oracle against m's current state without
// submitting or mutating anything, so it is safe to call directly from a
// read path such as the CLI's claim preview command or a gossip handler
// inspecting whether to even attempt a claim.
func Preview(m *model.Model, requests []PreviewRequest) []PreviewResult {
	resources := m.ListResources()
	occ := buildOccupancy(m.ListClaims())

	results := make([]PreviewResult, len(requests))
	for i, req := range requests {
		achievable, firstStart := AvailabilityOracle(resources, occ, req.Kind, req.RequiredAttrs, req.Window, req.Quantity)
		results[i] = PreviewResult{
			Achievable: achievable,
			FirstStart: firstStart,
			Satisfied:  achievable >= req.Quantity,
		}
	}
	return results
}
