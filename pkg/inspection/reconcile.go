package inspection

// Reconcile collapses the aggregated results down to one verdict per tool
// request id using most-restrictive-wins: Deny beats RequireApproval beats
// Allow. At equal severity the earliest result wins, so registration order
// decides ties. InspectTools itself never reconciles; this helper is for
// callers that want a single verdict instead of the raw concatenation.
func Reconcile(results []InspectionResult) map[string]InspectionResult {
	reconciled := make(map[string]InspectionResult)
	for _, result := range results {
		current, seen := reconciled[result.ToolRequestID]
		if !seen || severity(result.Action) > severity(current.Action) {
			reconciled[result.ToolRequestID] = result
		}
	}
	return reconciled
}

func severity(action Action) int {
	switch action {
	case ActionDeny:
		return 2
	case ActionRequireApproval:
		return 1
	default:
		return 0
	}
}
