package gateway

import "strings"

// normalizeStatus folds the provider status vocabularies into Status.
// Wave reports succeeded/failed, Orange Money SUCCESS/FAILED/EXPIRED and
// MTN MoMo SUCCESSFUL/FAILED/REJECTED/TIMEOUT; everything else is pending.
func normalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "successful", "succeeded", "completed", "paid":
		return StatusSuccess
	case "failed", "failure", "cancelled", "canceled", "error", "expired", "rejected", "timeout":
		return StatusFailed
	default:
		return StatusPending
	}
}
