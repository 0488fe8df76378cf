package types

// NotifyResult is the outcome of a best-effort push.
type NotifyResult struct {
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
}
