package httpgin

type OpenDisputeRequest struct {
	ReporterID  int64    `json:"reporter_id" binding:"required"`
	Kind        string   `json:"kind" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Evidence    []string `json:"evidence"`
}

type OpenDisputeResponse struct {
	DisputeID string `json:"dispute_id"`
}

type ResolveDisputeRequest struct {
	Decision string `json:"decision" binding:"required"`
	Notes    string `json:"notes"`
}

type DecideApplicationRequest struct {
	Response string `json:"response"`
}

type ApproveResponse struct {
	ApplicationID         int64   `json:"application_id"`
	BookingID             *string `json:"booking_id,omitempty"`
	PendingReconciliation bool    `json:"pending_reconciliation,omitempty"`
}

type SweepResponse struct {
	Scanned      int `json:"scanned"`
	Transitioned int `json:"transitioned"`
	Failures     int `json:"failures"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
