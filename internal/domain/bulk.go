package domain

// ============================================================
// Bulk operations & spreadsheet import
// ============================================================

// MaxBulkItems caps the number of deals in one bulk request.
const MaxBulkItems = 500

// BulkCreateRequest is the body for POST /v1/deals/bulk.
type BulkCreateRequest struct {
	Deals []CreateDealRequest `json:"deals"`
}

// BulkStageRequest is the body for PATCH /v1/deals/bulk/stage.
type BulkStageRequest struct {
	DealIDs []string `json:"deal_ids"`
	Stage   Stage    `json:"stage"`
}

// BulkDeleteRequest is the body for POST /v1/deals/bulk/delete.
type BulkDeleteRequest struct {
	DealIDs []string `json:"deal_ids"`
}

// BulkResult summarises a bulk mutation.
type BulkResult struct {
	Count int    `json:"count"`
	Deals []Deal `json:"deals,omitempty"`
}

// ImportError reports one rejected spreadsheet row (1-based, header is row 1).
type ImportError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult is the body returned by POST /v1/deals/import.
type ImportResult struct {
	Created int           `json:"created"`
	Errors  []ImportError `json:"errors"`
}
