package task

import "github.com/google/uuid"

// ImportCustomerXLSXParams configures a customer spreadsheet import.
type ImportCustomerXLSXParams struct {
	FSPath           string    `json:"fs_path"`
	OriginalFileName string    `json:"original_file_name"`
	EstateID         uuid.UUID `json:"estate_id"`
	// Minutes east of UTC; anchors naive spreadsheet date cells before
	// storing as UTC.
	TimezoneOffset int  `json:"timezone_offset"`
	AutoCreateTags bool `json:"auto_create_tags"`
}

// ImportBlacklistXLSXParams configures a blacklist spreadsheet import.
type ImportBlacklistXLSXParams struct {
	FSPath           string `json:"fs_path"`
	OriginalFileName string `json:"original_file_name"`
}

// ResolveDraftParams resolves a previously staged draft set, either promoting
// it to the live collection or discarding it.
type ResolveDraftParams struct {
	ProcessedTaskID        uuid.UUID `json:"processed_task_id"`
	AllowMinorFormatErrors bool      `json:"allow_minor_format_errors"`
}

// ExportCustomerXLSXParams configures a customer export.
type ExportCustomerXLSXParams struct {
	FSPath   string    `json:"fs_path"`
	EstateID uuid.UUID `json:"estate_id"`
}

// ImportResult summarizes a draft import.
type ImportResult struct {
	Message     string `json:"message"`
	ImportCount int    `json:"import_count"`
	ErrorCount  int    `json:"error_count"`
}

// PromoteResult summarizes a draft-to-live promotion.
type PromoteResult struct {
	Message     string `json:"message"`
	ImportCount int    `json:"import_count"`
}

// DiscardResult summarizes a draft discard.
type DiscardResult struct {
	Message          string `json:"message"`
	DraftDeleteCount int64  `json:"draft_delete_count"`
	ErrorDeleteCount int64  `json:"error_delete_count"`
}

// ExportResult summarizes a customer export.
type ExportResult struct {
	Message     string `json:"message"`
	ExportCount int    `json:"export_count"`
}
