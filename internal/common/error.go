package common

import "fmt"

var (
	ErrSyncAlreadyRunning = fmt.Errorf("sync process has already started")
	ErrInventoryNotFound  = fmt.Errorf("inventory not found")
	ErrReportNotFound     = fmt.Errorf("report not found")
	ErrUnknownContentType = fmt.Errorf("unknown content type")
	ErrUnexpectedStatus   = fmt.Errorf("unexpected response status")
	ErrCatalogQueryFailed = fmt.Errorf("catalog query failed")
)
