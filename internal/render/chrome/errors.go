package chrome

import "errors"

// Render errors - returned during page rendering
var (
	ErrNavigateFailed  = errors.New("navigation failed")
	ErrExportFailed    = errors.New("PDF export failed")
	ErrUnknownDevice   = errors.New("no paper format for device type")
	ErrRendererClosed  = errors.New("renderer is shut down")
	ErrBrowserStart    = errors.New("failed to start browser")
	ErrPrepareFailed   = errors.New("page preparation failed")
	ErrEmptyPDF        = errors.New("generated PDF is empty")
	ErrNoVariants      = errors.New("no variants requested")
)
