package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrService: {
		Code:            ErrService,
		Description:     "The service rejected the request",
		SuggestedAction: "Read the service message; check the video URL or process the video first",
	},
	ErrTransport: {
		Code:            ErrTransport,
		Description:     "The service could not be reached",
		SuggestedAction: "Check the server address: vidtwin config show, vidtwin status",
	},
	ErrDecode: {
		Code:            ErrDecode,
		Description:     "The service response could not be decoded",
		SuggestedAction: "Verify the server is a vidtwin-compatible API: vidtwin status",
	},
	ErrTimeout: {
		Code:            ErrTimeout,
		Description:     "Request exceeded time limit",
		SuggestedAction: "Raise the timeout: vidtwin config set timeout 10m",
	},
	ErrContextCancelled: {
		Code:            ErrContextCancelled,
		Description:     "Request cancelled by user or superseded",
		SuggestedAction: "No action needed if a newer video was submitted",
	},
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Re-run with --debug for more details"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}

// Hint returns a one-line explanation and suggested action for a failed
// remote call, or "" for errors that need none.
func Hint(err error) string {
	code := CodeOf(err)
	if code == "" || code == ErrContextCancelled {
		return ""
	}
	return GetDescription(code) + ". " + GetSuggestedAction(code)
}
