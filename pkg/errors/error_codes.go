package errors

// Error codes grouped by component.
const (
	// ValidationError (100-199)
	ErrNoInput            = 100
	ErrInputNotFound      = 101
	ErrOutputExists       = 102
	ErrBadImageFormat     = 103
	ErrBadHLSType         = 104
	ErrBadConfig          = 105
	ErrBadResolutionList  = 106
	ErrPosterNotFound     = 107
	ErrPreserveDirOutside = 108

	// ProbeError (200-299)
	ErrProbeFailed       = 200
	ErrProbeParse        = 201
	ErrNoStreams         = 202
	ErrMissingDuration   = 203
	ErrMissingDimension  = 204
	ErrMissingSampleRate = 205

	// PlanningError (300-399)
	ErrNoRenditions = 300

	// TranscodeError (400-499)
	ErrFFmpegMissing = 400
	ErrFFmpegStart   = 401
	ErrFFmpegExit    = 402
	ErrFFmpegFatal   = 403

	// SpriteError (500-599)
	ErrNoPreviewFrames = 500
	ErrSpriteEncode    = 501
	ErrCueWrite        = 502

	// SystemError (600-699)
	ErrDirCreate  = 600
	ErrFileWrite  = 601
	ErrFileCopy   = 602
	ErrTmpCleanup = 603
)
