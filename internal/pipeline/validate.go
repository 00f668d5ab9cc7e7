package pipeline

import (
	"fmt"
	"mime"
	"strings"

	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

var audioTypes = map[string]bool{
	"audio/mpeg":   true,
	"audio/mp3":    true,
	"audio/wav":    true,
	"audio/wave":   true,
	"audio/x-wav":  true,
	"audio/mp4":    true,
	"audio/x-m4a":  true,
	"audio/aac":    true,
	"audio/ogg":    true,
	"audio/flac":   true,
	"audio/x-flac": true,
	"audio/webm":   true,
}

// validate expects a trimmed filename.
func validate(in models.AssetIntake) error {
	if in.Filename == "" {
		return fmt.Errorf("%w: filename is required", ErrValidation)
	}
	if len(in.Filename) > MaxFilenameBytes {
		return fmt.Errorf("%w: filename exceeds %d bytes", ErrValidation, MaxFilenameBytes)
	}
	if in.MimeHint != "" {
		mt, _, err := mime.ParseMediaType(in.MimeHint)
		if err != nil || !audioTypes[strings.ToLower(mt)] {
			return fmt.Errorf("%w: unsupported media type %q", ErrValidation, in.MimeHint)
		}
	}
	return nil
}
