package assistant

import (
	"fmt"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

var (
	ErrTranscriptionUnavailable = fmt.Errorf("%w: transcription backend not configured", domain.ErrBackendUnavailable)
	ErrTranscriptionFailed      = fmt.Errorf("%w: transcription failed", domain.ErrBackendUnavailable)
	ErrChatUnavailable          = fmt.Errorf("%w: chat backend not configured", domain.ErrBackendUnavailable)
	ErrSuggestionUnavailable    = fmt.Errorf("%w: suggestion backend unavailable", domain.ErrBackendUnavailable)
)
