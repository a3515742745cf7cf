package domain

import "errors"

var ErrTranscriptNotFound = errors.New("transcript not found")
