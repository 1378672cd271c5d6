package tutor

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for an empty question or an undecodable image.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIngestion matches every *IngestionError.
	ErrIngestion = errors.New("ingestion failed")
)

// IngestionError reports a failed knowledge refresh and the stage it failed in.
type IngestionError struct {
	Stage string
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed at %s: %v", e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIngestion.
func (e *IngestionError) Is(target error) bool { return target == ErrIngestion }
