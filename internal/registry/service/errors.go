package service

import (
	"errors"
	"fmt"

	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
)

// ErrNotATemplate is returned when a template operation targets a plain prompt.
var ErrNotATemplate = errors.New("prompt is not a template")

// NotFoundError reports a missing prompt or prompt version.
type NotFoundError struct {
	Resource string
	ID       string
	// Version is 0 when the whole resource is missing.
	Version int
}

func (e *NotFoundError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("%s %s version %d not found", e.Resource, e.ID, e.Version)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is lets callers test with errors.Is(err, database.ErrNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == database.ErrNotFound
}

func notFound(err error, id string, version int) error {
	if errors.Is(err, database.ErrNotFound) {
		return &NotFoundError{Resource: "prompt", ID: id, Version: version}
	}
	return err
}
