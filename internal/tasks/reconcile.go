package tasks

import (
	"context"
	"encoding/json"

	"pps/internal/platform/events"
	dErrors "pps/pkg/domain-errors"
)

// ArchivedFromEvent extracts the snapshot carried by an archive.failed event.
// The snapshot is an ArchivedTask in process and a JSON object once it has
// crossed the broker; both decode the same way.
func ArchivedFromEvent(e events.Event) (ArchivedTask, error) {
	if e.Type != events.ArchiveFailed {
		return ArchivedTask{}, dErrors.New(dErrors.CodeValidation, "not an archive.failed event: "+string(e.Type))
	}
	if e.Task == nil {
		return ArchivedTask{}, dErrors.New(dErrors.CodeValidation, "archive.failed event carries no task")
	}
	raw, err := json.Marshal(e.Task)
	if err != nil {
		return ArchivedTask{}, dErrors.Wrap(err, dErrors.CodeValidation, "encode task snapshot")
	}
	var a ArchivedTask
	if err := json.Unmarshal(raw, &a); err != nil {
		return ArchivedTask{}, dErrors.Wrap(err, dErrors.CodeValidation, "decode task snapshot")
	}
	if a.User != e.User {
		return ArchivedTask{}, dErrors.New(dErrors.CodeValidation, "task snapshot belongs to another user")
	}
	return a, nil
}

// Reconcile consumes lifecycle events and rewrites the archive row of every
// archive.failed snapshot. Other event types are ignored.
func (s *Service) Reconcile(ctx context.Context, e events.Event) error {
	if e.Type != events.ArchiveFailed {
		return nil
	}
	a, err := ArchivedFromEvent(e)
	if err != nil {
		s.logger.WarnContext(ctx, "archive.failed event dropped",
			"user", e.User,
			"objective", e.Objective,
			"error", err,
		)
		return err
	}
	return s.RetryArchive(ctx, a)
}
