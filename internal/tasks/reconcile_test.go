package tasks

import (
	"encoding/json"

	"pps/internal/platform/events"
	dErrors "pps/pkg/domain-errors"
)

// =============================================================================
// Reconcile
// =============================================================================

// overTheWire round-trips an event through JSON the way the broker delivers it.
func (s *ServiceSuite) overTheWire(e events.Event) events.Event {
	raw, err := json.Marshal(e)
	s.Require().NoError(err)
	var out events.Event
	s.Require().NoError(json.Unmarshal(raw, &out))
	return out
}

func (s *ServiceSuite) TestReconcileRestoresMissingArchiveRow() {
	s.seed("u1")
	s.assign("u1", "stretch", "run")
	s.backend.fail.Store(true)
	done, err := s.svc.Complete(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Error(done.ArchiveErr)

	failed := s.eventsOf(events.ArchiveFailed)
	s.Require().Len(failed, 1)
	delivered := s.overTheWire(failed[0])

	s.Run("a still failing store reports the error", func() {
		err := s.svc.Reconcile(s.ctx, delivered)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("the snapshot is written once the store recovers", func() {
		s.backend.fail.Store(false)
		s.Require().NoError(s.svc.Reconcile(s.ctx, delivered))
		s.Require().NoError(s.svc.Reconcile(s.ctx, delivered), "redelivery is harmless")

		archived, err := s.svc.GetArchived(s.ctx, "u1", objective)
		s.Require().NoError(err)
		s.Equal(done.Task, archived.ActiveTask)
		s.True(archived.Completed)
	})
}

func (s *ServiceSuite) TestReconcileIgnoresOtherEvents() {
	s.NoError(s.svc.Reconcile(s.ctx, events.Event{Type: events.TaskCompleted, User: "u1"}))
	_, err := s.svc.GetArchived(s.ctx, "u1", objective)
	s.ErrorIs(err, ErrArchivedTaskNotFound)
}

func (s *ServiceSuite) TestArchivedFromEvent() {
	snapshot := ArchivedTask{User: "u1", ActiveTask: ActiveTask{Objective: objective, Score: 80}}

	s.Run("decodes in-process and wire snapshots alike", func() {
		e := events.Event{Type: events.ArchiveFailed, User: "u1", Task: snapshot}
		direct, err := ArchivedFromEvent(e)
		s.Require().NoError(err)
		wire, err := ArchivedFromEvent(s.overTheWire(e))
		s.Require().NoError(err)
		s.Equal(direct, wire)
		s.Equal(int64(80), wire.Score)
	})

	s.Run("rejects a snapshot of another user", func() {
		_, err := ArchivedFromEvent(events.Event{Type: events.ArchiveFailed, User: "u2", Task: snapshot})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an event without a snapshot", func() {
		_, err := ArchivedFromEvent(events.Event{Type: events.ArchiveFailed, User: "u1"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
