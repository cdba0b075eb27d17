// Package tasks runs the task lifecycle of a beneficiary: assign a catalog
// objective, edit it, then complete or abandon it.
//
// A beneficiary is either without a task (target is null) or has exactly one
// active task embedded in target. Every transition is one conditional write
// on the beneficiary item; completion additionally writes an immutable
// archive row, which is a separate best-effort request.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"pps/internal/catalog"
	"pps/internal/economy"
	"pps/internal/keyedstore"
	"pps/internal/platform/events"
	"pps/internal/storage"
	"pps/pkg/domain"
	dErrors "pps/pkg/domain-errors"
)

var (
	ErrActiveTaskExists      = dErrors.New(dErrors.CodeConflict, "beneficiary already has an active task")
	ErrNoActiveTask          = dErrors.New(dErrors.CodeNotFound, "beneficiary has no active task")
	ErrTaskChanged           = dErrors.New(dErrors.CodeConflict, "active task changed concurrently, retry")
	ErrObjectiveNotFound     = dErrors.New(dErrors.CodeNotFound, "objective not found")
	ErrObjectiveCompleted    = dErrors.New(dErrors.CodeConflict, "objective already completed")
	ErrBeneficiaryNotFound   = dErrors.New(dErrors.CodeNotFound, "beneficiary not found")
	ErrArchivedTaskNotFound  = dErrors.New(dErrors.CodeNotFound, "archived task not found")
	ErrEmptyUpdate           = dErrors.New(dErrors.CodeValidation, "nothing to update")
	errArchiveAlreadyWritten = errors.New("archive row already exists")
)

// Catalog resolves objectives at assignment time.
type Catalog interface {
	Lookup(ctx context.Context, stage domain.Stage, area domain.Area, subline string) (catalog.Entry, bool, error)
}

// Publisher receives lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Service struct {
	beneficiaries *keyedstore.Table
	archive       *keyedstore.Table
	catalog       Catalog
	events        Publisher
	logger        *slog.Logger
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithEvents(p Publisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// WithClock sets the time source of task creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(tables *storage.Tables, cat Catalog, opts ...Option) *Service {
	s := &Service{
		beneficiaries: tables.Beneficiaries,
		archive:       tables.TasksArchive,
		catalog:       cat,
		events:        events.Nop{},
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func userKey(user string) keyedstore.Key {
	return keyedstore.Key{Partition: user}
}

func targetPath(attr string) string {
	return storage.Path(storage.AttrTarget, attr)
}

// beneficiaryErr translates failures of a write on the beneficiary item that
// are not guard failures.
func beneficiaryErr(err error, msg string) error {
	switch {
	case errors.Is(err, keyedstore.ErrNotFound):
		return ErrBeneficiaryNotFound
	case errors.Is(err, keyedstore.ErrInvalidState):
		return ErrNoActiveTask
	default:
		return storage.Translate(err, msg)
	}
}

// targetOf decodes the target of an update result. A null target means the
// beneficiary had no active task.
func targetOf(old keyedstore.Item) (*ActiveTask, error) {
	task, err := ActiveTaskFrom(old[storage.AttrTarget])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored task is malformed")
	}
	if task == nil {
		return nil, ErrNoActiveTask
	}
	return task, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	e.At = s.now()
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "event not published",
			"type", string(e.Type),
			"user", e.User,
			"error", err,
		)
	}
}

// Assignment is the payload of Assign.
type Assignment struct {
	User              string
	Objective         string
	PersonalObjective string
	SubTasks          []string
}

// Assign sets the beneficiary's active task. The write is guarded by
// target == null, so of several concurrent assignments exactly one wins.
func (s *Service) Assign(ctx context.Context, a Assignment) (*ActiveTask, error) {
	oid, err := domain.ParseObjectiveID(a.Objective)
	if err != nil {
		return nil, err
	}
	entry, found, err := s.catalog.Lookup(ctx, oid.Stage, oid.Area, oid.Subline)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "catalog lookup failed")
	}
	if !found {
		return nil, ErrObjectiveNotFound
	}

	// Archive rows are immutable, so an objective can be completed once.
	done, err := s.archive.Get(ctx, keyedstore.Key{Partition: a.User, Sort: oid.String()}, storage.AttrObjective)
	if err != nil {
		return nil, storage.Translate(err, "failed to read task archive")
	}
	if done != nil {
		return nil, ErrObjectiveCompleted
	}

	task := ActiveTask{
		Objective:         oid.String(),
		OriginalObjective: entry.Description,
		PersonalObjective: a.PersonalObjective,
		Tasks:             NewSubTasks(a.SubTasks),
		Score:             entry.Points,
		Created:           s.now().Unix(),
	}
	_, err = s.beneficiaries.Update(ctx, userKey(a.User), keyedstore.Update{
		Ops:   []keyedstore.Op{keyedstore.Replace(storage.AttrTarget, task.Document())},
		Equal: map[string]any{storage.AttrTarget: nil},
	})
	if errors.Is(err, keyedstore.ErrConditionFailed) {
		return nil, ErrActiveTaskExists
	}
	if err != nil {
		return nil, beneficiaryErr(err, "failed to assign task")
	}

	tasksAssigned.WithLabelValues(string(oid.Area)).Inc()
	s.logger.InfoContext(ctx, "task assigned",
		"user", a.User,
		"objective", task.Objective,
		"score", task.Score,
	)
	s.publish(ctx, events.Event{
		Type:      events.TaskAssigned,
		User:      a.User,
		Objective: task.Objective,
		Area:      string(oid.Area),
		Amount:    task.Score,
	})
	return &task, nil
}

// GetActive returns the active task, or nil when the beneficiary has none.
func (s *Service) GetActive(ctx context.Context, user string) (*ActiveTask, error) {
	it, err := s.beneficiaries.Get(ctx, userKey(user), storage.AttrTarget)
	if err != nil {
		return nil, storage.Translate(err, "failed to load active task")
	}
	if it == nil {
		return nil, ErrBeneficiaryNotFound
	}
	task, err := ActiveTaskFrom(it[storage.AttrTarget])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored task is malformed")
	}
	return task, nil
}

// TaskUpdate replaces the personal objective and/or the whole sub-task list.
// A nil field is left unchanged. SubTasks is not merged: callers resend every
// sub-task, completed flags included.
type TaskUpdate struct {
	PersonalObjective *string
	SubTasks          []SubTask
}

// Update edits the active task. The writes are nested under target, so they
// fail with ErrNoActiveTask when target is null.
func (s *Service) Update(ctx context.Context, user string, u TaskUpdate) (*ActiveTask, error) {
	var ops []keyedstore.Op
	if u.PersonalObjective != nil {
		ops = append(ops, keyedstore.ReplacePath(targetPath(storage.AttrPersonalObjective), *u.PersonalObjective))
	}
	if u.SubTasks != nil {
		ops = append(ops, keyedstore.ReplacePath(targetPath(storage.AttrTasks), subTasksDocument(u.SubTasks)))
	}
	if len(ops) == 0 {
		return nil, ErrEmptyUpdate
	}

	out, err := s.beneficiaries.Update(ctx, userKey(user), keyedstore.Update{
		Ops:    ops,
		Return: keyedstore.ReturnAllNew,
	})
	if err != nil {
		return nil, beneficiaryErr(err, "failed to update task")
	}
	task, err := targetOf(out)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "task updated",
		"user", user,
		"objective", task.Objective,
		"sub_tasks", len(task.Tasks),
	)
	s.publish(ctx, events.Event{Type: events.TaskUpdated, User: user, Objective: task.Objective})
	return task, nil
}

// Completion is the outcome of clearing an active task.
//
// When the score was credited but the archive row could not be written,
// ArchiveErr is set and Archived is nil: the ledger is not rolled back and
// the snapshot in Task can be passed to RetryArchive.
type Completion struct {
	Task       ActiveTask
	Area       domain.Area
	Credited   int64
	Archived   *ArchivedTask
	ArchiveErr error
}

// Complete credits the frozen task score to its area, clears the task and
// archives it.
func (s *Service) Complete(ctx context.Context, user string) (*Completion, error) {
	return s.finish(ctx, user, events.TaskCompleted)
}

// Clear drops the active task. With credit it behaves like Complete;
// without it, no ledger is touched and nothing is archived.
func (s *Service) Clear(ctx context.Context, user string, credit bool) (*Completion, error) {
	if credit {
		return s.finish(ctx, user, events.TaskCleared)
	}

	out, err := s.beneficiaries.Update(ctx, userKey(user), keyedstore.Update{
		Ops:        []keyedstore.Op{keyedstore.Replace(storage.AttrTarget, nil)},
		Conditions: []keyedstore.Condition{keyedstore.Compare(storage.AttrTarget, keyedstore.CmpNe, nil)},
		Return:     keyedstore.ReturnUpdatedOld,
	})
	if errors.Is(err, keyedstore.ErrConditionFailed) {
		return nil, ErrNoActiveTask
	}
	if err != nil {
		return nil, beneficiaryErr(err, "failed to clear task")
	}
	task, err := targetOf(out)
	if err != nil {
		return nil, err
	}
	oid, _ := task.ObjectiveID()

	tasksFinished.WithLabelValues(string(oid.Area), "false").Inc()
	s.logger.InfoContext(ctx, "task abandoned",
		"user", user,
		"objective", task.Objective,
	)
	s.publish(ctx, events.Event{
		Type:      events.TaskCleared,
		User:      user,
		Objective: task.Objective,
		Area:      string(oid.Area),
	})
	return &Completion{Task: *task, Area: oid.Area}, nil
}

// finish credits and clears the active task in one write, then archives the
// cleared snapshot.
//
// The credited area and points come from a read of the target. The write is
// guarded on that same target (objective, score and creation time), so a
// task cleared or replaced in between is never credited.
func (s *Service) finish(ctx context.Context, user string, kind events.Type) (*Completion, error) {
	cur, err := s.beneficiaries.Get(ctx, userKey(user),
		targetPath(storage.AttrObjective),
		targetPath(storage.AttrScore),
		targetPath(storage.AttrCreated),
	)
	if err != nil {
		return nil, storage.Translate(err, "failed to load active task")
	}
	if cur == nil {
		return nil, ErrBeneficiaryNotFound
	}
	objective, ok := cur.Lookup(targetPath(storage.AttrObjective))
	if !ok || objective == nil {
		return nil, ErrNoActiveTask
	}
	oid, err := domain.ParseObjectiveID(cur.String(targetPath(storage.AttrObjective)))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored objective is malformed")
	}
	points := cur.Int(targetPath(storage.AttrScore))

	ops := append([]keyedstore.Op{keyedstore.Replace(storage.AttrTarget, nil)}, economy.CreditOps(oid.Area, points)...)
	out, err := s.beneficiaries.Update(ctx, userKey(user), keyedstore.Update{
		Ops: ops,
		Equal: map[string]any{
			targetPath(storage.AttrObjective): oid.String(),
			targetPath(storage.AttrScore):     points,
			targetPath(storage.AttrCreated):   cur.Int(targetPath(storage.AttrCreated)),
		},
		Return: keyedstore.ReturnUpdatedOld,
	})
	if errors.Is(err, keyedstore.ErrConditionFailed) {
		return nil, ErrTaskChanged
	}
	if err != nil {
		return nil, beneficiaryErr(err, "failed to complete task")
	}
	task, err := targetOf(out)
	if err != nil {
		return nil, err
	}

	tasksFinished.WithLabelValues(string(oid.Area), "true").Inc()
	pointsCredited.WithLabelValues(string(oid.Area)).Add(float64(task.Score))
	done := &Completion{Task: *task, Area: oid.Area, Credited: task.Score}

	archived := ArchivedTask{User: user, ActiveTask: *task, Completed: true}
	if err := s.writeArchive(ctx, archived); err != nil {
		done.ArchiveErr = err
		archiveFailures.Inc()
		s.logger.WarnContext(ctx, "task credited but not archived",
			"user", user,
			"objective", task.Objective,
			"area", string(oid.Area),
			"score", task.Score,
			"error", err,
		)
		s.publish(ctx, events.Event{
			Type:      events.ArchiveFailed,
			User:      user,
			Objective: task.Objective,
			Area:      string(oid.Area),
			Amount:    task.Score,
			Error:     err.Error(),
			Task:      archived,
		})
	} else {
		done.Archived = &archived
	}

	s.logger.InfoContext(ctx, "task completed",
		"user", user,
		"objective", task.Objective,
		"area", string(oid.Area),
		"score", task.Score,
		"archived", done.ArchiveErr == nil,
	)
	s.publish(ctx, events.Event{
		Type:      kind,
		User:      user,
		Objective: task.Objective,
		Area:      string(oid.Area),
		Amount:    task.Score,
	})
	return done, nil
}

func (s *Service) writeArchive(ctx context.Context, a ArchivedTask) error {
	key := keyedstore.Key{Partition: a.User, Sort: a.Objective}
	err := s.archive.Create(ctx, key, a.Document(), keyedstore.GuardPartition, keyedstore.GuardSort)
	if errors.Is(err, keyedstore.ErrAlreadyExists) {
		return errors.Join(errArchiveAlreadyWritten, err)
	}
	return err
}

// RetryArchive writes the archive row of a credited task whose archival
// failed. It is idempotent: an existing row counts as success.
func (s *Service) RetryArchive(ctx context.Context, a ArchivedTask) error {
	if a.User == "" {
		return dErrors.New(dErrors.CodeValidation, "user is required")
	}
	if _, err := a.ObjectiveID(); err != nil {
		return err
	}
	a.Completed = true
	err := s.writeArchive(ctx, a)
	if errors.Is(err, errArchiveAlreadyWritten) {
		return nil
	}
	if err != nil {
		return storage.Translate(err, "failed to archive task")
	}
	s.logger.InfoContext(ctx, "task archived on retry",
		"user", a.User,
		"objective", a.Objective,
	)
	return nil
}

// ArchiveFilter narrows ListArchived to a stage, or to a stage and area.
type ArchiveFilter struct {
	Stage domain.Stage
	Area  domain.Area
}

func (f ArchiveFilter) prefix() (string, error) {
	switch {
	case f.Stage == "" && f.Area == "":
		return "", nil
	case f.Stage == "":
		return "", dErrors.New(dErrors.CodeValidation, "area filter requires a stage")
	case !f.Stage.IsValid():
		return "", dErrors.New(dErrors.CodeValidation, "invalid stage: "+string(f.Stage))
	case f.Area == "":
		return domain.JoinKey(string(f.Stage), ""), nil
	case !f.Area.IsValid():
		return "", dErrors.New(dErrors.CodeValidation, "invalid area: "+string(f.Area))
	default:
		return domain.JoinKey(string(f.Stage), string(f.Area), ""), nil
	}
}

// ListArchived returns the user's archived tasks ordered by objective id.
func (s *Service) ListArchived(ctx context.Context, user string, f ArchiveFilter) ([]ArchivedTask, error) {
	prefix, err := f.prefix()
	if err != nil {
		return nil, err
	}
	q := keyedstore.Query{Partition: user}
	if prefix != "" {
		q.Sort = keyedstore.BeginsWith(prefix)
	}
	rows, err := s.archive.Collect(ctx, q)
	if err != nil {
		return nil, storage.Translate(err, "failed to list archived tasks")
	}
	out := make([]ArchivedTask, 0, len(rows))
	for _, r := range rows {
		a, err := archivedFrom(r)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "archived task "+strconv.Quote(r.String(storage.AttrObjective))+" is malformed")
		}
		out = append(out, *a)
	}
	return out, nil
}

// GetArchived loads one archived task.
func (s *Service) GetArchived(ctx context.Context, user, objective string) (*ArchivedTask, error) {
	oid, err := domain.ParseObjectiveID(objective)
	if err != nil {
		return nil, err
	}
	it, err := s.archive.Get(ctx, keyedstore.Key{Partition: user, Sort: oid.String()})
	if err != nil {
		return nil, storage.Translate(err, "failed to load archived task")
	}
	if it == nil {
		return nil, ErrArchivedTaskNotFound
	}
	a, err := archivedFrom(it)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "archived task is malformed")
	}
	return a, nil
}
