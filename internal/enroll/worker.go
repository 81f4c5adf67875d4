package enroll

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"course-racer/internal/metrics"
	"course-racer/internal/model"
	"course-racer/internal/status"
)

// Selector submits a class selection to the remote system.
type Selector interface {
	Select(ctx context.Context, code model.CourseTypeCode, rec model.ClassRecord) (model.Outcome, error)
}

// Availability is the read side of the availability store.
type Availability interface {
	Lookup(courseID string) ([]model.ClassRecord, bool)
}

// Recorder persists enrollment attempts.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt model.EnrollmentAttempt) error
}

// Notifier is told once a job has been enrolled.
type Notifier interface {
	NotifySuccess(job model.EnrollmentJob, classID string)
}

// Options configures a Worker. Recorder, Notifier and Metrics are optional.
type Options struct {
	WaitInterval time.Duration
	RetryPause   time.Duration
	Recorder     Recorder
	Notifier     Notifier
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Worker races for a seat in one job's course until it gets one.
type Worker struct {
	job      model.EnrollmentJob
	selector Selector
	avail    Availability
	opts     Options
	log      *zap.Logger

	status status.Cell
}

// NewWorker creates a worker for job.
func NewWorker(job model.EnrollmentJob, selector Selector, avail Availability, opts Options) *Worker {
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = time.Second
	}
	if opts.RetryPause < 0 {
		opts.RetryPause = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	w := &Worker{
		job:      job,
		selector: selector,
		avail:    avail,
		opts:     opts,
		log:      opts.Logger.With(zap.String("job", job.Name())),
	}
	w.status.Set("pending")
	return w
}

func (w *Worker) Name() string             { return w.job.Name() }
func (w *Worker) Status() string           { return w.status.Get() }
func (w *Worker) Job() model.EnrollmentJob { return w.job }

// Run loops until the job is enrolled, returning nil, or until ctx is cancelled, returning the
// context's error. Availability is looked up afresh on every iteration.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("enrollment worker started", zap.String("course", w.job.CourseID), zap.String("target", w.job.ClassID))
	dots := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		classes, ok := w.avail.Lookup(w.job.CourseID)
		if !ok || len(classes) == 0 {
			dots = dots%3 + 1
			w.status.Set("waiting" + strings.Repeat(".", dots))
			if err := sleep(ctx, w.opts.WaitInterval); err != nil {
				return err
			}
			continue
		}
		dots = 0

		rec, fallback := w.pick(classes)
		if fallback {
			w.status.Setf("class %s unavailable, fallback to %s: submitting", w.job.ClassID, rec.ClassID)
			w.log.Info("target class unavailable, falling back", zap.String("class", rec.ClassID))
		} else {
			w.status.Setf("submitting class %s", rec.ClassID)
		}

		outcome, err := w.selector.Select(ctx, w.job.TypeCode, rec)
		if err == nil && outcome.Success {
			// The seat is taken even if an interrupt arrived during the call.
			w.record(context.WithoutCancel(ctx), rec, fallback, outcome)
			w.status.Setf("enrolled in class %s: %s", rec.ClassID, outcome.Message)
			w.log.Info("enrolled", zap.String("class", rec.ClassID), zap.String("message", outcome.Message))
			if w.opts.Notifier != nil {
				w.opts.Notifier.NotifySuccess(w.job, rec.ClassID)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			outcome = model.Outcome{Message: err.Error()}
		}
		w.record(ctx, rec, fallback, outcome)

		if fallback {
			w.status.Setf("class %s failed (fallback from %s): %s", rec.ClassID, w.job.ClassID, outcome.Message)
		} else {
			w.status.Setf("class %s failed: %s", rec.ClassID, outcome.Message)
		}
		w.log.Debug("selection rejected", zap.String("class", rec.ClassID), zap.String("message", outcome.Message))
		if err := sleep(ctx, w.opts.RetryPause); err != nil {
			return err
		}
	}
}

// pick chooses the class to submit. A specific target that is not in the list falls back to
// the first available class.
func (w *Worker) pick(classes []model.ClassRecord) (model.ClassRecord, bool) {
	if w.job.TargetsAny() {
		return classes[0], false
	}
	for _, c := range classes {
		if c.ClassID == w.job.ClassID {
			return c, false
		}
	}
	return classes[0], true
}

func (w *Worker) record(ctx context.Context, rec model.ClassRecord, fallback bool, outcome model.Outcome) {
	w.opts.Metrics.ObserveAttempt(w.job.Name(), outcome.Success)
	if w.opts.Recorder == nil {
		return
	}
	attempt := model.EnrollmentAttempt{
		ID:          uuid.NewString(),
		JobName:     w.job.Name(),
		CourseID:    w.job.CourseID,
		ClassID:     rec.ClassID,
		TypeCode:    w.job.TypeCode,
		Success:     outcome.Success,
		Fallback:    fallback,
		Message:     outcome.Message,
		AttemptedAt: time.Now(),
	}
	if err := w.opts.Recorder.RecordAttempt(ctx, attempt); err != nil {
		w.log.Warn("failed to record attempt", zap.Error(err))
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
