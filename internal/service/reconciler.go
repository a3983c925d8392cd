package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/songforge/api/internal/model"
)

// SongStore is the persistence contract the lifecycle manager needs. The
// terminal transition must be a single atomic conditional update so that
// concurrent reports for the same task cannot both win.
type SongStore interface {
	Create(ctx context.Context, song *model.Song) error
	FindByTaskID(ctx context.Context, taskID string) (*model.Song, error)
	ApplyTerminal(ctx context.Context, taskID string, status model.SongStatus, audioURL *string) (bool, error)
	ListPending(ctx context.Context) ([]model.Song, error)
}

// ReportSource identifies which delivery path produced a status report
type ReportSource string

const (
	SourcePoll     ReportSource = "poll"
	SourceCallback ReportSource = "callback"
)

// Report is a normalized status report from either delivery path
type Report struct {
	Status   string
	AudioURL string
	Source   ReportSource
}

// Outcome describes what applying a report did to the job
type Outcome string

const (
	// OutcomeCompleted means this report won the transition to completed
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed means this report won the transition to failed
	OutcomeFailed Outcome = "failed"
	// OutcomePending means the report carried no terminal signal
	OutcomePending Outcome = "pending"
	// OutcomeAlreadyResolved means the job was terminal before or during
	// this report; the report was discarded
	OutcomeAlreadyResolved Outcome = "already_resolved"
	// OutcomeIncomplete means a success report lacked an audio URL; the
	// job stays pending
	OutcomeIncomplete Outcome = "incomplete"
)

type reportKind int

const (
	reportPending reportKind = iota
	reportSuccess
	reportFailure
)

// TerminalNotifier receives terminal transitions after they commit
type TerminalNotifier interface {
	NotifyTerminal(song *model.Song)
}

// Reconciler applies poll and callback reports to song records through one
// idempotent transition function. It is total for known jobs: duplicate,
// late or conflicting reports are absorbed, never propagated as errors.
type Reconciler struct {
	store    SongStore
	notifier TerminalNotifier
	logger   *slog.Logger
}

func NewReconciler(store SongStore, notifier TerminalNotifier, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Apply runs a report through the state machine. The only error conditions
// are an unknown task ID and store failures; everything else resolves to an
// outcome.
func (r *Reconciler) Apply(ctx context.Context, taskID string, rep Report) (*model.Song, Outcome, error) {
	song, err := r.store.FindByTaskID(ctx, taskID)
	if err != nil {
		return nil, "", err
	}

	if song.Status.Terminal() {
		r.logConflict(song, rep)
		return song, OutcomeAlreadyResolved, nil
	}

	switch normalizeReportStatus(rep.Status) {
	case reportSuccess:
		audioURL := strings.TrimSpace(rep.AudioURL)
		if audioURL == "" {
			// Provider contract violation: never mark completed
			// without an artifact locator.
			r.logger.Warn("success report missing audio url",
				"taskId", taskID,
				"source", rep.Source,
				"reportedStatus", rep.Status,
			)
			return song, OutcomeIncomplete, nil
		}
		return r.commit(ctx, song, rep, model.SongStatusCompleted, &audioURL)

	case reportFailure:
		return r.commit(ctx, song, rep, model.SongStatusFailed, nil)

	default:
		return song, OutcomePending, nil
	}
}

// commit performs the conditional terminal write. Losing the race to another
// report is not an error; the stored terminal state is returned instead.
func (r *Reconciler) commit(ctx context.Context, song *model.Song, rep Report, status model.SongStatus, audioURL *string) (*model.Song, Outcome, error) {
	applied, err := r.store.ApplyTerminal(ctx, song.TaskID, status, audioURL)
	if err != nil {
		return nil, "", err
	}

	updated, err := r.store.FindByTaskID(ctx, song.TaskID)
	if err != nil {
		return nil, "", err
	}

	if !applied {
		r.logConflict(updated, rep)
		return updated, OutcomeAlreadyResolved, nil
	}

	r.logger.Info("song reached terminal state",
		"taskId", updated.TaskID,
		"status", updated.Status,
		"source", rep.Source,
	)

	if r.notifier != nil {
		r.notifier.NotifyTerminal(updated)
	}

	outcome := OutcomeFailed
	if status == model.SongStatusCompleted {
		outcome = OutcomeCompleted
	}
	return updated, outcome, nil
}

func (r *Reconciler) logConflict(song *model.Song, rep Report) {
	r.logger.Info("reconciliation conflict: report discarded, job already resolved",
		"taskId", song.TaskID,
		"storedStatus", song.Status,
		"reportedStatus", rep.Status,
		"source", rep.Source,
	)
}

// normalizeReportStatus maps provider status tokens onto the transition
// function's three inputs. Unrecognized tokens are treated as still pending.
func normalizeReportStatus(status string) reportKind {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCESS", "FIRST_SUCCESS", "COMPLETE", "COMPLETED":
		return reportSuccess
	case "FAILED", "ERROR", "CREATE_TASK_FAILED", "GENERATE_AUDIO_FAILED",
		"CALLBACK_EXCEPTION", "SENSITIVE_WORD_ERROR":
		return reportFailure
	default:
		return reportPending
	}
}
