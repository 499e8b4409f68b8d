// Package discussion runs the judged pro/con/leader debate loop.
package discussion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agora/internal/metrics"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

const (
	DefaultMaxRounds      = 3
	DefaultScoreThreshold = 7.0
	MaxScore              = 10.0

	relatedInfoSeparator = "\n\nrelated info:\n"
	continuePrompt       = "\n\nBased on the previous discussion, continue discussing this topic in depth.\n\nPrevious discussion result:\n"
)

// Ensemble produces one round's transcript for a prompt.
type Ensemble interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Judge scores a transcript against the original query.
type Judge interface {
	Evaluate(ctx context.Context, input, output string) (JudgeResult, error)
}

// Options bound a discussion.
type Options struct {
	MaxRounds      int
	ScoreThreshold float64
	// CallTimeout limits each ensemble and judge call. Zero disables it.
	CallTimeout time.Duration
}

// DefaultOptions returns 3 rounds, threshold 7.0, no per-call timeout.
func DefaultOptions() Options {
	return Options{MaxRounds: DefaultMaxRounds, ScoreThreshold: DefaultScoreThreshold}
}

// Validate checks the round budget and threshold range.
func (o Options) Validate() error {
	if o.MaxRounds < 1 {
		return errors.NewValidationError("max_rounds", "must be at least 1", o.MaxRounds)
	}
	if o.ScoreThreshold < 0 || o.ScoreThreshold > MaxScore {
		return errors.NewValidationError("score_threshold", "must be between 0 and 10", o.ScoreThreshold)
	}
	if o.CallTimeout < 0 {
		return errors.NewValidationError("call_timeout", "must not be negative", o.CallTimeout)
	}
	return nil
}

// Outcome is the result of a discussion.
type Outcome struct {
	Transcript       string   `json:"transcript"`
	Score            *float64 `json:"score"`
	RoundsRun        int      `json:"rounds_run"`
	ReachedThreshold bool     `json:"reached_threshold"`

	// Degraded holds the later-round failure that ended the loop early, if any.
	Degraded error `json:"-"`
}

// session is the per-Run state. It is never shared between calls.
type session struct {
	query     string
	related   string
	maxRounds int
	threshold float64

	currentRound     int
	lastTranscript   string
	lastScore        *float64
	roundsRun        int
	reachedThreshold bool
}

func (s *session) outcome(degraded error) *Outcome {
	return &Outcome{
		Transcript:       s.lastTranscript,
		Score:            s.lastScore,
		RoundsRun:        s.roundsRun,
		ReachedThreshold: s.reachedThreshold,
		Degraded:         degraded,
	}
}

// Controller drives bounded debate rounds with a judged early exit.
type Controller struct {
	ensemble Ensemble
	judge    Judge
	opts     Options
	log      *logger.Logger
}

// NewController creates a controller with default options for Run.
func NewController(ensemble Ensemble, judge Judge, opts Options) (*Controller, error) {
	if ensemble == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "ensemble is required")
	}
	if judge == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "judge is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Controller{
		ensemble: ensemble,
		judge:    judge,
		opts:     opts,
		log:      logger.Get().With("component", "discussion"),
	}, nil
}

// Options returns the controller defaults.
func (c *Controller) Options() Options {
	return c.opts
}

// Run discusses query with the controller defaults. related, when not empty, is
// appended to the first round's prompt only.
func (c *Controller) Run(ctx context.Context, query, related string) (*Outcome, error) {
	return c.RunWith(ctx, query, related, c.opts)
}

// RunWith discusses query with explicit options.
//
// A failure before any round completes is returned wrapped in ErrDiscussionFailed.
// Later failures end the loop and the previous round's outcome is returned with
// Outcome.Degraded set.
func (c *Controller) RunWith(ctx context.Context, query, related string, opts Options) (*Outcome, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewValidationError("query", "must not be empty", query)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &session{
		query:     query,
		related:   related,
		maxRounds: opts.MaxRounds,
		threshold: opts.ScoreThreshold,
	}

	log := c.log.With("max_rounds", s.maxRounds, "threshold", s.threshold)
	log.Infow("Starting discussion", "query", truncate(query, 50))

	prompt := s.firstPrompt()
	for s.currentRound < s.maxRounds {
		s.currentRound++
		round := s.currentRound
		log.Infow("Discussion round started", "round", round)

		transcript, score, err := c.round(ctx, opts.CallTimeout, s.query, prompt)
		if err != nil {
			// the caller gave up; a partial transcript is of no use to it
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.Warnw("Discussion cancelled", "round", round, "rounds_run", s.roundsRun, "error", ctxErr)
				metrics.RecordDiscussion(metrics.OutcomeFailed, s.roundsRun, s.lastScore)
				return nil, errors.Wrapf(ctxErr, "discussion cancelled in round %d", round)
			}
			if s.roundsRun == 0 {
				log.ErrorwContext(ctx, "First discussion round failed", "round", round, "error", err)
				metrics.RecordDiscussion(metrics.OutcomeFailed, 0, nil)
				return nil, fmt.Errorf("%w: %w", errors.ErrDiscussionFailed, err)
			}
			log.Warnw("Discussion round failed, keeping previous result",
				"round", round, "rounds_run", s.roundsRun, "error", err)
			metrics.RecordDiscussion(metrics.OutcomeDegraded, s.roundsRun, s.lastScore)
			return s.outcome(errors.Wrapf(err, "round %d", round)), nil
		}

		s.lastTranscript = transcript
		s.lastScore = score
		s.roundsRun = round

		crumb := map[string]interface{}{"round": round}
		if score == nil {
			log.Debugw("Judge returned no score", "round", round)
		} else {
			crumb["score"] = *score
			log.Infow("Discussion round judged", "round", round, "score", *score)
		}
		log.Breadcrumb(ctx, "discussion", "round judged", crumb)

		if score != nil && *score >= s.threshold {
			s.reachedThreshold = true
			log.Infow("Discussion reached threshold", "round", round, "score", *score)
			break
		}
		if round == s.maxRounds {
			log.Infow("Discussion reached max rounds", "rounds", round)
			break
		}

		prompt = s.nextPrompt()
	}

	outcome := metrics.OutcomeExhausted
	if s.reachedThreshold {
		outcome = metrics.OutcomeThreshold
	}
	metrics.RecordDiscussion(outcome, s.roundsRun, s.lastScore)

	return s.outcome(nil), nil
}

// round runs the ensemble and then the judge. Nothing is committed to the session
// unless both succeed.
func (c *Controller) round(ctx context.Context, timeout time.Duration, query, prompt string) (string, *float64, error) {
	var transcript string
	err := withTimeout(ctx, timeout, func(ctx context.Context) error {
		var err error
		transcript, err = c.ensemble.Invoke(ctx, prompt)
		return err
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "debate ensemble")
	}
	if strings.TrimSpace(transcript) == "" {
		return "", nil, errors.ErrEmptyTranscript
	}

	var result JudgeResult
	err = withTimeout(ctx, timeout, func(ctx context.Context) error {
		var err error
		result, err = c.judge.Evaluate(ctx, query, transcript)
		return err
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "judge")
	}

	if score, ok := ScoreOf(result); ok {
		return transcript, &score, nil
	}
	return transcript, nil, nil
}

func (s *session) firstPrompt() string {
	if s.related == "" {
		return s.query
	}
	return s.query + relatedInfoSeparator + s.related
}

func (s *session) nextPrompt() string {
	return s.query + continuePrompt + s.lastTranscript
}

// withTimeout runs fn under a derived deadline. A call that overruns is reported
// as ErrTimeout even if fn ignores its context.
func withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	select {
	case err := <-done:
		if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return errors.Wrapf(errors.ErrTimeout, "call exceeded %s: %v", timeout, err)
		}
		return err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(errors.ErrTimeout, "call exceeded %s", timeout)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
