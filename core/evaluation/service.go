package evaluation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/question"
	"github.com/nyxmentor/portal/core/user"
)

var (
	// repository errors
	ErrNotFound = errors.New("evaluation not found")
	ErrExists   = errors.New("the user already has an evaluation")
	// ErrConflict is returned by conditional writes when the stored record moved on.
	ErrConflict = errors.New("evaluation was modified concurrently")

	errInvalidAnswers = errors.New("invalid answers format")

	msgSubmitClosedDay    = "evaluations can only be taken Monday to Friday"
	msgSubmitClosedHours  = "evaluations can only be taken during business hours (%s)"
	msgRetryClosedDay     = "you can only retry the evaluation Monday to Friday"
	msgRetryClosedHours   = "retries can only be made during business hours (%s)"
	msgAdminTake          = "admins cannot take evaluations"
	msgAdminView          = "admins cannot view evaluations"
	msgAdminRetry         = "admins cannot retry evaluations"
	msgNoneToSubmit       = "you have no evaluation assigned to submit"
	msgNoneToRetry        = "you have no evaluation assigned to retry"
	msgNoneAssigned       = "you have no evaluation assigned"
	msgNoneFound          = "no evaluation found for this user"
	msgAlreadySubmitted   = "the evaluation has already been submitted"
	msgAlreadyApproved    = "you already passed the evaluation, no more attempts are needed"
	msgOnlyFailed         = "only failed evaluations can be retried"
	msgAttemptLimit       = "you have reached the attempt limit for this evaluation"
	msgCooldown           = "you must wait %d seconds before trying again"
	msgSubmitted          = "evaluation submitted successfully"
	msgRetried            = "evaluation attempt reset"
	detailRemainingTimeMs = "remainingTime"
)

type (
	Repository interface {
		// GetEvaluation returns the outstanding evaluation of the user or ErrNotFound.
		GetEvaluation(ctx context.Context, userID string) (Evaluation, error)
		// CreateEvaluation returns ErrExists if the user already has one.
		CreateEvaluation(ctx context.Context, ev Evaluation) (Evaluation, error)
		// UpdateEvaluation stores ev only if the stored record still has the given status and attempts,
		// and returns ErrConflict otherwise.
		UpdateEvaluation(ctx context.Context, ev Evaluation, prevStatus Status, prevAttempts int) (Evaluation, error)
		// ArchiveEvaluation atomically stores rec and deletes the approved evaluation it describes.
		// ErrConflict is returned if the evaluation is gone or no longer approved.
		ArchiveEvaluation(ctx context.Context, ev Evaluation, rec ApprovalRecord) error
		// HasApproval reports whether an approval of the user was archived.
		HasApproval(ctx context.Context, userID string) (bool, error)
		// CountOutstanding returns the number of pending and failed evaluations.
		CountOutstanding(ctx context.Context) (int, error)
	}

	// Questions is the read side of the question bank.
	Questions interface {
		ForRole(ctx context.Context, role string) ([]question.Question, error)
		ByIDs(ctx context.Context, ids ...string) ([]question.Question, error)
	}

	// Notifier is told about approvals. It is called once per approval, off the request path.
	Notifier interface {
		NotifyApproval(ctx context.Context, usr user.User, score float64) error
	}

	Service interface {
		// Assign creates the evaluation of a user who completed every required training.
		Assign(ctx context.Context, userID, role string) error
		Submit(ctx context.Context, usr user.User, sub Submission) (SubmitResult, error)
		Retry(ctx context.Context, usr user.User) (RetryResult, error)
		Status(ctx context.Context, usr user.User) (Evaluation, error)
		// Assigned returns the pending evaluation with questions and options in a fresh random order.
		Assigned(ctx context.Context, usr user.User) (AssignedView, error)
	}

	Option func(*service)

	service struct {
		repo      Repository
		questions Questions
		notifier  Notifier
		logger    core.Logger
		cal       Calendar

		passingScore  float64
		maxAttempts   int
		cooldown      time.Duration
		questionCount int
		recertify     RecertificationPolicy

		now   func() time.Time
		rndMu sync.Mutex
		rnd   *rand.Rand
	}
)

var _ Service = (*service)(nil)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(svc *service) { svc.now = now }
}

// WithRandSource makes question sampling and shuffling reproducible.
func WithRandSource(src rand.Source) Option {
	return func(svc *service) { svc.rnd = rand.New(src) }
}

func NewService(
	repo Repository,
	questions Questions,
	notifier Notifier,
	conf *core.Config,
	logger core.Logger,
	opts ...Option,
) (Service, error) {
	ec := conf.Evaluation
	cal, err := NewCalendar(ec.Timezone, ec.DayStart, ec.DayEnd)
	if err != nil {
		return nil, err
	}
	policy, err := ParseRecertificationPolicy(ec.Recertification)
	if err != nil {
		return nil, err
	}

	svc := &service{
		repo:          repo,
		questions:     questions,
		notifier:      notifier,
		logger:        logger,
		cal:           cal,
		passingScore:  ec.PassingScore,
		maxAttempts:   ec.MaxAttempts,
		cooldown:      ec.RetryCooldown,
		questionCount: ec.QuestionCount,
		recertify:     policy,
		now:           time.Now,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (svc *service) Assign(ctx context.Context, userID, role string) error {
	if core.IsAdminRole(role) {
		return nil
	}

	current, err := svc.repo.GetEvaluation(ctx, userID)
	hasCurrent := err == nil
	if err != nil && err != ErrNotFound {
		return errors.Wrap(err, "getting evaluation")
	}
	if hasCurrent && (current.Status != StatusApproved || svc.recertify == RecertifyNever) {
		return nil
	}

	qs, err := svc.questions.ForRole(ctx, role)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if len(qs) == 0 {
		svc.logger.Warn("no questions available for role", map[string]interface{}{"role": role, "userId": userID})
		return nil
	}

	if hasCurrent {
		rec := ApprovalRecord{
			UserID:       userID,
			EvaluationID: current.ID,
			Score:        current.Score,
			Attempts:     current.Attempts,
			ApprovedAt:   current.UpdatedAt,
		}
		if err = svc.repo.ArchiveEvaluation(ctx, current, rec); err != nil {
			if err == ErrConflict { // replaced by a concurrent call
				return nil
			}
			return errors.Wrap(err, "archiving evaluation")
		}
	}

	svc.shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	if len(qs) > svc.questionCount {
		qs = qs[:svc.questionCount]
	}
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}

	now := svc.now().UTC()
	_, err = svc.repo.CreateEvaluation(ctx, Evaluation{
		UserID:      userID,
		QuestionIDs: ids,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil && err != ErrExists {
		return errors.Wrap(err, "creating evaluation")
	}
	return nil
}

func (svc *service) Submit(ctx context.Context, usr user.User, sub Submission) (SubmitResult, error) {
	now := svc.now()
	if err := svc.checkGate(now, msgSubmitClosedDay, msgSubmitClosedHours); err != nil {
		return SubmitResult{}, err
	}
	if usr.IsAdmin() {
		return SubmitResult{}, core.NewPermissionError(msgAdminTake)
	}
	answers, err := sub.parse()
	if err != nil {
		return SubmitResult{}, core.NewValidationError(err)
	}

	ev, err := svc.repo.GetEvaluation(ctx, usr.ID)
	if err != nil {
		if err == ErrNotFound {
			return SubmitResult{}, core.NewPolicyError(msgNoneToSubmit)
		}
		return SubmitResult{}, errors.Wrap(err, "getting evaluation")
	}
	if ev.Status != StatusPending {
		return SubmitResult{}, core.NewPolicyError(msgAlreadySubmitted)
	}

	qs, err := svc.questions.ByIDs(ctx, ev.QuestionIDs...)
	if err != nil {
		return SubmitResult{}, errors.Wrap(err, "getting questions")
	}
	score, err := Score(qs, answers)
	if err != nil {
		return SubmitResult{}, errors.Wrapf(err, "scoring evaluation %s", ev.ID)
	}

	prevStatus, prevAttempts := ev.Status, ev.Attempts
	ev.Score = score
	ev.Status = StatusFor(score, svc.passingScore)
	ev.UpdatedAt = now.UTC()
	if ev, err = svc.repo.UpdateEvaluation(ctx, ev, prevStatus, prevAttempts); err != nil {
		if err == ErrConflict {
			return SubmitResult{}, core.NewPolicyError(msgAlreadySubmitted)
		}
		return SubmitResult{}, errors.Wrap(err, "updating evaluation")
	}

	if ev.Status == StatusApproved {
		go svc.notifyApproval(usr, score)
	}
	return SubmitResult{Message: msgSubmitted, Score: score, Status: ev.Status}, nil
}

func (svc *service) notifyApproval(usr user.User, score float64) {
	defer func() {
		if r := recover(); r != nil {
			svc.logger.Error(fmt.Sprintf("approval notification panicked: %v", r), usr)
		}
	}()
	if err := svc.notifier.NotifyApproval(context.Background(), usr, score); err != nil {
		svc.logger.Error("sending approval notification", err, usr)
	}
}

func (svc *service) Retry(ctx context.Context, usr user.User) (RetryResult, error) {
	now := svc.now()
	if err := svc.checkGate(now, msgRetryClosedDay, msgRetryClosedHours); err != nil {
		return RetryResult{}, err
	}
	if usr.IsAdmin() {
		return RetryResult{}, core.NewPermissionError(msgAdminRetry)
	}

	ev, err := svc.repo.GetEvaluation(ctx, usr.ID)
	found := err == nil
	if err != nil && err != ErrNotFound {
		return RetryResult{}, errors.Wrap(err, "getting evaluation")
	}
	approved, err := svc.repo.HasApproval(ctx, usr.ID)
	if err != nil {
		return RetryResult{}, errors.Wrap(err, "checking approvals")
	}
	if approved || (found && ev.Status == StatusApproved) {
		return RetryResult{}, core.NewPolicyError(msgAlreadyApproved)
	}

	if !found {
		return RetryResult{}, core.NewPolicyError(msgNoneToRetry)
	}
	if ev.Status != StatusFailed {
		return RetryResult{}, core.NewPolicyError(msgOnlyFailed)
	}
	if ev.Attempts >= svc.maxAttempts {
		return RetryResult{}, core.NewPolicyError(msgAttemptLimit)
	}
	if elapsed := now.Sub(ev.UpdatedAt); elapsed < svc.cooldown {
		remaining := svc.cooldown - elapsed
		return RetryResult{}, core.NewPolicyError(
			fmt.Sprintf(msgCooldown, int64(math.Ceil(remaining.Seconds()))),
			map[string]interface{}{detailRemainingTimeMs: remaining.Milliseconds()},
		)
	}

	prevStatus, prevAttempts := ev.Status, ev.Attempts
	ev.Score = 0
	ev.Status = StatusPending
	ev.Attempts++
	ev.UpdatedAt = now.UTC()
	if ev, err = svc.repo.UpdateEvaluation(ctx, ev, prevStatus, prevAttempts); err != nil {
		if err == ErrConflict {
			return RetryResult{}, core.NewPolicyError(msgOnlyFailed)
		}
		return RetryResult{}, errors.Wrap(err, "updating evaluation")
	}
	return RetryResult{Message: msgRetried, AttemptsLeft: svc.maxAttempts - ev.Attempts}, nil
}

func (svc *service) Status(ctx context.Context, usr user.User) (Evaluation, error) {
	if usr.IsAdmin() {
		return Evaluation{}, core.NewPermissionError(msgAdminView)
	}
	ev, err := svc.repo.GetEvaluation(ctx, usr.ID)
	if err != nil {
		if err == ErrNotFound {
			return Evaluation{}, core.NewNotFoundError(msgNoneFound)
		}
		return Evaluation{}, errors.Wrap(err, "getting evaluation")
	}
	return ev, nil
}

func (svc *service) Assigned(ctx context.Context, usr user.User) (AssignedView, error) {
	if usr.IsAdmin() {
		return AssignedView{}, core.NewPermissionError(msgAdminView)
	}
	ev, err := svc.repo.GetEvaluation(ctx, usr.ID)
	if err != nil {
		if err == ErrNotFound {
			return AssignedView{}, core.NewNotFoundError(msgNoneAssigned)
		}
		return AssignedView{}, errors.Wrap(err, "getting evaluation")
	}
	if ev.Status != StatusPending {
		return AssignedView{}, core.NewPolicyError(msgAlreadySubmitted)
	}

	qs, err := svc.questions.ByIDs(ctx, ev.QuestionIDs...)
	if err != nil {
		return AssignedView{}, errors.Wrap(err, "getting questions")
	}

	view := AssignedView{EvaluationID: ev.ID, Questions: make([]AssignedQuestion, len(qs))}
	for i, q := range qs {
		aq := AssignedQuestion{QuestionID: q.ID, Text: q.Text, Type: q.Kind}
		if q.Kind == question.MultipleChoice {
			aq.Options = make([]AssignedOption, len(q.Options))
			for k, opt := range q.Options {
				aq.Options[k] = AssignedOption{ID: opt.ID, Text: opt.Text}
			}
			svc.shuffle(len(aq.Options), func(a, b int) { aq.Options[a], aq.Options[b] = aq.Options[b], aq.Options[a] })
		}
		view.Questions[i] = aq
	}
	svc.shuffle(len(view.Questions), func(a, b int) {
		view.Questions[a], view.Questions[b] = view.Questions[b], view.Questions[a]
	})
	return view, nil
}

func (svc *service) checkGate(now time.Time, dayMsg, hoursMsg string) error {
	switch svc.cal.Check(now) {
	case ErrClosedDay:
		return core.NewPolicyError(dayMsg)
	case ErrClosedHours:
		return core.NewPolicyError(fmt.Sprintf(hoursMsg, svc.cal.Hours()))
	}
	return nil
}

// shuffle is a mutex guarded rand.Shuffle, *rand.Rand is not safe for concurrent use.
func (svc *service) shuffle(n int, swap func(i, j int)) {
	svc.rndMu.Lock()
	defer svc.rndMu.Unlock()
	svc.rnd.Shuffle(n, swap)
}
