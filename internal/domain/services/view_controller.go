package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"tomato-demo/internal/domain/entities"
	"tomato-demo/internal/domain/repositories"
	"tomato-demo/internal/domain/valueobjects"
)

// FileInput is a file the user picked.
type FileInput struct {
	Name     string
	MimeType string
	Data     []byte
}

type CandidateView struct {
	ID             entities.CandidateID
	FileName       string
	MimeType       valueobjects.MimeType
	Size           int64
	PreviewDataURI string
	PreviewPending bool
}

// Snapshot is an immutable copy of the controller state.
type Snapshot struct {
	Version   uint64
	Phase     entities.Phase
	Candidate *CandidateView
	Result    *entities.PredictionResult
	Error     string
	CanDetect bool
	CanSelect bool
}

func (s Snapshot) IsLoading() bool {
	return s.Phase == entities.PhaseLoading
}

type Option func(*ViewController)

func WithMediaPolicy(policy valueobjects.MediaPolicy) Option {
	return func(c *ViewController) {
		c.policy = policy
	}
}

// WithObserver registers a callback run after every applied transition, outside the lock.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *ViewController) {
		c.observers = append(c.observers, fn)
	}
}

// ViewController owns the upload → loading → result/error → idle state machine.
//
// Preview and submission run in goroutines. Each is tagged with the selection or request
// id current when it started, and its completion is dropped unless that id is still current.
type ViewController struct {
	predictor repositories.PredictionService
	previewer repositories.PreviewService
	policy    valueobjects.MediaPolicy
	observers []func(Snapshot)

	mu             sync.Mutex
	state          entities.UIState
	candidate      *entities.UploadCandidate
	previewPending bool
	selectionSeq   uint64
	requestSeq     uint64
	activeRequest  uint64
	version        uint64

	wg sync.WaitGroup
}

func NewViewController(
	predictor repositories.PredictionService,
	previewer repositories.PreviewService,
	opts ...Option,
) *ViewController {
	c := &ViewController{
		predictor: predictor,
		previewer: previewer,
		policy:    valueobjects.DefaultMediaPolicy(),
		state:     entities.IdleState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectFile validates the file and, if accepted, makes it the current candidate.
// A rejected file leaves the state untouched and returns a validation DetectionError.
// An accepted file supersedes any in-flight submission.
func (c *ViewController) SelectFile(ctx context.Context, in FileInput) (Snapshot, error) {
	verdict := c.policy.Check(valueobjects.FileDescriptor{MimeType: in.MimeType, Size: int64(len(in.Data))})
	if !verdict.Accepted {
		log.Debug().Str("file", in.Name).Str("mimeType", in.MimeType).Int("size", len(in.Data)).
			Msgf("file rejected: %s", verdict.Reason)
		return c.Snapshot(), NewValidationError(verdict.Reason)
	}

	image, err := valueobjects.NewImageData(in.Data, in.MimeType)
	if err != nil {
		return c.Snapshot(), NewValidationError(err.Error())
	}

	c.mu.Lock()
	c.selectionSeq++
	candidate, err := entities.NewUploadCandidate(entities.CandidateID(c.selectionSeq), in.Name, image)
	if err != nil {
		c.mu.Unlock()
		return c.Snapshot(), NewValidationError(err.Error())
	}
	if c.activeRequest != 0 {
		log.Debug().Uint64("request", c.activeRequest).Msg("in-flight submission superseded by new selection")
	}
	c.candidate = candidate
	c.state = entities.IdleState()
	c.activeRequest = 0
	c.previewPending = c.previewer != nil
	snap := c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)

	if c.previewer != nil {
		c.wg.Add(1)
		go c.runPreview(context.WithoutCancel(ctx), candidate)
	}

	return snap, nil
}

// Detect submits the current candidate. It is a no-op returning false while loading
// or when nothing is selected. The returned channel is closed once the submission
// has settled, whether its outcome was applied or discarded as stale.
func (c *ViewController) Detect(ctx context.Context) (<-chan struct{}, bool) {
	c.mu.Lock()
	if c.state.IsLoading() || c.candidate == nil {
		c.mu.Unlock()
		return nil, false
	}
	c.requestSeq++
	requestID := c.requestSeq
	c.activeRequest = requestID
	c.state = entities.LoadingState()
	candidate := c.candidate
	snap := c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)

	done := make(chan struct{})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)

		result, err := c.predictor.Submit(context.WithoutCancel(ctx), candidate)
		c.settle(requestID, candidate, result, err)
	}()

	return done, true
}

// Reset returns to Idle with no candidate, result or error. Work still in flight is ignored when it completes.
func (c *ViewController) Reset() Snapshot {
	c.mu.Lock()
	c.state = entities.IdleState()
	c.candidate = nil
	c.previewPending = false
	c.activeRequest = 0
	snap := c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)
	return snap
}

func (c *ViewController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Wait blocks until every preview and submission started so far has finished.
func (c *ViewController) Wait() {
	c.wg.Wait()
}

func (c *ViewController) runPreview(ctx context.Context, candidate *entities.UploadCandidate) {
	defer c.wg.Done()

	uri, err := c.previewer.Generate(ctx, candidate.Image())
	if err != nil {
		log.Warn().Err(NewPreviewReadError(err)).Str("file", candidate.FileName()).Msg("preview unavailable")
		uri = ""
	}

	c.mu.Lock()
	if c.candidate == nil || c.candidate.ID() != candidate.ID() {
		c.mu.Unlock()
		log.Debug().Uint64("candidate", uint64(candidate.ID())).Msg("stale preview discarded")
		return
	}
	c.candidate = c.candidate.WithPreview(uri)
	c.previewPending = false
	snap := c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *ViewController) settle(requestID uint64, candidate *entities.UploadCandidate, result *entities.PredictionResult, err error) {
	c.mu.Lock()
	if c.activeRequest != requestID {
		c.mu.Unlock()
		log.Debug().Uint64("request", requestID).Msg("stale prediction outcome discarded")
		return
	}
	c.activeRequest = 0

	switch {
	case err != nil:
		log.Error().Err(err).Uint64("request", requestID).Str("kind", KindOf(err).String()).Msg("detection failed")
		c.state = entities.FailureState(UserMessage(err))
	case result == nil:
		c.state = entities.FailureState(MalformedResponseMessage)
	default:
		log.Debug().Uint64("request", requestID).
			Dur("sinceSelected", result.ReceivedAt().Sub(candidate.SelectedAt())).
			Msg("prediction applied")
		c.state = entities.SuccessState(result)
	}
	snap := c.commitLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *ViewController) commitLocked() Snapshot {
	c.version++
	return c.snapshotLocked()
}

func (c *ViewController) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:   c.version,
		Phase:     c.state.Phase(),
		Result:    c.state.Result(),
		Error:     c.state.Error(),
		CanDetect: c.candidate != nil && !c.state.IsLoading(),
		// 送信中でも別のファイルを選び直せる
		CanSelect: true,
	}
	if c.candidate != nil {
		snap.Candidate = &CandidateView{
			ID:             c.candidate.ID(),
			FileName:       c.candidate.FileName(),
			MimeType:       c.candidate.MimeType(),
			Size:           c.candidate.Size(),
			PreviewDataURI: c.candidate.PreviewDataURI(),
			PreviewPending: c.previewPending,
		}
	}
	return snap
}

func (c *ViewController) notify(snap Snapshot) {
	for _, fn := range c.observers {
		fn(snap)
	}
}
