package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harrisonrobin/estima/pkg/retry"
	"github.com/harrisonrobin/estima/pkg/util"
)

// ErrUnparsable is returned when a reply carries no numeric token.
var ErrUnparsable = eris.New("no number in provider reply")

// Estimator wraps a Provider with the retry policy, number extraction and
// quantization. Every failure comes back as an error; callers leave the
// record untouched for this pass.
type Estimator struct {
	provider Provider
	policy   *retry.Policy
	scale    []float64
	logger   *zap.Logger
}

// NewEstimator creates an estimator snapping project durations to util.WeeksScale.
func NewEstimator(provider Provider, policy *retry.Policy, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{provider: provider, policy: policy, scale: util.WeeksScale, logger: logger}
}

// Weeks returns a project duration from the weeks scale.
func (e *Estimator) Weeks(ctx context.Context, s Subject) (float64, error) {
	raw, err := e.ask(ctx, ProjectPrompt(s, e.scale))
	if err != nil {
		return 0, err
	}
	return util.Quantize(raw, e.scale), nil
}

// Minutes returns a task effort in minutes, unquantized.
func (e *Estimator) Minutes(ctx context.Context, s Subject) (float64, error) {
	return e.ask(ctx, TaskPrompt(s))
}

func (e *Estimator) ask(ctx context.Context, p Prompt) (float64, error) {
	var reply string
	err := e.policy.Do(ctx, e.provider.Name()+" completion", func(ctx context.Context) error {
		var err error
		reply, err = e.provider.Complete(ctx, p)
		return err
	})
	if err != nil {
		return 0, eris.Wrapf(err, "%s", e.provider.Name())
	}

	n, ok := util.FirstNumber(reply)
	if !ok {
		e.logger.Warn("unparsable provider reply", zap.String("provider", e.provider.Name()), zap.String("reply", reply))
		return 0, eris.Wrapf(ErrUnparsable, "%q", reply)
	}
	return n, nil
}
