package cylinders

import (
	"context"
	"math"

	"github.com/spinwheel-io/spinwheel/internal/errors"
	"github.com/spinwheel-io/spinwheel/internal/opt"
	"github.com/spinwheel-io/spinwheel/internal/topology"
)

// SlamConfig holds the dependencies for a slam spoke.
type SlamConfig struct {
	SpokeConfig
	// Optimizer must support evaluation; anything less is rejected at
	// construction.
	Optimizer opt.Optimizer
	// Reducer spans this spoke's stratum across all cylinders.
	Reducer *topology.Reducer
	// Sense is the objective sense of the wrapped model; reported bounds
	// improve in this direction. The zero value is Minimize.
	Sense Sense
}

// SlamSpoke is the aggregation heuristic: whenever the hub publishes a new
// nonant matrix, the spoke collapses it along the scenario axis with an
// extremum, agrees on the global extremum with its stratum peers, rounds
// discrete variables, fixes the result into every local scenario, and
// evaluates the feasible objective. The cross-replica reduction makes every
// replica evaluate the identical slammed candidate.
type SlamSpoke struct {
	Spoke

	set       opt.ScenarioSet
	evaluator opt.Evaluator
	reducer   *topology.Reducer
	op        topology.ReduceOp
	bias      float64
}

// NewSlamMax creates a slam spoke aggregating with the per-variable
// maximum.
func NewSlamMax(cfg SlamConfig) (*SlamSpoke, error) {
	return newSlam(cfg, topology.ReduceMax)
}

// NewSlamMin creates a slam spoke aggregating with the per-variable
// minimum.
func NewSlamMin(cfg SlamConfig) (*SlamSpoke, error) {
	return newSlam(cfg, topology.ReduceMin)
}

func newSlam(cfg SlamConfig, op topology.ReduceOp) (*SlamSpoke, error) {
	role := cfg.Rank.Role
	if cfg.Optimizer == nil {
		return nil, errors.NewConfigError(role, errors.New("optimizer is required"))
	}
	if cfg.Reducer == nil {
		return nil, errors.NewConfigError(role, errors.New("stratum reducer is required"))
	}
	if cfg.Optimizer.Multistage() {
		return nil, errors.NewConfigError(role, errors.ErrMultistageUnsupported)
	}
	ev, ok := cfg.Optimizer.(opt.Evaluator)
	if !ok {
		return nil, errors.NewConfigError(role, errors.ErrEvalUnsupported)
	}
	if want := len(cfg.Optimizer.LocalScenarios()) * cfg.Optimizer.NumVars(); cfg.NonantLen != want {
		return nil, errors.NewConfigError(role,
			errors.ErrWindowLengthMismatch)
	}

	return &SlamSpoke{
		Spoke:     newSpoke(cfg.SpokeConfig, cfg.Sense),
		set:       cfg.Optimizer,
		evaluator: ev,
		reducer:   cfg.Reducer,
		op:        op,
		bias:      cfg.Opts.FloatOr("rounding_bias", 0),
	}, nil
}

// Main spin-polls the hub's nonant window and slams each fresh matrix. The
// kill signal is the sole terminator; a reducer closed mid-rendezvous means
// the run ended while peers were gone, which is the same thing.
func (sp *SlamSpoke) Main(ctx context.Context) error {
	defer sp.exit()

	if err := sp.evaluator.PrepareEvaluation(); err != nil {
		return errors.NewSolveError(0, err)
	}

	buf := make([]float64, sp.nonantLen)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sp.GotKillSignal() {
			return nil
		}

		fresh, err := sp.UpdateNonants(buf)
		if err != nil {
			return err
		}
		if !fresh {
			sp.idle()
			continue
		}

		if err := sp.slam(ctx, buf); err != nil {
			if errors.Is(err, topology.ErrReducerClosed) {
				return nil
			}
			return err
		}
		sp.idle()
	}
}

// slam runs one full aggregation pass over a fresh scenario-major matrix.
func (sp *SlamSpoke) slam(ctx context.Context, flat []float64) error {
	scens := sp.set.LocalScenarios()
	numVars := sp.set.NumVars()

	// Collapse the scenario axis locally first; the Allreduce then only
	// carries one vector per replica.
	local := make([]float64, numVars)
	copy(local, flat[:numVars])
	for si := 1; si < len(scens); si++ {
		row := flat[si*numVars : (si+1)*numVars]
		for i, v := range row {
			local[i] = sp.op(local[i], v)
		}
	}

	global, err := sp.reducer.Allreduce(ctx, local, sp.op)
	if err != nil {
		return err
	}

	// All replicas hold the identical global extremum now. Round discrete
	// variables and fix the candidate into every scenario; surrogates stay
	// free.
	types := scens[0]
	for i := range global {
		if t := types.VarType(i); t == opt.Binary || t == opt.Integer {
			global[i] = math.Floor(global[i] + 0.5 + sp.bias)
		}
	}
	for _, sc := range scens {
		for i, v := range global {
			if sc.IsSurrogate(i) {
				continue
			}
			sc.FixNonant(i, v)
		}
	}

	obj, err := sp.evaluator.CalculateIncumbent(true)
	if err != nil {
		return errors.NewSolveError(sp.iters, err)
	}
	_, err = sp.ReportIfImproving(obj, "")
	return err
}
