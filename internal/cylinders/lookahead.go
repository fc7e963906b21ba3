package cylinders

import (
	"context"
	"math"

	"github.com/spinwheel-io/spinwheel/internal/errors"
	"github.com/spinwheel-io/spinwheel/internal/opt"
)

// LookaheadConfig holds the dependencies for a look-ahead bounder spoke.
type LookaheadConfig struct {
	SpokeConfig
	// Optimizer must support evaluation and nonant caching.
	Optimizer opt.Optimizer
	// Sense is the objective sense of the wrapped model. The zero value is
	// Minimize.
	Sense Sense
}

// LookaheadSpoke is the cache-driven bounder: each fresh hub matrix is
// cached, then up to scen_limit of its scenario rows are tried as candidate
// first-stage solutions, each fixed into every local scenario and
// evaluated. The best candidate's objective is reported together with the
// name of the scenario that produced it. The cache is restored between
// candidates so a rejected try never leaks into the next.
type LookaheadSpoke struct {
	Spoke

	set       opt.ScenarioSet
	evaluator opt.Evaluator
	cache     opt.NonantCache
	scenLimit int
	e1Tol     float64
}

// NewLookahead creates the look-ahead bounder. The "scen_limit" option is
// required; bundled or multistage models are rejected.
func NewLookahead(cfg LookaheadConfig) (*LookaheadSpoke, error) {
	role := cfg.Rank.Role
	if cfg.Optimizer == nil {
		return nil, errors.NewConfigError(role, errors.New("optimizer is required"))
	}
	if cfg.Optimizer.Multistage() {
		return nil, errors.NewConfigError(role, errors.ErrMultistageUnsupported)
	}
	if cfg.Optimizer.BundlesPerRank() > 0 {
		return nil, errors.NewConfigError(role, errors.ErrBundlingUnsupported)
	}
	ev, ok := cfg.Optimizer.(opt.Evaluator)
	if !ok {
		return nil, errors.NewConfigError(role, errors.ErrEvalUnsupported)
	}
	cache, ok := cfg.Optimizer.(opt.NonantCache)
	if !ok {
		return nil, errors.NewConfigError(role, errors.New("optimizer does not provide nonant caching"))
	}
	scenLimit, err := cfg.Opts.RequireInt("scen_limit")
	if err != nil {
		return nil, errors.NewConfigError(role, err)
	}
	if scenLimit < 1 {
		return nil, errors.NewConfigError(role, errors.New("scen_limit must be positive"))
	}
	if want := len(cfg.Optimizer.LocalScenarios()) * cfg.Optimizer.NumVars(); cfg.NonantLen != want {
		return nil, errors.NewConfigError(role, errors.ErrWindowLengthMismatch)
	}

	return &LookaheadSpoke{
		Spoke:     newSpoke(cfg.SpokeConfig, cfg.Sense),
		set:       cfg.Optimizer,
		evaluator: ev,
		cache:     cache,
		scenLimit: scenLimit,
		e1Tol:     cfg.Opts.FloatOr("e1_tolerance", 1e-6),
	}, nil
}

// Main performs the one-time warm-up and then spin-polls the hub's nonant
// window, running a look-ahead pass over each fresh matrix until the kill
// signal arrives.
func (sp *LookaheadSpoke) Main(ctx context.Context) error {
	defer sp.exit()

	if err := sp.warmUp(); err != nil {
		return err
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

		if err := sp.lookahead(buf); err != nil {
			return err
		}
		sp.idle()
	}
}

// warmUp prepares the model for evaluation, verifies the local probability
// mass, and snapshots the pristine nonants as the restore point.
func (sp *LookaheadSpoke) warmUp() error {
	if err := sp.evaluator.PrepareEvaluation(); err != nil {
		return errors.NewSolveError(0, err)
	}
	if e1 := sp.evaluator.E1(); math.Abs(e1-1) > sp.e1Tol {
		return errors.NewConfigError(sp.Rank.Role, errors.ErrProbabilityMass)
	}
	sp.cache.SaveNonants()
	return nil
}

// lookahead tries up to scen_limit rows of the fresh matrix as candidate
// solutions and reports the best one found.
func (sp *LookaheadSpoke) lookahead(flat []float64) error {
	sp.cache.PutNonantCache(flat)
	sp.cache.RestoreNonants(false)

	scens := sp.set.LocalScenarios()
	numVars := sp.set.NumVars()
	limit := sp.scenLimit
	if limit > len(scens) {
		limit = len(scens)
	}

	bestObj := 0.0
	bestSource := ""
	found := false
	for k := 0; k < limit; k++ {
		sp.tryCandidate(flat[k*numVars:(k+1)*numVars], scens)
		obj, err := sp.evaluator.CalculateIncumbent(true)
		if err != nil {
			return errors.NewSolveError(sp.iters, err)
		}
		if !found || improves(sp.sense, obj, bestObj) {
			bestObj, bestSource, found = obj, scens[k].Name(), true
		}
		// Back to the cached matrix before the next candidate.
		sp.cache.RestoreNonants(false)
	}

	if !found {
		return nil
	}
	_, err := sp.ReportIfImproving(bestObj, bestSource)
	return err
}

// tryCandidate fixes one scenario's row into every local scenario, rounding
// discrete variables and leaving surrogates free.
func (sp *LookaheadSpoke) tryCandidate(candidate []float64, scens []opt.Scenario) {
	types := scens[0]
	for _, sc := range scens {
		for i, v := range candidate {
			if sc.IsSurrogate(i) {
				continue
			}
			if t := types.VarType(i); t == opt.Binary || t == opt.Integer {
				v = math.Round(v)
			}
			sc.FixNonant(i, v)
		}
	}
}
