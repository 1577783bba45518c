package orchestrator

import (
	"sort"
	"time"

	"github.com/slidewise/modelgate/internal/backend"
)

// score ranks a backend: static priority, boosted by live success rate and
// penalized by normalized average latency. Higher is better.
func (o *Orchestrator) score(b *backend.Backend) float64 {
	successWeight := o.config.SuccessWeight
	if successWeight <= 0 {
		successWeight = 20
	}

	penaltyWeight := o.config.LatencyPenaltyWeight
	if penaltyWeight <= 0 {
		penaltyWeight = 10
	}

	reference := o.config.LatencyReference
	if reference <= 0 {
		reference = 5 * time.Second
	}

	penalty := float64(b.AvgLatency()) / float64(reference) * penaltyWeight
	if penalty > penaltyWeight {
		penalty = penaltyWeight
	}

	return b.Priority() + b.SuccessRate()*successWeight - penalty
}

// candidates builds the ordered backend list: the preferred backend first when
// supplied and healthy, then every other healthy backend by descending score.
func (o *Orchestrator) candidates(preferred string) []*backend.Backend {
	var head *backend.Backend
	rest := make([]*backend.Backend, 0, len(o.backends))

	for _, b := range o.backends {
		if !b.IsHealthy() {
			continue
		}

		if preferred != "" && b.Name() == preferred && head == nil {
			head = b
			continue
		}

		rest = append(rest, b)
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return o.score(rest[i]) > o.score(rest[j])
	})

	if head != nil {
		return append([]*backend.Backend{head}, rest...)
	}

	return rest
}
