package tasksync

import "github.com/harrisonrobin/taskbridge/pkg/model"

// Pair associates an exchange task with the other-store task sharing its
// ExchangeID. Other is nil when no such task exists.
type Pair struct {
	Exchange *model.Task
	Other    *model.Task
}

// ExchangeIDIndex maps tasks by ExchangeID. When two tasks share an id the
// later one wins; tasks without an id are skipped since they can never match.
func ExchangeIDIndex(tasks []*model.Task) map[string]*model.Task {
	idx := make(map[string]*model.Task, len(tasks))
	for _, t := range tasks {
		if t == nil || t.ExchangeID == "" {
			continue
		}
		idx[t.ExchangeID] = t
	}
	return idx
}

// GeneratePairs returns one pair per distinct exchange task, in the order the
// exchange tasks first appear. Exchange tasks without an id are skipped. Other
// tasks whose id is not among the exchange ids are not represented.
func GeneratePairs(exchange, other []*model.Task) []Pair {
	otherByID := ExchangeIDIndex(other)

	seen := make(map[string]struct{}, len(exchange))
	pairs := make([]Pair, 0, len(exchange))
	for _, ex := range exchange {
		if ex == nil || ex.ExchangeID == "" {
			continue
		}
		if _, dup := seen[ex.ExchangeID]; dup {
			continue
		}
		seen[ex.ExchangeID] = struct{}{}
		pairs = append(pairs, pairFor(otherByID, ex))
	}
	return pairs
}

func pairFor(otherByID map[string]*model.Task, ex *model.Task) Pair {
	return Pair{Exchange: ex, Other: otherByID[ex.ExchangeID]}
}
