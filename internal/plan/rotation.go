package plan

import (
	"math/rand/v2"
	"strings"
)

// Suggest picks a favorite meal that has not been served recently, to break
// repetition. Favorites are trimmed and de-duplicated; recent descriptions
// match case-insensitively after trimming. The pick is uniform over the
// remaining candidates. ok is false when nothing is eligible.
func Suggest(favorites, recent []string) (suggestion string, ok bool) {
	recentSet := make(map[string]struct{}, len(recent))
	for _, r := range recent {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			recentSet[r] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var candidates []string
	for _, f := range favorites {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, recent := recentSet[strings.ToLower(f)]; recent {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		candidates = append(candidates, f)
	}

	if len(candidates) == 0 {
		return "", false
	}
	return candidates[rand.IntN(len(candidates))], true
}
