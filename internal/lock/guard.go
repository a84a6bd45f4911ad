// Package lock detects cycles in recursive embedding.
//
// A Guard maps every resource currently being compiled through an embed or
// a hashed uri to the resource that claimed it. One Guard belongs to one
// top-level compile; it is not safe for concurrent use.
package lock

import (
	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// Guard is the claim map of one compile session.
type Guard struct {
	holders map[string]string
}

// New returns an empty guard.
func New() *Guard {
	return &Guard{holders: make(map[string]string)}
}

// Enter registers the top-level resource of the session. It has no holder,
// so a later claim on it reports the cycle through it.
func (g *Guard) Enter(root string) {
	g.holders[root] = ""
}

// Claim records that main is about to compile target. It fails when main
// and target are the same resource, or when target is already on the
// active call chain; the error then names the chain from target down to
// main and back to target.
func (g *Guard) Claim(main, target string) error {
	if main == target {
		return kerrors.SelfEmbed(target)
	}
	if _, held := g.holders[target]; held {
		return kerrors.CircularDependency(g.chain(main, target))
	}
	g.holders[target] = main
	return nil
}

// Release drops the claim on target.
func (g *Guard) Release(target string) {
	delete(g.holders, target)
}

// Reset drops every claim.
func (g *Guard) Reset() {
	clear(g.holders)
}

// Holder returns the resource that claimed target.
func (g *Guard) Holder(target string) (string, bool) {
	h, ok := g.holders[target]
	return h, ok
}

// Len returns the number of claimed resources.
func (g *Guard) Len() int {
	return len(g.holders)
}

// chain walks holders from main up to target and returns the path in call
// order, closed by target.
func (g *Guard) chain(main, target string) []string {
	up := []string{main}
	seen := map[string]bool{main: true}
	for cur := main; cur != target; {
		next, ok := g.holders[cur]
		if !ok || next == "" || seen[next] {
			break
		}
		up = append(up, next)
		seen[next] = true
		cur = next
	}
	if up[len(up)-1] != target {
		up = append(up, target)
	}

	out := make([]string, 0, len(up)+1)
	for i := len(up) - 1; i >= 0; i-- {
		out = append(out, up[i])
	}
	return append(out, target)
}
