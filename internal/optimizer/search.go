package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/microgrid-sizing/backend/internal/models"
)

type search struct {
	plant *plant
	rng   *rand.Rand
	alpha float64
	limit int
	add   string
	drop  string
}

// move adds one unit: a generator when battery is false, else a battery.
type move struct {
	battery bool
	index   int
}

func (s *search) empty() solution {
	return solution{
		gen: make([]int, len(s.plant.req.Generators)),
		bat: make([]int, len(s.plant.req.Batteries)),
	}
}

func (s *search) apply(sol solution, m move) solution {
	next := sol.clone()
	if m.battery {
		next.bat[m.index]++
	} else {
		next.gen[m.index]++
	}
	return next
}

// construct adds units until the solution is feasible, the size limit is
// hit or no single addition improves the score.
func (s *search) construct(ctx context.Context, sol solution) (solution, *outcome, error) {
	cur := s.plant.simulate(sol)
	for !cur.feasible && sol.units() < s.limit {
		if err := ctx.Err(); err != nil {
			return sol, nil, fmt.Errorf("%w: %v", models.ErrOptimizerFailure, err)
		}

		type cand struct {
			sol solution
			out *outcome
		}
		var cands []cand
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, m := range s.moves() {
			next := s.apply(sol, m)
			out := s.plant.simulate(next)
			if out.score >= cur.score {
				continue
			}
			cands = append(cands, cand{next, out})
			lo = math.Min(lo, out.score)
			hi = math.Max(hi, out.score)
		}
		if len(cands) == 0 {
			break
		}

		threshold := lo
		if s.add == ConstructionGRASP {
			threshold = lo + s.alpha*(hi-lo)
		}
		var rcl []cand
		for _, c := range cands {
			if c.out.score <= threshold {
				rcl = append(rcl, c)
			}
		}
		pick := rcl[0]
		if len(rcl) > 1 {
			pick = rcl[s.rng.IntN(len(rcl))]
		}
		sol, cur = pick.sol, pick.out
	}
	return sol, cur, nil
}

func (s *search) moves() []move {
	moves := make([]move, 0, len(s.plant.req.Generators)+len(s.plant.req.Batteries))
	for i := range s.plant.req.Generators {
		moves = append(moves, move{index: i})
	}
	for i := range s.plant.req.Batteries {
		moves = append(moves, move{battery: true, index: i})
	}
	return moves
}

// destroy removes roughly a third of the installed units. RANDOM picks the
// units uniformly; WORST removes from the most installed type first.
func (s *search) destroy(sol solution) solution {
	next := sol.clone()
	n := next.units()
	if n == 0 {
		return next
	}
	remove := max(1, n/3)
	for r := 0; r < remove; r++ {
		var slots []*int
		for i := range next.gen {
			for k := 0; k < next.gen[i]; k++ {
				slots = append(slots, &next.gen[i])
			}
		}
		for i := range next.bat {
			for k := 0; k < next.bat[i]; k++ {
				slots = append(slots, &next.bat[i])
			}
		}
		if len(slots) == 0 {
			break
		}
		if s.drop == DestructionRandom {
			*slots[s.rng.IntN(len(slots))]--
			continue
		}
		worst := slots[0]
		for _, p := range slots {
			if *p > *worst {
				worst = p
			}
		}
		*worst--
	}
	return next
}
