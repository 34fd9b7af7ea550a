package delivery

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
)

const counterName = "delivery_partner_rr"

type counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	CounterKey(name string) string
}

// Assigner hands out delivery partners in round robin order. The position is
// a shared redis counter so every API replica walks the same sequence.
type Assigner struct {
	partners []string
	counter  counter
}

// NewAssigner builds an assigner over a non-empty partner pool.
func NewAssigner(partners []string, c counter) (*Assigner, error) {
	pool := make([]string, 0, len(partners))
	for _, p := range partners {
		if p = strings.TrimSpace(p); p != "" {
			pool = append(pool, p)
		}
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("delivery partner pool is empty")
	}
	if c == nil {
		return nil, fmt.Errorf("counter required")
	}
	return &Assigner{partners: pool, counter: c}, nil
}

// Assign returns the next partner id.
func (a *Assigner) Assign(ctx context.Context) (string, error) {
	n, err := a.counter.Incr(ctx, a.counter.CounterKey(counterName))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance delivery partner counter")
	}
	idx := (n - 1) % int64(len(a.partners))
	if idx < 0 {
		idx += int64(len(a.partners))
	}
	return a.partners[idx], nil
}
