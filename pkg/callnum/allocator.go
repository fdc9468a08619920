// Package callnum hands out sequential call-number labels. The counter
// advances exactly once per source record pulled from the ingestion stream,
// whatever happens to the record afterwards, so labels are never reused
// across a run even when records are discarded.
package callnum

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// SeedSource yields the last used counter value from an external source of
// truth.
type SeedSource interface {
	LastCallNumber(ctx context.Context) (int, error)
}

type Allocator struct {
	prefix string
	value  int
}

func New(prefix string, seed int) *Allocator {
	return &Allocator{prefix: prefix, value: seed}
}

// NewFromSource seeds an allocator from the external counter. A failure
// here is the one fatal precondition of a run.
func NewFromSource(ctx context.Context, prefix string, src SeedSource) (*Allocator, error) {
	seed, err := src.LastCallNumber(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "seed call number allocator")
	}
	return New(prefix, seed), nil
}

// Next advances the counter and returns the formatted label.
func (a *Allocator) Next() string {
	a.value++
	return fmt.Sprintf("%s %d", a.prefix, a.value)
}

// Value is the last allocated counter value.
func (a *Allocator) Value() int {
	return a.value
}

// Persist writes the current value as the seed for the next run.
func (a *Allocator) Persist(path string) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(a.value)), 0o644); err != nil {
		return errors.Wrap(err, "persist last call number")
	}
	return nil
}
