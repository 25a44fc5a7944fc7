package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
)

// ControlFunc applies one control verb to one process.
type ControlFunc func(ctx context.Context, pk int) (bool, error)

// ParsePKs converts command arguments into process pks.
func ParsePKs(args []string) ([]int, error) {
	pks := make([]int, 0, len(args))
	for _, raw := range args {
		pk, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || pk <= 0 {
			return nil, fmt.Errorf("invalid pk %q: expected a positive integer", raw)
		}
		pks = append(pks, pk)
	}
	return pks, nil
}

// RunControl applies fn to every pk, printing one outcome line per target.
// A failing target never aborts the batch; the error summarizes how many
// targets failed hard once the whole batch has been attempted.
func RunControl(ctx context.Context, verb string, pks []int, fn ControlFunc) error {
	var failed int
	for _, pk := range pks {
		if err := ctx.Err(); err != nil {
			return err
		}

		acked, err := fn(ctx, pk)
		switch {
		case err == nil && acked:
			fmt.Printf("Process %d: %s\n", pk, tui.Ok(verb+" acknowledged"))
		case err == nil:
			fmt.Printf("Process %d: %s\n", pk, tui.Warn(verb+" rejected"))
		case errors.Is(err, domain.ErrAlreadyTerminated):
			fmt.Printf("Process %d: %s\n", pk, tui.Warn("already terminated"))
		default:
			failed++
			fmt.Printf("Process %d: %s\n", pk, tui.Fail(err.Error()))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%s failed for %d of %d processes", verb, failed, len(pks))
	}
	return nil
}
