package vectorindex

import (
	"context"
	"fmt"
	"strings"
)

// MismatchError reports an index whose contents differ from the chunk set.
type MismatchError struct {
	Indexed  int
	Expected int
	Missing  []string
	Extra    []string
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "index holds %d vectors for %d chunks", e.Indexed, e.Expected)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %s", summarize(e.Missing))
	}
	if len(e.Extra) > 0 {
		fmt.Fprintf(&b, "; unexpected %s", summarize(e.Extra))
	}
	return b.String()
}

func summarize(ids []string) string {
	const max = 5
	if len(ids) <= max {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(ids[:max], ", "), len(ids)-max)
}

// Verify checks that idx holds exactly one vector for every id in chunkIDs.
func Verify(ctx context.Context, idx Index, chunkIDs []string) error {
	count, err := idx.Count(ctx)
	if err != nil {
		return fmt.Errorf("count index: %w", err)
	}
	stored, err := idx.ChunkIDs(ctx)
	if err != nil {
		return fmt.Errorf("list index ids: %w", err)
	}

	want := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		want[id] = struct{}{}
	}
	have := make(map[string]struct{}, len(stored))
	var extra []string
	for _, id := range stored {
		have[id] = struct{}{}
		if _, ok := want[id]; !ok {
			extra = append(extra, id)
		}
	}
	var missing []string
	for _, id := range chunkIDs {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}

	if count != len(chunkIDs) || len(missing) > 0 || len(extra) > 0 {
		return &MismatchError{Indexed: count, Expected: len(chunkIDs), Missing: missing, Extra: extra}
	}
	return nil
}
