package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/fetchpipe/internal/queue/memory"
)

const maxLineBytes = 1 << 20

// produce reads one URL per line from src and pushes each trimmed, non-empty
// line onto urls, then pushes workers sentinels. A read error still pushes the
// sentinels so the pool drains what was already queued.
func produce(ctx context.Context, src io.Reader, urls *memory.Queue[string], workers int, onURL func()) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := urls.Push(ctx, line); err != nil {
			return fmt.Errorf("produce url: %w", err)
		}
		if onURL != nil {
			onURL()
		}
	}
	readErr := scanner.Err()

	for range workers {
		if err := urls.PushEnd(ctx); err != nil {
			return fmt.Errorf("produce sentinel: %w", err)
		}
	}
	if readErr != nil {
		return fmt.Errorf("read source: %w", readErr)
	}
	return nil
}
