// Package threads maps a (sender, recipient) phone pair to one durable
// agent thread.
package threads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	shared "github.com/formcoach/server/pkg"
	"github.com/formcoach/server/pkg/faults"
	"github.com/formcoach/server/pkg/types"
)

// PairKey builds the mapping document ID for a phone pair. The separator
// cannot appear in E.164 numbers or the whatsapp: prefix.
func PairKey(from, to string) string {
	return from + "|" + to
}

// Resolver resolves phone pairs to agent threads, creating on first use.
type Resolver struct {
	db        shared.Database
	assistant shared.Assistant
}

func NewResolver(db shared.Database, assistant shared.Assistant) *Resolver {
	return &Resolver{db: db, assistant: assistant}
}

// ResolveOrCreate returns the thread ID for the pair, creating the agent
// thread and the mapping on first contact. Safe to call repeatedly and
// concurrently for the same pair: the mapping insert is idempotent, and a
// racer that loses the insert adopts the winner's thread.
func (r *Resolver) ResolveOrCreate(ctx context.Context, logger *slog.Logger, from, to, displayName string) (string, error) {
	key := PairKey(from, to)

	existing, err := r.db.GetThreadMapping(ctx, key)
	if err == nil {
		return existing.ThreadID, nil
	}
	if !isNotFound(err) {
		return "", fmt.Errorf("thread mapping lookup for %s: %w", key, err)
	}

	title := displayName
	if strings.TrimSpace(title) == "" {
		title = from
	}

	threadID, err := r.assistant.CreateThread(ctx, from, title)
	if err != nil {
		return "", fmt.Errorf("create agent thread for %s: %w", key, err)
	}

	outcome, err := r.db.CreateThreadMapping(ctx, key, &types.PhoneThreadMapping{
		From:      from,
		To:        to,
		ThreadID:  threadID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("persist thread mapping for %s: %w", key, err)
	}

	if !outcome.Created {
		// Lost the race. The thread we just created is abandoned; the
		// winner's mapping is the sole source of truth for this pair.
		logger.Warn("Thread mapping race lost, adopting existing thread",
			"pair", key, "abandoned_thread_id", threadID, "thread_id", outcome.Existing.ThreadID)
		return outcome.Existing.ThreadID, nil
	}

	logger.Info("Created thread for phone pair", "pair", key, "thread_id", threadID)
	return threadID, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, faults.ErrNotFound)
}
