package worker

import (
	"context"
	"fmt"
	"log/slog"

	"khata/internal/amqp"
	"khata/internal/storage"
)

// MirrorWorker copies ledger documents from the primary store to a backup
// store whenever a change message arrives. The primary store is the source of
// truth; the mirror only ever overwrites whole documents.
type MirrorWorker struct {
	primary storage.DocumentStore
	backup  storage.DocumentStore
}

func NewMirrorWorker(primary, backup storage.DocumentStore) *MirrorWorker {
	return &MirrorWorker{
		primary: primary,
		backup:  backup,
	}
}

// HandleChange processes a single ledger change message. The message only
// names the collection; the worker reloads the full document so late or
// reordered messages still converge on the primary's state.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	slog.InfoContext(ctx, "Mirroring document",
		"collection", msg.Collection,
		"op", msg.Op,
		"id", msg.ID)

	return w.mirrorKey(ctx, msg.Collection)
}

// MirrorAll copies every ledger document, used on startup to catch changes
// published while the worker was down.
func (w *MirrorWorker) MirrorAll(ctx context.Context) error {
	for _, key := range storage.Keys() {
		if err := w.mirrorKey(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (w *MirrorWorker) mirrorKey(ctx context.Context, key string) error {
	doc, ok, err := w.primary.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("load document %q: %w", key, err)
	}
	if !ok {
		// Nothing persisted yet for this collection.
		slog.DebugContext(ctx, "Document not present in primary store", "key", key)
		return nil
	}

	if err := w.backup.Save(ctx, key, doc); err != nil {
		return fmt.Errorf("save document %q to backup: %w", key, err)
	}

	slog.DebugContext(ctx, "Document mirrored", "key", key, "bytes", len(doc))
	return nil
}
