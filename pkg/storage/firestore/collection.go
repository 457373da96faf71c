package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/formcoach/server/pkg/faults"
)

// Collection is a typed wrapper over a Firestore collection. Documents are
// marshaled from struct tags directly.
type Collection[T any] struct {
	Ref *firestore.CollectionRef
}

func (c *Collection[T]) Doc(id string) *DocumentRef[T] {
	return &DocumentRef[T]{Ref: c.Ref.Doc(id)}
}

func (c *Collection[T]) NewDoc() *DocumentRef[T] {
	return &DocumentRef[T]{Ref: c.Ref.NewDoc()}
}

// ByRecency returns up to limit documents matching phone_number == phoneNumber,
// newest captured_at first. IDs of the snapshots are returned alongside so
// callers can backfill identifier fields.
func (c *Collection[T]) ByRecency(ctx context.Context, phoneNumber string, limit int) ([]*T, []string, error) {
	q := c.Ref.Where("phone_number", "==", phoneNumber).
		OrderBy("captured_at", firestore.Desc).
		Limit(limit)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*T
	var ids []string
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		v := new(T)
		if err := snap.DataTo(v); err != nil {
			return nil, nil, err
		}
		out = append(out, v)
		ids = append(ids, snap.Ref.ID)
	}
	return out, ids, nil
}

type DocumentRef[T any] struct {
	Ref *firestore.DocumentRef
}

func (d *DocumentRef[T]) ID() string {
	return d.Ref.ID
}

// Get reads the document. A missing document maps to faults.ErrNotFound.
func (d *DocumentRef[T]) Get(ctx context.Context) (*T, error) {
	snap, err := d.Ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, faults.ErrNotFound
		}
		return nil, err
	}
	v := new(T)
	if err := snap.DataTo(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Set writes the full document, replacing any existing content. A single
// Set is atomic per document, which is what makes doc-id-keyed records
// (pending confirmations) safe to replace under concurrent deliveries.
func (d *DocumentRef[T]) Set(ctx context.Context, data *T) error {
	_, err := d.Ref.Set(ctx, data)
	return err
}

// Create inserts the document only if it does not exist yet. Returns
// created=false when another writer got there first; the existence check
// and insert are one serialized operation on the Firestore side.
func (d *DocumentRef[T]) Create(ctx context.Context, data *T) (created bool, err error) {
	_, err = d.Ref.Create(ctx, data)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Merge applies a partial map update. Keys must match Firestore snake_case
// field names; no struct marshaling is applied.
func (d *DocumentRef[T]) Merge(ctx context.Context, updates map[string]interface{}) error {
	_, err := d.Ref.Set(ctx, updates, firestore.MergeAll)
	return err
}

// Update applies field updates and transforms (e.g. firestore.Increment)
// to an existing document. Unlike Merge it never creates the document; a
// missing one maps to faults.ErrNotFound.
func (d *DocumentRef[T]) Update(ctx context.Context, updates []firestore.Update) error {
	_, err := d.Ref.Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return faults.ErrNotFound
	}
	return err
}

// Delete removes the document. Deleting a missing document is not an error.
func (d *DocumentRef[T]) Delete(ctx context.Context) error {
	_, err := d.Ref.Delete(ctx)
	return err
}
