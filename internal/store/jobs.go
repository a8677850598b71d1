package store

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/chaptermark/chaptermark-server/internal/domain"
)

const (
	jobPrefix       = "job:"
	jobCreatedIndex = jobPrefix + "idx:created:"
)

func jobCreatedKey(job *domain.ChapterJob) string {
	return jobCreatedIndex + newestFirst(job.CreatedAt) + ":" + job.ID
}

// CreateJob stores a new chapter job.
// Returns ErrAlreadyExists if a job with this ID already exists.
func (s *Store) CreateJob(ctx context.Context, job *domain.ChapterJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.ID == "" || strings.HasPrefix(job.ID, "idx:") {
		return ErrInvalidInput.WithCause(fmt.Errorf("job id %q", job.ID))
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal chapter job: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(jobPrefix + job.ID)

		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set job: %w", err)
		}
		if err := txn.Set([]byte(jobCreatedKey(job)), []byte(job.ID)); err != nil {
			return fmt.Errorf("set created index: %w", err)
		}
		return nil
	})
}

// GetJob retrieves a chapter job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.ChapterJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := buildKey(jobPrefix, id)
	defer releaseKey(key)

	var job domain.ChapterJob
	if err := s.get(key, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// DeleteJob removes a chapter job and its index entries.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(jobPrefix + id)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}

		var job domain.ChapterJob
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		}); err != nil {
			return fmt.Errorf("unmarshal job: %w", err)
		}

		if err := txn.Delete([]byte(jobCreatedKey(&job))); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete created index: %w", err)
		}
		return txn.Delete(key)
	})
}

// ListJobs returns jobs newest first.
func (s *Store) ListJobs(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.ChapterJob], error) {
	params.Normalize()

	after, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	result := &PaginatedResult[*domain.ChapterJob]{Items: make([]*domain.ChapterJob, 0, params.Limit)}
	prefix := []byte(jobCreatedIndex)

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if after != "" {
			start = []byte(after)
		}

		var lastKey string
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			if after != "" && bytes.Equal(item.Key(), []byte(after)) {
				continue
			}

			if len(result.Items) == params.Limit {
				result.HasMore = true
				result.NextCursor = EncodeCursor(lastKey)
				return nil
			}

			jobID, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			job, err := getJobTxn(txn, string(jobID))
			if errors.Is(err, ErrNotFound) {
				// Dangling index entry.
				continue
			}
			if err != nil {
				return err
			}

			result.Items = append(result.Items, job)
			lastKey = string(item.KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func getJobTxn(txn *badger.Txn, id string) (*domain.ChapterJob, error) {
	item, err := txn.Get([]byte(jobPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var job domain.ChapterJob
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &job)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// AllJobs iterates every stored job in key order.
func (s *Store) AllJobs(ctx context.Context) iter.Seq2[*domain.ChapterJob, error] {
	return func(yield func(*domain.ChapterJob, error) bool) {
		_ = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(jobPrefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(jobPrefix)); it.ValidForPrefix([]byte(jobPrefix)); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys
				key := string(it.Item().Key())
				if strings.HasPrefix(key[len(jobPrefix):], "idx:") {
					continue
				}

				var job domain.ChapterJob
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &job)
				})
				if err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&job, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// CountJobs returns the number of stored jobs.
func (s *Store) CountJobs(ctx context.Context) (int, error) {
	count := 0
	prefix := []byte(jobCreatedIndex)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}
