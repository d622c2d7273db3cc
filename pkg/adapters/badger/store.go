// Package badger implements the repository on an embedded BadgerDB, for
// single-node deployments that want persistence without a server.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the embedded database.
type Config struct {
	// Path is the data directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM. Useful for tests and demos.
	InMemory   bool
	SyncWrites bool
	// Logger receives BadgerDB's own logs. Nil silences them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements ports.Repository on BadgerDB.
//
// Keys:
//
//	p/<id>            project
//	mc/<id>           message count (uint64, big endian)
//	m/<id>/<seq>      message, seq zero padded
//	l/<id>            plan
//	s/<id>/<number>   slide, number zero padded
type Store struct {
	db *badger.DB
}

var _ ports.Repository = (*Store)(nil)

// Open opens (or creates) a database and wraps it.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway in-memory database.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// NewFromDB wraps an already opened database.
func NewFromDB(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ io.Closer = (*Store)(nil)

func projectKey(id string) []byte      { return []byte("p/" + id) }
func countKey(id string) []byte        { return []byte("mc/" + id) }
func messagePrefix(id string) []byte   { return []byte("m/" + id + "/") }
func messageKey(id string, seq uint64) []byte {
	return []byte(fmt.Sprintf("m/%s/%020d", id, seq))
}
func planKey(id string) []byte    { return []byte("l/" + id) }
func slidePrefix(id string) []byte { return []byte("s/" + id + "/") }
func slideKey(id string, number int) []byte {
	return []byte(fmt.Sprintf("s/%s/%010d", id, number))
}

func (s *Store) CreateProject(ctx context.Context, p domain.Project) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, projectKey(p.ID), p)
	})
}

func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, projectKey(id), &p)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Project{}, domain.ErrProjectNotFound
	}
	return p, err
}

func (s *Store) UpdateProject(ctx context.Context, p domain.Project) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := mustExist(txn, projectKey(p.ID)); err != nil {
			return domain.ErrProjectNotFound
		}
		return setJSON(txn, projectKey(p.ID), p)
	})
}

func (s *Store) ProjectExists(ctx context.Context, id string) (bool, error) {
	return s.exists(projectKey(id))
}

func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	out := []domain.Project{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte("p/"), func(val []byte) error {
			var p domain.Project
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("failed to unmarshal project: %w", err)
			}
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range [][]byte{projectKey(id), countKey(id), planKey(id)} {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for _, prefix := range [][]byte{messagePrefix(id), slidePrefix(id)} {
			keys, err := keysWithPrefix(txn, prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// CreateMessage appends under the next sequence number. Concurrent appends to the
// same project conflict inside badger and are retried.
func (s *Store) CreateMessage(ctx context.Context, projectID string, m domain.Message) error {
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			n, err := readCount(txn, projectID)
			if err != nil {
				return err
			}
			if err := setJSON(txn, messageKey(projectID, n), m); err != nil {
				return err
			}
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], n+1)
			return txn.Set(countKey(projectID), buf[:])
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Store) ListMessages(ctx context.Context, projectID string, limit, offset int) ([]domain.Message, int, error) {
	out := []domain.Message{}
	var total int
	err := s.db.View(func(txn *badger.Txn) error {
		n, err := readCount(txn, projectID)
		if err != nil {
			return err
		}
		total = int(n)
		if offset < 0 {
			offset = 0
		}
		if offset >= total {
			return nil
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := messagePrefix(projectID)
		for it.Seek(messageKey(projectID, uint64(offset))); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var m domain.Message
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &m) }); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) CreatePlan(ctx context.Context, projectID string, plan domain.PresentationPlan) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, planKey(projectID), plan)
	})
}

func (s *Store) GetPlan(ctx context.Context, projectID string) (*domain.PresentationPlan, error) {
	var plan domain.PresentationPlan
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, planKey(projectID), &plan)
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Store) UpdatePlan(ctx context.Context, projectID string, plan domain.PresentationPlan) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := mustExist(txn, planKey(projectID)); err != nil {
			return err
		}
		return setJSON(txn, planKey(projectID), plan)
	})
}

func (s *Store) PlanExists(ctx context.Context, projectID string) (bool, error) {
	return s.exists(planKey(projectID))
}

func (s *Store) CreateSlide(ctx context.Context, projectID string, slide domain.Slide) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, slideKey(projectID, slide.SlideNumber), slide)
	})
}

func (s *Store) GetSlide(ctx context.Context, projectID string, number int) (domain.Slide, error) {
	var slide domain.Slide
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, slideKey(projectID, number), &slide)
	})
	return slide, err
}

func (s *Store) ListSlides(ctx context.Context, projectID string) (domain.SlideMap, error) {
	out := domain.SlideMap{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, slidePrefix(projectID), func(val []byte) error {
			var slide domain.Slide
			if err := json.Unmarshal(val, &slide); err != nil {
				return fmt.Errorf("failed to unmarshal slide: %w", err)
			}
			out[slide.SlideNumber] = slide
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateSlide(ctx context.Context, projectID string, slide domain.Slide) error {
	key := slideKey(projectID, slide.SlideNumber)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := mustExist(txn, key); err != nil {
			return err
		}
		return setJSON(txn, key, slide)
	})
}

func (s *Store) SlideExists(ctx context.Context, projectID string, number int) (bool, error) {
	return s.exists(slideKey(projectID, number))
}

func (s *Store) DeleteSlide(ctx context.Context, projectID string, number int) error {
	key := slideKey(projectID, number)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := mustExist(txn, key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		return mustExist(txn, key)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func mustExist(txn *badger.Txn, key []byte) error {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", key, err)
		}
		return nil
	})
}

func readCount(txn *badger.Txn, projectID string) (uint64, error) {
	item, err := txn.Get(countKey(projectID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt message counter for %s: %s", projectID, strconv.Quote(string(val)))
		}
		n = binary.BigEndian.Uint64(val)
		return nil
	})
	return n, err
}

func scan(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func keysWithPrefix(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}
