package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "deckflow:"

// updateField overwrites a hash field only when it already exists.
const updateFieldScript = `
if redis.call("hexists", KEYS[1], ARGV[1]) == 1 then
	redis.call("hset", KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0
`

// Store implements ports.Repository on Redis.
//
// Layout, relative to the prefix:
//
//	projects                  ZSET of project IDs scored by creation time
//	project:<id>              JSON project
//	project:<id>:messages     LIST of JSON messages
//	project:<id>:plan         JSON plan
//	project:<id>:slides       HASH slide number -> JSON slide
type Store struct {
	client *backend.Client
	prefix string
}

var _ ports.Repository = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client { return s.client }

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) indexKey() string           { return s.prefix + "projects" }
func (s *Store) projectKey(id string) string { return s.prefix + "project:" + id }
func (s *Store) messagesKey(id string) string {
	return s.projectKey(id) + ":messages"
}
func (s *Store) planKey(id string) string   { return s.projectKey(id) + ":plan" }
func (s *Store) slidesKey(id string) string { return s.projectKey(id) + ":slides" }

func (s *Store) CreateProject(ctx context.Context, p domain.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.projectKey(p.ID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: float64(p.CreatedAt.UnixMilli()), Member: p.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	if err := s.getJSON(ctx, s.projectKey(id), &p); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Project{}, domain.ErrProjectNotFound
		}
		return domain.Project{}, err
	}
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, p domain.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}
	ok, err := s.client.SetXX(ctx, s.projectKey(p.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if !ok {
		return domain.ErrProjectNotFound
	}
	return nil
}

func (s *Store) ProjectExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, s.projectKey(id))
}

func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Project{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.projectKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	out := make([]domain.Project, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a project row.
			continue
		}
		var p domain.Project
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal project: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.projectKey(id), s.messagesKey(id), s.planKey(id), s.slidesKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) CreateMessage(ctx context.Context, projectID string, m domain.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := s.client.RPush(ctx, s.messagesKey(projectID), data).Err(); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, projectID string, limit, offset int) ([]domain.Message, int, error) {
	key := s.messagesKey(projectID)
	total64, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}
	total := int(total64)

	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.Message{}, total, nil
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}

	raws, err := s.client.LRange(ctx, key, int64(offset), stop).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		var m domain.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		out = append(out, m)
	}
	return out, total, nil
}

func (s *Store) CreatePlan(ctx context.Context, projectID string, plan domain.PresentationPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := s.client.Set(ctx, s.planKey(projectID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, projectID string) (*domain.PresentationPlan, error) {
	var plan domain.PresentationPlan
	if err := s.getJSON(ctx, s.planKey(projectID), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Store) UpdatePlan(ctx context.Context, projectID string, plan domain.PresentationPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	ok, err := s.client.SetXX(ctx, s.planKey(projectID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) PlanExists(ctx context.Context, projectID string) (bool, error) {
	return s.exists(ctx, s.planKey(projectID))
}

func (s *Store) CreateSlide(ctx context.Context, projectID string, slide domain.Slide) error {
	data, err := json.Marshal(slide)
	if err != nil {
		return fmt.Errorf("failed to marshal slide: %w", err)
	}
	if err := s.client.HSet(ctx, s.slidesKey(projectID), strconv.Itoa(slide.SlideNumber), data).Err(); err != nil {
		return fmt.Errorf("failed to save slide: %w", err)
	}
	return nil
}

func (s *Store) GetSlide(ctx context.Context, projectID string, number int) (domain.Slide, error) {
	raw, err := s.client.HGet(ctx, s.slidesKey(projectID), strconv.Itoa(number)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Slide{}, domain.ErrNotFound
		}
		return domain.Slide{}, fmt.Errorf("failed to get slide: %w", err)
	}
	var slide domain.Slide
	if err := json.Unmarshal([]byte(raw), &slide); err != nil {
		return domain.Slide{}, fmt.Errorf("failed to unmarshal slide: %w", err)
	}
	return slide, nil
}

func (s *Store) ListSlides(ctx context.Context, projectID string) (domain.SlideMap, error) {
	raws, err := s.client.HGetAll(ctx, s.slidesKey(projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list slides: %w", err)
	}
	out := make(domain.SlideMap, len(raws))
	for _, raw := range raws {
		var slide domain.Slide
		if err := json.Unmarshal([]byte(raw), &slide); err != nil {
			return nil, fmt.Errorf("failed to unmarshal slide: %w", err)
		}
		out[slide.SlideNumber] = slide
	}
	return out, nil
}

func (s *Store) UpdateSlide(ctx context.Context, projectID string, slide domain.Slide) error {
	data, err := json.Marshal(slide)
	if err != nil {
		return fmt.Errorf("failed to marshal slide: %w", err)
	}
	updated, err := s.client.Eval(ctx, updateFieldScript, []string{s.slidesKey(projectID)}, strconv.Itoa(slide.SlideNumber), data).Int()
	if err != nil {
		return fmt.Errorf("failed to update slide: %w", err)
	}
	if updated == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) SlideExists(ctx context.Context, projectID string, number int) (bool, error) {
	ok, err := s.client.HExists(ctx, s.slidesKey(projectID), strconv.Itoa(number)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check slide: %w", err)
	}
	return ok, nil
}

func (s *Store) DeleteSlide(ctx context.Context, projectID string, number int) error {
	n, err := s.client.HDel(ctx, s.slidesKey(projectID), strconv.Itoa(number)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete slide: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, out any) error {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to get from redis: %w", err)
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return n > 0, nil
}
