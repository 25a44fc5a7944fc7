package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.ProcessStore, ports.WorkflowStore and
// ports.LogStore on Redis, so several programs can share one set of records.
// All stored values are JSON; pks come from one INCR sequence and are never
// reused.
//
// Workflow trees are stored whole, under the uuid of their root, with an
// alias key per member so any member uuid resolves the tree. Parent links
// are rebuilt from the downward links on load.
type Store struct {
	client *backend.Client
	prefix string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStorePrefix sets the key prefix.
func WithStorePrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewStore creates a store with its own Redis client.
func NewStore(address, password string, db int, opts ...StoreOption) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewStoreFromClient(client, opts...)
}

// NewStoreFromClient creates a store on an existing client.
func NewStoreFromClient(client *backend.Client, opts ...StoreOption) *Store {
	store := &Store{
		client: client,
		prefix: "arbor:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) seqKey() string             { return s.prefix + "seq" }
func (s *Store) processKey(pk int) string   { return fmt.Sprintf("%sprocess:%d", s.prefix, pk) }
func (s *Store) processIndexKey() string    { return s.prefix + "processes" }
func (s *Store) treeKey(uuid string) string { return s.prefix + "tree:" + uuid }
func (s *Store) memberKey(uuid string) string {
	return s.prefix + "workflow:" + uuid
}
func (s *Store) logKey(ownerPK int) string { return fmt.Sprintf("%slog:%d", s.prefix, ownerPK) }

func (s *Store) nextPK(ctx context.Context) (int, error) {
	pk, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate pk: %w", err)
	}
	return int(pk), nil
}

// SaveProcess persists the record, assigning a pk on first save.
func (s *Store) SaveProcess(ctx context.Context, rec *domain.ProcessRecord) error {
	if rec.PK == 0 {
		pk, err := s.nextPK(ctx)
		if err != nil {
			return err
		}
		rec.PK = pk
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal process %d: %w", rec.PK, err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.processKey(rec.PK), data, 0)
	pipe.ZAdd(ctx, s.processIndexKey(), backend.Z{Score: float64(rec.PK), Member: rec.PK})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// LoadProcess retrieves a record by pk.
func (s *Store) LoadProcess(ctx context.Context, pk int) (*domain.ProcessRecord, error) {
	val, err := s.client.Get(ctx, s.processKey(pk)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrProcessNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var rec domain.ProcessRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal process %d: %w", pk, err)
	}
	return &rec, nil
}

// ListProcesses returns matching records ordered by pk.
func (s *Store) ListProcesses(ctx context.Context, filter ports.ProcessFilter) ([]*domain.ProcessRecord, error) {
	members, err := s.client.ZRange(ctx, s.processIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	out := make([]*domain.ProcessRecord, 0, len(members))
	for _, member := range members {
		pk, err := strconv.Atoi(member)
		if err != nil {
			continue
		}
		rec, err := s.LoadProcess(ctx, pk)
		if err != nil {
			// Index entries may outlive their records under concurrent use.
			if errors.Is(err, domain.ErrProcessNotFound) {
				continue
			}
			return nil, err
		}
		if !matchesFilter(rec, filter) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func matchesFilter(rec *domain.ProcessRecord, filter ports.ProcessFilter) bool {
	if len(filter.States) > 0 {
		found := false
		for _, st := range filter.States {
			if rec.State == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.FailedOnly {
		if rec.State != domain.StateFinished || rec.IsFinishedOK() {
			return false
		}
	}
	return true
}

// SaveWorkflow persists the tree containing wf, whole, under its root. Every
// member with pk 0 is assigned one first.
func (s *Store) SaveWorkflow(ctx context.Context, wf *domain.Workflow) error {
	root := wf.Root()
	members := collect(root)

	for _, member := range members {
		if member.PK != 0 {
			continue
		}
		pk, err := s.nextPK(ctx)
		if err != nil {
			return err
		}
		member.PK = pk
	}

	data, err := json.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to marshal tree %s: %w", root.UUID, err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.treeKey(root.UUID), data, 0)
	for _, member := range members {
		pipe.Set(ctx, s.memberKey(member.UUID), root.UUID, 0)
		// A member that used to be a root of its own leaves a stale tree
		// document behind once attached; drop it.
		if member.UUID != root.UUID {
			pipe.Del(ctx, s.treeKey(member.UUID))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// LoadWorkflow retrieves a workflow by the uuid of any tree member. The
// returned workflow sits inside its fully linked tree.
func (s *Store) LoadWorkflow(ctx context.Context, uuid string) (*domain.Workflow, error) {
	rootUUID, err := s.client.Get(ctx, s.memberKey(uuid)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	val, err := s.client.Get(ctx, s.treeKey(rootUUID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var root domain.Workflow
	if err := json.Unmarshal([]byte(val), &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tree %s: %w", rootUUID, err)
	}
	relink(&root)

	wf := find(&root, uuid)
	if wf == nil {
		return nil, domain.ErrWorkflowNotFound
	}
	return wf, nil
}

// collect lists the workflow and every transitively attached sub-workflow
// in pre-order, each once.
func collect(wf *domain.Workflow) []*domain.Workflow {
	var out []*domain.Workflow
	seen := make(map[string]bool)
	var walk func(*domain.Workflow)
	walk = func(node *domain.Workflow) {
		if seen[node.UUID] {
			return
		}
		seen[node.UUID] = true
		out = append(out, node)
		for _, step := range node.Steps {
			for _, sub := range step.Subworkflows {
				walk(sub)
			}
		}
	}
	walk(wf)
	return out
}

// relink rebuilds the upward links a marshaled tree omits.
func relink(wf *domain.Workflow) {
	for _, step := range wf.Steps {
		for _, sub := range step.Subworkflows {
			sub.Parent = wf
			sub.ParentStep = step.Name
			relink(sub)
		}
	}
}

func find(wf *domain.Workflow, uuid string) *domain.Workflow {
	if wf.UUID == uuid {
		return wf
	}
	for _, step := range wf.Steps {
		for _, sub := range step.Subworkflows {
			if found := find(sub, uuid); found != nil {
				return found
			}
		}
	}
	return nil
}

// AppendEntry persists a log entry, assigning its pk.
func (s *Store) AppendEntry(ctx context.Context, entry *domain.LogEntry) error {
	if entry.PK == 0 {
		pk, err := s.nextPK(ctx)
		if err != nil {
			return err
		}
		entry.PK = pk
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry %d: %w", entry.PK, err)
	}
	if err := s.client.RPush(ctx, s.logKey(entry.OwnerPK), data).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Entries returns the owner's entries at or above min, in append order.
func (s *Store) Entries(ctx context.Context, ownerPK int, min domain.LogLevel) ([]domain.LogEntry, error) {
	vals, err := s.client.LRange(ctx, s.logKey(ownerPK), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list log entries: %w", err)
	}

	var out []domain.LogEntry
	for _, val := range vals {
		var entry domain.LogEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry: %w", err)
		}
		if entry.Level.AtLeast(min) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// ClearEntries removes every entry of the owner.
func (s *Store) ClearEntries(ctx context.Context, ownerPK int) error {
	if err := s.client.Del(ctx, s.logKey(ownerPK)).Err(); err != nil {
		return fmt.Errorf("failed to clear log entries: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
