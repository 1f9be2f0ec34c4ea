package importer

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/casavia/estate-crm/modules/crm/domain/blacklist"
	"github.com/casavia/estate-crm/modules/crm/domain/customer"
	"github.com/casavia/estate-crm/modules/crm/domain/district"
	"github.com/casavia/estate-crm/modules/crm/domain/estate"
	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
	"github.com/casavia/estate-crm/modules/crm/domain/tag"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
)

type memCustomerRepo struct {
	mu         sync.Mutex
	drafts     []customer.Draft
	live       map[string]customer.Customer
	draftCalls int
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{live: map[string]customer.Customer{}}
}

func liveKey(c customer.Customer) string {
	return c.TenantID.String() + "/" + c.EstateID.String() + "/" + c.Phone
}

func (r *memCustomerRepo) CreateDrafts(ctx context.Context, drafts []customer.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts = append(r.drafts, drafts...)
	r.draftCalls++
	return nil
}

func (r *memCustomerRepo) FindDrafts(ctx context.Context, taskID uuid.UUID, includeDirty bool, limit int) ([]customer.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []customer.Draft
	for _, d := range r.drafts {
		if d.InsertTaskID != taskID {
			continue
		}
		if d.Dirty && !includeDirty {
			continue
		}
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memCustomerRepo) DeleteDraftsByIDs(ctx context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := r.drafts[:0]
	for _, d := range r.drafts {
		if _, ok := drop[d.ID]; !ok {
			kept = append(kept, d)
		}
	}
	r.drafts = kept
	return nil
}

func (r *memCustomerRepo) DeleteDraftsByTask(ctx context.Context, taskID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	kept := r.drafts[:0]
	for _, d := range r.drafts {
		if d.InsertTaskID == taskID {
			n++
			continue
		}
		kept = append(kept, d)
	}
	r.drafts = kept
	return n, nil
}

func (r *memCustomerRepo) UpsertLive(ctx context.Context, records []customer.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range records {
		r.live[liveKey(c)] = c
	}
	return nil
}

func (r *memCustomerRepo) ForEachLive(ctx context.Context, estateID uuid.UUID, fn func(customer.Customer) error) error {
	r.mu.Lock()
	snapshot := make([]customer.Customer, 0, len(r.live))
	for _, c := range r.live {
		if c.EstateID == estateID {
			snapshot = append(snapshot, c)
		}
	}
	r.mu.Unlock()
	for _, c := range snapshot {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

type memBlacklistRepo struct {
	mu     sync.Mutex
	drafts []blacklist.Draft
	live   map[string]blacklist.Entry
}

func newMemBlacklistRepo() *memBlacklistRepo {
	return &memBlacklistRepo{live: map[string]blacklist.Entry{}}
}

func (r *memBlacklistRepo) CreateDrafts(ctx context.Context, drafts []blacklist.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts = append(r.drafts, drafts...)
	return nil
}

func (r *memBlacklistRepo) FindDrafts(ctx context.Context, taskID uuid.UUID, includeDirty bool, limit int) ([]blacklist.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []blacklist.Draft
	for _, d := range r.drafts {
		if d.InsertTaskID != taskID {
			continue
		}
		if d.Dirty && !includeDirty {
			continue
		}
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memBlacklistRepo) DeleteDraftsByIDs(ctx context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := r.drafts[:0]
	for _, d := range r.drafts {
		if _, ok := drop[d.ID]; !ok {
			kept = append(kept, d)
		}
	}
	r.drafts = kept
	return nil
}

func (r *memBlacklistRepo) DeleteDraftsByTask(ctx context.Context, taskID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	kept := r.drafts[:0]
	for _, d := range r.drafts {
		if d.InsertTaskID == taskID {
			n++
			continue
		}
		kept = append(kept, d)
	}
	r.drafts = kept
	return n, nil
}

func (r *memBlacklistRepo) UpsertLive(ctx context.Context, entries []blacklist.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.live[e.TenantID.String()+"/"+e.Phone] = e
	}
	return nil
}

func (r *memBlacklistRepo) AllPhones(ctx context.Context) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]struct{}{}
	for _, e := range r.live {
		out[e.Phone] = struct{}{}
	}
	return out, nil
}

type memErrorRepo struct {
	mu      sync.Mutex
	entries []importerror.Entry
}

func (r *memErrorRepo) CreateMany(ctx context.Context, entries []importerror.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *memErrorRepo) FindByTaskID(ctx context.Context, taskID uuid.UUID, limit int) ([]importerror.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []importerror.Entry
	for _, e := range r.entries {
		if e.InsertTaskID == taskID {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memErrorRepo) DeleteByTaskID(ctx context.Context, taskID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.InsertTaskID == taskID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return n, nil
}

func (r *memErrorRepo) CountByTaskID(ctx context.Context, taskID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.entries {
		if e.InsertTaskID == taskID {
			n++
		}
	}
	return n, nil
}

func (r *memErrorRepo) byTask(taskID uuid.UUID) []importerror.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []importerror.Entry
	for _, e := range r.entries {
		if e.InsertTaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}

type memTagRepo struct {
	mu          sync.Mutex
	tags        []tag.Tag
	createCalls int
}

func (r *memTagRepo) GetAll(ctx context.Context) ([]tag.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tag.Tag(nil), r.tags...), nil
}

func (r *memTagRepo) GetByID(ctx context.Context, id uuid.UUID) (tag.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tags {
		if t.ID() == id {
			return t, nil
		}
	}
	return tag.Tag{}, tag.ErrNotFound
}

func (r *memTagRepo) Create(ctx context.Context, t tag.Tag) (tag.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	r.tags = append(r.tags, t)
	return t, nil
}

type memDistrictRepo struct {
	districts []district.District
}

func (r *memDistrictRepo) GetAll(ctx context.Context) ([]district.District, error) {
	return r.districts, nil
}

type memEstateRepo struct {
	estates map[uuid.UUID]estate.Estate
}

func (r *memEstateRepo) GetByID(ctx context.Context, id uuid.UUID) (estate.Estate, error) {
	e, ok := r.estates[id]
	if !ok {
		return estate.Estate{}, estate.ErrNotFound
	}
	return e, nil
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]task.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: map[uuid.UUID]task.Task{}}
}

func (r *memTaskRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID()] = t
	return t, nil
}

func (r *memTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (r *memTaskRepo) GetPaginated(ctx context.Context, params *task.FindParams) ([]task.Task, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []task.Task
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (r *memTaskRepo) MarkImportedToLive(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return task.ErrNotFound
	}
	r.tasks[id] = task.Hydrate(
		t.ID(), t.TenantID(), t.Type(), t.State(), t.CreatorID(), t.Trial(),
		t.Params(), t.Result(), true, t.CreatedAt(), t.RunAt(), t.FinishedAt(), t.RunnerID(),
	)
	return nil
}
