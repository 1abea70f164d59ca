// Package memory is an in-process implementation of the repository contracts.
// A single mutex serializes every write, which gives the same per-document
// atomicity the Postgres row locks provide.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"edms/internal/model"
	"edms/internal/repository"
)

// Store holds documents, versions and users for one process.
type Store struct {
	mu        sync.Mutex
	docs      map[string]*model.Document
	versions  map[int64]*model.DocumentVersion
	users     map[string]model.User
	nextVerID int64
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		docs:     make(map[string]*model.Document),
		versions: make(map[int64]*model.DocumentVersion),
		users:    make(map[string]model.User),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PutUser provisions a user. Users are otherwise read-only.
func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
}

func (s *Store) Documents() *Documents { return &Documents{s: s} }
func (s *Store) Versions() *Versions   { return &Versions{s: s} }
func (s *Store) Users() *Users         { return &Users{s: s} }

// Documents implements repository.DocumentRepository.
type Documents struct{ s *Store }

// Versions implements repository.VersionRepository.
type Versions struct{ s *Store }

// Users implements repository.UserRepository.
type Users struct{ s *Store }

var (
	_ repository.DocumentRepository = (*Documents)(nil)
	_ repository.VersionRepository  = (*Versions)(nil)
	_ repository.UserRepository     = (*Users)(nil)
)

func (r *Documents) Create(ctx context.Context, doc *model.Document, first *model.DocumentVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	for _, id := range []string{doc.CreatedBy.ID, doc.AssignedTo.ID, doc.ReviewerID(), first.CreatedBy.ID} {
		if _, ok := s.users[id]; id != "" && !ok {
			return repository.ErrInvalidReference
		}
	}

	now := s.now()
	doc.LastVersionNumber = 1
	doc.CreatedAt, doc.UpdatedAt = now, now
	s.nextVerID++
	first.ID = s.nextVerID
	first.DocumentID = doc.ID
	first.VersionNumber = 1
	first.CreatedAt = now

	s.docs[doc.ID] = cloneDocument(doc)
	v := *first
	s.versions[v.ID] = &v
	return nil
}

func (r *Documents) FindByID(ctx context.Context, id string) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.resolve(d), nil
}

func (r *Documents) List(ctx context.Context, f repository.ListFilter) (*repository.PageResult[model.Document], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if f.OwnerID != "" && d.CreatedBy.ID != f.OwnerID {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	items := make([]model.Document, 0)
	for i := f.Offset; i < len(all) && (f.Limit <= 0 || len(items) < f.Limit); i++ {
		if i < 0 {
			continue
		}
		items = append(items, *s.resolve(all[i]))
	}
	return &repository.PageResult[model.Document]{Items: items, Total: len(all)}, nil
}

func (r *Documents) Mutate(ctx context.Context, id string, fn func(doc *model.Document) error) (*model.Document, error) {
	doc, _, err := r.Replace(ctx, id, fn, nil)
	return doc, err
}

func (r *Documents) Replace(ctx context.Context, id string, fn func(doc *model.Document) error, next *model.DocumentVersion) (*model.Document, *model.DocumentVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.docs[id]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	work := s.resolve(cur)
	if err := fn(work); err != nil {
		return nil, nil, err
	}
	required := []string{work.AssignedTo.ID}
	if next != nil {
		required = append(required, next.CreatedBy.ID)
	}
	if rid := work.ReviewerID(); rid != "" {
		required = append(required, rid)
	}
	for _, uid := range required {
		if _, ok := s.users[uid]; !ok {
			return nil, nil, repository.ErrInvalidReference
		}
	}
	// identity and counters are not writable through fn
	work.ID = cur.ID
	work.CreatedBy = cur.CreatedBy
	work.CreatedAt = cur.CreatedAt
	work.LastVersionNumber = cur.LastVersionNumber
	work.UpdatedAt = s.now()

	stored := cloneDocument(work)
	s.docs[id] = stored
	var added *model.DocumentVersion
	if next != nil {
		added = s.appendVersion(stored, next)
	}
	return s.resolve(stored), added, nil
}

func (r *Documents) Delete(ctx context.Context, id string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return nil, repository.ErrNotFound
	}
	owned := s.versionsOf(id)
	paths := make([]string, 0, len(owned))
	for _, v := range owned {
		paths = append(paths, v.StoragePath)
		delete(s.versions, v.ID)
	}
	delete(s.docs, id)
	return paths, nil
}

func (r *Versions) Add(ctx context.Context, v *model.DocumentVersion, guard func(doc *model.Document) error) (*model.DocumentVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[v.DocumentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if guard != nil {
		if err := guard(s.resolve(d)); err != nil {
			return nil, err
		}
	}
	if _, ok := s.users[v.CreatedBy.ID]; !ok {
		return nil, repository.ErrInvalidReference
	}
	return s.appendVersion(d, v), nil
}

// appendVersion bumps d's counter and stores a copy of v under the new number. Caller holds mu.
func (s *Store) appendVersion(d *model.Document, v *model.DocumentVersion) *model.DocumentVersion {
	now := s.now()
	d.LastVersionNumber++
	d.UpdatedAt = now
	s.nextVerID++

	out := *v
	out.ID = s.nextVerID
	out.DocumentID = d.ID
	out.VersionNumber = d.LastVersionNumber
	out.CreatedAt = now
	out.CreatedBy = s.userRef(out.CreatedBy.ID)
	stored := out
	s.versions[out.ID] = &stored
	return &out
}

func (r *Versions) ListByDocument(ctx context.Context, documentID string) ([]model.DocumentVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.versionsOf(documentID)
	out := make([]model.DocumentVersion, 0, len(owned))
	for _, v := range owned {
		out = append(out, *v)
	}
	return out, nil
}

func (r *Versions) FindByID(ctx context.Context, id int64) (*model.DocumentVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *v
	return &out, nil
}

func (r *Versions) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.versions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.versions, id)
	return nil
}

func (r *Users) FindByID(ctx context.Context, id string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *Users) List(ctx context.Context, excludeID string) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.User, 0, len(s.users))
	for id, u := range s.users {
		if id != excludeID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// versionsOf returns the stored versions of a document by ascending number. Caller holds mu.
func (s *Store) versionsOf(documentID string) []*model.DocumentVersion {
	var out []*model.DocumentVersion
	for _, v := range s.versions {
		if v.DocumentID == documentID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out
}

// resolve returns a copy of d with user emails filled in. Caller holds mu.
func (s *Store) resolve(d *model.Document) *model.Document {
	out := cloneDocument(d)
	out.CreatedBy = s.userRef(out.CreatedBy.ID)
	out.AssignedTo = s.userRef(out.AssignedTo.ID)
	if out.Reviewer != nil {
		ref := s.userRef(out.Reviewer.ID)
		out.Reviewer = &ref
	}
	return out
}

func (s *Store) userRef(id string) model.UserRef {
	if u, ok := s.users[id]; ok {
		return u.Ref()
	}
	return model.UserRef{ID: id}
}

func cloneDocument(d *model.Document) *model.Document {
	out := *d
	out.Tags = slices.Clone(d.Tags)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if d.Reviewer != nil {
		r := *d.Reviewer
		out.Reviewer = &r
	}
	if d.ReviewDate != nil {
		t := *d.ReviewDate
		out.ReviewDate = &t
	}
	return &out
}
