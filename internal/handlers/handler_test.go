// handler_test.go provides shared test infrastructure for handler tests.
// Repositories are in-memory fakes so the HTTP behavior is tested without
// PostgreSQL; the stores themselves are covered in the store package.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mockupstudio/internal/composite"
	"mockupstudio/internal/drafts"
	"mockupstudio/internal/editor"
	"mockupstudio/internal/engine"
	"mockupstudio/internal/middleware"
	"mockupstudio/internal/models"
	"mockupstudio/internal/scene"
	"mockupstudio/internal/store"
)

// fakeTemplates is an in-memory TemplateRepo and RevisionRepo.
type fakeTemplates struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*models.Template
	revisions []*models.TemplateRevision
	failSave  error
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{items: map[uuid.UUID]*models.Template{}}
}

func (f *fakeTemplates) copyOf(t *models.Template) *models.Template {
	c := *t
	c.FabricJSONState = append(json.RawMessage(nil), t.FabricJSONState...)
	c.Tags = append([]string(nil), t.Tags...)
	return &c
}

func (f *fakeTemplates) List(filter store.TemplateFilter) ([]models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Template
	for _, t := range f.items {
		if filter.PublishedOnly && !t.IsPublished {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Tag != "" && !contains(t.Tags, filter.Tag) {
			continue
		}
		out = append(out, *f.copyOf(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f *fakeTemplates) FindByID(id uuid.UUID) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.items[id]; ok {
		return f.copyOf(t), nil
	}
	return nil, nil
}

func (f *fakeTemplates) FindPublished(id uuid.UUID) (*models.Template, error) {
	t, _ := f.FindByID(id)
	if t == nil || !t.IsPublished {
		return nil, nil
	}
	return t, nil
}

func (f *fakeTemplates) Create(t *models.Template) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.copyOf(t)
	c.ID = uuid.New()
	c.Version = 1
	if c.Type == "" {
		c.Type = models.TemplateTypeGeneric
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	f.items[c.ID] = c
	return f.copyOf(c), nil
}

func (f *fakeTemplates) Update(t *models.Template) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.items[t.ID]
	if !ok {
		return nil, nil
	}
	c := f.copyOf(t)
	c.Version = old.Version + 1
	f.items[t.ID] = c
	return f.copyOf(c), nil
}

func (f *fakeTemplates) SaveState(id uuid.UUID, state []byte, width, height float64, publish bool) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return nil, f.failSave
	}
	t, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	t.FabricJSONState = append(json.RawMessage(nil), state...)
	t.Width, t.Height = width, height
	t.IsPublished = t.IsPublished || publish
	t.Version++
	if publish {
		f.revisions = append(f.revisions, &models.TemplateRevision{
			ID: uuid.New(), TemplateID: id, Version: t.Version, Name: t.Name,
			FabricJSONState: t.FabricJSONState, Width: width, Height: height,
		})
	}
	return f.copyOf(t), nil
}

func (f *fakeTemplates) SetPreview(id uuid.UUID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.items[id]; ok {
		t.PreviewImageURL = &url
	}
	return nil
}

func (f *fakeTemplates) Delete(id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[id]
	delete(f.items, id)
	return ok, nil
}

func (f *fakeTemplates) ListByTemplateID(id uuid.UUID) ([]*models.TemplateRevision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TemplateRevision
	for i := len(f.revisions) - 1; i >= 0; i-- {
		if f.revisions[i].TemplateID == id {
			out = append(out, f.revisions[i])
		}
	}
	return out, nil
}

func (f *fakeTemplates) FindByVersion(id uuid.UUID, version int) (*models.TemplateRevision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rev := range f.revisions {
		if rev.TemplateID == id && rev.Version == version {
			return rev, nil
		}
	}
	return nil, nil
}

// fakeObjects records uploads in memory.
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	fail    bool
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (o *fakeObjects) UploadBytes(_ context.Context, key, contentType string, data []byte) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return "", errors.New("storage offline")
	}
	o.objects[key] = data
	o.types[key] = contentType
	return "https://cdn.test/" + key, nil
}

func (o *fakeObjects) PublicBucket() string { return "test-public" }

func (o *fakeObjects) FileURL(key string) string { return "https://cdn.test/" + key }

func (o *fakeObjects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return errors.New("storage offline")
	}
	delete(o.objects, key)
	delete(o.types, key)
	return nil
}

func (o *fakeObjects) keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.objects))
	for k := range o.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fakeMedia records media rows in memory.
type fakeMedia struct {
	mu    sync.Mutex
	items []*models.Media
}

func (m *fakeMedia) Create(item *models.Media) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *item
	c.ID = uuid.New()
	m.items = append(m.items, &c)
	return &c, nil
}

// List returns items newest first, as the store does.
func (m *fakeMedia) List(limit, offset int) ([]models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Media
	for i := len(m.items) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.items[i])
	}
	return out, nil
}

func (m *fakeMedia) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *fakeMedia) Delete(id uuid.UUID) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return item, nil
		}
	}
	return nil, nil
}

// solidLoader serves a 40×40 red image for every URL except ones
// containing "broken".
type solidLoader struct{}

func (solidLoader) Load(_ context.Context, src string) (image.Image, error) {
	if strings.Contains(src, "broken") {
		return nil, errors.New("404")
	}
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:], []byte{255, 0, 0, 255})
	}
	return img, nil
}

// testEnv holds all dependencies for handler tests.
type testEnv struct {
	Templates *fakeTemplates
	Objects   *fakeObjects
	Media     *fakeMedia
	Engine    *engine.Engine
	Drafts    *drafts.Store
	Registry  *editor.Registry

	TemplatesHandler *Templates
	EditorHandler    *Editor
	UploadsHandler   *Uploads
	CustomerHandler  *Customer
	MediaHandler     *Media
}

// newTestEnv creates a complete test environment with all handler
// dependencies.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tmpls := newFakeTemplates()
	objects := newFakeObjects()
	media := &fakeMedia{}
	eng := engine.New(tmpls, composite.NewRenderer(nil, solidLoader{}), solidLoader{}, engine.Options{})
	draftStore := drafts.NewStore(drafts.NewMemoryBackend(), drafts.Policy{})
	registry := editor.NewRegistry(time.Hour, nil)
	t.Cleanup(func() { registry.Shutdown(context.Background()) })

	saver := NewTemplateSaver(tmpls, eng, objects, media)

	return &testEnv{
		Templates: tmpls,
		Objects:   objects,
		Media:     media,
		Engine:    eng,
		Drafts:    draftStore,
		Registry:  registry,

		TemplatesHandler: NewTemplates(tmpls, tmpls, eng),
		EditorHandler:    NewEditor(registry, tmpls, saver, eng, time.Hour),
		UploadsHandler:   NewUploads(objects, media, 5<<20),
		CustomerHandler:  NewCustomer(eng, draftStore),
		MediaHandler:     NewMedia(media, objects),
	}
}

// sampleState builds a 100×100 document with a frame "Foto 1", a color
// slot "Accent" and a text slot "Name" limited to 5 characters.
func sampleState(t *testing.T) json.RawMessage {
	t.Helper()
	doc, err := scene.New("handler test", 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	frame, _ := scene.NewShape("frame", scene.KindRect, 50, 50)
	frame.Name = "Foto 1"
	frame.IsFrame = true
	frame.IsCustomizable = true
	accent, _ := scene.NewShape("accent", scene.KindRect, 50, 50)
	accent.Name = "Accent"
	accent.Left, accent.Top = 50, 50
	accent.Fill = "#000000"
	accent.IsCustomizable = true
	name := scene.NewText("name", "Hello")
	name.Name = "Name"
	name.IsCustomizable = true
	name.Text.MaxChars = 5
	name.Top = 60
	doc.Add(frame)
	doc.Add(accent)
	doc.Add(name)

	state, err := scene.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return state
}

// seedTemplate stores a sample template directly in the fake repo.
func (env *testEnv) seedTemplate(t *testing.T, published bool) *models.Template {
	t.Helper()
	created, err := env.Templates.Create(&models.Template{
		Name:            "Sample",
		Type:            models.TemplateTypeMug,
		FabricJSONState: sampleState(t),
		Width:           100,
		Height:          100,
		Tags:            []string{"sample"},
		IsPublished:     published,
	})
	if err != nil {
		t.Fatal(err)
	}
	return created
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// withCustomer puts a customer id in the request context the way the
// Customer middleware does.
func withCustomer(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.CustomerKey, id))
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeBody decodes a JSON response body into dst.
func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusTeapot, "short and stout")
	if rr.Code != http.StatusTeapot {
		t.Errorf("status: got %d", rr.Code)
	}
	var body errorResponse
	decodeBody(t, rr, &body)
	if body.Error != "short and stout" || body.Recoverable {
		t.Errorf("body: got %+v", body)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantOK   bool
		wantCode int
	}{
		{"valid", `{"templateId":"2f1b8f0e-7a4e-4c4e-9a55-0b4f0b4d7e11"}`, true, http.StatusOK},
		{"empty", ``, false, http.StatusBadRequest},
		{"malformed", `{"templateId":`, false, http.StatusBadRequest},
		{"fails validation", `{"templateId":"nope"}`, false, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			var dst openSessionRequest
			ok := decodeJSON(rr, jsonRequest(t, http.MethodPost, "/", tt.body), &dst)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v (%s)", ok, tt.wantOK, rr.Body.String())
			}
			if rr.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

func TestDecodeJSONTooLarge(t *testing.T) {
	body := `{"id":"` + strings.Repeat("x", maxJSONBody) + `"}`
	rr := httptest.NewRecorder()
	var dst selectRequest
	if decodeJSON(rr, jsonRequest(t, http.MethodPost, "/", body), &dst) {
		t.Fatal("oversized body accepted")
	}
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want 413", rr.Code)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		db   interface{ PingContext(context.Context) error }
		want int
	}{
		{"no database", nil, http.StatusOK},
		{"database up", fakePinger{}, http.StatusOK},
		{"database down", fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Health(tt.db)(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
