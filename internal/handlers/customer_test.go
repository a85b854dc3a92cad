package handlers

import (
	"bytes"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mockupstudio/internal/drafts"
	"mockupstudio/internal/hydrate"
)

func TestCustomerTemplate(t *testing.T) {
	env := newTestEnv(t)
	published := env.seedTemplate(t, true)
	draft := env.seedTemplate(t, false)

	rr := httptest.NewRecorder()
	env.CustomerHandler.Template(rr, withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", published.ID.String()))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var got customerTemplate
	decodeBody(t, rr, &got)
	if got.ID != published.ID || got.Version != 1 || len(got.FabricJSONState) == 0 {
		t.Errorf("template: got %+v", got)
	}
	if len(got.Slots.Frame) != 1 || len(got.Slots.Text) != 1 || len(got.Slots.Color) != 1 {
		t.Errorf("slots: got %+v", got.Slots)
	}

	rr = httptest.NewRecorder()
	env.CustomerHandler.Template(rr, withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", draft.ID.String()))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unpublished template: got %d, want 404", rr.Code)
	}
}

func render(t *testing.T, env *testEnv, id string, body any) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	env.CustomerHandler.Render(rr, withChiURLParam(jsonRequest(t, http.MethodPost, "/", body), "id", id))
	return rr
}

func TestCustomerRender(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, true)

	rr := render(t, env, tmpl.ID.String(), renderRequest{Values: hydrate.Values{
		Text:  map[string]string{"Name": "Ana"},
		Image: map[string]string{"Foto 1": "https://cdn.test/a.png"},
		Color: map[string]string{"Accent": "#00ff00"},
	}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: got %q", ct)
	}
	if v := rr.Header().Get("X-Template-Version"); v != "1" {
		t.Errorf("version header: got %q", v)
	}
	if len(rr.Header().Values("X-Render-Warning")) != 0 {
		t.Errorf("unexpected warnings: %v", rr.Header().Values("X-Render-Warning"))
	}

	img, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("size: got %v", b)
	}
	if r, g, b, _ := img.At(25, 25).RGBA(); r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("frame pixel: got %d,%d,%d, want the red photo", r>>8, g>>8, b>>8)
	}

	// The stored template is untouched by the customer's values.
	stored, _ := env.Templates.FindByID(tmpl.ID)
	if strings.Contains(string(stored.FabricJSONState), "#00ff00") {
		t.Error("customer color leaked into the template")
	}
}

func TestCustomerRenderHighQuality(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, true)

	rr := render(t, env, tmpl.ID.String(), map[string]any{"quality": "high", "format": "jpeg"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type: got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, "-print.jpg") {
		t.Errorf("content disposition: got %q", cd)
	}
}

func TestCustomerRenderSoftFailures(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, true)

	rr := render(t, env, tmpl.ID.String(), renderRequest{Values: hydrate.Values{
		Image: map[string]string{"Foto 1": "https://cdn.test/broken.png"},
		Text:  map[string]string{"Gone": "x"},
	}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if n := len(rr.Header().Values("X-Render-Warning")); n != 2 {
		t.Errorf("warnings: got %d, want 2", n)
	}
}

func TestCustomerRenderErrors(t *testing.T) {
	env := newTestEnv(t)
	published := env.seedTemplate(t, true)
	unpublished := env.seedTemplate(t, false)

	tests := []struct {
		name string
		id   string
		body any
		want int
	}{
		{"bad id", "nope", map[string]any{}, http.StatusBadRequest},
		{"unpublished", unpublished.ID.String(), map[string]any{}, http.StatusNotFound},
		{"bad color", published.ID.String(), map[string]any{"colorValues": map[string]string{"Accent": "reddish"}}, http.StatusBadRequest},
		{"embedded photo", published.ID.String(), map[string]any{"imageValues": map[string]string{"Foto 1": "data:image/png;base64,AAAA"}}, http.StatusBadRequest},
		{"bad quality", published.ID.String(), map[string]any{"quality": "ultra"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := render(t, env, tt.id, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func draftCall(t *testing.T, h http.HandlerFunc, method, owner, templateID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = jsonRequest(t, method, "/", body)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	rr := httptest.NewRecorder()
	h(rr, withCustomer(withChiURLParam(req, "templateID", templateID), owner))
	return rr
}

func TestCustomerDrafts(t *testing.T) {
	env := newTestEnv(t)
	h := env.CustomerHandler
	tid := env.seedTemplate(t, true).ID.String()

	rr := draftCall(t, h.PutDraft, http.MethodPut, "cust-a", tid, draftRequest{
		TextValues:  map[string]string{"Name": "Ana"},
		ImageValues: map[string]string{"Foto 1": "https://cdn.test/a.png"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("put: got %d, body %s", rr.Code, rr.Body.String())
	}
	var saved drafts.Draft
	decodeBody(t, rr, &saved)
	if saved.TemplateID != tid || saved.Timestamp.IsZero() {
		t.Errorf("saved draft: got %+v", saved)
	}

	rr = draftCall(t, h.GetDraft, http.MethodGet, "cust-a", tid, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got %d", rr.Code)
	}
	var got drafts.Draft
	decodeBody(t, rr, &got)
	if got.TextValues["Name"] != "Ana" || got.ImageValues["Foto 1"] != "https://cdn.test/a.png" {
		t.Errorf("draft: got %+v", got)
	}

	if rr := draftCall(t, h.GetDraft, http.MethodGet, "cust-b", tid, nil); rr.Code != http.StatusNotFound {
		t.Errorf("other customer: got %d, want 404", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Usage(rr, withCustomer(httptest.NewRequest(http.MethodGet, "/", nil), "cust-a"))
	var usage map[string]int64
	decodeBody(t, rr, &usage)
	if usage["usedBytes"] <= 0 || usage["quotaBytes"] != drafts.DefaultPolicy.Quota {
		t.Errorf("usage: got %v", usage)
	}

	if rr := draftCall(t, h.DeleteDraft, http.MethodDelete, "cust-a", tid, nil); rr.Code != http.StatusNoContent {
		t.Errorf("delete: got %d", rr.Code)
	}
	if rr := draftCall(t, h.GetDraft, http.MethodGet, "cust-a", tid, nil); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d", rr.Code)
	}
}

func TestCustomerDraftRejectsEmbeddedImages(t *testing.T) {
	env := newTestEnv(t)
	tid := env.seedTemplate(t, true).ID.String()

	rr := draftCall(t, env.CustomerHandler.PutDraft, http.MethodPut, "cust", tid, draftRequest{
		ImageValues: map[string]string{"Foto 1": "data:image/jpeg;base64,/9j/"},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestCustomerDraftQuotaIsRecoverable(t *testing.T) {
	env := newTestEnv(t)
	h := NewCustomer(env.Engine, drafts.NewStore(drafts.NewMemoryBackend(), drafts.Policy{Quota: 300}))
	tid := env.seedTemplate(t, true).ID.String()

	rr := draftCall(t, h.PutDraft, http.MethodPut, "cust", tid, draftRequest{
		TextValues: map[string]string{"Name": strings.Repeat("a", 500)},
	})
	if rr.Code != http.StatusInsufficientStorage {
		t.Fatalf("status: got %d, want 507", rr.Code)
	}
	var body errorResponse
	decodeBody(t, rr, &body)
	if !body.Recoverable || body.Error == "" {
		t.Errorf("body: got %+v", body)
	}
}
