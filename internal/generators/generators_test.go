package generators_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"shotdeck/internal/config"
	"shotdeck/internal/generators"
	"shotdeck/internal/media"
	"shotdeck/internal/services"
	"shotdeck/internal/services/fal"
	"shotdeck/internal/stage"
	"shotdeck/internal/store"
	"shotdeck/internal/testsupport"
)

// fakeFal completes every request on the first status poll and answers with
// the canned output registered for the model.
type fakeFal struct {
	t       *testing.T
	mu      sync.Mutex
	url     string
	inputs  map[string]map[string]any
	keys    []string
	outputs map[string]any
	models  map[string]string
}

func newFakeFal(t *testing.T, outputs map[string]any) *fakeFal {
	f := &fakeFal{t: t, inputs: map[string]map[string]any{}, outputs: outputs, models: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{model...}", func(w http.ResponseWriter, r *http.Request) {
		model := r.PathValue("model")
		var input map[string]any
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Errorf("decode input: %v", err)
		}
		f.mu.Lock()
		f.inputs[model] = input
		f.keys = append(f.keys, strings.TrimPrefix(r.Header.Get("Authorization"), "Key "))
		id := "req-" + strings.ReplaceAll(model, "/", "-")
		f.models[id] = model
		f.mu.Unlock()
		writeJSON(t, w, map[string]any{
			"request_id":   id,
			"status_url":   f.url + "/q/" + id + "/status",
			"response_url": f.url + "/q/" + id,
			"cancel_url":   f.url + "/q/" + id + "/cancel",
		})
	})
	mux.HandleFunc("GET /q/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"status": fal.StateCompleted})
	})
	mux.HandleFunc("GET /q/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		model := f.models[r.PathValue("id")]
		f.mu.Unlock()
		writeJSON(t, w, f.outputs[model])
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	f.url = server.URL
	return f
}

func (f *fakeFal) input(model string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[model]
}

func writeJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

type harness struct {
	cfg      *config.Config
	store    *store.Store
	media    *media.Store
	handlers map[string]stage.Handler
}

func newHarness(t *testing.T, fake *fakeFal, opts ...testsupport.ConfigOption) harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithFalServer(fake.url)}, opts...)...)
	st := testsupport.MustOpenStore(t, cfg)
	mediaStore := media.NewStore(cfg, nil)
	client := fal.NewClient(fal.ConfigFromApp(cfg), fal.WithRetryMaxAttempts(1))
	return harness{
		cfg:      cfg,
		store:    st,
		media:    mediaStore,
		handlers: generators.Handlers(generators.DepsFromConfig(cfg, st, client, mediaStore, nil)),
	}
}

func TestImageGenerationUsesProjectAspectAndUserKey(t *testing.T) {
	cfg := config.Default()
	fake := newFakeFal(t, map[string]any{
		cfg.Fal.ImageModel: map[string]any{
			"images": []any{
				map[string]any{"url": "https://cdn.example/a.png", "width": 768, "height": 1344},
				map[string]any{"url": "https://cdn.example/b.png"},
			},
			"seed": 7,
		},
	})
	h := newHarness(t, fake)
	ctx := context.Background()

	project := &store.Project{Name: "Tall", UserID: "alice", AspectRatio: "9:16"}
	if err := h.store.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := h.store.SetAPIKey(ctx, "alice", store.ProviderFal, "alice-key"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	task := testsupport.NewTask(t, h.store, project.ID, store.TaskTypeImageGeneration,
		store.JSONObject{"prompt": "a lighthouse", "numImages": float64(2), "seed": float64(7), "negativePrompt": "blur"})

	result, err := h.handlers[store.TaskTypeImageGeneration].Execute(ctx, task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Generations) != 2 || result.OutputLocation != "https://cdn.example/a.png" {
		t.Fatalf("unexpected result %+v", result)
	}
	first := result.Generations[0]
	if first.Type != store.GenerationImage || first.Params.String("prompt") != "a lighthouse" || first.Params["width"] != 768 {
		t.Fatalf("unexpected generation %+v", first)
	}
	input := fake.input(cfg.Fal.ImageModel)
	if input["image_size"] != "portrait_16_9" || input["num_images"] != float64(2) || input["negative_prompt"] != "blur" {
		t.Fatalf("unexpected provider input %v", input)
	}
	if len(fake.keys) != 1 || fake.keys[0] != "alice-key" {
		t.Fatalf("expected the owner's key, got %v", fake.keys)
	}
}

func TestImageGenerationMirrorsOutputs(t *testing.T) {
	cdn := testsupport.NewMediaServer(t, "image/png", testsupport.PNGBytes(64))
	cfg := config.Default()
	fake := newFakeFal(t, map[string]any{
		cfg.Fal.ImageModel: map[string]any{"images": []any{map[string]any{"url": cdn.URL + "/out.png"}}},
	})
	h := newHarness(t, fake, testsupport.WithMirroredMedia())
	ctx := context.Background()

	project := testsupport.NewProject(t, h.store, "alice", "Mirror")
	task := testsupport.NewTask(t, h.store, project.ID, store.TaskTypeImageGeneration, store.JSONObject{"prompt": "p"})
	result, err := h.handlers[store.TaskTypeImageGeneration].Execute(ctx, task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	gen := result.Generations[0]
	path, ok := h.media.Resolve(gen.Location)
	if !ok {
		t.Fatalf("expected a local location, got %q", gen.Location)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("mirrored file missing: %v", err)
	}
	if gen.Params.String("sourceUrl") != cdn.URL+"/out.png" || gen.Params.String("sha256") == "" {
		t.Fatalf("unexpected params %v", gen.Params)
	}
	if fake.keys[0] != "test-fal" {
		t.Fatalf("expected configured key without a user key, got %v", fake.keys)
	}
}

func TestImageGenerationRemovesMirrorsWhenBatchFails(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(testsupport.PNGBytes(64))
	}))
	t.Cleanup(cdn.Close)
	cfg := config.Default()
	fake := newFakeFal(t, map[string]any{
		cfg.Fal.ImageModel: map[string]any{"images": []any{
			map[string]any{"url": cdn.URL + "/ok.png"},
			map[string]any{"url": cdn.URL + "/gone.png"},
		}},
	})
	h := newHarness(t, fake, testsupport.WithMirroredMedia())
	ctx := context.Background()

	project := testsupport.NewProject(t, h.store, "alice", "Partial")
	task := testsupport.NewTask(t, h.store, project.ID, store.TaskTypeImageGeneration,
		store.JSONObject{"prompt": "p", "numImages": float64(2)})
	if _, err := h.handlers[store.TaskTypeImageGeneration].Execute(ctx, task); err == nil {
		t.Fatal("expected mirror failure")
	}

	entries, err := os.ReadDir(filepath.Join(h.cfg.Paths.MediaDir, project.ID))
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("mirrored files left behind: %v", entries)
	}
}

func TestVideoGenerationInlinesLocalStartFrame(t *testing.T) {
	cfg := config.Default()
	fake := newFakeFal(t, map[string]any{
		cfg.Fal.VideoModel: map[string]any{"video": map[string]any{"url": "https://cdn.example/clip.mp4"}},
	})
	h := newHarness(t, fake)
	ctx := context.Background()

	project := testsupport.NewProject(t, h.store, "alice", "Video")
	src := filepath.Join(t.TempDir(), "start.png")
	if err := os.WriteFile(src, testsupport.PNGBytes(32), 0o644); err != nil {
		t.Fatalf("write start frame: %v", err)
	}
	obj, err := h.media.Import(project.ID, src)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	start := testsupport.NewGeneration(t, h.store, project.ID, obj.Location)

	task := testsupport.NewTask(t, h.store, project.ID, store.TaskTypeVideoGeneration, store.JSONObject{
		"prompt":          "waves roll in",
		"generationIds":   []any{start.ID},
		"durationSeconds": float64(10),
	})
	result, err := h.handlers[store.TaskTypeVideoGeneration].Execute(ctx, task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Generations) != 1 || result.Generations[0].Type != store.GenerationVideo {
		t.Fatalf("unexpected result %+v", result)
	}
	input := fake.input(cfg.Fal.VideoModel)
	imageURL, _ := input["image_url"].(string)
	if !strings.HasPrefix(imageURL, "data:image/png;base64,") {
		t.Fatalf("expected inlined start frame, got %.40q", imageURL)
	}
	if input["duration"] != "10" || input["aspect_ratio"] != store.DefaultAspectRatio {
		t.Fatalf("unexpected provider input %v", input)
	}
}

func TestUpscaleRejectsForeignGeneration(t *testing.T) {
	fake := newFakeFal(t, map[string]any{})
	h := newHarness(t, fake)
	ctx := context.Background()

	mine := testsupport.NewProject(t, h.store, "alice", "Mine")
	theirs := testsupport.NewProject(t, h.store, "alice", "Theirs")
	foreign := testsupport.NewGeneration(t, h.store, theirs.ID, "https://cdn.example/x.png")

	task := testsupport.NewTask(t, h.store, mine.ID, store.TaskTypeImageUpscale, store.JSONObject{"generationId": foreign.ID})
	if _, err := h.handlers[store.TaskTypeImageUpscale].Execute(ctx, task); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fake.keys) != 0 {
		t.Fatal("provider must not be called for invalid input")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name     string
		taskType string
		params   store.JSONObject
		ok       bool
	}{
		{"image ok", store.TaskTypeImageGeneration, store.JSONObject{"prompt": "p"}, true},
		{"image missing prompt", store.TaskTypeImageGeneration, store.JSONObject{}, false},
		{"image too many", store.TaskTypeImageGeneration, store.JSONObject{"prompt": "p", "numImages": float64(5)}, false},
		{"video ok", store.TaskTypeVideoGeneration, store.JSONObject{"prompt": "p", "imageUrls": []any{"https://a"}}, true},
		{"video no frame", store.TaskTypeVideoGeneration, store.JSONObject{"prompt": "p"}, false},
		{"video bad duration", store.TaskTypeVideoGeneration, store.JSONObject{"prompt": "p", "imageUrls": "https://a", "durationSeconds": float64(7)}, false},
		{"upscale ok", store.TaskTypeImageUpscale, store.JSONObject{"imageUrl": "https://a", "scale": "4"}, true},
		{"upscale no source", store.TaskTypeImageUpscale, store.JSONObject{"scale": float64(2)}, false},
		{"upscale bad scale", store.TaskTypeImageUpscale, store.JSONObject{"imageUrl": "https://a", "scale": float64(3)}, false},
		{"unknown type", "audio_generation", store.JSONObject{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := generators.Validate(tc.taskType, tc.params)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
