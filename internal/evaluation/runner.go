package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// LoadGoldenSet reads a JSON array of cases.
func LoadGoldenSet(fs afero.Fs, file string) ([]Case, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("read golden set: %w", err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse golden set: %w", err)
	}
	return cases, nil
}

// Runner posts golden images to the search API and ranks the expected product.
type Runner struct {
	fs       afero.Fs
	baseDir  string
	endpoint string
	client   *http.Client
	workers  int
	logger   *zap.Logger
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Endpoint is the full search URL, e.g. http://localhost:3000/api/search/image.
	Endpoint string
	// BaseDir resolves relative image paths.
	BaseDir string
	Workers int
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(fs afero.Fs, cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Runner{
		fs:       fs,
		baseDir:  cfg.BaseDir,
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		workers:  cfg.Workers,
		logger:   cfg.Logger,
	}
}

// Run executes every case concurrently. Outcomes keep the golden-set order.
func (r *Runner) Run(ctx context.Context, cases []Case) ([]Outcome, error) {
	pool, err := ants.NewPool(r.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	outcomes := make([]Outcome, len(cases))
	var wg sync.WaitGroup
	for i, c := range cases {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = r.runCase(ctx, c)
		}); err != nil {
			wg.Done()
			outcomes[i] = Outcome{Case: c, Err: fmt.Errorf("submit: %w", err)}
		}
	}
	wg.Wait()
	return outcomes, nil
}

func (r *Runner) runCase(ctx context.Context, c Case) Outcome {
	out := Outcome{Case: c}
	log := r.logger.With(zap.String("case", c.ID))

	imgPath := c.ImagePath
	if !filepath.IsAbs(imgPath) && r.baseDir != "" {
		imgPath = filepath.Join(r.baseDir, imgPath)
	}
	image, err := afero.ReadFile(r.fs, imgPath)
	if err != nil {
		log.Warn("image missing, skipping", zap.String("path", imgPath))
		out.Skipped = true
		return out
	}

	start := time.Now()
	results, err := r.search(ctx, image, path.Base(filepath.ToSlash(c.ImagePath)), c.Prompt)
	out.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		log.Warn("search failed", zap.Error(err))
		out.Err = err
		return out
	}

	out.Rank = RankOf(c.ID, results)
	log.Info("case evaluated", zap.Int("rank", out.Rank), zap.Int64("duration_ms", out.DurationMs))
	return out
}

// Result is the subset of a search result needed to match the expected product.
type Result struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// RankOf returns the 1-based position of the expected product, matched by id or by the id read
// as a lowercase title fragment with underscores as spaces. 0 means not found.
func RankOf(expectedID string, results []Result) int {
	fragment := strings.ToLower(strings.ReplaceAll(expectedID, "_", " "))
	for i, res := range results {
		if res.ID == expectedID || strings.Contains(strings.ToLower(res.Title), fragment) {
			return i + 1
		}
	}
	return 0
}

type searchResponse struct {
	Data *struct {
		Results []Result `json:"results"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r *Runner) search(ctx context.Context, image []byte, filename, prompt string) ([]Result, error) {
	body, contentType, err := buildForm(image, filename, prompt)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post search: %w", err)
	}
	defer resp.Body.Close()

	var sr searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&sr); err != nil {
		return nil, fmt.Errorf("api error %d: undecodable body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || sr.Error != nil {
		if sr.Error != nil {
			return nil, fmt.Errorf("api error %d: %s: %s", resp.StatusCode, sr.Error.Code, sr.Error.Message)
		}
		return nil, fmt.Errorf("api error %d", resp.StatusCode)
	}
	if sr.Data == nil {
		return nil, nil
	}
	return sr.Data.Results, nil
}

func buildForm(image []byte, filename, prompt string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", http.DetectContentType(image))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}
	if prompt != "" {
		if err := mw.WriteField("prompt", prompt); err != nil {
			return nil, "", fmt.Errorf("write prompt: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
