// Command genctl submits one image generation to Replicate and waits for the
// result, polling with exponential backoff.
//
//	genctl -image ./ref.jpg -prompt "oil painting" -model sdxl
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kiranshivaraju/pixelrelay/internal/config"
	"github.com/kiranshivaraju/pixelrelay/internal/datauri"
	"github.com/kiranshivaraju/pixelrelay/internal/generation"
	"github.com/kiranshivaraju/pixelrelay/internal/ingest"
	"github.com/kiranshivaraju/pixelrelay/internal/replicate"
	"github.com/kiranshivaraju/pixelrelay/pkg/models"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "genctl: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	image  string
	prompt string
	model  string

	strength float64
	steps    int
	seed     int64
	negative string
	format   string

	attempts int
	interval time.Duration
	noWait   bool
}

func parseFlags(args []string) (options, error) {
	var o options
	set := flag.NewFlagSet("genctl", flag.ContinueOnError)
	set.StringVar(&o.image, "image", "", "reference image: local file path or http(s) URL on the fetch allow-list")
	set.StringVar(&o.prompt, "prompt", "", "generation prompt")
	set.StringVar(&o.model, "model", string(generation.DefaultModel), "model key")
	set.Float64Var(&o.strength, "strength", -1, "prompt strength (diffusion models)")
	set.IntVar(&o.steps, "steps", 0, "inference steps (diffusion models)")
	set.Int64Var(&o.seed, "seed", -1, "seed (diffusion models)")
	set.StringVar(&o.negative, "negative", "", "negative prompt (diffusion models)")
	set.StringVar(&o.format, "format", "", "output format: jpg, png or webp")
	set.IntVar(&o.attempts, "attempts", generation.DefaultWaitOptions().MaxAttempts, "maximum status polls")
	set.DurationVar(&o.interval, "interval", generation.DefaultWaitOptions().InitialInterval, "first poll interval")
	set.BoolVar(&o.noWait, "no-wait", false, "print the prediction id and exit")
	if err := set.Parse(args); err != nil {
		return o, err
	}

	if strings.TrimSpace(o.image) == "" || strings.TrimSpace(o.prompt) == "" {
		return o, errors.New("-image and -prompt are required")
	}
	if o.attempts < 1 {
		return o, fmt.Errorf("-attempts must be at least 1, got %d", o.attempts)
	}
	return o, nil
}

func (o options) request(image string) generation.Request {
	r := generation.Request{
		Prompt: o.prompt,
		Image:  image,
		Model:  generation.ParseModelKey(o.model),
	}
	if o.strength >= 0 {
		r.PromptStrength = generation.Num(o.strength)
	}
	if o.steps > 0 {
		r.Steps = generation.Num(float64(o.steps))
	}
	if o.seed >= 0 {
		r.Seed = generation.Num(float64(o.seed))
	}
	r.NegativePrompt = generation.Str(o.negative)
	r.OutputFormat = generation.Str(o.format)
	return r
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	image, err := loadImage(ctx, cfg.Fetch, opts.image)
	if err != nil {
		return err
	}

	client := replicate.NewHTTPClient(cfg.Replicate.BaseURL, cfg.Replicate.APIToken,
		&http.Client{Timeout: cfg.Replicate.Timeout})
	svc := generation.NewService(client)

	sub, err := svc.Submit(ctx, opts.request(image))
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if sub.ImageURL != "" || opts.noWait {
		return writeJSON(stdout, sub)
	}

	wait := generation.DefaultWaitOptions()
	wait.MaxAttempts = opts.attempts
	wait.InitialInterval = opts.interval

	st, err := svc.Wait(ctx, sub.PredictionID, wait)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", sub.PredictionID, err)
	}
	if err := writeJSON(stdout, st); err != nil {
		return err
	}
	if st.State == models.JobStateFailed {
		return fmt.Errorf("prediction %s %s: %s", sub.PredictionID, st.Label, st.Error)
	}
	return nil
}

// loadImage returns src as a data URI. URLs go through the allow-listed
// fetcher; anything else is read from disk.
func loadImage(ctx context.Context, cfg config.FetchConfig, src string) (string, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		dataURL, err := ingest.NewFetcher(cfg, &http.Client{Timeout: cfg.Timeout}).Fetch(ctx, src)
		if err != nil {
			return "", fmt.Errorf("fetch image: %w", err)
		}
		return dataURL, nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return datauri.Encode(http.DetectContentType(data), data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
