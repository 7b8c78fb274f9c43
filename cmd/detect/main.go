package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"tomato-demo/internal/config"
	"tomato-demo/internal/domain/entities"
	domainservices "tomato-demo/internal/domain/services"
	"tomato-demo/internal/infrastructure/external"
	infraservices "tomato-demo/internal/infrastructure/services"
	"tomato-demo/internal/logger"
)

type cliOptions struct {
	baseURL   string
	chartPath string
	asJSON    bool
	timeout   time.Duration
	logLevel  string
	imagePath string
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "detect: %v\n", err)
		os.Exit(2)
	}
	logger.InitWithWriter(os.Stderr, "tomato-detect", opts.logLevel)

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, domainservices.UserMessage(err))
		log.Debug().Err(err).Msg("detection failed")
		os.Exit(1)
	}
}

func parseFlags(args []string) (cliOptions, error) {
	env, err := config.Load(viper.New())
	if err != nil {
		return cliOptions{}, err
	}

	var opts cliOptions
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.StringVar(&opts.baseURL, "url", env.PredictBaseURL, "Base URL of the prediction service")
	fs.StringVar(&opts.chartPath, "chart", "", "Write the probability pie chart PNG to this path")
	fs.BoolVar(&opts.asJSON, "json", false, "Print the formatted result as JSON")
	fs.DurationVar(&opts.timeout, "timeout", env.PredictTimeout, "Request timeout")
	fs.StringVar(&opts.logLevel, "log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options] IMAGE\n\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errors.New("exactly one image path is required")
	}
	opts.imagePath = strings.TrimSpace(fs.Arg(0))
	opts.baseURL = strings.TrimSpace(opts.baseURL)
	opts.chartPath = strings.TrimSpace(opts.chartPath)
	return opts, nil
}

func run(ctx context.Context, opts cliOptions, out io.Writer) error {
	data, err := os.ReadFile(opts.imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	pool := infraservices.NewHTTPClientPool(infraservices.HTTPClientConfig{Timeout: opts.timeout})
	defer pool.Close()

	client, err := external.NewPredictionClient(opts.baseURL, pool)
	if err != nil {
		return err
	}

	controller := domainservices.NewViewController(client, external.NewPreviewGenerator(external.DefaultPreviewMaxEdge),
		domainservices.WithObserver(func(s domainservices.Snapshot) {
			log.Debug().Uint64("version", s.Version).Str("phase", s.Phase.String()).Msg("state changed")
		}),
	)

	input := domainservices.FileInput{
		Name:     filepath.Base(opts.imagePath),
		MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(opts.imagePath))),
		Data:     data,
	}
	if _, err := controller.SelectFile(ctx, input); err != nil {
		return err
	}

	done, started := controller.Detect(ctx)
	if !started {
		return errors.New("detection could not be started")
	}
	<-done
	controller.Wait()

	snap := controller.Snapshot()
	if snap.Phase != entities.PhaseSuccess {
		return domainservices.NewServerReportedError(0, snap.Error)
	}

	view := domainservices.FormatResult(snap.Result)
	if opts.chartPath != "" {
		if err := writeChart(opts.chartPath, view.Chart); err != nil {
			return err
		}
	}

	if opts.asJSON {
		return printJSON(out, view)
	}
	printText(out, view)
	return nil
}

func writeChart(path string, data []domainservices.ChartDatum) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	if err := infraservices.NewChartRenderer(0, 0).RenderPNG(f, data); err != nil {
		return err
	}
	return f.Close()
}

func printText(out io.Writer, view domainservices.ResultView) {
	fmt.Fprintf(out, "Diagnosis:   %s (%s)\n", view.Primary.Name, view.Primary.ConfidenceText)
	fmt.Fprintf(out, "Description: %s\n", view.Primary.Description)
	fmt.Fprintf(out, "Treatment:   %s\n\n", view.Primary.Treatment)
	for _, entry := range view.Ranked {
		fmt.Fprintln(out, entry.String())
	}
}

func printJSON(out io.Writer, view domainservices.ResultView) error {
	type ranked struct {
		Rank       int    `json:"rank"`
		Label      string `json:"label"`
		Confidence string `json:"confidence"`
	}
	body := struct {
		ClassName   string   `json:"className"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Treatment   string   `json:"treatment"`
		Confidence  string   `json:"confidence"`
		Ranked      []ranked `json:"ranked"`
	}{
		ClassName:   view.Primary.ClassName,
		Name:        view.Primary.Name,
		Description: view.Primary.Description,
		Treatment:   view.Primary.Treatment,
		Confidence:  view.Primary.ConfidenceText,
	}
	for _, e := range view.Ranked {
		body.Ranked = append(body.Ranked, ranked{Rank: e.Rank, Label: e.Label, Confidence: e.ConfidenceText})
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}
