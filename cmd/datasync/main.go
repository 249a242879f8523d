// Command datasync maps the columns of a CSV file onto the fields of a
// target dataset and writes the result as a control file.
//
// It loads a job file, reads the CSV and the dataset schema concurrently,
// proposes a mapping (or restores a saved one), prints it, writes the control
// file and, with -serve, keeps an HTTP API open for further edits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datasync/internal/config"
	"datasync/internal/metrics"
	"datasync/internal/metrics/datadog"
	"datasync/internal/metrics/prompush"

	// register every schema provider; the job file picks one.
	_ "datasync/internal/schema/all"
)

func main() {
	var (
		cfgPath           string
		csvPath           string
		outPath           string
		addr              string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
		serve             bool
	)

	flag.StringVar(&cfgPath, "config", "datasync.json", "job config path (JSON or YAML)")
	flag.StringVar(&csvPath, "csv", "", "CSV file to map (overrides source in the config)")
	flag.StringVar(&outPath, "out", "", "control file output path (overrides control_file.path)")
	flag.StringVar(&addr, "addr", "", "HTTP API listen address (overrides server.addr)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend (pushgateway, datadog, none); env METRICS_BACKEND")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL; env PUSHGATEWAY_URL")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&serve, "serve", false, "serve the HTTP API after the initial mapping")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	job, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	job.ApplyEnv(os.Getenv)
	if csvPath != "" {
		job.Source.Kind = "file"
		job.Source.File.Path = csvPath
	}
	if metricsBackendFlg != "" {
		job.Metrics.Backend = metricsBackendFlg
	}
	if pushGatewayURLFlg != "" {
		job.Metrics.PushgatewayURL = pushGatewayURLFlg
	}
	if addr != "" {
		job.Server.Addr = addr
	}

	issues := config.ValidateJob(job)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	flush := setupMetrics(job, *verbose)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	start := time.Now()

	if *verbose {
		log.Printf("job: name=%s source=%s parser=%s schema=%s", job.Job, job.Source.Kind, job.Parser.Kind, job.Schema.Kind)
	}

	err = run(ctx, job, runOptions{
		outPath: outPath,
		serve:   serve,
		verbose: *verbose,
		out:     os.Stdout,
	})
	if err != nil {
		flush()
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// setupMetrics installs the configured backend and returns its flush
// function. An unusable backend is logged and metrics stay disabled.
func setupMetrics(job config.Job, verbose bool) func() {
	jobName := job.Job
	if jobName == "" {
		jobName = "datasync"
	}
	nop := func() {}

	switch job.Metrics.Backend {
	case "pushgateway":
		gwURL := job.Metrics.PushgatewayURL
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: url=%v, backend=pushgateway, job_name=%v", gwURL, jobName)
		metrics.SetBackend(b)

	case "datadog":
		ddAddr := job.Metrics.DatadogAddr
		if ddAddr == "" {
			ddAddr = "localhost:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       ddAddr,
			GlobalTags: []string{"job:" + jobName},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: addr=%v, backend=datadog, job_name=%v", ddAddr, jobName)
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
			_ = b.Close()
		}

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", job.Metrics.Backend)
		}
		return nop

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", job.Metrics.Backend)
		return nop
	}

	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
