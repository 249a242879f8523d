package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"datasync/internal/config"
	"datasync/internal/controlfile"
	"datasync/internal/datasource"
	"datasync/internal/datasource/file"
	"datasync/internal/datasource/httpds"
	"datasync/internal/editor"
	"datasync/internal/metrics"
	"datasync/internal/notify"
	"datasync/internal/notify/natsnotify"
	"datasync/internal/profile"
	"datasync/internal/schema"
	"datasync/internal/tabular"
	"datasync/internal/webui"
)

type runOptions struct {
	outPath string
	serve   bool
	verbose bool
	out     io.Writer
}

// run executes one job: fetch the CSV and the schema, build the editor,
// print the mapping, persist it, and optionally serve the API until ctx is
// done.
func run(ctx context.Context, job config.Job, ro runOptions) error {
	var (
		raw []byte
		ds  schema.Dataset
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		b, err := readSource(gctx, job.Source)
		metrics.RecordStep(job.Job, "fetch_csv", err, time.Since(start))
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		raw = b
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		d, err := schema.Load(gctx, job.Schema.ProviderConfig())
		metrics.RecordStep(job.Job, "load_schema", err, time.Since(start))
		if err != nil {
			return err
		}
		ds = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if ro.verbose {
		log.Printf("job: csv_bytes=%d dataset=%s fields=%d", len(raw), ds.ID, len(ds.Fields))
	}

	load := func(ctx context.Context, opt tabular.Options) (*tabular.Table, error) {
		return tabular.Load(ctx, file.NewBytes(job.Source.File.Path, raw), opt)
	}

	var store *profile.Store
	if job.Profiles.DSN != "" {
		s, err := profile.Open(ctx, job.Profiles.DSN)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	cf, err := initialControlFile(ctx, job, store, ds.ID, load)
	if err != nil {
		return err
	}

	sink, closeSink, err := buildSink(job)
	if err != nil {
		return err
	}
	defer closeSink()

	ed, _, err := editor.Open(ctx, cf, ds, load, editor.Options{
		Job:        job.Job,
		Sink:       sink,
		Rematch:    job.ControlFile.Rematch,
		SampleRows: job.Parser.SampleRows(),
	})
	switch {
	case errors.Is(err, editor.ErrNotify):
		log.Printf("notify: %v", err)
	case err != nil:
		return err
	}

	fmt.Fprint(ro.out, ed.Snapshot(0).String())
	for _, iss := range ed.Validate() {
		fmt.Fprintf(ro.out, "%s\n", iss)
	}

	outPath := ro.outPath
	if outPath == "" {
		outPath = job.ControlFile.Path
	}
	persist := func(ctx context.Context, ed *editor.Editor) error {
		cf := ed.ControlFile()
		if outPath != "" {
			if err := cf.Write(outPath); err != nil {
				return err
			}
		}
		if store != nil {
			fp := profile.Fingerprint(ed.Table().Headers())
			if err := store.Save(ctx, ds.ID, fp, cf); err != nil {
				return err
			}
		}
		return nil
	}

	if outPath == "" {
		b, err := ed.ControlFile().Marshal()
		if err != nil {
			return err
		}
		fmt.Fprintf(ro.out, "%s\n", b)
	}
	if err := persist(ctx, ed); err != nil {
		return err
	}
	if outPath != "" {
		log.Printf("controlfile: wrote path=%s", outPath)
	}

	if !ro.serve {
		return nil
	}
	addr := job.Server.Addr
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	srv := webui.New(ed)
	srv.OnChange = persist
	return srv.Run(ctx, addr)
}

// readSource reads the whole CSV into memory. The editor re-parses it each
// time a file option changes, so a remote file is fetched once.
func readSource(ctx context.Context, src config.Source) ([]byte, error) {
	var s datasource.Source
	switch src.Kind {
	case "file", "":
		s = file.NewLocal(src.File.Path)
	case "http":
		h := http.Header{}
		for k, v := range src.HTTP.Headers {
			h.Set(k, v)
		}
		client := httpds.NewClient(httpds.Config{
			MaxRetries:         src.HTTP.MaxRetries,
			InsecureSkipVerify: src.HTTP.InsecureSkipVerify,
		})
		s = httpds.NewSource(client, src.HTTP.URL, h)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}

	rc, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// initialControlFile picks the starting document: the configured control
// file if it exists, else a saved profile for the same dataset and header
// shape, else a fresh one from the parser options.
func initialControlFile(ctx context.Context, job config.Job, store *profile.Store, datasetID string, load editor.Loader) (*controlfile.ControlFile, error) {
	if p := job.ControlFile.Path; p != "" {
		cf, err := controlfile.Read(p)
		switch {
		case err == nil:
			log.Printf("controlfile: restored path=%s", p)
			return cf, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	fresh := job.NewControlFile()
	if store == nil {
		return fresh, nil
	}
	opt, err := job.TableOptions()
	if err != nil {
		return nil, err
	}
	t, err := load(ctx, opt)
	if err != nil {
		return nil, err
	}
	fp := profile.Fingerprint(t.Headers())
	cf, ok, err := store.Load(ctx, datasetID, fp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return fresh, nil
	}
	log.Printf("profile: restored dataset=%s fingerprint=%s", datasetID, fp)
	return cf, nil
}

// buildSink selects the notification sink. The returned close function is
// never nil.
func buildSink(job config.Job) (notify.Sink, func(), error) {
	switch job.Notify.Kind {
	case "", "none":
		return notify.Nop{}, func() {}, nil
	case "log":
		return notify.Log{Job: job.Job}, func() {}, nil
	case "nats":
		subject := job.Notify.Subject
		if subject == "" {
			subject = "datasync.mapping"
		}
		s, closeFn, err := natsnotify.Connect(job.Notify.URL, subject, job.Job)
		if err != nil {
			return nil, nil, err
		}
		return s, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown notify kind %q", job.Notify.Kind)
	}
}
