package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"camqc-backend/pkg/client"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
)

const usage = `usage: camqcctl [-server URL] [-env FILE] <command> [args]

commands:
  workflows                       list workflows
  import <file>                   import a workflow from a .json or .yaml file
  delete-workflow <slug>          delete a workflow
  sessions                        list open sessions
  reports                         list reports
  wait <report-id>                wait for a report to finish rendering
  download <report-id> [pdf|docx] download a report artifact
  archive <report-id>             list the archived objects of a report
`

func main() {
	var (
		server   string
		envFile  string
		password string
		outDir   string
	)
	flag.StringVar(&server, "server", "", "backend URL (default $CAMQC_SERVER or http://localhost:3001)")
	flag.StringVar(&envFile, "env", "", "path to load env from")
	flag.StringVar(&password, "password", "", "workflow editor password (default $EDITOR_PASSWORD)")
	flag.StringVar(&outDir, "o", ".", "directory downloads are written to")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Fatalf("error loading .env file '%s': %v", envFile, err)
		}
	}
	if server == "" {
		server = envOr("CAMQC_SERVER", "http://localhost:3001")
	}
	if password == "" {
		password = os.Getenv("EDITOR_PASSWORD")
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c := client.New(server).WithEditorPassword(password)
	ctx := context.Background()

	var err error
	switch args[0] {
	case "workflows":
		err = listWorkflows(ctx, c)
	case "import":
		err = withArg(args, func(path string) error { return importWorkflow(ctx, c, path) })
	case "delete-workflow":
		err = withArg(args, func(slug string) error { return c.DeleteWorkflow(ctx, slug) })
	case "sessions":
		err = listSessions(ctx, c)
	case "reports":
		err = listReports(ctx, c)
	case "wait":
		err = withReport(args, func(id uuid.UUID) error { return waitReport(ctx, c, id) })
	case "download":
		kind := "pdf"
		if len(args) > 2 {
			kind = args[2]
		}
		err = withReport(args, func(id uuid.UUID) error { return download(ctx, c, id, kind, outDir) })
	case "archive":
		err = withReport(args, func(id uuid.UUID) error { return listArchive(ctx, c, id) })
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func withArg(args []string, fn func(string) error) error {
	if len(args) < 2 {
		return fmt.Errorf("missing argument")
	}
	return fn(args[1])
}

func withReport(args []string, fn func(uuid.UUID) error) error {
	return withArg(args, func(arg string) error {
		id, err := uuid.Parse(arg)
		if err != nil {
			return fmt.Errorf("invalid report id %q: %w", arg, err)
		}
		return fn(id)
	})
}

func table() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func listWorkflows(ctx context.Context, c *client.Client) error {
	workflows, err := c.ListWorkflows(ctx)
	if err != nil {
		return err
	}

	w := table()
	fmt.Fprintln(w, "SLUG\tNAME\tSTEPS")
	for _, wf := range workflows {
		fmt.Fprintf(w, "%s\t%s\t%d\n", wf.Slug, wf.Name, wf.StepCount)
	}
	return w.Flush()
}

func importWorkflow(ctx context.Context, c *client.Client, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	format := "json"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		format = "yaml"
	}

	slug, err := c.ImportWorkflow(ctx, format, data)
	if err != nil {
		return err
	}
	fmt.Println(slug)
	return nil
}

func listSessions(ctx context.Context, c *client.Client) error {
	sessions, err := c.ListSessions(ctx)
	if err != nil {
		return err
	}

	w := table()
	fmt.Fprintln(w, "ID\tMODE\tSERIAL\tCAMERA\tCAPTURES\tSTEP")
	for _, s := range sessions {
		step := "-"
		if s.Workflow != nil {
			step = fmt.Sprintf("%d/%d", s.Workflow.Current.Index+1, s.Workflow.Current.Count)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", s.Id, s.ModeName, s.Serial, s.CameraName, s.CaptureCount, step)
	}
	return w.Flush()
}

func listReports(ctx context.Context, c *client.Client) error {
	reports, err := c.ListReports(ctx)
	if err != nil {
		return err
	}

	w := table()
	fmt.Fprintln(w, "ID\tSERIAL\tSTATUS\tPAGES\tCREATED")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.Id, r.Serial, r.Status, r.PageCount, r.CreationTime.Format(time.DateTime))
	}
	return w.Flush()
}

func waitReport(ctx context.Context, c *client.Client, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("rendering report"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	rep, err := c.WaitForReport(ctx, id, time.Second)
	close(done)
	_ = bar.Finish()
	if err != nil {
		return err
	}
	if rep.Status != "COMPLETED" {
		return fmt.Errorf("report %s %s: %s", id, strings.ToLower(rep.Status), rep.Error)
	}
	fmt.Printf("report %s completed, %d pages\n", id, rep.PageCount)
	return nil
}

func download(ctx context.Context, c *client.Client, id uuid.UUID, kind, outDir string) error {
	dl, err := c.DownloadReport(ctx, id, kind)
	if err != nil {
		return err
	}
	defer dl.Body.Close()

	name := dl.Filename
	if name == "" {
		name = id.String() + "." + kind
	}
	path := filepath.Join(outDir, filepath.Base(name))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bar := progressbar.DefaultBytes(dl.Size, "downloading "+filepath.Base(name))
	if _, err := io.Copy(io.MultiWriter(f, bar), dl.Body); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	fmt.Println(path)
	return nil
}

func listArchive(ctx context.Context, c *client.Client, id uuid.UUID) error {
	objects, err := c.ListArchive(ctx, id)
	if err != nil {
		return err
	}

	w := table()
	fmt.Fprintln(w, "KEY\tSIZE")
	for _, obj := range objects {
		fmt.Fprintf(w, "%s\t%d\n", obj.Key, obj.Size)
	}
	return w.Flush()
}
