package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"manuscript/internal/app"
	"manuscript/internal/config"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "serve":
		err = runServe(args[1:])
	case "projects":
		err = runProjects(args[1:])
	case "import":
		err = runImport(args[1:])
	case "export":
		err = runExport(args[1:])
	case "outline":
		err = runOutline(args[1:])
	case "normalize":
		err = runNormalize(args[1:])
	case "snapshots":
		err = runSnapshots(args[1:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("manuscript: %v", err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: manuscript <command> [flags]

Commands:
  serve                        run the MCP server on stdio with watchers
  projects                     list projects
  import <projectId> <file>    replace a project's document with a markdown file
  export <projectId>           print or write a project's markdown
  outline <projectId>          print a project's outline
  normalize [projectId]        rewrite sort orders to clean integers
  snapshots <projectId>        list a project's snapshots

Use "manuscript <command> --help" for command flags.`)
}

// parseFlags parses args and reports whether the caller should stop early
// because --help was requested.
func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// withApp builds the service graph for a one-shot command; no background
// surfaces are started.
func withApp(configPath string, fn func(a *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	return app.Serve(cfg)
}

func runProjects(args []string) error {
	fs := flag.NewFlagSet("projects", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	return withApp(*configPath, func(a *app.App) error {
		projects, err := a.Projects().ListProjects()
		if err != nil {
			return err
		}
		for _, p := range projects {
			fmt.Printf("%-36s  %s\n", p.ID, p.Title)
		}
		return nil
	})
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return fmt.Errorf("usage: import <projectId> <file>")
	}
	projectID, path := rest[0], rest[1]

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return withApp(*configPath, func(a *app.App) error {
		if err := a.Sync().ReplaceDocument(context.Background(), projectID, string(content)); err != nil {
			return err
		}
		blocks, err := a.Blocks().ListBlocks(projectID)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %s into project %s (%d blocks)\n", path, projectID, len(blocks))
		return nil
	})
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	out := fs.String("out", "", "write to file instead of stdout")
	excludeNotes := fs.Bool("exclude-notes", false, "omit sections flagged as notes")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: export <projectId>")
	}
	projectID := rest[0]

	return withApp(*configPath, func(a *app.App) error {
		doc, err := a.Sync().ExportDocument(projectID, *excludeNotes)
		if err != nil {
			return err
		}
		if *out == "" {
			fmt.Print(doc)
			return nil
		}
		return os.WriteFile(*out, []byte(doc), 0644)
	})
}

func runOutline(args []string) error {
	fs := flag.NewFlagSet("outline", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: outline <projectId>")
	}
	projectID := rest[0]

	return withApp(*configPath, func(a *app.App) error {
		items, err := a.Outline().Outline(projectID)
		if err != nil {
			return err
		}
		for _, it := range items {
			indent := ""
			if it.Level > 1 {
				indent = strings.Repeat("  ", it.Level-1)
			}
			goal := ""
			if it.WordGoal > 0 {
				goal = fmt.Sprintf("/%d", it.WordGoal)
			}
			fmt.Printf("%s%s [%s] %d%s\n", indent, it.Title, it.Status, it.WordCount, goal)
		}
		return nil
	})
}

func runNormalize(args []string) error {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) > 1 {
		return fmt.Errorf("usage: normalize [projectId]")
	}

	return withApp(*configPath, func(a *app.App) error {
		ctx := context.Background()
		if len(rest) == 1 {
			n, err := a.Outline().NormalizeSortOrders(ctx, rest[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: rewrote %d sort keys\n", rest[0], n)
			return nil
		}
		projects, err := a.Projects().ListProjects()
		if err != nil {
			return err
		}
		for _, p := range projects {
			n, err := a.Outline().NormalizeSortOrders(ctx, p.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%s: rewrote %d sort keys\n", p.ID, n)
		}
		return nil
	})
}

func runSnapshots(args []string) error {
	fs := flag.NewFlagSet("snapshots", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: snapshots <projectId>")
	}
	projectID := rest[0]

	return withApp(*configPath, func(a *app.App) error {
		snaps, err := a.Projects().ListSnapshots(projectID)
		if err != nil {
			return err
		}
		for _, s := range snaps {
			fmt.Printf("%-36s  %-24s  %s\n", s.ID, s.Label, s.CreatedAt.Format(time.RFC3339))
		}
		return nil
	})
}
