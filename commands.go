package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"rtranslator/internal/api"
	"rtranslator/internal/archive"
	"rtranslator/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type configLoader func() (config.Config, error)

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, cfg, appOptions{Exclusive: true, FileLog: true})
			if err != nil {
				return err
			}
			defer app.Close()

			app.logger.Info("rtranslator starting",
				"port", cfg.Port,
				"database", cfg.DatabaseURL,
				"staging", cfg.StagingDir,
				"bandwidth_limit", app.bandwidth.Limit(),
			)

			server := api.NewServer(api.Options{
				Archives:  app.archives,
				Store:     app.store,
				Config:    app.settings,
				Stats:     app.stats,
				Bandwidth: app.bandwidth,
				Logger:    app.logger,
			})
			err = server.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port))
			app.logger.Info("shutting down, waiting for running tasks")
			return err
		},
	}
}

func newIngestCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <provider> <identifier>",
		Short: "Ingest a mod's language files into the catalog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := archive.ParseProvider(args[0])
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := NewApp(ctx, cfg, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			id, err := app.archives.Submit(ctx, provider, args[1])
			if err != nil {
				return err
			}

			task, err := followTask(app.archives, id)
			if err != nil {
				return err
			}
			if task.Stage == archive.StageFailed {
				return fmt.Errorf("ingestion of %s failed, see log for details", id)
			}

			mod, err := app.store.ModMetadata(ctx, *task.Result)
			if err != nil {
				return err
			}
			_, pages, err := app.store.ModEntries(ctx, mod.ID, "", 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s as mod %d (%s, %d entry pages)\n", mod.Name, mod.ID, mod.Status, pages)
			return nil
		},
	}
}

// followTask renders a task's progress until it reaches a terminal stage.
func followTask(svc *archive.Service, id string) (archive.Task, error) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(id),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		task, ok := svc.Task(id)
		if !ok {
			return archive.Task{}, fmt.Errorf("task %s disappeared", id)
		}
		bar.Describe(fmt.Sprintf("%s [%s]", id, task.Stage))
		bar.Set(int(task.Progress * 100))
		if task.Stage.Terminal() {
			return task, nil
		}
	}
	return archive.Task{}, nil
}

func newSearchCommand(load configLoader) *cobra.Command {
	var providerFlag string
	var page int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a provider for mods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := archive.ParseProvider(providerFlag)
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			app, err := NewApp(ctx, cfg, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			hits, err := app.archives.Search(ctx, provider, args[0], page)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHits(hits))
			return nil
		},
	}
	cmd.Flags().StringVarP(&providerFlag, "provider", "p", string(archive.Modrinth), "Provider to search")
	cmd.Flags().IntVar(&page, "page", 0, "Result page, starting at 0")
	return cmd
}

func renderHits(hits []archive.SearchHit) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Identifier", "Slug", "Name", "Versions", "In catalog"})
	for _, h := range hits {
		included := "no"
		if h.IncludedInDatabase {
			included = "yes"
		}
		tw.AppendRow(table.Row{h.Identifier, h.Slug, h.Name, humanize.Comma(int64(len(h.GameVersions))), included})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	tw.AppendFooter(table.Row{"", "", "", "Results", strconv.Itoa(len(hits))})
	return tw.Render()
}
