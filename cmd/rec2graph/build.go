package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/OFFIS-RIT/recgraph/internal/db"
	"github.com/OFFIS-RIT/recgraph/internal/util"
	"github.com/OFFIS-RIT/recgraph/pkg/common"
	"github.com/OFFIS-RIT/recgraph/pkg/export"
	"github.com/OFFIS-RIT/recgraph/pkg/graph"
	"github.com/OFFIS-RIT/recgraph/pkg/loader"
	ioloader "github.com/OFFIS-RIT/recgraph/pkg/loader/io"
	s3loader "github.com/OFFIS-RIT/recgraph/pkg/loader/s3"
	"github.com/OFFIS-RIT/recgraph/pkg/logger"
	"github.com/OFFIS-RIT/recgraph/pkg/store"
	pgdb "github.com/OFFIS-RIT/recgraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

type buildOptions struct {
	Input      string
	Output     string
	Format     string
	TopN       int
	Mode       string
	Unweighted bool
	Parallel   int
	Save       bool
	Name       string
}

func runBuild(ctx context.Context, o buildOptions) error {
	start := time.Now()

	outFormat, err := export.FormatFromPath(o.Output)
	if err != nil {
		return err
	}

	fileLoader, err := newLoader(ctx, o.Input)
	if err != nil {
		return err
	}
	file, err := loader.NewEventFile(loader.NewEventFileParams{
		FilePath: o.Input,
		Format:   loader.EventFormat(o.Format),
		Loader:   fileLoader,
	})
	if err != nil {
		return err
	}
	events, err := file.GetEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", o.Input, err)
	}

	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
		TopN:           o.TopN,
		Mode:           graph.Mode(o.Mode),
		Unweighted:     o.Unweighted,
		ParallelShards: o.Parallel,
	})
	if err != nil {
		return err
	}
	g, err := client.ProcessGraph(ctx, events)
	if err != nil {
		return err
	}

	name := o.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(o.Input), filepath.Ext(o.Input))
	}
	snapshot := client.Snapshot(g, "", name)

	if o.Save {
		id, err := save(ctx, snapshot, o, outFormat)
		if err != nil {
			return err
		}
		snapshot.ID = id
	}

	if err := export.WriteFile(o.Output, snapshot); err != nil {
		return err
	}

	logger.Info(
		"[CLI] Graph written",
		"output", o.Output,
		"vertices", len(snapshot.Vertices),
		"edges", len(snapshot.Edges),
		"mean", snapshot.Stats.Mean,
		"std_dev", snapshot.Stats.StdDev,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func newLoader(ctx context.Context, input string) (loader.EventFileLoader, error) {
	if _, _, ok := s3loader.ParseURI(input); ok {
		return s3loader.NewS3EventFileLoader(ctx, s3loader.NewS3EventFileLoaderParams{
			Bucket:    util.GetEnv("AWS_BUCKET"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			Region:    util.GetEnv("AWS_REGION"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
		})
	}
	return ioloader.NewIOEventFileLoader(), nil
}

// save stores the graph as a finished build and returns its id.
func save(ctx context.Context, g common.Graph, o buildOptions, format export.Format) (string, error) {
	databaseURL := util.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		return "", fmt.Errorf("--save needs DATABASE_URL")
	}
	if err := db.Migrate(databaseURL, util.GetEnv("MIGRATIONS_PATH")); err != nil {
		return "", err
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	return saveGraph(ctx, pgdb.NewGraphDBStorageWithConnection(conn), g, o, format)
}

// saveGraph records g as a finished build. A graph whose rows could not be
// written is marked failed so stale-build recovery never re-queues it.
func saveGraph(ctx context.Context, graphs store.GraphStorage, g common.Graph, o buildOptions, format export.Format) (string, error) {
	record, err := graphs.CreateGraph(ctx, store.GraphRecord{
		Name:           g.Name,
		Source:         o.Input,
		Mode:           g.Mode,
		TopN:           g.TopN,
		Weighted:       g.Weighted,
		ParallelShards: o.Parallel,
		ExportFormat:   string(format),
		Status:         store.GraphStatusBuilding,
	})
	if err != nil {
		return "", err
	}

	g.ID = record.ID
	if err := graphs.SaveGraph(ctx, g, ""); err != nil {
		failCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if markErr := graphs.MarkFailed(failCtx, record.ID, err.Error()); markErr != nil {
			logger.Warn("[CLI] Failed to mark graph as failed", "graph_id", record.ID, "err", markErr)
		}
		return "", fmt.Errorf("failed to save graph %s: %w", record.ID, err)
	}
	logger.Info("[CLI] Graph saved", "graph_id", record.ID)
	return record.ID, nil
}
