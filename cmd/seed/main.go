// Package main loads JSON fixtures into a catalog collection, or empties
// one, for local development.
//
//	seed --import --collection brands --file dev-data/brands.json
//	seed --delete --collection brands
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"eshop/internal/catalog"
	"eshop/internal/docstore"
	"eshop/internal/media"
	"eshop/internal/payload"
	"eshop/internal/platform/config"
	"eshop/internal/platform/database"
	"eshop/internal/platform/logger"
)

func main() {
	importData := flag.Bool("import", false, "Insert every document of --file")
	deleteData := flag.Bool("delete", false, "Delete every document of the collection")
	collection := flag.String("collection", "brands", "Target collection")
	file := flag.String("file", "", "JSON array of documents (defaults to dev-data/<collection>.json)")
	flag.Parse()

	if *importData == *deleteData {
		fmt.Fprintln(os.Stderr, "usage: seed --import|--delete [--collection name] [--file path]")
		os.Exit(2)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(context.Background(), cfg, log, *collection, *file, *importData); err != nil {
		log.Error("seed failed", "collection", *collection, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger, collection, file string, importData bool) error {
	if cfg.Database.Adapter != config.AdapterPostgres {
		return errors.New("seeding needs DB_ADAPTER=postgres")
	}
	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close() //nolint:errcheck // process exits right after
	if err := pool.Migrate(ctx, log); err != nil {
		return err
	}
	log.Info("DB connection successful!")

	var storage media.Storage = media.NewMemory()
	if cfg.S3.Enabled() {
		storage, err = media.NewS3(ctx, media.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		}, media.WithS3Logger(log))
		if err != nil {
			return err
		}
	}

	shop, err := catalog.New(docstore.NewPostgres(pool.DB()), storage, catalog.WithLogger(log))
	if err != nil {
		return err
	}
	res := resource(shop, collection)
	if res == nil {
		return fmt.Errorf("unknown collection %q", collection)
	}

	if !importData {
		n, err := deleteAll(ctx, shop, res)
		if err != nil {
			return err
		}
		log.Info("Data deleted Successfully!", "collection", res.Collection, "deleted", n)
		return nil
	}

	if file == "" {
		file = "dev-data/" + res.Collection + ".json"
	}
	n, err := importFile(ctx, shop, res, file)
	if err != nil {
		return err
	}
	log.Info("data successfully loaded", "collection", res.Collection, "inserted", n)
	return nil
}

func resource(shop *catalog.Catalog, name string) *catalog.Resource {
	for _, res := range shop.Resources() {
		if res.Collection == name || res.Path == name {
			return res
		}
	}
	return nil
}

// importFile creates each fixture through the catalog so slugs, defaults
// and derived fields match documents created over HTTP.
func importFile(ctx context.Context, shop *catalog.Catalog, res *catalog.Resource, file string) (int, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}
	var fixtures []payload.Fields
	if err := json.Unmarshal(raw, &fixtures); err != nil {
		return 0, fmt.Errorf("decode %s: %w", file, err)
	}
	for i, fields := range fixtures {
		if _, err := shop.Create(ctx, res, &payload.Payload{Fields: fields}); err != nil {
			return i, fmt.Errorf("document %d: %w", i, err)
		}
	}
	return len(fixtures), nil
}

// deleteAll pages through the collection until it is empty. Deletes go
// through the catalog so uploaded media is removed too.
func deleteAll(ctx context.Context, shop *catalog.Catalog, res *catalog.Resource) (int, error) {
	page := url.Values{"limit": {"100"}}
	total := 0
	for {
		docs, err := shop.List(ctx, res, page)
		if err != nil {
			return total, err
		}
		if len(docs) == 0 {
			return total, nil
		}
		for _, doc := range docs {
			if err := shop.Delete(ctx, res, doc.ID()); err != nil {
				return total, err
			}
			total++
		}
	}
}
