package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/opennow/core/internal/config"
	"github.com/opennow/core/internal/models"
)

// collections lists what goes into a backup archive.
var collections = []string{models.ShopCollection, models.StatusLogCollection}

const s3KeyLayout = "2006/01"

// Service exports the tracked collections as extended-JSON dumps inside a
// zip archive, locally and optionally to S3.
type Service struct {
	db     *mongo.Database
	dir    string
	s3     *s3Store
	logger *zap.Logger
}

func NewService(db *mongo.Database, cfg *config.AppConfig, logger *zap.Logger) (*Service, error) {
	svc := &Service{
		db:     db,
		dir:    cfg.BackupDir(),
		logger: logger,
	}
	if cfg.Backup.S3.Enabled() {
		store, err := newS3Store(cfg.Backup.S3)
		if err != nil {
			return nil, err
		}
		svc.s3 = store
	}
	return svc, nil
}

// Run produces one backup artifact. Wired as a cron job; also reachable via
// the admin endpoint.
func (s *Service) Run(ctx context.Context) error {
	now := time.Now()
	artifact, err := s.createLocalArtifact(ctx, now)
	if err != nil {
		return err
	}
	s.logger.Info("backup written",
		zap.String("file", artifact.Path),
		zap.Int("bytes", artifact.Buffer.Len()),
	)

	if s.s3 == nil {
		return nil
	}
	key := s.objectKey(artifact.Filename, now)
	if err := s.s3.Upload(ctx, key, artifact.Buffer.Bytes(), "application/zip"); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	s.logger.Info("backup uploaded", zap.String("key", key))
	return nil
}

func (s *Service) objectKey(filename string, now time.Time) string {
	prefix := strings.Trim(strings.TrimSpace(s.s3.prefix), "/")
	if prefix == "" {
		prefix = "backups"
	}
	return prefix + "/" + now.Format(s3KeyLayout) + "/" + filename
}

type artifact struct {
	Filename string
	Path     string
	Buffer   *bytes.Buffer
}

func (s *Service) createLocalArtifact(ctx context.Context, now time.Time) (*artifact, error) {
	buf, err := s.createZip(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("backup-%s.zip", now.Format("2006-01-02T15-04-05"))
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}
	return &artifact{Filename: filename, Path: path, Buffer: buf}, nil
}

// createZip dumps each collection as a JSON array of canonical extended-JSON
// documents, so ObjectIDs and dates survive a round trip.
func (s *Service) createZip(ctx context.Context) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	for _, name := range collections {
		docs, err := s.dumpCollection(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("dump %s: %w", name, err)
		}
		f, err := w.Create(name + ".json")
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(docs); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Service) dumpCollection(ctx context.Context, name string) ([]byte, error) {
	cur, err := s.db.Collection(name).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	items := make([]json.RawMessage, 0, 64)
	for cur.Next(ctx) {
		raw, err := bson.MarshalExtJSON(cur.Current, true, false)
		if err != nil {
			return nil, err
		}
		items = append(items, raw)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return json.Marshal(items)
}

// Restore replaces the named collections with the contents of a backup zip.
func (s *Service) Restore(ctx context.Context, zr *zip.Reader) error {
	for _, f := range zr.File {
		name := strings.TrimSuffix(filepath.Base(f.Name), ".json")
		if !strings.HasSuffix(f.Name, ".json") || !allowedCollection(name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		data := &bytes.Buffer{}
		_, err = data.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return err
		}

		var items []json.RawMessage
		if err := json.Unmarshal(data.Bytes(), &items); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}

		docs := make([]interface{}, 0, len(items))
		for _, item := range items {
			var doc bson.D
			if err := bson.UnmarshalExtJSON(item, true, &doc); err != nil {
				return fmt.Errorf("restore %s: %w", name, err)
			}
			docs = append(docs, doc)
		}

		col := s.db.Collection(name)
		if _, err := col.DeleteMany(ctx, bson.M{}); err != nil {
			return err
		}
		if len(docs) > 0 {
			if _, err := col.InsertMany(ctx, docs); err != nil {
				return err
			}
		}
		s.logger.Info("collection restored", zap.String("collection", name), zap.Int("docs", len(docs)))
	}
	return nil
}

func allowedCollection(name string) bool {
	for _, c := range collections {
		if name == c {
			return true
		}
	}
	return false
}

// ListLocal enumerates zip artifacts in the backup directory.
func (s *Service) ListLocal() []Item {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return []Item{}
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return []Item{}
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, Item{Filename: e.Name(), Size: formatSize(info.Size())})
	}
	return items
}

// Item describes one stored backup artifact.
type Item struct {
	Filename string `json:"filename"`
	Size     string `json:"size"`
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}

// ReadLocal returns a stored artifact's bytes by filename.
func (s *Service) ReadLocal(filename string) ([]byte, error) {
	filename = filepath.Base(filename)
	if !strings.HasSuffix(filename, ".zip") {
		return nil, fmt.Errorf("invalid filename")
	}
	return os.ReadFile(filepath.Join(s.dir, filename))
}

// DeleteLocal removes stored artifacts by filename, ignoring misses.
func (s *Service) DeleteLocal(filenames ...string) {
	for _, name := range filenames {
		name = strings.TrimSpace(filepath.Base(name))
		if name == "" || !strings.HasSuffix(name, ".zip") {
			continue
		}
		os.Remove(filepath.Join(s.dir, name))
	}
}
