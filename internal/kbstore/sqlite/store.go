package sqlite

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"youkb/internal/domain"
	"youkb/internal/kbstore"
)

const dbFileName = "youkb.db"

// Collection is one named knowledge base. Dimension is zero until the first
// append fixes the vector width for the collection's lifetime.
type Collection struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:255"`
	Dimension int
	CreatedAt time.Time
}

// PassageRow is one persisted passage. The autoincrement ID preserves
// insertion order, which breaks similarity ties deterministically.
type PassageRow struct {
	ID           uint   `gorm:"primaryKey"`
	CollectionID uint   `gorm:"index"`
	DocID        string `gorm:"size:64"`
	Vector       []byte
	Text         string
	FileName     string
	FileType     string `gorm:"size:16"`
	FilePath     string
	FileHash     string `gorm:"index;size:64"`
	VideoID      string `gorm:"size:32"`
	StartSec     float64
	CreatedAt    time.Time
}

// Store persists knowledge bases in a single sqlite file inside dir.
type Store struct {
	db *gorm.DB
	// Serializes appends; the on-disk layout is not safe for interleaved writers.
	mu sync.Mutex
}

// Open creates dir if needed and opens (or creates) the database inside it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, dbFileName)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&Collection{}, &PassageRow{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Create(ctx context.Context, name string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Collection{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%q: %w", name, kbstore.ErrAlreadyExists)
	}
	return s.db.WithContext(ctx).Create(&Collection{Name: name}).Error
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Collection{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

func (s *Store) Drop(ctx context.Context, name string) error {
	c, err := s.collection(ctx, name)
	if errors.Is(err, kbstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", c.ID).Delete(&PassageRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Collection{}, c.ID).Error
	})
}

func (s *Store) Append(ctx context.Context, name string, passages []domain.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(ctx, name)
	if err != nil {
		return err
	}
	if len(passages) == 0 {
		return nil
	}
	dim := c.Dimension
	if dim == 0 {
		dim = len(passages[0].Vector)
	}
	for _, p := range passages {
		if len(p.Vector) != dim || dim == 0 {
			return fmt.Errorf("%q: got width %d, want %d: %w", name, len(p.Vector), dim, kbstore.ErrSchemaMismatch)
		}
	}
	rows := make([]PassageRow, len(passages))
	for i, p := range passages {
		rows[i] = PassageRow{
			CollectionID: c.ID,
			DocID:        p.DocID,
			Vector:       vectorToBytes(p.Vector),
			Text:         p.Text,
			FileName:     p.FileName,
			FileType:     p.FileType,
			FilePath:     p.FilePath,
			FileHash:     p.FileHash,
			VideoID:      p.VideoID,
			StartSec:     p.StartSec,
		}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return err
		}
		if c.Dimension == 0 {
			return tx.Model(&Collection{}).Where("id = ?", c.ID).Update("dimension", dim).Error
		}
		return nil
	})
}

func (s *Store) Search(ctx context.Context, name string, vector []float32, k int) ([]domain.SearchResult, error) {
	c, err := s.collection(ctx, name)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}
	var rows []PassageRow
	if err := s.db.WithContext(ctx).
		Where("collection_id = ?", c.ID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, domain.SearchResult{
			Passage: rowToPassage(row),
			Score:   kbstore.Cosine(bytesToVector(row.Vector), vector),
		})
	}
	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&Collection{}).Order("name asc").Pluck("name", &names).Error
	return names, err
}

func (s *Store) Stats(ctx context.Context, name string) (domain.Stats, error) {
	c, err := s.collection(ctx, name)
	if err != nil {
		return domain.Stats{}, err
	}
	stats := domain.Stats{
		ByFileType:   make(map[string]int64),
		BySourceFile: make(map[string]int64),
	}
	if err := s.db.WithContext(ctx).Model(&PassageRow{}).
		Where("collection_id = ?", c.ID).Count(&stats.Rows).Error; err != nil {
		return domain.Stats{}, err
	}
	type bucket struct {
		Key   string
		Count int64
	}
	var byType []bucket
	if err := s.db.WithContext(ctx).Model(&PassageRow{}).
		Select("file_type as key, count(*) as count").
		Where("collection_id = ?", c.ID).
		Group("file_type").Scan(&byType).Error; err != nil {
		return domain.Stats{}, err
	}
	for _, b := range byType {
		stats.ByFileType[b.Key] = b.Count
	}
	var byFile []bucket
	if err := s.db.WithContext(ctx).Model(&PassageRow{}).
		Select("file_name as key, count(*) as count").
		Where("collection_id = ?", c.ID).
		Group("file_name").Scan(&byFile).Error; err != nil {
		return domain.Stats{}, err
	}
	for _, b := range byFile {
		stats.BySourceFile[b.Key] = b.Count
	}
	if err := s.db.WithContext(ctx).Model(&PassageRow{}).
		Where("collection_id = ? AND video_id <> ''", c.ID).
		Distinct("video_id").Count(&stats.DistinctVideos).Error; err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

func (s *Store) HasFileHash(ctx context.Context, name, hash string) (bool, error) {
	c, err := s.collection(ctx, name)
	if err != nil {
		return false, err
	}
	var count int64
	err = s.db.WithContext(ctx).Model(&PassageRow{}).
		Where("collection_id = ? AND file_hash = ?", c.ID, hash).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func (s *Store) collection(ctx context.Context, name string) (*Collection, error) {
	var c Collection
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%q: %w", name, kbstore.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func rowToPassage(row PassageRow) domain.Passage {
	return domain.Passage{
		DocID:    row.DocID,
		Vector:   bytesToVector(row.Vector),
		Text:     row.Text,
		FileName: row.FileName,
		FileType: row.FileType,
		FilePath: row.FilePath,
		FileHash: row.FileHash,
		VideoID:  row.VideoID,
		StartSec: row.StartSec,
	}
}

func vectorToBytes(v []float32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

func bytesToVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	_ = binary.Read(bytes.NewReader(b), binary.LittleEndian, &out)
	return out
}
