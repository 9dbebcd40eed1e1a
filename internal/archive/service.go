package archive

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/zombor/auditly/internal/upload"
	"github.com/zombor/auditly/internal/workflow"
)

// IDGenerator generates unique IDs for returns
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service archives completed returns
type Service struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Archive stores the photographs of a completed return and saves its record
func (s *Service) Archive(c workflow.Completion) (*Record, error) {
	if c.State.Step != workflow.StepShowResult {
		return nil, fmt.Errorf("return is not complete: %s", c.State.Step)
	}

	id := s.idGenerator.Generate()
	record := &Record{
		ID:        id,
		Category:  c.State.Category,
		Item:      c.State.Item,
		Form:      c.State.Form,
		Images:    c.State.Images,
		Result:    c.State.Result.Clone(),
		CreatedAt: s.timeSource.Now(),
	}

	var saved []string
	cleanup := func() {
		for _, name := range saved {
			if err := s.storage.Delete(name); err != nil {
				slog.Warn("Failed to delete photo", "filename", name, "error", err)
			}
		}
	}

	for _, p := range []struct {
		side string
		file *upload.File
		dst  **Photo
	}{
		{"front", c.Front, &record.Front},
		{"back", c.Back, &record.Back},
	} {
		if p.file == nil {
			continue
		}
		name, err := s.storage.Save(id+"_"+p.side+extension(p.file.ContentType), p.file.Data)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("saving %s photo: %w", p.side, err)
		}
		saved = append(saved, name)
		*p.dst = &Photo{Filename: name, ContentType: p.file.ContentType}
	}

	if err := s.db.SaveReturn(record); err != nil {
		cleanup()
		return nil, fmt.Errorf("saving return to database: %w", err)
	}

	slog.Info("Return archived", "id", id, "item", record.Item, "condition", conditionOf(record))
	return record, nil
}

// GetReturn retrieves a completed return by ID
func (s *Service) GetReturn(id string) (*Record, error) {
	record, err := s.db.GetReturn(id)
	if err != nil {
		return nil, fmt.Errorf("getting return: %w", err)
	}
	return record, nil
}

// ListReturns returns completed returns, newest first
func (s *Service) ListReturns() ([]*Record, error) {
	records, err := s.db.ListReturns()
	if err != nil {
		return nil, fmt.Errorf("listing returns: %w", err)
	}
	slices.SortStableFunc(records, func(a, b *Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return records, nil
}

// GetPhoto retrieves a stored photograph for a side of a return
func (s *Service) GetPhoto(id, side string) ([]byte, string, error) {
	record, err := s.db.GetReturn(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting return: %w", err)
	}

	photo := record.Photo(side)
	if photo == nil {
		return nil, "", fmt.Errorf("%w: no %s photo for %s", ErrNotFound, side, id)
	}

	data, err := s.storage.Get(photo.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting photo: %w", err)
	}
	return data, photo.ContentType, nil
}

// DeleteReturn removes a return and its photographs
func (s *Service) DeleteReturn(id string) error {
	record, err := s.db.GetReturn(id)
	if err != nil {
		return fmt.Errorf("getting return for deletion: %w", err)
	}

	for _, photo := range []*Photo{record.Front, record.Back} {
		if photo == nil {
			continue
		}
		if err := s.storage.Delete(photo.Filename); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete photo", "filename", photo.Filename, "error", err)
		}
	}

	if err := s.db.DeleteReturn(id); err != nil {
		return fmt.Errorf("deleting return from database: %w", err)
	}
	return nil
}

// extension picks a file extension for a sniffed content type
func extension(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}

func conditionOf(r *Record) string {
	if r.Result == nil {
		return ""
	}
	return r.Result.Condition
}
