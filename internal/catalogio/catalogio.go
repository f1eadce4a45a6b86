// Package catalogio moves catalog titles and episodes in and out of YAML
// documents for backups and bulk loading. View counters are not exported.
package catalogio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hik1komori/life-dorama-bot/internal/store"
)

// FormatVersion is written to every exported document.
const FormatVersion = 1

const exportPageSize = 200

// Document is the top-level YAML shape.
type Document struct {
	Version int        `yaml:"version"`
	Titles  []TitleDoc `yaml:"titles"`
}

// TitleDoc is one title with its episodes.
type TitleDoc struct {
	Code        string       `yaml:"code"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Year        int          `yaml:"year,omitempty"`
	Genre       string       `yaml:"genre,omitempty"`
	Rating      float64      `yaml:"rating,omitempty"`
	Poster      string       `yaml:"poster,omitempty"`
	Episodes    []EpisodeDoc `yaml:"episodes,omitempty"`
}

// EpisodeDoc is one episode.
type EpisodeDoc struct {
	Index    int    `yaml:"index"`
	FileID   string `yaml:"file_id"`
	Caption  string `yaml:"caption,omitempty"`
	Duration int    `yaml:"duration,omitempty"`
	Size     int64  `yaml:"size,omitempty"`
}

// Source reads the catalog for export.
type Source interface {
	ListTitles(ctx context.Context, limit, offset int) ([]store.TitleSummary, error)
	ListEpisodes(ctx context.Context, code string) ([]store.Episode, error)
}

// Sink receives imported records.
type Sink interface {
	AddTitle(ctx context.Context, title store.Title) (*store.Title, error)
	AddEpisode(ctx context.Context, episode store.Episode) (*store.Episode, error)
}

// Result counts imported records.
type Result struct {
	Titles   int
	Episodes int
}

// Export writes every title and its episodes, ordered by name.
func Export(ctx context.Context, src Source, w io.Writer) (Result, error) {
	doc := Document{Version: FormatVersion}
	var result Result
	for offset := 0; ; offset += exportPageSize {
		page, err := src.ListTitles(ctx, exportPageSize, offset)
		if err != nil {
			return result, fmt.Errorf("list titles: %w", err)
		}
		for _, summary := range page {
			episodes, err := src.ListEpisodes(ctx, summary.Code)
			if err != nil {
				return result, fmt.Errorf("list episodes of %s: %w", summary.Code, err)
			}
			doc.Titles = append(doc.Titles, titleDoc(summary.Title, episodes))
			result.Titles++
			result.Episodes += len(episodes)
		}
		if len(page) < exportPageSize {
			break
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return result, fmt.Errorf("encode catalog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return result, fmt.Errorf("encode catalog: %w", err)
	}
	return result, nil
}

// Decode parses and validates a document without writing anything.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return doc, fmt.Errorf("%w: empty catalog document", store.ErrInvalid)
		}
		return doc, fmt.Errorf("decode catalog: %w", err)
	}
	if doc.Version != FormatVersion {
		return doc, fmt.Errorf("%w: unsupported catalog version %d", store.ErrInvalid, doc.Version)
	}
	return doc, validate(doc)
}

// Import decodes a document and upserts its titles and episodes. Validation
// runs over the whole document first, so a bad document writes nothing.
func Import(ctx context.Context, dst Sink, r io.Reader) (Result, error) {
	doc, err := Decode(r)
	if err != nil {
		return Result{}, err
	}
	var result Result
	for _, t := range doc.Titles {
		title, err := dst.AddTitle(ctx, store.Title{
			Code:        t.Code,
			Name:        t.Name,
			Description: t.Description,
			ReleaseYear: t.Year,
			Genre:       t.Genre,
			Rating:      t.Rating,
			PosterRef:   t.Poster,
		})
		if err != nil {
			return result, fmt.Errorf("import title %s: %w", t.Code, err)
		}
		result.Titles++
		for _, e := range t.Episodes {
			if _, err := dst.AddEpisode(ctx, store.Episode{
				TitleCode:       title.Code,
				Index:           e.Index,
				ContentRef:      e.FileID,
				Caption:         e.Caption,
				DurationSeconds: e.Duration,
				SizeBytes:       e.Size,
			}); err != nil {
				return result, fmt.Errorf("import episode %s/%d: %w", t.Code, e.Index, err)
			}
			result.Episodes++
		}
	}
	return result, nil
}

func validate(doc Document) error {
	seen := make(map[string]bool, len(doc.Titles))
	for i, t := range doc.Titles {
		code := store.NormalizeCode(t.Code)
		if err := store.ValidateCode(code); err != nil {
			return fmt.Errorf("title #%d: %w", i+1, err)
		}
		if seen[code] {
			return fmt.Errorf("%w: duplicate title code %s", store.ErrInvalid, code)
		}
		seen[code] = true
		if t.Name == "" {
			return fmt.Errorf("%w: title %s has no name", store.ErrInvalid, code)
		}
		indices := make(map[int]bool, len(t.Episodes))
		for _, e := range t.Episodes {
			if e.Index <= 0 {
				return fmt.Errorf("%w: title %s has episode index %d", store.ErrInvalid, code, e.Index)
			}
			if indices[e.Index] {
				return fmt.Errorf("%w: title %s repeats episode %d", store.ErrInvalid, code, e.Index)
			}
			indices[e.Index] = true
			if e.FileID == "" {
				return fmt.Errorf("%w: title %s episode %d has no file_id", store.ErrInvalid, code, e.Index)
			}
		}
	}
	return nil
}

func titleDoc(t store.Title, episodes []store.Episode) TitleDoc {
	doc := TitleDoc{
		Code:        t.Code,
		Name:        t.Name,
		Description: t.Description,
		Year:        t.ReleaseYear,
		Genre:       t.Genre,
		Rating:      t.Rating,
		Poster:      t.PosterRef,
	}
	for _, e := range episodes {
		doc.Episodes = append(doc.Episodes, EpisodeDoc{
			Index:    e.Index,
			FileID:   e.ContentRef,
			Caption:  e.Caption,
			Duration: e.DurationSeconds,
			Size:     e.SizeBytes,
		})
	}
	return doc
}
