package store

import (
	"fmt"

	"github.com/0x5844/seismig/internal/shots"
	"github.com/0x5844/seismig/internal/wave"
)

// Shots persists the gathers of one survey. Only the observed and background
// records are written; the scattered record is derived again on load.
type Shots struct {
	db     *DB
	prefix string
}

// Shots returns the gather collection named survey.
func (d *DB) Shots(survey string) *Shots {
	return &Shots{db: d, prefix: "gather/" + survey + "/"}
}

func (s *Shots) kindPrefix(kind string) []byte {
	return []byte(s.prefix + kind + "/")
}

func (s *Shots) key(kind string, source int) []byte {
	return indexKey(s.kindPrefix(kind), source)
}

// Put implements shots.Sink.
func (s *Shots) Put(g *shots.Gather) error {
	// The observed record is the one Sources lists, so it goes last.
	if err := s.putRecord("bg", g.Source, g.Background); err != nil {
		return fmt.Errorf("store: put source %d: %w", g.Source, err)
	}
	if err := s.putRecord("obs", g.Source, g.Observed); err != nil {
		return fmt.Errorf("store: put source %d: %w", g.Source, err)
	}
	return nil
}

func (s *Shots) Get(source int) (*shots.Gather, error) {
	observed, err := s.record("obs", source)
	if err != nil {
		return nil, err
	}
	background, err := s.record("bg", source)
	if err != nil {
		return nil, err
	}
	return shots.NewGather(source, observed, background)
}

// Sources lists the stored source indices in ascending order.
func (s *Shots) Sources() ([]int, error) {
	prefix := s.kindPrefix("obs")
	keys, err := s.db.keys(prefix)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, k := range keys {
		if isHeaderKey(prefix, k) {
			out = append(out, keyIndex(prefix, k))
		}
	}
	return out, nil
}

func (s *Shots) record(kind string, source int) (*wave.Record, error) {
	receivers, nt, data, err := s.db.getGrid(s.key(kind, source))
	if err != nil {
		return nil, fmt.Errorf("store: source %d %s: %w", source, kind, err)
	}
	return &wave.Record{Receivers: receivers, NT: nt, Data: data}, nil
}

func (s *Shots) putRecord(kind string, source int, r *wave.Record) error {
	return s.db.putGrid(s.key(kind, source), r.Receivers, r.NT, r.Data)
}
