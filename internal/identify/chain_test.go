package identify

import (
	"context"
	"errors"
	"testing"

	"tracklistify/internal/logger"
)

type stubProvider struct {
	name    string
	match   *Match
	err     error
	calls   int
	samples [][]byte
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Identify(ctx context.Context, sample []byte) (*Match, error) {
	s.calls++
	s.samples = append(s.samples, sample)
	return s.match, s.err
}

type stubEnricher struct {
	name  string
	extra *Extra
	err   error
	calls int
}

func (s *stubEnricher) Name() string { return s.name }

func (s *stubEnricher) Enrich(ctx context.Context, artist, title string) (*Extra, error) {
	s.calls++
	return s.extra, s.err
}

func TestChainProviderFirstMatchWins(t *testing.T) {
	first := &stubProvider{name: "first", match: &Match{Title: "Strobe", Artist: "deadmau5", Confidence: 90}}
	second := &stubProvider{name: "second", match: &Match{Title: "Wrong", Artist: "Wrong", Confidence: 99}}
	chain := NewChainProvider([]Provider{first, second}, logger.New(false))

	match, err := chain.Identify(context.Background(), []byte("sample"))
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if match.Title != "Strobe" {
		t.Errorf("match = %q, want first provider's", match.Title)
	}
	if second.calls != 0 {
		t.Error("second provider consulted despite first match")
	}
}

func TestChainProviderFallsThrough(t *testing.T) {
	failing := &stubProvider{name: "failing", err: errors.New("service down")}
	empty := &stubProvider{name: "empty", err: ErrNoMatch}
	working := &stubProvider{name: "working", match: &Match{Title: "Opus", Artist: "Eric Prydz", Confidence: 85}}
	chain := NewChainProvider([]Provider{failing, empty, working}, logger.New(false))

	match, err := chain.Identify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if match.Title != "Opus" {
		t.Errorf("match = %q, want fallback provider's", match.Title)
	}
}

func TestChainProviderNoMatch(t *testing.T) {
	chain := NewChainProvider([]Provider{
		&stubProvider{name: "a", err: ErrNoMatch},
		&stubProvider{name: "b", err: ErrNoMatch},
	}, logger.New(false))

	_, err := chain.Identify(context.Background(), nil)
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
}

func TestChainProviderAuthAborts(t *testing.T) {
	bad := &stubProvider{name: "bad", err: &IdentificationError{Provider: "bad", Err: ErrAuth}}
	next := &stubProvider{name: "next", match: &Match{Title: "X", Artist: "Y", Confidence: 80}}
	chain := NewChainProvider([]Provider{bad, next}, logger.New(false))

	_, err := chain.Identify(context.Background(), nil)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if next.calls != 0 {
		t.Error("chain continued past an auth failure")
	}
}

func TestChainEnricher(t *testing.T) {
	failing := &stubEnricher{name: "failing", err: errors.New("service down")}
	empty := &stubEnricher{name: "empty"}
	working := &stubEnricher{name: "working", extra: &Extra{Album: "Random Album Title", Year: "2008"}}
	chain := NewChainEnricher([]Enricher{failing, empty, working}, logger.New(false))

	extra, err := chain.Enrich(context.Background(), "deadmau5", "Strobe")
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if extra == nil || extra.Album != "Random Album Title" {
		t.Errorf("extra = %+v, want fallback enricher's", extra)
	}

	none := NewChainEnricher([]Enricher{empty}, logger.New(false))
	extra, err = none.Enrich(context.Background(), "deadmau5", "Strobe")
	if err != nil || extra != nil {
		t.Errorf("Enrich = %+v, %v; want nil, nil", extra, err)
	}
}
