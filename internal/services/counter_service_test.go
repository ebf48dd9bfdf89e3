package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/orchidcart/api/internal/repositories"
)

type stubCounterRepository struct {
	mu             sync.Mutex
	nextFn         func(context.Context, string, int64) (int64, error)
	configureFn    func(context.Context, string, repositories.CounterConfig) error
	nextCalls      []counterCall
	configureCalls []configureCall
}

type counterCall struct {
	ID   string
	Step int64
}

type configureCall struct {
	ID  string
	Cfg repositories.CounterConfig
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.mu.Lock()
	s.nextCalls = append(s.nextCalls, counterCall{ID: counterID, Step: step})
	s.mu.Unlock()
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 1, nil
}

func (s *stubCounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	s.mu.Lock()
	s.configureCalls = append(s.configureCalls, configureCall{ID: counterID, Cfg: cfg})
	s.mu.Unlock()
	if s.configureFn != nil {
		return s.configureFn(ctx, counterID, cfg)
	}
	return nil
}

var _ repositories.CounterRepository = (*stubCounterRepository)(nil)

func TestCounterNextDefaultsStep(t *testing.T) {
	repo := &stubCounterRepository{
		nextFn: func(_ context.Context, _ string, _ int64) (int64, error) { return 7, nil },
	}
	svc, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCounterService: %v", err)
	}

	value, err := svc.Next(context.Background(), "orders")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if value != 7 {
		t.Fatalf("value = %d, want 7", value)
	}
	if len(repo.nextCalls) != 1 || repo.nextCalls[0].ID != "orders" || repo.nextCalls[0].Step != 1 {
		t.Fatalf("unexpected repository call: %+v", repo.nextCalls)
	}
}

func TestCounterNextValidatesInput(t *testing.T) {
	svc, err := NewCounterService(CounterServiceDeps{Repository: &stubCounterRepository{}})
	if err != nil {
		t.Fatalf("NewCounterService: %v", err)
	}

	if _, err := svc.Next(context.Background(), "  "); !errors.Is(err, ErrCounterInvalidInput) {
		t.Fatalf("blank id error = %v, want ErrCounterInvalidInput", err)
	}
	if _, err := svc.NextWithStep(context.Background(), "orders", -1); !errors.Is(err, ErrCounterInvalidInput) {
		t.Fatalf("negative step error = %v, want ErrCounterInvalidInput", err)
	}
}

func TestCounterNextMapsRepositoryErrors(t *testing.T) {
	repo := &stubCounterRepository{
		nextFn: func(_ context.Context, _ string, _ int64) (int64, error) {
			return 0, repositories.NewCounterError(repositories.CounterErrorExhausted, "counter orders exceeded max value 999999", nil)
		},
	}
	svc, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCounterService: %v", err)
	}

	if _, err := svc.Next(context.Background(), "orders"); !errors.Is(err, ErrCounterExhausted) {
		t.Fatalf("error = %v, want ErrCounterExhausted", err)
	}
}

func TestCounterConfigureDelegates(t *testing.T) {
	repo := &stubCounterRepository{}
	svc, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCounterService: %v", err)
	}

	initial := int64(1000)
	cfg := repositories.CounterConfig{InitialValue: &initial}
	if err := svc.Configure(context.Background(), " invoices ", cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if len(repo.configureCalls) != 1 || repo.configureCalls[0].ID != "invoices" {
		t.Fatalf("unexpected configure call: %+v", repo.configureCalls)
	}

	if err := svc.Configure(context.Background(), "", cfg); !errors.Is(err, ErrCounterInvalidInput) {
		t.Fatalf("blank id error = %v, want ErrCounterInvalidInput", err)
	}
}
