package health

import (
	"context"
	"errors"
	"testing"
)

type mockPinger struct {
	pingFn func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.pingFn(ctx) }

type mockProvider struct {
	checkFn func(ctx context.Context) error
}

func (m *mockProvider) HealthCheck(ctx context.Context) error { return m.checkFn(ctx) }

func TestCheck_AllHealthy(t *testing.T) {
	service := New(
		&mockPinger{pingFn: func(context.Context) error { return nil }},
		&mockProvider{checkFn: func(context.Context) error { return nil }},
	)

	report := service.Check(context.Background())
	if report.Status != Healthy {
		t.Errorf("status = %q", report.Status)
	}
	if report.Checks["database"] != CheckOK || report.Checks["provider"] != CheckOK {
		t.Errorf("checks = %v", report.Checks)
	}
}

func TestCheck_DatabaseDown(t *testing.T) {
	service := New(
		&mockPinger{pingFn: func(context.Context) error { return errors.New("connection refused") }},
		&mockProvider{checkFn: func(context.Context) error { return nil }},
	)

	report := service.Check(context.Background())
	if report.Status != Degraded {
		t.Errorf("status = %q", report.Status)
	}
	if report.Checks["database"] != CheckError {
		t.Errorf("database check = %q", report.Checks["database"])
	}
	if report.Checks["provider"] != CheckOK {
		t.Errorf("provider check = %q", report.Checks["provider"])
	}
}

func TestCheck_ProviderDown(t *testing.T) {
	service := New(
		&mockPinger{pingFn: func(context.Context) error { return nil }},
		&mockProvider{checkFn: func(context.Context) error { return errors.New("unauthorized") }},
	)

	report := service.Check(context.Background())
	if report.Status != Degraded {
		t.Errorf("status = %q", report.Status)
	}
}

func TestCheck_NilDatabaseSkipped(t *testing.T) {
	service := New(nil, &mockProvider{checkFn: func(context.Context) error { return nil }})

	report := service.Check(context.Background())
	if report.Status != Healthy {
		t.Errorf("status = %q", report.Status)
	}
	if _, ok := report.Checks["database"]; ok {
		t.Error("database check must be absent when no backend is configured")
	}
}
