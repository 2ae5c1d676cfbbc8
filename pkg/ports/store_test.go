package ports_test

import (
	"context"
	"testing"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports/tests"
)

// mockStore is a minimal FlagStore used to keep the contract suite honest.
type mockStore struct {
	data map[string]domain.Value
}

func (m *mockStore) Get(_ context.Context, key string) (domain.Value, error) {
	v, ok := m.data[key]
	if !ok {
		return domain.Value{}, domain.ErrFlagNotFound
	}
	return v, nil
}

func (m *mockStore) Set(_ context.Context, key string, value domain.Value) error {
	m.data[key] = value
	return nil
}

func (m *mockStore) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockStore) Snapshot(_ context.Context) (domain.Snapshot, error) {
	return domain.Snapshot(m.data).Clone(), nil
}

func TestFlagStore_Contract(t *testing.T) {
	tests.RunFlagStoreContract(t, &mockStore{data: map[string]domain.Value{}})
}
