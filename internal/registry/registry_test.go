package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/appforge/cli/internal/appconfig"
	oerrors "github.com/appforge/cli/internal/errors"
)

// apiServerStore builds a KubeStore against a real API server. It is only
// set in integration builds.
var apiServerStore func(t *testing.T) Store

// storeFactories builds one fresh store per driver.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	factories := map[string]func(t *testing.T) Store{
		DriverMemory: func(t *testing.T) Store {
			return NewMemoryStore()
		},
		DriverSQL: func(t *testing.T) Store {
			s, err := OpenSQL(filepath.Join(t.TempDir(), "registry.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		DriverKubernetes: func(t *testing.T) Store {
			return NewKubeStore(fake.NewClientset(), "appforge")
		},
	}
	if apiServerStore != nil {
		factories["apiserver"] = apiServerStore
	}
	return factories
}

func pending(runID, projectID string) *Record {
	return &Record{RunID: runID, ProjectID: projectID, AppName: "Shop", Owner: "guest@example.com", Status: StatusPending}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusGenerating, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusPending, true},
		{StatusGenerating, StatusCompleted, true},
		{StatusGenerating, StatusFailed, true},
		{StatusGenerating, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusFailed, StatusGenerating, false},
		{StatusFailed, StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStoreLifecycle(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			rec := pending("01J0000000000000000000000A", "shop-1")
			require.NoError(t, s.Create(ctx, rec))
			assert.False(t, rec.CreatedAt.IsZero())

			rec.Status = StatusGenerating
			require.NoError(t, s.Update(ctx, rec))

			rec.Status = StatusCompleted
			rec.ArtifactName = "shop-1.zip"
			rec.Digest = "sha256:abc"
			rec.Files = 12
			require.NoError(t, s.Update(ctx, rec))

			got, err := s.Get(ctx, rec.RunID)
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, got.Status)
			assert.Equal(t, "shop-1.zip", got.ArtifactName)
			assert.Equal(t, "sha256:abc", got.Digest)
			assert.Equal(t, 12, got.Files)

			// Terminal records are immutable.
			rec.Status = StatusFailed
			err = s.Update(ctx, rec)
			assert.ErrorIs(t, err, oerrors.ErrConflict)

			got, err = s.Get(ctx, rec.RunID)
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, got.Status)
		})
	}
}

func TestStorePersistsConfig(t *testing.T) {
	cfg := &appconfig.AppConfig{
		AppName:  "Shop",
		Features: []appconfig.Feature{appconfig.FeaturePayments},
		Entities: []appconfig.Entity{
			appconfig.IdentityEntity(),
			{Name: "Product", Fields: []appconfig.Field{{Name: "price", Type: appconfig.Integer}}},
		},
	}

	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			rec := pending("01J0000000000000000000000D", "p1")
			require.NoError(t, s.Create(ctx, rec))

			got, err := s.Get(ctx, rec.RunID)
			require.NoError(t, err)
			assert.Nil(t, got.Config, "no config before the input validated")

			rec.Status = StatusGenerating
			rec.Config = cfg
			require.NoError(t, s.Update(ctx, rec))

			got, err = s.Get(ctx, rec.RunID)
			require.NoError(t, err)
			assert.Equal(t, cfg, got.Config)
		})
	}
}

func TestStoreCreateRules(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			require.NoError(t, s.Create(ctx, pending("01J0000000000000000000000A", "p1")))

			err := s.Create(ctx, pending("01J0000000000000000000000A", "p1"))
			assert.ErrorIs(t, err, oerrors.ErrConflict)

			started := pending("01J0000000000000000000000B", "p1")
			started.Status = StatusGenerating
			assert.ErrorIs(t, s.Create(ctx, started), oerrors.ErrConflict)

			assert.Error(t, s.Create(ctx, &Record{RunID: "01J0000000000000000000000C", Status: StatusPending}))
		})
	}
}

func TestStoreUpdateRules(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			err := s.Update(ctx, pending("01J0000000000000000000000Z", "p1"))
			assert.ErrorIs(t, err, oerrors.ErrNotFound)

			rec := pending("01J0000000000000000000000A", "p1")
			require.NoError(t, s.Create(ctx, rec))

			skip := *rec
			skip.Status = StatusCompleted
			assert.ErrorIs(t, s.Update(ctx, &skip), oerrors.ErrConflict)

			moved := *rec
			moved.ProjectID = "p2"
			moved.Status = StatusGenerating
			assert.ErrorIs(t, s.Update(ctx, &moved), oerrors.ErrConflict)

			failed := *rec
			failed.Status = StatusFailed
			failed.ErrorKind = oerrors.KindValidation
			failed.Error = "entity list is empty"
			require.NoError(t, s.Update(ctx, &failed))

			got, err := s.Get(ctx, rec.RunID)
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, got.Status)
			assert.Equal(t, oerrors.KindValidation, got.ErrorKind)
			assert.Equal(t, "entity list is empty", got.Error)
		})
	}
}

func TestStoreQueries(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			// p1: completed run A, then failed run C. p2: pending run B.
			a := pending("01J0000000000000000000000A", "p1")
			require.NoError(t, s.Create(ctx, a))
			a.Status = StatusGenerating
			require.NoError(t, s.Update(ctx, a))
			a.Status = StatusCompleted
			require.NoError(t, s.Update(ctx, a))

			require.NoError(t, s.Create(ctx, pending("01J0000000000000000000000B", "p2")))

			c := pending("01J0000000000000000000000C", "p1")
			require.NoError(t, s.Create(ctx, c))
			c.Status = StatusFailed
			require.NoError(t, s.Update(ctx, c))

			latest, err := s.Latest(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, c.RunID, latest.RunID)

			done, err := s.LastCompleted(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, a.RunID, done.RunID)

			_, err = s.LastCompleted(ctx, "p2")
			assert.ErrorIs(t, err, oerrors.ErrNotFound)

			runs, err := s.Runs(ctx, "p1")
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, c.RunID, runs[0].RunID)
			assert.Equal(t, a.RunID, runs[1].RunID)

			all, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "p1", all[0].ProjectID)
			assert.Equal(t, c.RunID, all[0].RunID)
			assert.Equal(t, "p2", all[1].ProjectID)

			_, err = s.Latest(ctx, "missing")
			assert.ErrorIs(t, err, oerrors.ErrNotFound)
			_, err = s.Runs(ctx, "missing")
			assert.ErrorIs(t, err, oerrors.ErrNotFound)
			_, err = s.Get(ctx, "01J0000000000000000000000Z")
			assert.ErrorIs(t, err, oerrors.ErrNotFound)
		})
	}
}

func TestStoreConcurrentProjects(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			var wg sync.WaitGroup
			errs := make(chan error, 8)
			for i := range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					rec := pending(fmt.Sprintf("01J00000000000000000000%03d", i), fmt.Sprintf("p%d", i))
					if err := s.Create(ctx, rec); err != nil {
						errs <- err
						return
					}
					rec.Status = StatusGenerating
					errs <- s.Update(ctx, rec)
				}()
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				require.NoError(t, err)
			}

			all, err := s.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 8)
		})
	}
}

func TestMemoryStoreUsesClock(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return fixed }

	rec := pending("01J0000000000000000000000A", "p1")
	require.NoError(t, s.Create(context.Background(), rec))
	assert.Equal(t, fixed, rec.CreatedAt)
	assert.Equal(t, fixed, rec.UpdatedAt)
}

func TestKubeStoreLabels(t *testing.T) {
	client := fake.NewClientset()
	s := NewKubeStore(client, "appforge")
	ctx := context.Background()

	rec := pending("01J0000000000000000000000A", "My-Shop_1")
	require.NoError(t, s.Create(ctx, rec))

	cm, err := client.CoreV1().ConfigMaps("appforge").Get(ctx, ConfigMapName(rec.RunID), metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "appforge-run.01j0000000000000000000000a", cm.Name)
	assert.Equal(t, managedByValue, cm.Labels[labelManagedBy])
	assert.Equal(t, projectLabel("My-Shop_1"), cm.Labels[labelProject])
	assert.Equal(t, string(StatusPending), cm.Labels[labelStatus])
	assert.Contains(t, cm.Data[configMapKeyRecord], `"projectId":"My-Shop_1"`)
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(Options{Driver: DriverSQL, DSN: filepath.Join(t.TempDir(), "r.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(Options{Driver: DriverSQL})
	assert.Error(t, err)

	_, err = Open(Options{Driver: "etcd"})
	assert.ErrorContains(t, err, "unknown registry driver")
}
