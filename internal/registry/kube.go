package registry

import (
	"context"
	"crypto/sha1" //nolint:gosec // label hashing, not security
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
)

const (
	labelManagedBy = "app.kubernetes.io/managed-by"
	labelProject   = "appforge.dev/project-hash"
	labelStatus    = "appforge.dev/status"
	managedByValue = "appforge"

	// configMapKeyRecord holds the JSON-encoded Record.
	configMapKeyRecord = "record"
)

// ConfigMapName returns the ConfigMap name for a run.
// Format: appforge-run.<lower-case run id>
func ConfigMapName(runID string) string {
	return "appforge-run." + strings.ToLower(runID)
}

// projectLabel hashes a project id into a valid label value.
func projectLabel(projectID string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(projectID))) //nolint:gosec // label hashing
}

// KubeOptions configures access to the cluster holding a KubeStore.
type KubeOptions struct {
	// Kubeconfig is the kubeconfig path. Empty falls back to KUBECONFIG,
	// then ~/.kube/config.
	Kubeconfig string

	// Context selects a kubeconfig context. Empty uses current-context.
	Context string
}

// NewKubeClient builds a clientset from kubeconfig.
func NewKubeClient(opts KubeOptions) (kubernetes.Interface, error) {
	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: resolveKubeconfig(opts.Kubeconfig)}

	overrides := &clientcmd.ConfigOverrides{}
	if opts.Context != "" {
		overrides.CurrentContext = opts.Context
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("building kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("creating clientset: %w", err)
	}
	return clientset, nil
}

func resolveKubeconfig(path string) string {
	if path == "" {
		path = os.Getenv("KUBECONFIG")
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".kube", "config")
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// KubeStore keeps one ConfigMap per run in a namespace. Updates use the
// ConfigMap's resourceVersion for optimistic concurrency.
type KubeStore struct {
	client    kubernetes.Interface
	namespace string
	now       func() time.Time
}

// NewKubeStore creates a KubeStore in namespace.
func NewKubeStore(client kubernetes.Interface, namespace string) *KubeStore {
	if namespace == "" {
		namespace = "default"
	}
	return &KubeStore{client: client, namespace: namespace, now: time.Now}
}

func (s *KubeStore) toConfigMap(rec *Record) (*corev1.ConfigMap, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling run %s: %w", rec.RunID, err)
	}

	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ConfigMapName(rec.RunID),
			Namespace: s.namespace,
			Labels: map[string]string{
				labelManagedBy: managedByValue,
				labelProject:   projectLabel(rec.ProjectID),
				labelStatus:    string(rec.Status),
			},
		},
		Data: map[string]string{configMapKeyRecord: string(data)},
	}, nil
}

func fromConfigMap(cm *corev1.ConfigMap) (*Record, error) {
	raw, ok := cm.Data[configMapKeyRecord]
	if !ok {
		return nil, fmt.Errorf("ConfigMap %q has no %q key", cm.Name, configMapKeyRecord)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("parsing ConfigMap %q: %w", cm.Name, err)
	}
	return &rec, nil
}

func (s *KubeStore) Create(ctx context.Context, rec *Record) error {
	if err := checkCreate(rec); err != nil {
		return err
	}

	now := s.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	cm, err := s.toConfigMap(rec)
	if err != nil {
		return err
	}

	_, err = s.client.CoreV1().ConfigMaps(s.namespace).Create(ctx, cm, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return oerrors.Wrap(oerrors.ErrConflict, fmt.Sprintf("run %s already exists", rec.RunID))
	}
	if err != nil {
		return fmt.Errorf("creating ConfigMap %q: %w", cm.Name, err)
	}

	output.Debug("created run ConfigMap", "name", cm.Name, "namespace", s.namespace)
	return nil
}

func (s *KubeStore) Update(ctx context.Context, rec *Record) error {
	name := ConfigMapName(rec.RunID)

	existing, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return runNotFound(rec.RunID)
	}
	if err != nil {
		return fmt.Errorf("getting ConfigMap %q: %w", name, err)
	}

	prev, err := fromConfigMap(existing)
	if err != nil {
		return err
	}
	if err := checkUpdate(prev, rec); err != nil {
		return err
	}

	rec.CreatedAt = prev.CreatedAt
	rec.UpdatedAt = s.now().UTC()

	cm, err := s.toConfigMap(rec)
	if err != nil {
		return err
	}
	cm.ResourceVersion = existing.ResourceVersion

	_, err = s.client.CoreV1().ConfigMaps(s.namespace).Update(ctx, cm, metav1.UpdateOptions{})
	if apierrors.IsConflict(err) {
		return oerrors.Wrap(oerrors.ErrConflict, fmt.Sprintf("run %s was modified concurrently", rec.RunID))
	}
	if err != nil {
		return fmt.Errorf("updating ConfigMap %q: %w", name, err)
	}

	output.Debug("updated run ConfigMap", "name", name, "status", rec.Status)
	return nil
}

func (s *KubeStore) Get(ctx context.Context, runID string) (*Record, error) {
	name := ConfigMapName(runID)

	cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, runNotFound(runID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting ConfigMap %q: %w", name, err)
	}
	return fromConfigMap(cm)
}

func (s *KubeStore) list(ctx context.Context, selector string) ([]*Record, error) {
	list, err := s.client.CoreV1().ConfigMaps(s.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("listing run ConfigMaps: %w", err)
	}

	recs := make([]*Record, 0, len(list.Items))
	for i := range list.Items {
		rec, err := fromConfigMap(&list.Items[i])
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *KubeStore) Runs(ctx context.Context, projectID string) ([]*Record, error) {
	recs, err := s.list(ctx, fmt.Sprintf("%s=%s,%s=%s",
		labelManagedBy, managedByValue, labelProject, projectLabel(projectID)))
	if err != nil {
		return nil, err
	}

	// Guard against hash collisions.
	out := recs[:0]
	for _, r := range recs {
		if r.ProjectID == projectID {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, projectNotFound(projectID)
	}

	newestFirst(out)
	return out, nil
}

func (s *KubeStore) Latest(ctx context.Context, projectID string) (*Record, error) {
	runs, err := s.Runs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return runs[0], nil
}

func (s *KubeStore) LastCompleted(ctx context.Context, projectID string) (*Record, error) {
	runs, err := s.Runs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.Status == StatusCompleted {
			return r, nil
		}
	}
	return nil, oerrors.NewNotFoundError(fmt.Sprintf("project %q has no completed run", projectID), projectID, "")
}

func (s *KubeStore) List(ctx context.Context) ([]*Record, error) {
	recs, err := s.list(ctx, labelManagedBy+"="+managedByValue)
	if err != nil {
		return nil, err
	}
	return latestPerProject(recs), nil
}

func (s *KubeStore) Close() error {
	return nil
}
