package artifacts

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/devcert/internal/container"
	"github.com/wolfeidau/devcert/internal/pki"
	"github.com/wolfeidau/devcert/internal/viewer"
)

// Sentinel errors
var (
	// ErrBundleNotFound is returned when a bundle doesn't exist.
	ErrBundleNotFound = errors.New("bundle not found")

	// ErrBundleExists is returned when trying to create a duplicate.
	ErrBundleExists = errors.New("bundle already exists")

	// ErrInvalidBundleName is returned for names that are empty or contain path separators.
	ErrInvalidBundleName = errors.New("invalid bundle name")
)

const manifestFile = "manifest.json"

// File name suffixes of the artifacts written for a bundle.
const (
	IssuerCertSuffix       = ".issuer.cer"
	SubjectCertSuffix      = ".subject.cer"
	IssuerContainerSuffix  = ".issuer.p12.b64"
	SubjectContainerSuffix = ".subject.p12.b64"
	SubjectCertTextSuffix  = ".subject.cer.b64"
)

// Contents are the certificates and keys to persist. IssuerKey may be nil when the
// issuer key lives outside the process, in which case no issuer container is written.
type Contents struct {
	Issuer     *pki.Certificate
	IssuerKey  *pki.KeyPair
	Subject    *pki.Certificate
	SubjectKey *pki.KeyPair
}

// Bundle is the manifest record of one generated set of artifacts.
type Bundle struct {
	Name               string    `json:"name"`
	Alias              string    `json:"alias"`
	IssuerDN           string    `json:"issuer_dn"`
	SubjectDN          string    `json:"subject_dn"`
	IssuerSerial       string    `json:"issuer_serial"`
	SubjectSerial      string    `json:"subject_serial"`
	IssuerFingerprint  string    `json:"issuer_fingerprint"`
	SubjectFingerprint string    `json:"subject_fingerprint"`
	NotAfter           time.Time `json:"not_after"`
	Files              []string  `json:"files"`
	CreatedAt          time.Time `json:"created_at"`
}

// Expired reports whether the subject certificate has expired at now.
func (b *Bundle) Expired(now time.Time) bool {
	return now.After(b.NotAfter)
}

// DaysRemaining returns the whole days left before the subject certificate expires.
func (b *Bundle) DaysRemaining(now time.Time) int {
	return int(b.NotAfter.Sub(now).Hours() / 24)
}

// Manifest is the index file of an output directory.
type Manifest struct {
	Version int               `json:"version"`
	Bundles map[string]Bundle `json:"bundles"`
}

// Store writes certificate artifacts into a directory and indexes them in manifest.json.
type Store struct {
	baseDir string
	now     func() time.Time
}

// NewStore creates a store rooted at baseDir, creating it if needed.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		baseDir = "."
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	store := &Store{baseDir: baseDir, now: time.Now}

	if err := store.ensureManifest(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("artifact store initialized")

	return store, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// Path returns the location of an artifact file of the bundle name.
func (s *Store) Path(name, suffix string) string {
	return filepath.Join(s.baseDir, name+suffix)
}

// Save writes the artifacts of a bundle and records it in the manifest.
func (s *Store) Save(name string, contents Contents, packager container.Packager) (*Bundle, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if contents.Issuer == nil || contents.Subject == nil || contents.SubjectKey == nil {
		return nil, fmt.Errorf("%w: issuer certificate, subject certificate and subject key are required", pki.ErrArgument)
	}

	if _, err := s.Get(name); err == nil {
		return nil, ErrBundleExists
	}

	subjectContainer, err := packager.ExportBase64(contents.Subject, contents.SubjectKey, "")
	if err != nil {
		return nil, fmt.Errorf("failed to export subject container: %w", err)
	}

	files := []artifact{
		{suffix: IssuerCertSuffix, data: contents.Issuer.Raw, perm: 0644},
		{suffix: SubjectCertSuffix, data: contents.Subject.Raw, perm: 0644},
		{suffix: SubjectCertTextSuffix, data: []byte(base64.StdEncoding.EncodeToString(contents.Subject.Raw)), perm: 0644},
		{suffix: SubjectContainerSuffix, data: []byte(subjectContainer), perm: 0600},
	}

	if contents.IssuerKey != nil {
		issuerContainer, err := packager.ExportBase64(contents.Issuer, contents.IssuerKey, "")
		if err != nil {
			return nil, fmt.Errorf("failed to export issuer container: %w", err)
		}
		files = append(files, artifact{suffix: IssuerContainerSuffix, data: []byte(issuerContainer), perm: 0600})
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		path := s.Path(name, f.suffix)
		if err := os.WriteFile(path, f.data, f.perm); err != nil {
			// Clean up partial bundle on failure
			s.removeFiles(name, written)
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, name+f.suffix)
	}

	bundle := Bundle{
		Name:               name,
		Alias:              contents.Subject.ContainerAlias(),
		IssuerDN:           contents.Issuer.SubjectDN,
		SubjectDN:          contents.Subject.SubjectDN,
		IssuerSerial:       contents.Issuer.SerialNumber.String(),
		SubjectSerial:      contents.Subject.SerialNumber.String(),
		IssuerFingerprint:  viewer.Fingerprint(contents.Issuer.Raw),
		SubjectFingerprint: viewer.Fingerprint(contents.Subject.Raw),
		NotAfter:           contents.Subject.NotAfter,
		Files:              written,
		CreatedAt:          s.now().UTC(),
	}

	if err := s.addBundle(bundle); err != nil {
		s.removeFiles(name, written)
		return nil, err
	}

	log.Info().
		Str("name", name).
		Str("subject", bundle.SubjectDN).
		Str("fingerprint", bundle.SubjectFingerprint).
		Strs("files", written).
		Msg("bundle saved")

	return &bundle, nil
}

// Get retrieves bundle metadata by name.
func (s *Store) Get(name string) (*Bundle, error) {
	m, err := s.loadManifest()
	if err != nil {
		return nil, err
	}

	bundle, ok := m.Bundles[name]
	if !ok {
		return nil, ErrBundleNotFound
	}

	return &bundle, nil
}

// List returns all bundles ordered by name.
func (s *Store) List() ([]Bundle, error) {
	m, err := s.loadManifest()
	if err != nil {
		return nil, err
	}

	bundles := make([]Bundle, 0, len(m.Bundles))
	for _, b := range m.Bundles {
		bundles = append(bundles, b)
	}
	slices.SortFunc(bundles, func(a, b Bundle) int {
		return strings.Compare(a.Name, b.Name)
	})

	return bundles, nil
}

// Delete removes a bundle and its files.
func (s *Store) Delete(name string) error {
	m, err := s.loadManifest()
	if err != nil {
		return err
	}

	bundle, ok := m.Bundles[name]
	if !ok {
		return ErrBundleNotFound
	}

	for _, file := range bundle.Files {
		if err := os.Remove(filepath.Join(s.baseDir, file)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", file, err)
		}
	}

	delete(m.Bundles, name)

	if err := s.saveManifest(m); err != nil {
		return err
	}

	log.Info().Str("name", name).Msg("bundle deleted")

	return nil
}

type artifact struct {
	suffix string
	data   []byte
	perm   os.FileMode
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidBundleName, name)
	}
	return nil
}

func (s *Store) removeFiles(name string, files []string) {
	for _, file := range files {
		if err := os.Remove(filepath.Join(s.baseDir, file)); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("name", name).Str("file", file).Msg("failed to clean up artifact")
		}
	}
}

// ensureManifest creates an empty manifest if it doesn't exist.
func (s *Store) ensureManifest() error {
	if _, err := os.Stat(filepath.Join(s.baseDir, manifestFile)); err == nil {
		return nil
	}

	return s.saveManifest(&Manifest{
		Version: 1,
		Bundles: make(map[string]Bundle),
	})
}

// loadManifest reads the manifest file.
func (s *Store) loadManifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if m.Bundles == nil {
		m.Bundles = make(map[string]Bundle)
	}

	return &m, nil
}

// saveManifest writes the manifest file atomically.
func (s *Store) saveManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(s.baseDir, manifestFile)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save manifest: %w", err)
	}

	return nil
}

func (s *Store) addBundle(bundle Bundle) error {
	m, err := s.loadManifest()
	if err != nil {
		return err
	}

	m.Bundles[bundle.Name] = bundle

	return s.saveManifest(m)
}
