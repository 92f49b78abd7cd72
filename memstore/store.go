package memstore

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/storage"
)

// Scheme is the URI scheme served by the store.
const Scheme = "mem://"

// EngineVersion is reported by Version.
const EngineVersion = "ZboxFS v0.9.2 (memstore)"

// Store is an in-memory storage engine. Repositories live until destroyed
// or until the Store is dropped.
type Store struct {
	mu      sync.Mutex
	volumes map[string]*volume
	now     func() time.Time
	inited  bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		volumes: make(map[string]*volume),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ storage.Engine = (*Store)(nil)

func (s *Store) Version() string {
	return EngineVersion
}

// Init marks the engine ready. Repeated calls are no-ops.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inited {
		s.inited = true
		Logger().Debug("memstore initialized")
	}
	return nil
}

// SetLogger installs l as the package logger.
func (s *Store) SetLogger(l *zap.Logger) {
	SetLogger(l)
}

func (s *Store) Exists(uri string) (bool, error) {
	name, err := parseURI(uri)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.volumes[name]
	return ok, nil
}

// Open opens or creates the repository at uri.
func (s *Store) Open(uri, pwd string, opts storage.RepoOptions) (storage.Repo, error) {
	name, err := parseURI(uri)
	if err != nil {
		return nil, err
	}
	if opts.VersionLimit == 0 {
		return nil, errors.InvalidArgument("version limit must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vol, exists := s.volumes[name]
	switch {
	case exists && opts.CreateNew:
		return nil, errors.Engine(errors.CodeRepoExists, uri)
	case !exists && !opts.Create && !opts.CreateNew:
		return nil, errors.Engine(errors.CodeNotFound, uri)
	case !exists:
		if opts.ReadOnly {
			return nil, errors.Engine(errors.CodeReadOnly, "cannot create a read-only repo")
		}
		vol = s.createVolume(uri, pwd, opts)
		vol.openCount = 1
		s.volumes[name] = vol
		Logger().Info("repo created", zap.String("uri", uri), zap.String("volume_id", vol.id.String()))
	default:
		if err := vol.acquire(pwd, opts.Force); err != nil {
			return nil, err
		}
	}

	return &repo{vol: vol, readOnly: opts.ReadOnly, now: s.now}, nil
}

// RepairSuperBlock restores a damaged super block after checking pwd.
func (s *Store) RepairSuperBlock(uri, pwd string) error {
	vol, err := s.lookup(uri)
	if err != nil {
		return err
	}
	vol.mu.Lock()
	defer vol.mu.Unlock()
	if !vol.checkPassword(pwd) {
		return errors.Engine(errors.CodeDecrypt, "wrong password")
	}
	if vol.damaged {
		Logger().Info("super block repaired", zap.String("uri", uri))
	}
	vol.damaged = false
	return nil
}

// Destroy deletes a repository that is not open.
func (s *Store) Destroy(uri string) error {
	name, err := parseURI(uri)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	vol, ok := s.volumes[name]
	if !ok {
		return errors.Engine(errors.CodeNotFound, uri)
	}
	vol.mu.Lock()
	defer vol.mu.Unlock()
	if vol.openCount > 0 {
		return errors.Engine(errors.CodeRepoOpened, uri)
	}
	delete(s.volumes, name)
	Logger().Info("repo destroyed", zap.String("uri", uri))
	return nil
}

// DamageSuperBlock marks a repository's super block as corrupt so that
// Open fails until RepairSuperBlock runs.
func (s *Store) DamageSuperBlock(uri string) error {
	vol, err := s.lookup(uri)
	if err != nil {
		return err
	}
	vol.mu.Lock()
	vol.damaged = true
	vol.mu.Unlock()
	return nil
}

// StoredBytes reports the bytes held by a repository's blob store.
func (s *Store) StoredBytes(uri string) (uint64, error) {
	vol, err := s.lookup(uri)
	if err != nil {
		return 0, err
	}
	vol.mu.Lock()
	defer vol.mu.Unlock()
	return vol.blobs.stored, nil
}

func (s *Store) lookup(uri string) (*volume, error) {
	name, err := parseURI(uri)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	vol, ok := s.volumes[name]
	if !ok {
		return nil, errors.Engine(errors.CodeNotFound, uri)
	}
	return vol, nil
}

func (s *Store) createVolume(uri, pwd string, opts storage.RepoOptions) *volume {
	now := s.now()
	vol := &volume{
		id:           uuid.New(),
		uri:          uri,
		createdAt:    now,
		compress:     opts.Compress,
		dedup:        opts.DedupChunk,
		versionLimit: opts.VersionLimit,
		cipher:       opts.Cipher,
		blobs:        newBlobStore(opts.Compress),
		root:         newDir("", now),
	}
	vol.setPassword(pwd)
	return vol
}

func parseURI(uri string) (string, error) {
	name, ok := strings.CutPrefix(uri, Scheme)
	if !ok || name == "" || strings.ContainsAny(name, "/\\") {
		return "", errors.Engine(errors.CodeInvalidUri, uri)
	}
	return name, nil
}

func hashPassword(salt []byte, pwd string) [sha256.Size]byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(pwd))
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (v *volume) setPassword(pwd string) {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	v.salt = salt
	v.pwdHash = hashPassword(salt, pwd)
}

func (v *volume) checkPassword(pwd string) bool {
	h := hashPassword(v.salt, pwd)
	return subtle.ConstantTimeCompare(h[:], v.pwdHash[:]) == 1
}

// acquire checks that the volume may be opened and counts the new handle.
func (v *volume) acquire(pwd string, force bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.damaged {
		return errors.Engine(errors.CodeInvalidSuperBlk, v.uri)
	}
	if !v.checkPassword(pwd) {
		return errors.Engine(errors.CodeDecrypt, "wrong password")
	}
	if v.openCount > 0 && !force {
		return errors.Engine(errors.CodeRepoOpened, v.uri)
	}
	v.openCount++
	return nil
}
