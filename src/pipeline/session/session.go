package session

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/errors/mark"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/working_dir"
)

// NotFoundMark marks lookups of sessions that do not exist or have
// already been torn down.
var NotFoundMark = errors.New("session not found")

// Session owns one user's ephemeral output directory. The directory
// is created lazily on first upload, reused across uploads within the
// session, and removed only by Teardown. Nothing in it survives the
// session.
type Session struct {
	id   string
	root string

	mutex     sync.Mutex
	outputDir string
	artifacts map[stem.Name]string
}

func (s *Session) ID() string {
	return s.id
}

// OutputDir returns the session output directory, creating it on
// first use.
func (s *Session) OutputDir() (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.outputDir != "" {
		return s.outputDir, nil
	}

	dir := filepath.Join(s.root, s.id)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", cerr.Field("dir", dir).
			Wrap(err).Error("Failed to create session output dir")
	}

	log.WithField("session_id", s.id).Info("Created session output dir")

	s.outputDir = dir
	return dir, nil
}

// RecordArtifacts merges newly written artifacts into the session's
// registry, overwriting prior entries for the same stems.
func (s *Session) RecordArtifacts(paths map[stem.Name]string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for stemName, path := range paths {
		s.artifacts[stemName] = path
	}
}

func (s *Session) Artifacts() map[stem.Name]string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := make(map[stem.Name]string, len(s.artifacts))
	for stemName, path := range s.artifacts {
		copied[stemName] = path
	}
	return copied
}

func (s *Session) ArtifactPath(stemName stem.Name) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	path, ok := s.artifacts[stemName]
	return path, ok
}

func (s *Session) teardown() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.artifacts = map[stem.Name]string{}

	if s.outputDir == "" {
		return nil
	}

	if err := os.RemoveAll(s.outputDir); err != nil {
		return cerr.Field("dir", s.outputDir).
			Wrap(err).Error("Failed to remove session output dir")
	}

	log.WithField("session_id", s.id).Info("Removed session output dir")

	s.outputDir = ""
	return nil
}

// Manager is the registry of live sessions. Each session's state is
// isolated - two sessions never share an output directory.
type Manager struct {
	root working_dir.WorkingDir

	mutex    sync.Mutex
	sessions map[string]*Session
}

func NewManager(rootStr string) (*Manager, error) {
	root, err := working_dir.NewWorkingDir(rootStr)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to create session root dir")
	}

	return &Manager{
		root:     root,
		sessions: map[string]*Session{},
	}, nil
}

func (m *Manager) Create() *Session {
	sess := &Session{
		id:        uuid.New().String(),
		root:      m.root.Root(),
		artifacts: map[stem.Name]string{},
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[sess.id] = sess

	log.WithField("session_id", sess.id).Info("Created session")

	return sess
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, mark.Message(NotFoundMark, "No session exists for this ID")
	}

	return sess, nil
}

// Teardown removes the session and everything it wrote to disk.
func (m *Manager) Teardown(id string) error {
	m.mutex.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mutex.Unlock()

	if !ok {
		return mark.Message(NotFoundMark, "No session exists for this ID")
	}

	if err := sess.teardown(); err != nil {
		return cerr.Field("session_id", id).Wrap(err).Error("Failed to tear down session")
	}

	return nil
}

// TeardownAll runs at process shutdown so no session output outlives
// the serving process.
func (m *Manager) TeardownAll() {
	m.mutex.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = map[string]*Session{}
	m.mutex.Unlock()

	for _, sess := range sessions {
		if err := sess.teardown(); err != nil {
			cerr.Log(err)
		}
	}
}
