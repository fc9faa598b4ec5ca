package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
)

// MemoryStore implements Store with in-process maps. It backs development
// runs without a database and every unit test.
type MemoryStore struct {
	mu          sync.RWMutex
	references  map[string]models.FileReference
	credentials map[string]models.ChannelCredential
	sessions    map[string]models.UploadSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		references:  make(map[string]models.FileReference),
		credentials: make(map[string]models.ChannelCredential),
		sessions:    make(map[string]models.UploadSession),
	}
}

func (m *MemoryStore) SaveFileReference(ref models.FileReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.references[ref.ID] = ref
	return nil
}

func (m *MemoryStore) GetFileReference(id string) (models.FileReference, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.references[id]
	return ref, ok
}

func (m *MemoryStore) ListFileReferencesByOwner(ownerID string) ([]models.FileReference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var refs []models.FileReference
	for _, ref := range m.references {
		if ref.OwnerID == ownerID {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].CreatedAt.After(refs[j].CreatedAt)
	})
	return refs, nil
}

func (m *MemoryStore) ListExpiredFileReferences(now time.Time) ([]models.FileReference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var refs []models.FileReference
	for _, ref := range m.references {
		if !ref.Pinned && now.After(ref.ExpiresAt) {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func (m *MemoryStore) DeleteFileReference(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.references[id]; !ok {
		return false
	}
	delete(m.references, id)
	return true
}

func (m *MemoryStore) SaveCredential(cred models.ChannelCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[cred.ChannelID] = cred
	return nil
}

func (m *MemoryStore) GetCredential(channelID string) (models.ChannelCredential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.credentials[channelID]
	return cred, ok
}

func (m *MemoryStore) DeleteCredential(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credentials[channelID]; !ok {
		return false
	}
	delete(m.credentials, channelID)
	return true
}

func (m *MemoryStore) SaveUploadSession(session models.UploadSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStore) GetUploadSession(id string) (models.UploadSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

func (m *MemoryStore) ListUploadSessionsByOwner(ownerID string, status models.UploadStatus) ([]models.UploadSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []models.UploadSession
	for _, session := range m.sessions {
		if session.OwnerID != ownerID {
			continue
		}
		if status != "" && session.Status != status {
			continue
		}
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (m *MemoryStore) ListUploadSessionsByStatus(statuses ...models.UploadStatus) ([]models.UploadSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []models.UploadSession
	for _, session := range m.sessions {
		for _, s := range statuses {
			if session.Status == s {
				sessions = append(sessions, session)
				break
			}
		}
	}
	return sessions, nil
}

func (m *MemoryStore) LiveSessionForReference(referenceID string) (models.UploadSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, session := range m.sessions {
		if session.FileReferenceID == referenceID && session.Status.Live() {
			return session, true
		}
	}
	return models.UploadSession{}, false
}
