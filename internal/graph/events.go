package graph

import "log/slog"

// Incremental maintenance. Every accepted change updates the document's
// descriptor and then recomputes the derived state globally: shared-relation
// group membership changes with any edit, so the shared passes must re-run
// across the corpus. This is O(corpus) per edit by design; the correctness
// baseline is that the edge set always equals a full rebuild's.
//
// All handlers are no-ops until the index has been built at least once; a
// reader's EnsureReady is responsible for the first build.

// OnModified rebuilds one document's contributions after an edit.
func (m *Manager) OnModified(path string) {
	m.upsertDocument(path)
}

// OnCreated indexes a newly created document.
func (m *Manager) OnCreated(path string) {
	m.upsertDocument(path)
}

// OnRenamed removes the old path's contributions, then indexes the document
// under its new path.
func (m *Manager) OnRenamed(oldPath, newPath string) {
	m.mu.Lock()
	if !m.built {
		m.mu.Unlock()
		return
	}
	delete(m.descriptors, oldPath)
	m.mu.Unlock()
	m.upsertDocument(newPath)
}

// OnDeleted removes a document's node, aliases, and every edge referencing
// it in either direction.
func (m *Manager) OnDeleted(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.built {
		return
	}
	if _, ok := m.descriptors[path]; !ok {
		return
	}
	delete(m.descriptors, path)
	m.st = computeState(m.descriptors)
}

func (m *Manager) upsertDocument(path string) {
	m.mu.RLock()
	built := m.built
	m.mu.RUnlock()
	if !built {
		return
	}

	meta, ok := m.host.Metadata(path)
	if !ok {
		// The document vanished or became ineligible between the event and
		// the lookup; treat as deletion.
		m.OnDeleted(path)
		return
	}

	cfg := m.settings.Get()
	desc, err := buildDescriptor(meta, m.host, cfg)
	if err != nil {
		m.logger.Warn("graph: descriptor build failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.built {
		return
	}
	m.descriptors[path] = desc
	m.st = computeState(m.descriptors)
}
