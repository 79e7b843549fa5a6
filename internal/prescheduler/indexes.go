package prescheduler

// indexes tracks the three secondary lookup sets the cancellation API
// needs: by runTag, by sessionID, and by (sessionID, runTag). Every live
// handle in the heap appears in exactly the index sets implied by its
// sessionID/runTag; an empty runTag means no tag index entry.
type indexes struct {
	byTag        map[string]map[Handle]struct{}
	bySession    map[uint32]map[Handle]struct{}
	bySessionTag map[sessionTagKey]map[Handle]struct{}
}

type sessionTagKey struct {
	sessionID uint32
	runTag    string
}

func newIndexes() *indexes {
	return &indexes{
		byTag:        make(map[string]map[Handle]struct{}),
		bySession:    make(map[uint32]map[Handle]struct{}),
		bySessionTag: make(map[sessionTagKey]map[Handle]struct{}),
	}
}

func (ix *indexes) add(b *pendingBundle) {
	addToSet(ix.bySession, b.sessionID, b.handle)
	if b.runTag != "" {
		addToSet(ix.byTag, b.runTag, b.handle)
		addToSet(ix.bySessionTag, sessionTagKey{b.sessionID, b.runTag}, b.handle)
	}
}

func (ix *indexes) remove(b *pendingBundle) {
	removeFromSet(ix.bySession, b.sessionID, b.handle)
	if b.runTag != "" {
		removeFromSet(ix.byTag, b.runTag, b.handle)
		removeFromSet(ix.bySessionTag, sessionTagKey{b.sessionID, b.runTag}, b.handle)
	}
}

func (ix *indexes) handlesForTag(tag string) map[Handle]struct{} {
	return ix.byTag[tag]
}

func (ix *indexes) handlesForSession(session uint32) map[Handle]struct{} {
	return ix.bySession[session]
}

func (ix *indexes) handlesForSessionTag(session uint32, tag string) map[Handle]struct{} {
	return ix.bySessionTag[sessionTagKey{session, tag}]
}

func addToSet[K comparable](m map[K]map[Handle]struct{}, key K, h Handle) {
	set, ok := m[key]
	if !ok {
		set = make(map[Handle]struct{})
		m[key] = set
	}
	set[h] = struct{}{}
}

func removeFromSet[K comparable](m map[K]map[Handle]struct{}, key K, h Handle) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, h)
	if len(set) == 0 {
		delete(m, key)
	}
}
