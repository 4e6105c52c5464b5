package chains

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry maps canonical chain identifiers to descriptors. Registration order
// is kept so that guessing is deterministic.
type Registry struct {
	mu         sync.RWMutex
	byID       map[string]*Descriptor
	order      []*Descriptor
	aliases    map[string]string
	defaultHex string
	logger     *zap.Logger
}

// NewRegistry creates a registry. defaultHex names the descriptor tried first
// by Guess; it may be empty.
func NewRegistry(defaultHex string, descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		byID:       make(map[string]*Descriptor),
		aliases:    make(map[string]string),
		defaultHex: defaultHex,
		logger:     zap.NewNop(),
	}
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	if defaultHex != "" {
		if _, ok := r.byID[defaultHex]; !ok {
			return nil, fmt.Errorf("default hex chain %q is not registered", defaultHex)
		}
	}
	return r, nil
}

// SetLogger sets the logger used for warnings about synthesized chains.
func (r *Registry) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	r.mu.Lock()
	r.logger = l
	r.mu.Unlock()
}

// Register adds d. Canonical identifiers must be unique.
func (r *Registry) Register(d Descriptor) error {
	id := d.ChainString()
	if id == "" {
		return fmt.Errorf("chain descriptor %q has no identifier", d.Name)
	}
	d.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("chain %q already registered", id)
	}
	r.byID[id] = &d
	r.order = append(r.order, &d)
	return nil
}

// Replace swaps the descriptor registered under d's identifier, or registers
// it if absent. Used for configuration overrides.
func (r *Registry) Replace(d Descriptor) {
	d.ID = d.ChainString()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Callers may still hold the old pointer, so swap it rather than
	// writing through it.
	if old, exists := r.byID[d.ID]; exists {
		for i, o := range r.order {
			if o == old {
				r.order[i] = &d
			}
		}
		r.byID[d.ID] = &d
		return
	}
	r.byID[d.ID] = &d
	r.order = append(r.order, &d)
}

// SetDefaultHex changes the chain Guess tries first.
func (r *Registry) SetDefaultHex(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.lookup(normalizeTag(id))
	if !ok {
		return fmt.Errorf("default hex chain %q is not registered", id)
	}
	r.defaultHex = d.ID
	return nil
}

// Alias makes tag resolve to the chain id.
func (r *Registry) Alias(tag, id string) {
	r.mu.Lock()
	r.aliases[normalizeTag(tag)] = id
	r.mu.Unlock()
}

// Get returns the descriptor registered under id (after alias resolution).
func (r *Registry) Get(id string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(normalizeTag(id))
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Descriptor(nil), r.order...)
}

// ByEVMChainID finds the descriptor carrying an EVM chain id.
func (r *Registry) ByEVMChainID(chainID int64) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.order {
		if d.EVMChainID != 0 && d.EVMChainID == chainID {
			return d, true
		}
	}
	return nil, false
}

// Guess returns the chain an address most likely belongs to. The default hex
// chain is tried first because its format is shared by many chains; the rest
// are scanned in registration order. Not guaranteed accurate.
func (r *Registry) Guess(value string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.byID[r.defaultHex]; ok && d.IsValidAddress(value) {
		return d, true
	}
	for _, d := range r.order {
		if d.Synthesized {
			continue
		}
		if d.IsValidAddress(value) {
			return d, true
		}
	}
	return nil, false
}

// Resolve returns the descriptor for tag. Unknown tags get a permissive
// descriptor that is registered so later lookups for the same tag succeed.
func (r *Registry) Resolve(tag string) *Descriptor {
	key := normalizeTag(tag)

	r.mu.RLock()
	d, ok := r.lookup(key)
	r.mu.RUnlock()
	if ok {
		return d
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have synthesized it meanwhile.
	if d, ok := r.lookup(key); ok {
		return d
	}

	r.logger.Warn("using permissive descriptor for unknown chain", zap.String("chain", key))
	d = permissive(tag, key)
	r.byID[key] = d
	r.order = append(r.order, d)
	return d
}

// Peek is Resolve without registration: unknown tags get a fresh permissive
// descriptor that is never stored. Use it for untrusted input.
func (r *Registry) Peek(tag string) *Descriptor {
	key := normalizeTag(tag)

	r.mu.RLock()
	d, ok := r.lookup(key)
	r.mu.RUnlock()
	if ok {
		return d
	}
	return permissive(tag, key)
}

func permissive(tag, key string) *Descriptor {
	return &Descriptor{Name: strings.TrimSpace(tag), ID: key, Synthesized: true}
}

func (r *Registry) lookup(key string) (*Descriptor, bool) {
	if id, ok := r.aliases[key]; ok {
		key = id
	}
	d, ok := r.byID[key]
	return d, ok
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
