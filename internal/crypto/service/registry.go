package service

import (
	"fmt"
	"slices"
	"sync"

	cryptoDomain "github.com/allisson/consents/internal/crypto/domain"
)

// Registry is the catalogue of crypto providers.
//
// New data is always encrypted with the current default of its role, while
// historical data is decrypted with whatever provider id was stored next to it.
// Providers are registered once at startup; after that the registry is only read.
type Registry struct {
	mu             sync.RWMutex
	providers      map[string]Provider
	dataProviderID string
	idProviderID   string
	aeadManager    AEADManager
}

// NewRegistry creates an empty registry that builds providers with aeadManager.
func NewRegistry(aeadManager AEADManager) *Registry {
	return &Registry{
		providers:   make(map[string]Provider),
		aeadManager: aeadManager,
	}
}

// Register builds a password-based provider and installs it under id.
// Registering an existing id replaces the previous provider.
func (r *Registry) Register(id string, params cryptoDomain.ProviderParams, password []byte) error {
	provider, err := NewPasswordCipher(id, params, password, r.aeadManager)
	if err != nil {
		return err
	}
	r.RegisterProvider(provider)
	return nil
}

// RegisterProvider installs an already built provider.
func (r *Registry) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// SetDefaults selects the default providers of the data and id roles.
// Both ids must already be registered.
func (r *Registry) SetDefaults(dataProviderID, idProviderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for role, id := range map[cryptoDomain.Role]string{
		cryptoDomain.RoleData: dataProviderID,
		cryptoDomain.RoleID:   idProviderID,
	} {
		if _, ok := r.providers[id]; id == "" || !ok {
			return fmt.Errorf("%w: role %s, provider %q", cryptoDomain.ErrDefaultProviderNotConfigured, role, id)
		}
	}

	r.dataProviderID = dataProviderID
	r.idProviderID = idProviderID
	return nil
}

// CurrentDataProvider returns the default provider for consent payloads.
func (r *Registry) CurrentDataProvider() (Provider, error) {
	return r.current(cryptoDomain.RoleData)
}

// CurrentIDProvider returns the default provider for identifiers.
func (r *Registry) CurrentIDProvider() (Provider, error) {
	return r.current(cryptoDomain.RoleID)
}

// ProviderByID returns the provider registered under id or ErrUnknownProvider.
func (r *Registry) ProviderByID(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cryptoDomain.ErrUnknownProvider, id)
	}
	return provider, nil
}

// IDs returns the registered provider ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) current(role cryptoDomain.Role) (Provider, error) {
	r.mu.RLock()
	id := r.dataProviderID
	if role == cryptoDomain.RoleID {
		id = r.idProviderID
	}
	r.mu.RUnlock()

	if id == "" {
		return nil, fmt.Errorf("%w: role %s", cryptoDomain.ErrDefaultProviderNotConfigured, role)
	}
	return r.ProviderByID(id)
}
