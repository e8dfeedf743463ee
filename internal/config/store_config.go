package config

import "time"

type StoreConfig interface {
	GetAPIKey() string
	GetStoreProjectID() string
	GetFirestoreBaseURL() string
	GetIdentityBaseURL() string
	GetProjectsCollection() string
	GetListCacheTTL() time.Duration
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetAPIKey() string {
	return GetEnv("STORE_API_KEY", "")
}

func (Store) GetStoreProjectID() string {
	return GetEnv("STORE_PROJECT_ID", "")
}

func (Store) GetFirestoreBaseURL() string {
	return GetEnv("FIRESTORE_BASE_URL", "https://firestore.googleapis.com")
}

func (Store) GetIdentityBaseURL() string {
	return GetEnv("IDENTITY_BASE_URL", "https://identitytoolkit.googleapis.com")
}

func (Store) GetProjectsCollection() string {
	return GetEnv("PROJECTS_COLLECTION", "projects")
}

// GetListCacheTTL is how long a fetched project list may serve UI refreshes.
// The remote store stays the source of truth; the cache is never authoritative.
func (Store) GetListCacheTTL() time.Duration {
	if d, err := time.ParseDuration(GetEnv("LIST_CACHE_TTL", "")); err == nil && d >= 0 {
		return d
	}
	return 5 * time.Second
}
