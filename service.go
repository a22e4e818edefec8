package gitbrowser

// Service is the flat operation surface consumed by the request dispatcher at
// the process boundary. Every method maps to one dispatcher operation and is
// a thin delegation into the Core; no crypto or policy lives here.
type Service interface {
	Unlock(password string) (UnlockResult, error)
	Lock()
	Status() (Status, error)

	SaveCredential(url, username, password string) (string, error)
	ListCredentials() ([]Credential, error)
	CredentialsForURL(url string) ([]Credential, error)
	DecryptCredential(id string) (string, error)
	UpdateCredential(id string, username, password *string) error
	DeleteCredential(id string) error
	GeneratePassword(opts PasswordOptions) (string, error)

	SecretStore(key, value string) error
	SecretGet(key string) (SecretResult, error)
	SecretDelete(key string) error
}

// UnlockResult reports the outcome of an unlock attempt. OK is false for a
// wrong password; RekeyError carries a provider-store migration failure that
// did not prevent the unlock itself.
type UnlockResult struct {
	OK         bool   `json:"ok"`
	RekeyError string `json:"rekey_error,omitempty"`
}

// Status is the dispatcher's view of the vault state. Initialized is false
// until the first master password has been set; dispatchers use it to show a
// create-password prompt instead of an unlock prompt.
type Status struct {
	Unlocked    bool `json:"unlocked"`
	Initialized bool `json:"initialized"`
}

// SecretResult carries a secret lookup. Value is nil when no row exists for
// the key; the dispatcher serializes that as an explicit null.
type SecretResult struct {
	Value *string `json:"value"`
}

type coreService struct {
	core *Core
}

// NewService wraps a Core in the dispatcher-facing Service.
func NewService(core *Core) Service {
	return &coreService{core: core}
}

func (s *coreService) Unlock(password string) (UnlockResult, error) {
	ok, err := s.core.Unlock(password)
	if err != nil && ok {
		// Unlock succeeded, only the rekey pass failed. Report it without
		// failing the operation.
		return UnlockResult{OK: true, RekeyError: err.Error()}, nil
	}
	if err != nil {
		return UnlockResult{}, err
	}
	return UnlockResult{OK: ok}, nil
}

func (s *coreService) Lock() {
	s.core.Lock()
}

func (s *coreService) Status() (Status, error) {
	initialized, err := s.core.Vault.IsInitialized()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Unlocked:    s.core.Vault.IsUnlocked(),
		Initialized: initialized,
	}, nil
}

func (s *coreService) SaveCredential(url, username, password string) (string, error) {
	return s.core.Vault.SaveCredential(url, username, password)
}

func (s *coreService) ListCredentials() ([]Credential, error) {
	return s.core.Vault.ListCredentials()
}

func (s *coreService) CredentialsForURL(url string) ([]Credential, error) {
	return s.core.Vault.Credentials(url)
}

func (s *coreService) DecryptCredential(id string) (string, error) {
	return s.core.Vault.DecryptPassword(id)
}

func (s *coreService) UpdateCredential(id string, username, password *string) error {
	return s.core.Vault.UpdateCredential(id, username, password)
}

func (s *coreService) DeleteCredential(id string) error {
	return s.core.Vault.DeleteCredential(id)
}

func (s *coreService) GeneratePassword(opts PasswordOptions) (string, error) {
	return GeneratePassword(opts)
}

func (s *coreService) SecretStore(key, value string) error {
	return s.core.Secrets.Store(key, value)
}

func (s *coreService) SecretGet(key string) (SecretResult, error) {
	value, found, err := s.core.Secrets.Get(key)
	if err != nil {
		return SecretResult{}, err
	}
	if !found {
		return SecretResult{}, nil
	}
	return SecretResult{Value: &value}, nil
}

func (s *coreService) SecretDelete(key string) error {
	return s.core.Secrets.Delete(key)
}
