// Package wallet holds the decrypted wallet model: the account set, the
// selection, and the secrets needed to re-derive or recall private keys.
package wallet

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/catalyst-network/catalyst-wallet/codec"
	"github.com/catalyst-network/catalyst-wallet/keys"
)

const dataVersion = 2

// Wallet kinds. A mnemonic wallet re-derives keys on demand; a private-key
// wallet holds exactly one imported key.
const (
	KindMnemonic   = "mnemonic_v1"
	KindPrivateKey = "private_key_v1"
)

var (
	ErrUnknownAccount       = errors.New("unknown account id")
	ErrUnsupportedOperation = errors.New("operation not supported for this wallet kind")
	ErrUnknownPayload       = errors.New("unrecognized wallet payload")
)

// Account is one spendable identity within a wallet.
type Account struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	Address      string  `json:"address"`
	AccountIndex *uint32 `json:"accountIndex,omitempty"`
	CreatedAtMS  int64   `json:"createdAt"`
}

// Data is the version-2 wallet payload stored inside the vault.
type Data struct {
	Version          int       `json:"version"`
	Kind             string    `json:"kind"`
	Name             string    `json:"name"`
	CreatedAtMS      int64     `json:"createdAt"`
	Accounts         []Account `json:"accounts"`
	SelectedID       string    `json:"selectedAccountId"`
	Mnemonic         string    `json:"mnemonic,omitempty"`
	Passphrase       string    `json:"passphrase,omitempty"`
	NextAccountIndex uint32    `json:"nextAccountIndex,omitempty"`
	PrivateKeyHex    string    `json:"privateKeyHex,omitempty"`
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}

func newAccount(label, address string, index *uint32) Account {
	return Account{
		ID:           uuid.NewString(),
		Label:        label,
		Address:      address,
		AccountIndex: index,
		CreatedAtMS:  nowMS(),
	}
}

// CreateFromMnemonic builds a mnemonic wallet with accounts 0..initial-1 and
// selects the first one.
func CreateFromMnemonic(name, mnemonic, passphrase string, initial uint32) (*Data, error) {
	if initial < 1 {
		return nil, errors.New("need at least one initial account")
	}
	seed, err := keys.SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}

	w := &Data{
		Version:          dataVersion,
		Kind:             KindMnemonic,
		Name:             name,
		CreatedAtMS:      nowMS(),
		Mnemonic:         mnemonic,
		Passphrase:       passphrase,
		NextAccountIndex: initial,
	}
	for i := uint32(0); i < initial; i++ {
		addr, err := keys.DeriveAccountAddress(seed, i)
		if err != nil {
			return nil, err
		}
		idx := i
		w.Accounts = append(w.Accounts, newAccount(accountLabel(i), addr, &idx))
	}
	w.SelectedID = w.Accounts[0].ID
	return w, nil
}

// CreateFromPrivateKey builds a single-account wallet around an imported key.
func CreateFromPrivateKey(name, privHex string) (*Data, error) {
	key, err := keys.PrivateKeyFromHex(privHex)
	if err != nil {
		return nil, err
	}
	canonical := key.Hex()
	acct := newAccount("Account 1", key.Address(), nil)
	return &Data{
		Version:       dataVersion,
		Kind:          KindPrivateKey,
		Name:          name,
		CreatedAtMS:   nowMS(),
		Accounts:      []Account{acct},
		SelectedID:    acct.ID,
		PrivateKeyHex: canonical,
	}, nil
}

// AddAccount derives the next account of a mnemonic wallet, appends it and
// selects it.
func (w *Data) AddAccount() (*Account, error) {
	if w.Kind != KindMnemonic {
		return nil, errors.Wrap(ErrUnsupportedOperation, "add-account on a private-key wallet")
	}
	seed, err := keys.SeedFromMnemonic(w.Mnemonic, w.Passphrase)
	if err != nil {
		return nil, err
	}
	index := w.NextAccountIndex
	addr, err := keys.DeriveAccountAddress(seed, index)
	if err != nil {
		return nil, err
	}
	idx := index
	acct := newAccount(accountLabel(index), addr, &idx)
	w.Accounts = append(w.Accounts, acct)
	w.SelectedID = acct.ID
	w.NextAccountIndex = index + 1
	return &w.Accounts[len(w.Accounts)-1], nil
}

// SelectAccount moves the selection to the given account id.
func (w *Data) SelectAccount(id string) error {
	for _, acct := range w.Accounts {
		if acct.ID == id {
			w.SelectedID = id
			return nil
		}
	}
	return errors.Wrapf(ErrUnknownAccount, "id %q", id)
}

// Selected returns the currently selected account.
func (w *Data) Selected() (*Account, error) {
	return w.Account(w.SelectedID)
}

// Account looks up an account by id.
func (w *Data) Account(id string) (*Account, error) {
	for i := range w.Accounts {
		if w.Accounts[i].ID == id {
			return &w.Accounts[i], nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownAccount, "id %q", id)
}

// PrivateKeyFor returns the signing key for the given account. Mnemonic
// wallets re-derive on every call; nothing is cached.
func (w *Data) PrivateKeyFor(id string) (keys.PrivateKey, error) {
	acct, err := w.Account(id)
	if err != nil {
		return keys.PrivateKey{}, err
	}
	switch w.Kind {
	case KindPrivateKey:
		return keys.PrivateKeyFromHex(w.PrivateKeyHex)
	case KindMnemonic:
		if acct.AccountIndex == nil {
			return keys.PrivateKey{}, errors.Wrapf(ErrUnknownAccount, "account %q has no derivation index", id)
		}
		seed, err := keys.SeedFromMnemonic(w.Mnemonic, w.Passphrase)
		if err != nil {
			return keys.PrivateKey{}, err
		}
		return keys.DeriveAccountKey(seed, *acct.AccountIndex)
	default:
		return keys.PrivateKey{}, errors.Wrapf(ErrUnknownPayload, "kind %q", w.Kind)
	}
}

// Validate checks the structural invariants of a wallet payload.
func (w *Data) Validate() error {
	if len(w.Accounts) == 0 {
		return errors.New("wallet has no accounts")
	}
	if _, err := w.Account(w.SelectedID); err != nil {
		return errors.Wrap(err, "selected account")
	}
	if w.Kind == KindMnemonic {
		seen := make(map[uint32]bool, len(w.Accounts))
		for _, acct := range w.Accounts {
			if acct.AccountIndex == nil {
				return errors.Errorf("mnemonic account %q lacks an index", acct.ID)
			}
			if *acct.AccountIndex >= w.NextAccountIndex {
				return errors.Errorf("account index %d not below next index %d", *acct.AccountIndex, w.NextAccountIndex)
			}
			if seen[*acct.AccountIndex] {
				return errors.Errorf("duplicate account index %d", *acct.AccountIndex)
			}
			seen[*acct.AccountIndex] = true
		}
	}
	return nil
}

// legacyPayload is the pre-versioning storage shape: a bare imported key.
type legacyPayload struct {
	PrivateKeyHex string `json:"privateKeyHex"`
}

// ParseAny accepts a current v2 payload or migrates a legacy private-key
// payload. Every other shape is a hard error.
func ParseAny(payload []byte) (*Data, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, errors.Wrap(ErrUnknownPayload, err.Error())
	}

	if probe.Version == dataVersion {
		var w Data
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, errors.Wrap(ErrUnknownPayload, err.Error())
		}
		if err := w.Validate(); err != nil {
			return nil, errors.Wrap(ErrUnknownPayload, err.Error())
		}
		return &w, nil
	}
	if probe.Version != 0 {
		return nil, errors.Wrapf(ErrUnknownPayload, "version %d", probe.Version)
	}

	var legacy legacyPayload
	if err := json.Unmarshal(payload, &legacy); err != nil || !codec.IsHex32(legacy.PrivateKeyHex) {
		return nil, errors.Wrap(ErrUnknownPayload, "no recognizable wallet shape")
	}
	return CreateFromPrivateKey("Imported wallet", legacy.PrivateKeyHex)
}

// Marshal renders the wallet in its vault-plaintext JSON form.
func (w *Data) Marshal() ([]byte, error) {
	return json.Marshal(w)
}

func accountLabel(index uint32) string {
	return "Account " + strconv.FormatUint(uint64(index)+1, 10)
}
