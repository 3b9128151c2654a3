package entities

import "time"

// AccountConfig is the stored configuration of one account
type AccountConfig struct {
	AccountID    string
	APIID        int
	APIHash      string
	SessionToken string
	Groups       []int64
	GroupAliases []string
	UpdatedAt    time.Time
}

// HasSession reports whether a session token is stored
func (a *AccountConfig) HasSession() bool {
	return a != nil && a.SessionToken != ""
}

// Refs returns the persisted group selection as references
func (a *AccountConfig) Refs() []GroupRef {
	refs := make([]GroupRef, 0, len(a.Groups)+len(a.GroupAliases))
	for _, id := range a.Groups {
		refs = append(refs, GroupRef{ID: id})
	}
	for _, alias := range a.GroupAliases {
		refs = append(refs, GroupRef{Username: alias})
	}
	return NormalizeRefs(refs)
}

// Clone returns a deep copy
func (a AccountConfig) Clone() AccountConfig {
	c := a
	if a.Groups != nil {
		c.Groups = append([]int64{}, a.Groups...)
	}
	if a.GroupAliases != nil {
		c.GroupAliases = append([]string{}, a.GroupAliases...)
	}
	return c
}

// AccountPatch lists the fields an upsert changes. Nil fields are left untouched;
// a non-nil empty Groups slice clears the selection.
type AccountPatch struct {
	APIID        *int
	APIHash      *string
	SessionToken *string
	Groups       []int64
	GroupAliases []string
}

// Apply merges the patch into cfg
func (p AccountPatch) Apply(cfg *AccountConfig) {
	if p.APIID != nil {
		cfg.APIID = *p.APIID
	}
	if p.APIHash != nil {
		cfg.APIHash = *p.APIHash
	}
	if p.SessionToken != nil {
		cfg.SessionToken = *p.SessionToken
	}
	if p.Groups != nil {
		cfg.Groups = append([]int64{}, p.Groups...)
	}
	if p.GroupAliases != nil {
		cfg.GroupAliases = append([]string{}, p.GroupAliases...)
	}
	if cfg.Groups == nil {
		cfg.Groups = []int64{}
	}
}

// GroupsPatch builds a patch replacing the group selection with refs
func GroupsPatch(refs []GroupRef) AccountPatch {
	ids, aliases := SplitRefs(refs)
	return AccountPatch{Groups: ids, GroupAliases: aliases}
}

// Credentials is what a backend needs to open an authorized connection
type Credentials struct {
	AccountID    string
	APIID        int
	APIHash      string
	SessionToken string
}

// CredentialsOf extracts backend credentials from an account config
func CredentialsOf(cfg *AccountConfig) Credentials {
	return Credentials{
		AccountID:    cfg.AccountID,
		APIID:        cfg.APIID,
		APIHash:      cfg.APIHash,
		SessionToken: cfg.SessionToken,
	}
}
