package keychain

import (
	"encoding/json"
	"time"

	"socialscope-backend/lib/timezone"
	"socialscope-backend/services/keychain/db"
)

// refresh this much before the upstream expiry so an in-flight call
// never races a token that dies mid-request
const expiryBuffer = time.Minute * 5

// Credential is one platform's secret material. It is replaced
// wholesale on refresh, never patched field by field.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	// zero means the credential never expires
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	// free-form auxiliary data: client id/secret, owning account id,
	// refresh/token endpoint urls
	Extra map[string]string `json:"additional_data,omitempty"`
}

func (c Credential) Expired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return timezone.Now().After(c.ExpiresAt)
}

func (c Credential) ExpiringSoon() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return timezone.Now().Add(expiryBuffer).After(c.ExpiresAt)
}

func (c Credential) Refreshable() bool {
	return c.RefreshToken != ""
}

func credentialFromRow(row db.Credential) (Credential, error) {
	cred := Credential{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
	}
	if row.ExpiresAt != 0 {
		cred.ExpiresAt = time.Unix(row.ExpiresAt, 0).In(timezone.Location)
	}
	if row.AdditionalData != "" {
		err := json.Unmarshal([]byte(row.AdditionalData), &cred.Extra)
		if err != nil {
			return Credential{}, err
		}
	}
	return cred, nil
}

func rowFromCredential(platform string, cred Credential) (db.UpsertCredentialParams, error) {
	extra := "{}"
	if len(cred.Extra) > 0 {
		serialized, err := json.Marshal(cred.Extra)
		if err != nil {
			return db.UpsertCredentialParams{}, err
		}
		extra = string(serialized)
	}

	var expiresAt int64
	if !cred.ExpiresAt.IsZero() {
		expiresAt = cred.ExpiresAt.Unix()
	}

	return db.UpsertCredentialParams{
		Platform:       platform,
		AccessToken:    cred.AccessToken,
		RefreshToken:   cred.RefreshToken,
		ExpiresAt:      expiresAt,
		AdditionalData: extra,
		UpdatedAt:      timezone.Now().Unix(),
	}, nil
}
