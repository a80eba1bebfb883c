package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	PayloadFormatRawToken   = "raw_token"
	PayloadFormatJSONBundle = "json_bundle"
)

type BundleCodec interface {
	Format() string
	Encode(bundle CredentialBundle) (string, error)
	Decode(payload string) (CredentialBundle, error)
}

// JSONBundleCodec produces the payload shape the runtime login handlers parse.
// Key names and their order are part of the wire contract.
type JSONBundleCodec struct{}

func (JSONBundleCodec) Format() string {
	return PayloadFormatJSONBundle
}

type jsonBundlePayload struct {
	Access       string `json:"access,omitempty"`
	Token        string `json:"token,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	Refresh      string `json:"refresh,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Username     string `json:"username,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	Password     string `json:"password,omitempty"`
}

func (JSONBundleCodec) Encode(bundle CredentialBundle) (string, error) {
	payload := jsonBundlePayload{
		Access:       bundle.Token,
		Token:        bundle.Token,
		AccessToken:  bundle.Token,
		Refresh:      bundle.RefreshToken,
		RefreshToken: bundle.RefreshToken,
		Username:     bundle.Username,
		UserID:       bundle.UserID,
		Password:     bundle.Password,
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return "", fmt.Errorf("core: encode credential payload: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (JSONBundleCodec) Decode(payload string) (CredentialBundle, error) {
	if strings.TrimSpace(payload) == "" {
		return CredentialBundle{}, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonBundlePayload{}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return CredentialBundle{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	return CredentialBundle{
		Token:        firstNonEmpty(decoded.Token, decoded.AccessToken, decoded.Access),
		RefreshToken: firstNonEmpty(decoded.RefreshToken, decoded.Refresh),
		Username:     decoded.Username,
		UserID:       decoded.UserID,
		Password:     decoded.Password,
	}, nil
}

type RawTokenCodec struct{}

func (RawTokenCodec) Format() string {
	return PayloadFormatRawToken
}

func (RawTokenCodec) Encode(bundle CredentialBundle) (string, error) {
	if !bundle.Usable() {
		return "", fmt.Errorf("core: raw token payload requires a token")
	}
	return bundle.Token, nil
}

func (RawTokenCodec) Decode(payload string) (CredentialBundle, error) {
	if strings.TrimSpace(payload) == "" {
		return CredentialBundle{}, fmt.Errorf("core: raw token payload is empty")
	}
	return CredentialBundle{Token: payload}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
