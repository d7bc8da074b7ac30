// Package jose es el servicio de firma/verificación consumido por el core
// (id_token, assertions JWT-bearer). Las claves se inyectan; la gestión de
// claves queda fuera del motor.
package jose

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// KeySet mantiene la clave activa de firma y las públicas por KID.
type KeySet struct {
	activeKID string
	priv      ed25519.PrivateKey
	pubs      map[string]ed25519.PublicKey
}

// NewKeySet crea un key set con una clave activa.
func NewKeySet(kid string, priv ed25519.PrivateKey) *KeySet {
	return &KeySet{
		activeKID: kid,
		priv:      priv,
		pubs:      map[string]ed25519.PublicKey{kid: priv.Public().(ed25519.PublicKey)},
	}
}

// NewEphemeralKeySet genera una clave Ed25519 efímera (dev/tests).
func NewEphemeralKeySet() (*KeySet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	var kidRaw [8]byte
	if _, err := rand.Read(kidRaw[:]); err != nil {
		return nil, err
	}
	kid := base64.RawURLEncoding.EncodeToString(kidRaw[:])
	return NewKeySet(kid, priv), nil
}

// NewKeySetFromSeed reconstruye la clave activa desde un seed Ed25519 en
// base64url raw (32 bytes).
func NewKeySetFromSeed(kid, seed string) (*KeySet, error) {
	raw, err := base64.RawURLEncoding.DecodeString(seed)
	if err != nil || len(raw) != ed25519.SeedSize {
		return nil, errors.New("jose: signing seed must be 32 bytes base64url")
	}
	return NewKeySet(kid, ed25519.NewKeyFromSeed(raw)), nil
}

// AddPublic registra una clave pública adicional (retiring keys).
func (ks *KeySet) AddPublic(kid string, pub ed25519.PublicKey) {
	ks.pubs[kid] = pub
}

// PublicKeyByKID busca una clave pública por KID.
func (ks *KeySet) PublicKeyByKID(kid string) (ed25519.PublicKey, error) {
	pub, ok := ks.pubs[kid]
	if !ok {
		return nil, fmt.Errorf("jose: unknown kid %q", kid)
	}
	return pub, nil
}

// PublicJWKS retorna las claves públicas como entries JWK (OKP/Ed25519),
// listas para servir en el endpoint jwks.
func (ks *KeySet) PublicJWKS() []map[string]string {
	out := make([]map[string]string, 0, len(ks.pubs))
	for kid, pub := range ks.pubs {
		out = append(out, map[string]string{
			"kty": "OKP",
			"crv": "Ed25519",
			"alg": "EdDSA",
			"use": "sig",
			"kid": kid,
			"x":   base64.RawURLEncoding.EncodeToString(pub),
		})
	}
	return out
}

// Signer firma tokens con la clave activa del key set.
type Signer struct {
	Iss  string // claim "iss"
	Keys *KeySet
}

// NewSigner crea el signer para el issuer dado.
func NewSigner(iss string, keys *KeySet) *Signer {
	return &Signer{Iss: iss, Keys: keys}
}

// SignClaims firma un MapClaims arbitrario, setea kid/typ y retorna el JWT.
func (s *Signer) SignClaims(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = s.Keys.activeKID
	tk.Header["typ"] = "JWT"
	return tk.SignedString(s.Keys.priv)
}

// IssueIDToken emite un id_token OIDC: claims estándar + extra (nonce, at_hash,
// claims de scope).
func (s *Signer) IssueIDToken(sub, aud string, extra map[string]any, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwtv5.MapClaims{
		"iss": s.Iss,
		"sub": sub,
		"aud": aud,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	signed, err := s.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Keyfunc elige la pubkey por 'kid' del header (para verificación local).
func (s *Signer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("kid header required")
		}
		return s.Keys.PublicKeyByKID(kid)
	}
}

// KeyfuncForJWKS resuelve pubkeys Ed25519 desde un JWKS kid -> base64url raw
// (el formato que guarda TrustedIssuer).
func KeyfuncForJWKS(jwks map[string]string) jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("kid header required")
		}
		raw, ok := jwks[kid]
		if !ok {
			return nil, fmt.Errorf("jose: unknown kid %q", kid)
		}
		pub, err := base64.RawURLEncoding.DecodeString(raw)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return nil, errors.New("jose: malformed public key")
		}
		return ed25519.PublicKey(pub), nil
	}
}

// VerifyAssertion parsea y verifica una assertion con el keyfunc y algoritmos
// dados, exigiendo exp. Retorna los claims.
func VerifyAssertion(assertion string, keyfunc jwtv5.Keyfunc, algs []string) (jwtv5.MapClaims, error) {
	tk, err := jwtv5.Parse(assertion, keyfunc,
		jwtv5.WithValidMethods(algs),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok || !tk.Valid {
		return nil, errors.New("jose: invalid assertion")
	}
	return claims, nil
}

// AtHash computa at_hash = base64url(128 bits más significativos de
// SHA-256(access_token)) para id_tokens co-emitidos.
func AtHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
